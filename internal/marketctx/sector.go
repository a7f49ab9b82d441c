package marketctx

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/optionflow/coretrader/internal/broker"
)

// Sectors is the eleven sector ETFs sector rotation tracks (spec §4.3).
var Sectors = []string{"XLK", "XLE", "XLF", "XLV", "XLI", "XLP", "XLY", "XLB", "XLU", "XLRE", "XLC"}

// industryKeywords is the fixed fallback keyword map from a broker's
// free-form industry string to a sector ETF, used when no config
// override exists for a symbol (spec §4.3, original_source/market_context.py).
var industryKeywords = map[string]string{
	"Technology":         "XLK",
	"Energy":             "XLE",
	"Financial":          "XLF",
	"Healthcare":         "XLV",
	"Industrials":        "XLI",
	"Consumer Defensive": "XLP",
	"Consumer Cyclical":  "XLY",
	"Basic Materials":    "XLB",
	"Utilities":          "XLU",
	"Real Estate":        "XLRE",
	"Communication":      "XLC",
}

// SectorRotation tracks the relative-strength slope of each sector ETF
// against SPY, and resolves a symbol to its sector.
type SectorRotation struct {
	rsWindow  int
	overrides map[string]string // symbol -> sector ETF, config-provided
	resolved  map[string]string // symbol -> sector ETF, keyword-derived cache
	slopes    map[string]float64
	log       *logrus.Logger
}

// NewSectorRotation constructs a tracker. rsWindow is the number of
// trailing aligned bars the RS slope is computed over (spec default: 5).
// overrides maps specific symbols to a sector ETF ahead of the keyword
// fallback.
func NewSectorRotation(rsWindow int, overrides map[string]string, log *logrus.Logger) *SectorRotation {
	if rsWindow <= 0 {
		rsWindow = 5
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	cp := make(map[string]string, len(overrides))
	for k, v := range overrides {
		cp[k] = v
	}
	return &SectorRotation{
		rsWindow:  rsWindow,
		overrides: cp,
		resolved:  make(map[string]string),
		slopes:    make(map[string]float64, len(Sectors)),
		log:       log,
	}
}

// ResolveSector maps symbol to a sector ETF: config override first, then
// the keyword map against industry, else "UNKNOWN" (spec §4.3).
func (sr *SectorRotation) ResolveSector(symbol, industry string) string {
	if sector, ok := sr.overrides[symbol]; ok {
		return sector
	}
	if sector, ok := sr.resolved[symbol]; ok {
		return sector
	}
	for keyword, etf := range industryKeywords {
		if strings.Contains(industry, keyword) {
			sr.resolved[symbol] = etf
			return etf
		}
	}
	return "UNKNOWN"
}

// RSSlope returns the cached relative-strength slope for symbol's sector,
// or 0 if unresolved or not yet assessed.
func (sr *SectorRotation) RSSlope(symbol, industry string) float64 {
	sector := sr.ResolveSector(symbol, industry)
	return sr.slopes[sector]
}

// Assess refreshes the RS slope for every sector ETF against SPY over
// the configured bar size/duration, fetching rsWindow-aligned-by-timestamp
// bars for each (spec §4.3).
func (sr *SectorRotation) Assess(ctx context.Context, b broker.Broker, barSize, duration string) {
	spyBars, err := b.HistoricalBars(ctx, broker.BarRequest{
		Symbol: "SPY", BarSize: barSize, Duration: duration,
		SecurityType: broker.SecurityStock, WhatToShow: "TRADES", RTH: true,
	})
	if err != nil || len(spyBars) == 0 {
		sr.log.WithError(err).Warn("marketctx: failed to fetch SPY bars for sector rotation")
		return
	}

	spyByTime := make(map[int64]float64, len(spyBars))
	for _, bar := range spyBars {
		spyByTime[bar.Timestamp.Unix()] = bar.Close
	}

	for _, sector := range Sectors {
		secBars, err := b.HistoricalBars(ctx, broker.BarRequest{
			Symbol: sector, BarSize: barSize, Duration: duration,
			SecurityType: broker.SecurityStock, WhatToShow: "TRADES", RTH: true,
		})
		if err != nil || len(secBars) == 0 {
			sr.log.WithError(err).WithField("sector", sector).Debug("marketctx: failed to fetch sector bars, keeping prior slope")
			continue
		}

		window := last(secBars, sr.rsWindow)
		var ratios []float64
		for _, bar := range window {
			if spyPrice, ok := spyByTime[bar.Timestamp.Unix()]; ok && spyPrice > 0 {
				ratios = append(ratios, bar.Close/spyPrice)
			}
		}
		if len(ratios) < 2 {
			continue
		}
		sr.slopes[sector] = (ratios[len(ratios)-1] - ratios[0]) / float64(len(ratios))
	}
}
