// Package marketctx provides the two coupled pieces of global market
// context the engine consults on every veto decision (spec §4.3): a
// regime classifier driven by SPY/VIX bars, and a sector-rotation
// relative-strength tracker. Grounded on original_source/market_context.py,
// translated from its Python class pair into a Go value + refresh method
// pair the coordinator calls on its own cadence.
package marketctx

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/optionflow/coretrader/internal/broker"
)

// Regime is the classified state of the broad market.
type Regime string

// The five regimes the detector can report.
const (
	RegimeBullTrend  Regime = "bull_trend"
	RegimeBearTrend  Regime = "bear_trend"
	RegimeRangeBound Regime = "range_bound"
	RegimeHighChaos  Regime = "high_chaos"
	RegimeUnknown    Regime = "unknown"
)

// RegimeConfig carries the tunable thresholds from spec §4.3, all with
// the spec's stated defaults.
type RegimeConfig struct {
	HighChaosVIXChange float64 // default 0.20
	HighChaosSPYVol    float64 // default 0.02
	HighChaosVIX       float64 // default 30
	BullVIX            float64 // default 20
	RangeMin           float64 // default 15
	RangeMax           float64 // default 25
}

// DefaultRegimeConfig matches spec §4.3's stated defaults.
var DefaultRegimeConfig = RegimeConfig{
	HighChaosVIXChange: 0.20,
	HighChaosSPYVol:    0.02,
	HighChaosVIX:       30,
	BullVIX:            20,
	RangeMin:           15,
	RangeMax:           25,
}

// RegimeDetector holds the last-known regime so a failed bar fetch can
// fall back to it rather than flip to unknown (spec §4.3 "If any bar
// fetch fails after all adapter fallbacks, retain the last known regime").
type RegimeDetector struct {
	cfg     RegimeConfig
	current Regime
	log     *logrus.Logger
}

// NewRegimeDetector constructs a detector starting at RegimeUnknown.
func NewRegimeDetector(cfg RegimeConfig, log *logrus.Logger) *RegimeDetector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RegimeDetector{cfg: cfg, current: RegimeUnknown, log: log}
}

// Current returns the last classified (or retained) regime.
func (d *RegimeDetector) Current() Regime {
	return d.current
}

// Assess fetches SPY (≈1y daily) and VIX (≈30d daily) bars and
// reclassifies the regime, evaluating the five clauses top-down (spec
// §4.3). On any fetch error it logs and retains the current regime.
func (d *RegimeDetector) Assess(ctx context.Context, b broker.Broker) Regime {
	spyBars, err := b.HistoricalBars(ctx, broker.BarRequest{
		Symbol: "SPY", BarSize: "1 day", Duration: "1 Y",
		SecurityType: broker.SecurityStock, WhatToShow: "TRADES", RTH: true,
	})
	if err != nil || len(spyBars) == 0 {
		d.log.WithError(err).Warn("marketctx: failed to fetch SPY bars, retaining regime")
		return d.current
	}

	vixBars, err := b.HistoricalBars(ctx, broker.BarRequest{
		Symbol: "VIX", BarSize: "1 day", Duration: "30 D",
		SecurityType: broker.SecurityIndex, WhatToShow: "TRADES", RTH: true,
	})
	if err != nil || len(vixBars) == 0 {
		d.log.WithError(err).Warn("marketctx: failed to fetch VIX bars, retaining regime")
		return d.current
	}

	regime := classify(spyBars, vixBars, d.cfg)
	if regime != d.current {
		d.log.WithFields(logrus.Fields{"from": d.current, "to": regime}).Info("marketctx: regime changed")
	}
	d.current = regime
	return regime
}

func classify(spyBars, vixBars []broker.Bar, cfg RegimeConfig) Regime {
	currentSPY := spyBars[len(spyBars)-1].Close
	currentVIX := vixBars[len(vixBars)-1].Close

	sma200 := sma(spyBars, 200)
	if sma200 == 0 {
		sma200 = currentSPY
	}

	spyVol := dailyReturnStdev(spyBars, 6)

	vixChangePct := 0.0
	if len(vixBars) >= 5 {
		vix5dAgo := vixBars[len(vixBars)-5].Close
		if vix5dAgo != 0 {
			vixChangePct = (currentVIX - vix5dAgo) / vix5dAgo
		}
	}

	spyRangePct := 0.0
	window := last(spyBars, 10)
	if len(window) > 0 {
		lo, hi := window[0].Close, window[0].Close
		for _, bar := range window {
			if bar.Close < lo {
				lo = bar.Close
			}
			if bar.Close > hi {
				hi = bar.Close
			}
		}
		if lo != 0 {
			spyRangePct = (hi - lo) / lo
		}
	}

	switch {
	case vixChangePct > cfg.HighChaosVIXChange || spyVol > cfg.HighChaosSPYVol || currentVIX > cfg.HighChaosVIX:
		return RegimeHighChaos
	case currentSPY < sma200 || currentVIX > cfg.HighChaosVIX:
		return RegimeBearTrend
	case spyRangePct < 0.02 && currentVIX >= cfg.RangeMin && currentVIX <= cfg.RangeMax:
		return RegimeRangeBound
	case currentSPY > sma200 && currentVIX < cfg.BullVIX:
		return RegimeBullTrend
	default:
		return RegimeRangeBound
	}
}

func last(bars []broker.Bar, n int) []broker.Bar {
	if len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}

func sma(bars []broker.Bar, n int) float64 {
	window := last(bars, n)
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, b := range window {
		sum += b.Close
	}
	return sum / float64(len(window))
}

func dailyReturnStdev(bars []broker.Bar, n int) float64 {
	window := last(bars, n)
	if len(window) < 3 {
		return 0
	}
	var returns []float64
	for i := 1; i < len(window); i++ {
		prev := window[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, (window[i].Close-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var sumSq float64
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(returns)-1))
}

// String satisfies fmt.Stringer for log fields.
func (r Regime) String() string { return string(r) }

var _ fmt.Stringer = RegimeUnknown
