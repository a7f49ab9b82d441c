package strategy

import (
	"math"
	"time"

	"github.com/optionflow/coretrader/internal/models"
)

// ORBConfig is the VIX-momentum opening-range-breakout strategy's
// tunable config (spec §4.5). Grounded on
// original_source/strategies/vix_momentum_orb.py get_default_config.
type ORBConfig struct {
	Location             *time.Location
	OpeningWindow         time.Duration // default 15 min after open
	TradingWindow         time.Duration // default 30 min after the opening window ends
	VIXSlopeWindow        time.Duration // trailing window the VIX slope is computed over
	MarketOpen            string        // "HH:MM" local clock, default "09:30"
}

// DefaultORBConfig matches the Python strategy's defaults.
var DefaultORBConfig = ORBConfig{
	OpeningWindow:  15 * time.Minute,
	TradingWindow:  30 * time.Minute,
	VIXSlopeWindow: 5 * time.Minute,
	MarketOpen:     "09:30",
}

type orbDayState struct {
	date          time.Time // midnight of the trading day this state belongs to
	high, low     float64
	haveRange     bool // at least one tick observed inside the opening window
	tradedToday   bool // one signal per symbol per day
}

type vixSample struct {
	at    time.Time
	price float64
}

// ORB is the VIX-momentum opening-range-breakout strategy (spec §4.5).
// State is keyed by local calendar date; it is reset whenever a new
// Analyze call observes a date rollover.
type ORB struct {
	instanceName string
	cfg          ORBConfig

	days    map[string]*orbDayState // symbol -> day state
	vixHist map[string][]vixSample  // symbol -> trailing VIX samples
}

// NewORB constructs an ORB strategy instance.
func NewORB(instanceName string, cfg ORBConfig) *ORB {
	if cfg.Location == nil {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		cfg.Location = loc
	}
	if cfg.OpeningWindow <= 0 {
		cfg.OpeningWindow = DefaultORBConfig.OpeningWindow
	}
	if cfg.TradingWindow <= 0 {
		cfg.TradingWindow = DefaultORBConfig.TradingWindow
	}
	if cfg.VIXSlopeWindow <= 0 {
		cfg.VIXSlopeWindow = DefaultORBConfig.VIXSlopeWindow
	}
	return &ORB{
		instanceName: instanceName,
		cfg:          cfg,
		days:         make(map[string]*orbDayState),
		vixHist:      make(map[string][]vixSample),
	}
}

func (o *ORB) Name() string        { return o.instanceName }
func (o *ORB) Type() string        { return "vix_momentum_orb" }
func (o *ORB) Version() string     { return "1.0.0" }
func (o *ORB) Description() string { return "15-minute opening-range breakout filtered by VIX momentum" }

func (o *ORB) DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"opening_window_minutes": int(DefaultORBConfig.OpeningWindow.Minutes()),
		"trading_window_minutes": int(DefaultORBConfig.TradingWindow.Minutes()),
	}
}

func (o *ORB) ValidateConfig(map[string]interface{}) error { return nil }

func (o *ORB) OnPositionOpened(pos *models.Position) {
	if st, ok := o.days[pos.Contract.Symbol]; ok {
		st.tradedToday = true
	}
}
func (o *ORB) OnPositionClosed(*models.TradeHistoryEntry) {}

// Analyze builds the opening range, then emits at most one signal per
// symbol per day once price breaks the range with VIX momentum
// confirming direction (spec §4.5). If no valid opening range was
// observed (a late start), the strategy disables itself for the day.
func (o *ORB) Analyze(snap Snapshot) (*models.Signal, error) {
	if snap.Now.IsZero() || snap.Price <= 0 {
		return nil, nil
	}
	now := snap.Now.In(o.cfg.Location)
	today := dateOnly(now)

	st, ok := o.days[snap.Symbol]
	if !ok || !st.date.Equal(today) {
		st = &orbDayState{date: today, low: math.Inf(1), high: math.Inf(-1)}
		o.days[snap.Symbol] = st
		o.vixHist[snap.Symbol] = nil
	}

	if st.tradedToday {
		return nil, nil
	}

	marketOpen := clockOn(today, o.cfg.MarketOpen, o.cfg.Location)
	orbEnd := marketOpen.Add(o.cfg.OpeningWindow)
	tradingEnd := orbEnd.Add(o.cfg.TradingWindow)

	if now.Before(marketOpen) {
		return nil, nil
	}

	if now.Before(orbEnd) {
		if snap.Price > st.high {
			st.high = snap.Price
		}
		if snap.Price < st.low {
			st.low = snap.Price
		}
		st.haveRange = true
		return nil, nil
	}

	if !st.haveRange {
		st.tradedToday = true // missed the opening window entirely; disable for today
		return nil, nil
	}

	if now.After(tradingEnd) {
		return nil, nil
	}

	o.recordVIX(snap.Symbol, now, snap.VIX)
	slope := o.vixSlope(snap.Symbol)

	switch {
	case snap.Price > st.high && slope < 0:
		confidence := clamp(0.8+10*math.Abs(slope), 0.1, 0.95)
		st.tradedToday = true
		return &models.Signal{
			Symbol: snap.Symbol, Direction: models.DirectionLongCall, Confidence: confidence,
			Pattern: models.PatternOpeningRangeBreakoutUp, PriceLevel: st.high,
			Metadata: map[string]interface{}{"orb_high": st.high, "vix_slope": slope},
		}, nil
	case snap.Price < st.low && slope > 0:
		confidence := clamp(0.8+10*math.Abs(slope), 0.1, 0.95)
		st.tradedToday = true
		return &models.Signal{
			Symbol: snap.Symbol, Direction: models.DirectionLongPut, Confidence: confidence,
			Pattern: models.PatternOpeningRangeBreakoutDown, PriceLevel: st.low,
			Metadata: map[string]interface{}{"orb_low": st.low, "vix_slope": slope},
		}, nil
	}
	return nil, nil
}

func (o *ORB) recordVIX(symbol string, at time.Time, price float64) {
	if price <= 0 {
		return
	}
	hist := append(o.vixHist[symbol], vixSample{at: at, price: price})
	cutoff := at.Add(-o.cfg.VIXSlopeWindow)
	kept := hist[:0]
	for _, s := range hist {
		if !s.at.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	o.vixHist[symbol] = kept
}

func (o *ORB) vixSlope(symbol string) float64 {
	hist := o.vixHist[symbol]
	if len(hist) < 2 {
		return 0
	}
	first, last := hist[0], hist[len(hist)-1]
	minutes := last.at.Sub(first.at).Minutes()
	if minutes < 1.0 {
		return 0
	}
	return (last.price - first.price) / minutes
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func clockOn(day time.Time, hhmm string, loc *time.Location) time.Time {
	parsed, err := time.ParseInLocation("15:04", hhmm, loc)
	if err != nil {
		parsed = time.Date(0, 1, 1, 9, 30, 0, 0, loc)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, loc)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ Strategy = (*ORB)(nil)
