package strategy

import (
	"github.com/optionflow/coretrader/internal/marketctx"
	"github.com/optionflow/coretrader/internal/models"
)

// SpreadWrapper runs the swing strategy's base pattern detection and
// reconditions its output against market regime into one of the
// spread/condor directions (spec §4.5). Grounded on
// original_source/strategies/options_strategies.py's Bull/BearPutSpread,
// LongPut, and IronCondor classes, which all subclass SwingTradingStrategy.
type SpreadWrapper struct {
	instanceName string
	kind         models.Direction
	base         *Swing
}

// NewBullPutSpread requires bull_trend and converts any long_call from the
// base swing analysis into a credit spread.
func NewBullPutSpread(instanceName string, cfg SwingConfig) *SpreadWrapper {
	return &SpreadWrapper{instanceName: instanceName, kind: models.DirectionBullPutSpread, base: NewSwing(instanceName, cfg)}
}

// NewBearPutSpread requires bear_trend and converts a long_put from a
// potential_breakout_down or rejection_at_resistance into a debit spread.
func NewBearPutSpread(instanceName string, cfg SwingConfig) *SpreadWrapper {
	return &SpreadWrapper{instanceName: instanceName, kind: models.DirectionBearPutSpread, base: NewSwing(instanceName, cfg)}
}

// NewLongPutStraight requires bear_trend or high_chaos and a long_put
// with confidence above 0.75, converting it into a straight long put.
func NewLongPutStraight(instanceName string, cfg SwingConfig) *SpreadWrapper {
	return &SpreadWrapper{instanceName: instanceName, kind: models.DirectionLongPutStraight, base: NewSwing(instanceName, cfg)}
}

func (w *SpreadWrapper) Name() string    { return w.instanceName }
func (w *SpreadWrapper) Version() string { return "1.0.0" }

func (w *SpreadWrapper) Type() string {
	switch w.kind {
	case models.DirectionBullPutSpread:
		return "bull_put_spread"
	case models.DirectionBearPutSpread:
		return "bear_put_spread"
	default:
		return "long_put_straight"
	}
}

func (w *SpreadWrapper) Description() string {
	switch w.kind {
	case models.DirectionBullPutSpread:
		return "bull put credit spread, conditioned on a bullish swing signal during a bull regime"
	case models.DirectionBearPutSpread:
		return "bear put debit spread, conditioned on a breakout-down or resistance rejection during a bear regime"
	default:
		return "straight long put, conditioned on a high-confidence bearish swing signal during bear/high-chaos regimes"
	}
}

func (w *SpreadWrapper) DefaultConfig() map[string]interface{} { return w.base.DefaultConfig() }
func (w *SpreadWrapper) ValidateConfig(cfg map[string]interface{}) error { return w.base.ValidateConfig(cfg) }
func (w *SpreadWrapper) OnPositionOpened(pos *models.Position)             { w.base.OnPositionOpened(pos) }
func (w *SpreadWrapper) OnPositionClosed(entry *models.TradeHistoryEntry)   { w.base.OnPositionClosed(entry) }

// Analyze delegates to the swing base, then reconditions the result on
// regime and direction/pattern per spec §4.5.
func (w *SpreadWrapper) Analyze(snap Snapshot) (*models.Signal, error) {
	sig, err := w.base.Analyze(snap)
	if err != nil || sig == nil {
		return nil, err
	}

	switch w.kind {
	case models.DirectionBullPutSpread:
		if snap.Regime != marketctx.RegimeBullTrend || sig.Direction != models.DirectionLongCall {
			return nil, nil
		}
	case models.DirectionBearPutSpread:
		if snap.Regime != marketctx.RegimeBearTrend || sig.Direction != models.DirectionLongPut {
			return nil, nil
		}
		if sig.Pattern != models.PatternPotentialBreakoutDown && sig.Pattern != models.PatternRejectionAtResistance {
			return nil, nil
		}
	case models.DirectionLongPutStraight:
		if (snap.Regime != marketctx.RegimeBearTrend && snap.Regime != marketctx.RegimeHighChaos) || sig.Direction != models.DirectionLongPut {
			return nil, nil
		}
		if sig.Confidence <= 0.75 {
			return nil, nil
		}
	}

	legs := map[string]interface{}{}
	switch w.kind {
	case models.DirectionBullPutSpread:
		legs = map[string]interface{}{"short_delta": 30, "long_delta": 15, "type": "put"}
	case models.DirectionBearPutSpread:
		legs = map[string]interface{}{"long_delta": 50, "short_delta": 30, "type": "put"}
	case models.DirectionLongPutStraight:
		legs = map[string]interface{}{"long_delta": 50, "type": "put"}
	}

	meta := map[string]interface{}{models.MetaLegs: legs}
	for k, v := range sig.Metadata {
		meta[k] = v
	}

	return &models.Signal{
		Symbol:     sig.Symbol,
		Direction:  w.kind,
		Confidence: sig.Confidence,
		Pattern:    sig.Pattern,
		PriceLevel: sig.PriceLevel,
		Metadata:   meta,
	}, nil
}

// IronCondor trades only in range_bound regime, when price sits near the
// midpoint of the nearest support/resistance zone pair (spec §4.5).
// Grounded on options_strategies.py's IronCondorStrategy.
type IronCondor struct {
	instanceName string
	liquidity    LiquidityConfig
	midpointFrac float64 // fraction of the range width price must fall within of the midpoint
}

// NewIronCondor constructs an iron-condor wrapper.
func NewIronCondor(instanceName string, liquidity LiquidityConfig) *IronCondor {
	return &IronCondor{instanceName: instanceName, liquidity: liquidity, midpointFrac: 0.25}
}

func (ic *IronCondor) Name() string        { return ic.instanceName }
func (ic *IronCondor) Type() string        { return "iron_condor" }
func (ic *IronCondor) Version() string     { return "1.0.0" }
func (ic *IronCondor) Description() string { return "iron condor entered near the midpoint of a support/resistance pair in a range-bound regime" }

func (ic *IronCondor) DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"liquidity_threshold": ic.liquidity.LiquidityThreshold,
		"midpoint_fraction":   ic.midpointFrac,
	}
}

func (ic *IronCondor) ValidateConfig(map[string]interface{}) error { return nil }
func (ic *IronCondor) OnPositionOpened(*models.Position)            {}
func (ic *IronCondor) OnPositionClosed(*models.TradeHistoryEntry)   {}

func (ic *IronCondor) Analyze(snap Snapshot) (*models.Signal, error) {
	if snap.Regime != marketctx.RegimeRangeBound {
		return nil, nil
	}

	analysis := AnalyzeBook(snap.Depth, ic.liquidity)
	if len(analysis.Support) == 0 || len(analysis.Resistance) == 0 {
		return nil, nil
	}

	support := nearestBelow(analysis.Support, snap.Price)
	resistance := nearestAbove(analysis.Resistance, snap.Price)
	if support == nil || resistance == nil {
		return nil, nil
	}

	width := resistance.Price - support.Price
	if width <= 0 {
		return nil, nil
	}
	midpoint := (support.Price + resistance.Price) / 2
	if absFloat(snap.Price-midpoint) >= width*ic.midpointFrac {
		return nil, nil
	}

	return &models.Signal{
		Symbol:     snap.Symbol,
		Direction:  models.DirectionIronCondor,
		Confidence: 0.8,
		Pattern:    "range_consolidation",
		PriceLevel: midpoint,
		Metadata: map[string]interface{}{
			models.MetaLegs: map[string]interface{}{
				"short_put_delta": 15, "long_put_delta": 5,
				"short_call_delta": 15, "long_call_delta": 5,
			},
		},
	}, nil
}

func nearestBelow(zones []Zone, price float64) *Zone {
	var best *Zone
	for i := range zones {
		z := &zones[i]
		if z.Price < price && (best == nil || z.Price > best.Price) {
			best = z
		}
	}
	return best
}

func nearestAbove(zones []Zone, price float64) *Zone {
	var best *Zone
	for i := range zones {
		z := &zones[i]
		if z.Price > price && (best == nil || z.Price < best.Price) {
			best = z
		}
	}
	return best
}

var _ Strategy = (*SpreadWrapper)(nil)
var _ Strategy = (*IronCondor)(nil)
