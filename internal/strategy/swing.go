package strategy

import (
	"fmt"

	"github.com/optionflow/coretrader/internal/models"
)

// SwingConfig is swing_trading's tunable config (spec §4.5, §6
// liquidity_analysis). PatternMinConfidence holds the per-pattern
// confidence floor a signal must clear or be suppressed.
type SwingConfig struct {
	Liquidity            LiquidityConfig
	PatternMinConfidence map[models.Pattern]float64
	TradeTestingPatterns bool // testing_support/resistance are weaker variants, not traded by default
}

// DefaultSwingConfig matches spec §4.5's implied defaults: zone patterns
// need modest confidence, breakout patterns need the imbalance threshold
// itself, and testing patterns are off unless opted in.
var DefaultSwingConfig = SwingConfig{
	Liquidity: DefaultLiquidityConfig,
	PatternMinConfidence: map[models.Pattern]float64{
		models.PatternRejectionAtSupport:    0.3,
		models.PatternRejectionAtResistance: 0.3,
		models.PatternTestingSupport:        0.2,
		models.PatternTestingResistance:     0.2,
		models.PatternPotentialBreakoutUp:   0.6,
		models.PatternPotentialBreakoutDown: 0.6,
	},
	TradeTestingPatterns: false,
}

// Swing is the support/resistance pattern strategy (spec §4.5). Grounded
// on original_source/strategies/swing_trading.py, built directly on top
// of the AnalyzeBook liquidity math shared with the scalping and
// spread-wrapper strategies.
type Swing struct {
	instanceName string
	cfg          SwingConfig

	// previousPrice tracks the last tick's price per symbol, needed to
	// detect a bounce/rejection (a directional move away from a zone
	// rather than merely sitting near one).
	previousPrice map[string]float64
}

// NewSwing constructs a Swing strategy instance.
func NewSwing(instanceName string, cfg SwingConfig) *Swing {
	if cfg.PatternMinConfidence == nil {
		cfg.PatternMinConfidence = DefaultSwingConfig.PatternMinConfidence
	}
	return &Swing{
		instanceName:  instanceName,
		cfg:           cfg,
		previousPrice: make(map[string]float64),
	}
}

func (s *Swing) Name() string        { return s.instanceName }
func (s *Swing) Type() string        { return "swing" }
func (s *Swing) Version() string     { return "1.0.0" }
func (s *Swing) Description() string { return "support/resistance zone and imbalance breakout swing strategy" }

func (s *Swing) DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"liquidity_threshold": DefaultLiquidityConfig.LiquidityThreshold,
		"zone_proximity":      DefaultLiquidityConfig.ZoneProximity,
		"imbalance_threshold": DefaultLiquidityConfig.ImbalanceThreshold,
	}
}

func (s *Swing) ValidateConfig(cfg map[string]interface{}) error {
	if v, ok := cfg["imbalance_threshold"]; ok {
		if f, ok := v.(float64); ok && (f < 0 || f > 1) {
			return fmt.Errorf("swing: imbalance_threshold must be in [0,1], got %v", f)
		}
	}
	return nil
}

func (s *Swing) OnPositionOpened(*models.Position)              {}
func (s *Swing) OnPositionClosed(*models.TradeHistoryEntry)      {}

// Analyze runs the ordered pattern checks from spec §4.5: rejection at
// support/resistance first (against the nearest zone within proximity),
// then the weaker "testing" variants, then imbalance breakouts.
func (s *Swing) Analyze(snap Snapshot) (*models.Signal, error) {
	analysis := AnalyzeBook(snap.Depth, s.cfg.Liquidity)
	prev, hadPrev := s.previousPrice[snap.Symbol]
	s.previousPrice[snap.Symbol] = snap.Price

	if zone, ok := NearestZone(analysis.Support, snap.Price, s.cfg.Liquidity.ZoneProximity); ok {
		if hadPrev && prev <= zone.Price && snap.Price > zone.Price {
			return s.signal(snap.Symbol, models.DirectionLongCall, models.PatternRejectionAtSupport,
				zone, analysis.Imbalance, true)
		}
		if s.cfg.TradeTestingPatterns {
			return s.signal(snap.Symbol, models.DirectionLongCall, models.PatternTestingSupport,
				zone, analysis.Imbalance, true)
		}
	}

	if zone, ok := NearestZone(analysis.Resistance, snap.Price, s.cfg.Liquidity.ZoneProximity); ok {
		if hadPrev && prev >= zone.Price && snap.Price < zone.Price {
			return s.signal(snap.Symbol, models.DirectionLongPut, models.PatternRejectionAtResistance,
				zone, analysis.Imbalance, false)
		}
		if s.cfg.TradeTestingPatterns {
			return s.signal(snap.Symbol, models.DirectionLongPut, models.PatternTestingResistance,
				zone, analysis.Imbalance, false)
		}
	}

	if analysis.Imbalance > s.cfg.Liquidity.ImbalanceThreshold {
		return s.breakoutSignal(snap.Symbol, models.DirectionLongCall, models.PatternPotentialBreakoutUp, analysis.Imbalance)
	}
	if analysis.Imbalance < -s.cfg.Liquidity.ImbalanceThreshold {
		return s.breakoutSignal(snap.Symbol, models.DirectionLongPut, models.PatternPotentialBreakoutDown, analysis.Imbalance)
	}

	return nil, nil
}

func (s *Swing) signal(symbol string, dir models.Direction, pattern models.Pattern, zone Zone, imb float64, bullish bool) (*models.Signal, error) {
	base := zone.Strength
	if pattern == models.PatternTestingSupport || pattern == models.PatternTestingResistance {
		base *= 0.7
	}
	confidence := AdjustConfidenceByImbalance(base, imb, bullish)
	if confidence < s.cfg.PatternMinConfidence[pattern] {
		return nil, nil
	}
	return &models.Signal{
		Symbol:     symbol,
		Direction:  dir,
		Confidence: confidence,
		Pattern:    pattern,
		PriceLevel: zone.Price,
		Metadata: map[string]interface{}{
			"zone_size":     zone.Size,
			"raw_strength":  zone.Strength,
			"imbalance":     imb,
		},
	}, nil
}

func (s *Swing) breakoutSignal(symbol string, dir models.Direction, pattern models.Pattern, imb float64) (*models.Signal, error) {
	confidence := absFloat(imb)
	if confidence < s.cfg.PatternMinConfidence[pattern] {
		return nil, nil
	}
	return &models.Signal{
		Symbol:     symbol,
		Direction:  dir,
		Confidence: confidence,
		Pattern:    pattern,
		Metadata:   map[string]interface{}{"imbalance": imb},
	}, nil
}

var _ Strategy = (*Swing)(nil)
