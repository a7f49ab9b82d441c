package strategy

import (
	"github.com/optionflow/coretrader/internal/models"
)

// ScalpingConfig is the scalping strategy's tunable config (spec §4.5).
// Grounded on original_source/strategies/scalping.py get_default_config.
type ScalpingConfig struct {
	EntryThreshold           float64 // default 0.7
	ExitThreshold            float64 // default 0.3, against-position imbalance flip
	MaxTicksWithoutProgress  int     // default 5
	MinProgressPct           float64 // default 0.001
	MinConfidence            float64 // default 0.70
}

// DefaultScalpingConfig matches the Python defaults.
var DefaultScalpingConfig = ScalpingConfig{
	EntryThreshold:          0.7,
	ExitThreshold:           0.3,
	MaxTicksWithoutProgress: 5,
	MinProgressPct:          0.001,
	MinConfidence:           0.70,
}

type scalpTrack struct {
	direction  models.Direction
	entryPrice float64
	entryTick  int
}

// Scalping is the order-book-imbalance scalping strategy (spec §4.5).
// It tracks one in-flight scalp per symbol, keyed by entry tick and
// price, and emits a no_trade exit signal carrying an exit_reason hint
// the engine uses to close the position out (spec §8 S6).
type Scalping struct {
	instanceName string
	cfg          ScalpingConfig

	ticks     map[string]int
	positions map[string]scalpTrack
}

// NewScalping constructs a Scalping strategy instance.
func NewScalping(instanceName string, cfg ScalpingConfig) *Scalping {
	return &Scalping{
		instanceName: instanceName,
		cfg:          cfg,
		ticks:        make(map[string]int),
		positions:    make(map[string]scalpTrack),
	}
}

func (s *Scalping) Name() string        { return s.instanceName }
func (s *Scalping) Type() string        { return "scalping" }
func (s *Scalping) Version() string     { return "1.0.0" }
func (s *Scalping) Description() string { return "order-book imbalance scalping with time-decay exit" }

func (s *Scalping) DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"entry_threshold":              DefaultScalpingConfig.EntryThreshold,
		"exit_threshold":                DefaultScalpingConfig.ExitThreshold,
		"max_ticks_without_progress":    DefaultScalpingConfig.MaxTicksWithoutProgress,
		"min_progress_pct":              DefaultScalpingConfig.MinProgressPct,
		"min_confidence":                DefaultScalpingConfig.MinConfidence,
	}
}

func (s *Scalping) ValidateConfig(map[string]interface{}) error { return nil }

func (s *Scalping) OnPositionOpened(*models.Position)         {}
func (s *Scalping) OnPositionClosed(*models.TradeHistoryEntry) {}

// Analyze computes book imbalance, checks the in-flight scalp's
// time-decay/flip exit first, then evaluates a fresh entry (spec §4.5,
// §8 S6).
func (s *Scalping) Analyze(snap Snapshot) (*models.Signal, error) {
	s.ticks[snap.Symbol]++
	tick := s.ticks[snap.Symbol]

	analysis := AnalyzeBook(snap.Depth, LiquidityConfig{LiquidityThreshold: 0, ZoneProximity: 0, ImbalanceThreshold: s.cfg.EntryThreshold})
	imb := analysis.Imbalance

	if exit, ok := s.checkExit(snap.Symbol, snap.Price, tick, imb); ok {
		return exit, nil
	}

	if imb >= s.cfg.EntryThreshold {
		confidence := minFloat(1.0, imb)
		if confidence < s.cfg.MinConfidence {
			return nil, nil
		}
		s.positions[snap.Symbol] = scalpTrack{direction: models.DirectionLongCall, entryPrice: snap.Price, entryTick: tick}
		return &models.Signal{
			Symbol: snap.Symbol, Direction: models.DirectionLongCall, Confidence: confidence,
			Pattern: models.PatternScalpImbalance,
			Metadata: map[string]interface{}{"imbalance": imb, "tick": tick},
		}, nil
	}

	if imb <= -s.cfg.EntryThreshold {
		confidence := minFloat(1.0, absFloat(imb))
		if confidence < s.cfg.MinConfidence {
			return nil, nil
		}
		s.positions[snap.Symbol] = scalpTrack{direction: models.DirectionLongPut, entryPrice: snap.Price, entryTick: tick}
		return &models.Signal{
			Symbol: snap.Symbol, Direction: models.DirectionLongPut, Confidence: confidence,
			Pattern: models.PatternScalpImbalance,
			Metadata: map[string]interface{}{"imbalance": imb, "tick": tick},
		}, nil
	}

	return nil, nil
}

func (s *Scalping) checkExit(symbol string, price float64, tick int, imb float64) (*models.Signal, bool) {
	pos, ok := s.positions[symbol]
	if !ok {
		return nil, false
	}

	var progress float64
	var imbalanceFlipped bool
	if pos.direction == models.DirectionLongCall {
		progress = (price - pos.entryPrice) / pos.entryPrice
		imbalanceFlipped = imb < -s.cfg.ExitThreshold
	} else {
		progress = (pos.entryPrice - price) / pos.entryPrice
		imbalanceFlipped = imb > s.cfg.ExitThreshold
	}

	ticksElapsed := tick - pos.entryTick

	var reason string
	switch {
	case imbalanceFlipped:
		reason = "imbalance_flip"
	case ticksElapsed >= s.cfg.MaxTicksWithoutProgress && progress < s.cfg.MinProgressPct:
		reason = "time_decay"
	default:
		return nil, false
	}

	delete(s.positions, symbol)

	return &models.Signal{
		Symbol:     symbol,
		Direction:  models.DirectionNoTrade,
		Confidence: 0.9,
		Pattern:    models.PatternScalpImbalance,
		Metadata: map[string]interface{}{
			models.MetaExitReason: reason,
			"ticks_elapsed":       ticksElapsed,
			"progress_pct":        progress,
		},
	}, true
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

var _ Strategy = (*Scalping)(nil)
