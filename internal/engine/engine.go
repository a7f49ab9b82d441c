// Package engine implements the Trading Engine (spec §4.6): the central
// state machine that owns the in-memory position and pending-order
// lists and is the sole writer of trade intent into the Trade Store.
// Grounded on the teacher's cmd/bot/trading_cycle.go scan-step ordering
// (reconcile -> exit checks -> entries) and its executeEntry/executeExit
// tick-rounding and durable-write-before-broker-placement discipline,
// generalized from one hard-coded strangle to an arbitrary direction
// produced by any registered strategy.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/optionflow/coretrader/internal/broker"
	"github.com/optionflow/coretrader/internal/models"
	"github.com/optionflow/coretrader/internal/retry"
	"github.com/optionflow/coretrader/internal/store"
)

// RiskConfig carries the `risk_management` config section (spec §6).
type RiskConfig struct {
	ProfitTargetPct           float64
	StopLossPct               float64
	TrailingStopEnabled       bool
	TrailingStopActivationPct float64
	TrailingStopDistancePct   float64
	MaxHoldDays               int
	MaxPositionSize           float64 // dollar cap on per-trade notional
	MaxPositions              int     // count cap per strategy instance
	PositionSizePct           float64
}

// DefaultRiskConfig matches spec §4.6's stated defaults/examples.
var DefaultRiskConfig = RiskConfig{
	ProfitTargetPct:           0.5,
	StopLossPct:               0.3,
	TrailingStopEnabled:       true,
	TrailingStopActivationPct: 0.25,
	TrailingStopDistancePct:   0.15,
	MaxHoldDays:               21,
	MaxPositionSize:           10000,
	MaxPositions:              10,
	PositionSizePct:           0.02,
}

// OptionSelectionConfig carries the `option_selection` config section.
type OptionSelectionConfig struct {
	MinDTE        int
	MaxDTE        int
	CallStrikePct float64
	PutStrikePct  float64
}

// DefaultOptionSelectionConfig matches spec §4.6's stated defaults.
var DefaultOptionSelectionConfig = OptionSelectionConfig{
	MinDTE:        25,
	MaxDTE:        45,
	CallStrikePct: 1.02,
	PutStrikePct:  0.98,
}

// OrderManagementConfig carries the `order_management` config section.
type OrderManagementConfig struct {
	OrderTimeoutSeconds int
	PriceDriftThreshold float64
	UseBracketOrders    bool
}

// DefaultOrderManagementConfig matches spec §4.6's stated default (10%
// drift threshold).
var DefaultOrderManagementConfig = OrderManagementConfig{
	OrderTimeoutSeconds: 300,
	PriceDriftThreshold: 0.10,
	UseBracketOrders:    true,
}

// Rule is one row of the legacy pattern-confidence rules table that
// backs `trading_rules` config (spec §4.6 step 3).
type Rule struct {
	Pattern       models.Pattern
	MinConfidence float64
	Direction     models.Direction
}

// Config bundles everything EvaluateSignal, Size, SelectOption, and the
// exit-check pipeline need.
type Config struct {
	Risk            RiskConfig
	OptionSelection OptionSelectionConfig
	OrderManagement OrderManagementConfig
	Rules           []Rule
}

// DefaultConfig bundles the section defaults above.
var DefaultConfig = Config{
	Risk:            DefaultRiskConfig,
	OptionSelection: DefaultOptionSelectionConfig,
	OrderManagement: DefaultOrderManagementConfig,
}

// Engine is single-writer to its in-memory positions/pending lists
// (spec §3 "Ownership"); every external actor — the coordinator, the
// CLI command handlers — goes through its methods rather than mutating
// the lists directly.
type Engine struct {
	mu    sync.Mutex
	cfg   Config
	store *store.Store
	brk   broker.Broker
	retry *retry.Client
	log   *logrus.Entry

	positions []models.Position
	pending   []models.PendingOrder

	vetoCount atomic.Int64
}

// New constructs an Engine. retryClient may be nil, in which case bracket
// placement and cancellation call the broker directly with no retry.
func New(cfg Config, st *store.Store, brk broker.Broker, retryClient *retry.Client, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{cfg: cfg, store: st, brk: brk, retry: retryClient, log: log}
}

// Load populates the in-memory lists from the Trade Store. Called once
// at startup (or after a restart) so the engine's in-memory state is
// reconstructed from durable truth before the first scan (spec §8 #5
// reconciliation idempotence — this is the durable half of it).
func (e *Engine) Load(ctx context.Context) error {
	pending, err := e.store.PendingOrders(ctx)
	if err != nil {
		return fmt.Errorf("engine: Load: %w", err)
	}
	open, err := e.store.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("engine: Load: %w", err)
	}
	e.mu.Lock()
	e.pending = pending
	e.positions = open
	e.mu.Unlock()
	return nil
}

// Positions returns a snapshot of the in-memory open-position list.
func (e *Engine) Positions() []models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Position(nil), e.positions...)
}

// VetoCount returns the number of signals the global veto table (spec
// §4.6 step 2) has rejected since the engine was constructed, for the
// dashboard's regime-veto gauge.
func (e *Engine) VetoCount() int64 {
	return e.vetoCount.Load()
}

// Pending returns a snapshot of the in-memory pending-order list.
func (e *Engine) Pending() []models.PendingOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.PendingOrder(nil), e.pending...)
}

// hasClash reports whether strategyName already holds a live Position or
// PendingOrder for symbol (spec §4.6 "strategy scope invariants", §8 #4).
// Callers must hold e.mu.
func (e *Engine) hasClash(strategyName, symbol string) bool {
	key := models.StrategyClashKey{Strategy: strategyName, Symbol: symbol}
	for _, p := range e.positions {
		if p.Key() == key {
			return true
		}
	}
	for _, p := range e.pending {
		if p.Key() == key {
			return true
		}
	}
	return false
}

// CountOpen returns how many live Position+PendingOrder records
// strategyName currently holds, for the max_positions scope check.
func (e *Engine) CountOpen(strategyName string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, p := range e.positions {
		if p.StrategyName == strategyName {
			n++
		}
	}
	for _, p := range e.pending {
		if p.StrategyName == strategyName {
			n++
		}
	}
	return n
}

// HasClash is the exported form of hasClash, for callers outside the
// package deciding whether to even attempt sizing a signal (spec §4.6
// "a strategy may not have two concurrent positions+pending in the same
// symbol").
func (e *Engine) HasClash(strategyName, symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasClash(strategyName, symbol)
}

// MaxPositionsFor resolves the effective max_positions cap for a
// strategy instance, falling back to the engine's global default when
// instanceMax is 0 (spec §6 "strategies... max_positions?").
func (e *Engine) MaxPositionsFor(instanceMax int) int {
	if instanceMax > 0 {
		return instanceMax
	}
	return e.cfg.Risk.MaxPositions
}
