// Package strategy defines the strategy-plugin contract (spec §4.4) and
// the concrete built-in strategies (spec §4.5). A strategy's only output
// is a Signal: it never places orders or reads budgets directly.
package strategy

import (
	"time"

	"github.com/optionflow/coretrader/internal/broker"
	"github.com/optionflow/coretrader/internal/marketctx"
	"github.com/optionflow/coretrader/internal/models"
)

// Snapshot is the read-only per-tick input every strategy's Analyze
// receives: one L2 depth snapshot, the current price, and market context.
// Strategies share nothing with each other and mutate only their own
// internal state (spec §8 "Shared-resource policy"). Now is injected by
// the coordinator rather than read via time.Now() inside a strategy, so
// strategy state machines (e.g. the ORB daily reset) are deterministic
// and testable.
type Snapshot struct {
	Symbol   string
	Depth    broker.Depth
	Price    float64
	Industry string // broker-reported industry string, for sector resolution
	Regime   marketctx.Regime
	SectorRS float64 // relative-strength slope of the symbol's sector
	VIX      float64 // current VIX price, for the ORB strategy's momentum filter
	Now      time.Time
}

// Strategy is the plugin contract every strategy instance implements
// (spec §4.4).
type Strategy interface {
	Name() string
	Type() string
	Version() string
	Description() string
	DefaultConfig() map[string]interface{}
	Analyze(snap Snapshot) (*models.Signal, error)
	OnPositionOpened(pos *models.Position)
	OnPositionClosed(entry *models.TradeHistoryEntry)
	ValidateConfig(cfg map[string]interface{}) error
}
