// Package coordinator implements the scan loop (spec §4.7): a periodic
// tick that reconciles pending orders, fetches per-symbol quotes/depth in
// parallel, dispatches to the strategy registry, sizes and places
// approved signals, and runs exit checks — all behind a single
// command channel an operator can drive without blocking the scan.
// Grounded on the teacher's cmd/bot's Run ticker loop and SIGINT/SIGTERM
// handling, generalized from one hard-coded symbol to a configured list
// fanned out with golang.org/x/sync/errgroup (present in the teacher's
// go.mod but never wired into production code there).
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/optionflow/coretrader/internal/broker"
	"github.com/optionflow/coretrader/internal/dashboard"
	"github.com/optionflow/coretrader/internal/engine"
	"github.com/optionflow/coretrader/internal/marketctx"
	"github.com/optionflow/coretrader/internal/models"
	"github.com/optionflow/coretrader/internal/registry"
	"github.com/optionflow/coretrader/internal/store"
	"github.com/optionflow/coretrader/internal/strategy"
)

// Config bundles everything the scan loop needs beyond its wired
// dependencies (spec §6 `symbols`, `operation`, `safety`, `market_regime`,
// `sector_rotation` sections).
type Config struct {
	Symbols []string

	ScanInterval       time.Duration
	StatusEverySans    int // log a status summary every N scans
	DiscoverEverySScan int // re-probe for new strategy instance files every N scans

	TradingHoursOnly bool
	EmergencyStop    bool
	MaxDailyLoss     float64

	RegimeEveryScan int // re-assess market regime every N scans
	SectorBarSize   string
	SectorDuration  string

	// Industries optionally maps a symbol to a broker-style industry
	// string for sector resolution, since the Broker contract (spec
	// §4.1) has no industry-lookup method of its own.
	Industries map[string]string
}

// AccountValueTag is the account-summary tag read for position sizing,
// matching the Interactive Brokers reference adapter's own naming (spec
// §6 "compatibility is behavioral... a reference implementation speaks
// the Interactive Brokers socket protocol").
const AccountValueTag = "NetLiquidation"

// Coordinator owns the scan loop. It is the only goroutine that calls
// Engine/Registry mutating methods from outside an operator command, so
// the scan tick itself never needs its own extra locking.
type Coordinator struct {
	cfg Config

	brk      broker.Broker
	eng      *engine.Engine
	reg      *registry.Registry
	store    *store.Store
	regime   *marketctx.RegimeDetector
	sectors  *marketctx.SectorRotation
	disc     Discoverer
	log      *logrus.Entry

	commands chan Command
	stop     chan struct{}
	stopOnce sync.Once

	scanCount int
	paused    bool
}

// Discoverer probes for new strategy instance definitions at runtime —
// the config-driven analogue of spec §4.7 "new strategy files are
// auto-discovered", since Go has no portable equivalent of loading a
// new strategy implementation as a file without a process restart.
// Discoverer instead re-reads the `strategies` config section and
// reports any instance not yet loaded.
type Discoverer interface {
	Discover() (map[string]registry.InstanceConfig, error)
}

// New constructs a Coordinator. log and disc may both be nil; disc being
// nil simply disables the periodic discovery step.
func New(cfg Config, brk broker.Broker, eng *engine.Engine, reg *registry.Registry, st *store.Store, regime *marketctx.RegimeDetector, sectors *marketctx.SectorRotation, disc Discoverer, log *logrus.Entry) *Coordinator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 30 * time.Second
	}
	return &Coordinator{
		cfg: cfg, brk: brk, eng: eng, reg: reg, store: st, regime: regime, sectors: sectors, disc: disc, log: log,
		commands: make(chan Command, 16),
		stop:     make(chan struct{}),
	}
}

// Commands returns the channel operator commands are submitted on; the
// scan loop drains it at the start of every tick without blocking on it
// between ticks (spec §4.7 "a separate concurrent command channel").
func (c *Coordinator) Commands() chan<- Command {
	return c.commands
}

// Stop signals the scan loop to exit after its current tick.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Run blocks until ctx is cancelled or Stop is called, running one scan
// immediately and then on cfg.ScanInterval thereafter (spec §4.7, §5
// "SIGINT/SIGTERM triggers: stop loop, print final status...").
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.eng.Load(ctx); err != nil {
		return fmt.Errorf("coordinator: Run: load engine state: %w", err)
	}

	ticker := time.NewTicker(c.cfg.ScanInterval)
	defer ticker.Stop()

	c.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			c.log.Info("coordinator: context cancelled, stopping")
			return nil
		case <-c.stop:
			c.log.Info("coordinator: stop requested, final status:")
			c.logStatus()
			return nil
		case cmd := <-c.commands:
			c.handleCommand(ctx, cmd)
		case <-ticker.C:
			c.runTick(ctx)
		}
	}
}

// runTick drains any queued commands, then executes exactly one scan
// tick in the deterministic order spec §5 requires: pending-order
// reconciliation, manual-close detection, per-symbol signal dispatch,
// exit checks.
func (c *Coordinator) runTick(ctx context.Context) {
	c.drainCommands(ctx)
	if c.cfg.EmergencyStop {
		c.log.Warn("coordinator: emergency_stop set, skipping scan")
		return
	}

	c.scanCount++
	dashboard.RecordScan()

	c.eng.ReconcilePending(ctx)

	// ConnectionLoss policy (spec §7): pause manual-close detection
	// entirely while the broker is unreachable rather than risk treating
	// an outage as evidence every position closed.
	if c.brk.Connected() {
		if portfolio, err := c.brk.Portfolio(ctx); err != nil {
			c.log.WithError(err).Warn("coordinator: portfolio fetch failed, skipping manual-close detection this scan")
		} else {
			conIDs := make([]int64, len(portfolio))
			for i, line := range portfolio {
				conIDs[i] = line.ConID
			}
			c.eng.DetectManualCloses(ctx, conIDs)
		}
	} else {
		c.log.Warn("coordinator: broker reports not connected, skipping manual-close detection")
	}

	if c.cfg.RegimeEveryScan > 0 && c.scanCount%c.cfg.RegimeEveryScan == 0 {
		c.regime.Assess(ctx, c.brk)
		c.sectors.Assess(ctx, c.brk, c.cfg.SectorBarSize, c.cfg.SectorDuration)
	}

	entriesAllowed := !c.paused && c.withinEntryWindow()
	if !c.paused {
		c.scanSymbols(ctx, entriesAllowed)
	}

	quote := func(localSymbol string) (float64, bool) {
		q, err := c.brk.Quote(ctx, localSymbol)
		if err != nil || !q.HasPrice {
			return 0, false
		}
		return q.Mid(), true
	}
	for _, entry := range c.eng.CheckExits(ctx, quote) {
		c.reg.NotifyClosed(entry.StrategyName, &entry)
	}

	if c.cfg.StatusEverySans > 0 && c.scanCount%c.cfg.StatusEverySans == 0 {
		c.logStatus()
	}
	if c.cfg.DiscoverEverySScan > 0 && c.scanCount%c.cfg.DiscoverEverySScan == 0 {
		c.discover()
	}
}

// withinEntryWindow applies the market-hours gate: new entries are
// suppressed outside 09:30-16:00 America/New_York when configured, but
// reconciliation and exit checks above this point always ran regardless
// (spec §4.7 "Market-hours gate").
func (c *Coordinator) withinEntryWindow() bool {
	if !c.cfg.TradingHoursOnly {
		return true
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		c.log.WithError(err).Warn("coordinator: failed to load America/New_York, allowing entries")
		return true
	}
	now := time.Now().In(loc)
	open := time.Date(now.Year(), now.Month(), now.Day(), 9, 30, 0, 0, loc)
	closeT := time.Date(now.Year(), now.Month(), now.Day(), 16, 0, 0, 0, loc)
	return !now.Before(open) && now.Before(closeT)
}

// scanSymbols fetches each configured symbol's quote and depth in
// parallel (spec §4.7 step 2), then dispatches every snapshot through
// the registry and attempts each approved signal sequentially — the
// engine is single-threaded with respect to its own state (spec §5), so
// only the I/O-bound fetch fans out.
func (c *Coordinator) scanSymbols(ctx context.Context, entriesAllowed bool) {
	type fetched struct {
		symbol string
		depth  broker.Depth
		price  float64
		ok     bool
	}
	results := make([]fetched, len(c.cfg.Symbols))

	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range c.cfg.Symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			quote, err := c.brk.Quote(gctx, symbol)
			if err != nil || !quote.HasPrice {
				c.log.WithField("symbol", symbol).Debug("coordinator: quote unavailable, skipping this symbol")
				return nil
			}
			depth, err := c.brk.DepthSnapshot(gctx, symbol, 10)
			if err != nil {
				c.log.WithField("symbol", symbol).WithError(err).Debug("coordinator: depth unavailable, skipping this symbol")
				return nil
			}
			results[i] = fetched{symbol: symbol, depth: depth, price: quote.Mid(), ok: true}
			return nil
		})
	}
	// errgroup's functions never return a non-nil error here (every
	// transient feed failure is logged and skipped in place, per spec §7
	// TransientFeed), so Wait only matters for fan-in synchronization.
	_ = g.Wait()

	vix := 0.0
	if q, err := c.brk.Quote(ctx, "VIX"); err == nil && q.HasPrice {
		vix = q.Mid()
	}

	for _, f := range results {
		if !f.ok {
			continue
		}
		snap := strategy.Snapshot{
			Symbol: f.symbol, Depth: f.depth, Price: f.price,
			Industry: c.cfg.Industries[f.symbol],
			Regime:   c.regime.Current(),
			SectorRS: c.sectors.RSSlope(f.symbol, c.cfg.Industries[f.symbol]),
			VIX:      vix,
			Now:      time.Now(),
		}
		for _, sig := range c.reg.AnalyzeAll(snap) {
			c.handleSignal(ctx, sig, f.price, entriesAllowed)
		}
	}
}

// handleSignal routes a registry-approved signal to either the
// no_trade/exit path or the entry path (spec §4.6 step 1). spot is the
// underlying's current mid price, used for option selection's strike
// targeting.
func (c *Coordinator) handleSignal(ctx context.Context, sig *models.Signal, spot float64, entriesAllowed bool) {
	if sig.Direction == models.DirectionNoTrade {
		if entry, ok := c.eng.HandleSignalExit(ctx, sig); ok {
			c.reg.NotifyClosed(entry.StrategyName, entry)
		}
		return
	}
	if !entriesAllowed {
		return
	}

	strategyName, _ := sig.Metadata[models.MetaStrategyInstance].(string)
	direction, ok := c.eng.EvaluateSignal(sig, c.regime.Current())
	if !ok {
		return
	}
	if c.eng.HasClash(strategyName, sig.Symbol) {
		return
	}

	instCfg, _ := c.reg.InstanceConfig(strategyName)
	if instCfg.MaxPositions > 0 && c.eng.CountOpen(strategyName) >= instCfg.MaxPositions {
		return
	}

	contract, ok, err := c.eng.SelectOption(ctx, sig.Symbol, direction, spot)
	if err != nil || !ok {
		if err != nil {
			c.log.WithField("symbol", sig.Symbol).WithError(err).Warn("coordinator: option selection failed")
		}
		return
	}

	quote, err := c.brk.Quote(ctx, contract.LocalSymbol)
	if err != nil || !quote.HasPrice {
		return
	}

	accountValue, err := c.brk.AccountValue(ctx, AccountValueTag)
	if err != nil {
		c.log.WithError(err).Warn("coordinator: account value unavailable, skipping entry")
		return
	}

	var budget *models.StrategyBudget
	if instCfg.Budget > 0 {
		b, ok, err := c.store.Budget(ctx, strategyName)
		if err != nil {
			c.log.WithField("strategy", strategyName).WithError(err).Warn("coordinator: budget lookup failed, skipping entry")
			return
		}
		if ok {
			budget = &b
		} else {
			budget = &models.StrategyBudget{StrategyName: strategyName, Budget: instCfg.Budget}
		}
	}

	quantity, ok := c.eng.Size(accountValue, quote.Mid(), sig.Confidence, budget)
	if !ok {
		return // BudgetExceeded (spec §7): silently skip, not an error
	}

	if err := c.eng.PlaceBracket(ctx, strategyName, contract, direction, quantity, quote.Mid()); err != nil {
		c.log.WithField("strategy", strategyName).WithField("symbol", sig.Symbol).WithError(err).Warn("coordinator: place bracket failed")
	}
}

func (c *Coordinator) logStatus() {
	c.log.WithFields(logrus.Fields{
		"open_positions": len(c.eng.Positions()),
		"pending_orders": len(c.eng.Pending()),
		"regime":         c.regime.Current(),
		"scan":           c.scanCount,
	}).Info("coordinator: status")
}
