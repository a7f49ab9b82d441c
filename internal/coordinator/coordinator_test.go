package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/optionflow/coretrader/internal/broker"
	"github.com/optionflow/coretrader/internal/engine"
	"github.com/optionflow/coretrader/internal/marketctx"
	"github.com/optionflow/coretrader/internal/models"
	"github.com/optionflow/coretrader/internal/registry"
	"github.com/optionflow/coretrader/internal/store"
	"github.com/optionflow/coretrader/internal/strategy"
)

// stubStrategy emits a fixed signal every Analyze call, or none at all
// once armed to nil, letting tests drive the registry->coordinator path
// without a real pattern detector.
type stubStrategy struct {
	name string
	sig  *models.Signal
}

func (s *stubStrategy) Name() string                   { return s.name }
func (s *stubStrategy) Type() string                   { return "stub" }
func (s *stubStrategy) Version() string                { return "1.0.0" }
func (s *stubStrategy) Description() string            { return "test stub" }
func (s *stubStrategy) DefaultConfig() map[string]interface{} { return map[string]interface{}{} }
func (s *stubStrategy) ValidateConfig(map[string]interface{}) error { return nil }
func (s *stubStrategy) OnPositionOpened(*models.Position)          {}
func (s *stubStrategy) OnPositionClosed(*models.TradeHistoryEntry) {}
func (s *stubStrategy) Analyze(strategy.Snapshot) (*models.Signal, error) {
	return s.sig, nil
}

func newTestCoordinator(t *testing.T, cfg Config) (*Coordinator, *store.Store, *broker.Paper, *registry.Registry, *stubStrategy) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	p := broker.NewPaper()
	eng := engine.New(engine.DefaultConfig, st, p, nil, nil)

	stub := &stubStrategy{name: "stub-1"}
	reg := registry.New(nil)
	reg.RegisterType("stub", func(instanceName string, _ map[string]interface{}) (strategy.Strategy, error) {
		stub.name = instanceName
		return stub, nil
	})
	if err := reg.Load("stub-1", registry.InstanceConfig{Type: "stub", Enabled: true}); err != nil {
		t.Fatalf("load stub instance: %v", err)
	}

	regime := marketctx.NewRegimeDetector(marketctx.DefaultRegimeConfig, nil)
	sectors := marketctx.NewSectorRotation(5, nil, nil)

	c := New(cfg, p, eng, reg, st, regime, sectors, nil, nil)
	return c, st, p, reg, stub
}

func TestParseCommandValid(t *testing.T) {
	cases := []struct {
		line string
		kind Kind
	}{
		{"/status", KindStatus},
		{"/pause", KindPause},
		{"/resume", KindResume},
		{"/strategies", KindStrategies},
		{"/discover", KindDiscover},
		{"/reload", KindReload},
		{"/reload swing-1", KindReload},
	}
	for _, tc := range cases {
		cmd, err := ParseCommand(tc.line)
		if err != nil {
			t.Fatalf("ParseCommand(%q): %v", tc.line, err)
		}
		if cmd.Kind != tc.kind {
			t.Fatalf("ParseCommand(%q): expected kind %q, got %q", tc.line, tc.kind, cmd.Kind)
		}
	}
}

func TestParseCommandEnableRequiresName(t *testing.T) {
	if _, err := ParseCommand("/enable"); err == nil {
		t.Fatal("expected /enable with no argument to be rejected")
	}
	cmd, err := ParseCommand("/enable swing-1")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Kind != KindEnable || len(cmd.Args) != 1 || cmd.Args[0] != "swing-1" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParseCommandUnknownRejected(t *testing.T) {
	if _, err := ParseCommand("/bogus"); err == nil {
		t.Fatal("expected an unknown command to be rejected")
	}
	if _, err := ParseCommand("   "); err == nil {
		t.Fatal("expected an empty line to be rejected")
	}
}

func TestWithinEntryWindowDisabledAlwaysAllows(t *testing.T) {
	c, _, _, _, _ := newTestCoordinator(t, Config{TradingHoursOnly: false})
	if !c.withinEntryWindow() {
		t.Fatal("expected entries to be allowed whenever the trading-hours gate is disabled")
	}
}

func TestRunTickEmergencyStopSkipsScan(t *testing.T) {
	c, _, p, _, stub := newTestCoordinator(t, Config{EmergencyStop: true, Symbols: []string{"SPY"}})
	stub.sig = &models.Signal{Symbol: "SPY", Direction: models.DirectionLongCall, Confidence: 0.9,
		Metadata: map[string]interface{}{models.MetaStrategyInstance: "stub-1"}}
	p.SetQuote("SPY", broker.Quote{Bid: 449, Ask: 451, HasPrice: true})
	p.SetDepth("SPY", broker.Depth{})

	c.runTick(context.Background())

	if c.scanCount != 0 {
		t.Fatalf("expected emergency_stop to skip the tick entirely, scanCount=%d", c.scanCount)
	}
	if len(c.eng.Positions())+len(c.eng.Pending()) != 0 {
		t.Fatal("expected no trading activity while emergency_stop is set")
	}
}

func TestRunTickPausedSkipsEntriesButRunsExits(t *testing.T) {
	c, st, p, _, stub := newTestCoordinator(t, Config{Symbols: []string{"SPY"}})
	c.paused = true
	stub.sig = &models.Signal{Symbol: "SPY", Direction: models.DirectionLongCall, Confidence: 0.9,
		Metadata: map[string]interface{}{models.MetaStrategyInstance: "stub-1"}}
	p.SetQuote("SPY", broker.Quote{Bid: 449, Ask: 451, HasPrice: true})
	p.SetDepth("SPY", broker.Depth{})
	st.UpsertBudget(context.Background(), models.StrategyBudget{StrategyName: "stub-1", Budget: 10000})

	c.runTick(context.Background())

	if c.scanCount != 1 {
		t.Fatalf("expected the scan counter to advance even while paused, got %d", c.scanCount)
	}
	if len(c.eng.Pending()) != 0 {
		t.Fatal("expected no new entries to be placed while paused")
	}
}

func TestHandleSignalNoTradeRoutesToExit(t *testing.T) {
	c, st, _, _, _ := newTestCoordinator(t, Config{})
	ctx := context.Background()

	pos := models.Position{
		Contract: models.OptionContract{Symbol: "SPY", ConID: 1}, Quantity: 1,
		Direction: models.DirectionLongCall, EntryPrice: 2.00, EntryTime: time.Now(),
		PeakPrice: 2.00, StopLoss: 1.40, ProfitTarget: 3.00, StrategyName: "stub-1",
	}
	storeID, err := st.InsertPosition(ctx, &models.PendingOrder{
		Contract: pos.Contract, Quantity: pos.Quantity, Direction: pos.Direction,
		EntryPrice: pos.EntryPrice, StopLoss: pos.StopLoss, ProfitTarget: pos.ProfitTarget,
		StrategyName: pos.StrategyName, OrderTime: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed row: %v", err)
	}
	if err := st.PromoteToOpen(ctx, storeID, pos.EntryPrice, pos.Quantity, time.Now(), "", ""); err != nil {
		t.Fatalf("promote row: %v", err)
	}
	pos.StoreID = storeID
	c.eng.Load(ctx) // load the now-open position from the store into memory

	sig := &models.Signal{
		Symbol: "SPY", Direction: models.DirectionNoTrade,
		Metadata: map[string]interface{}{
			models.MetaStrategyInstance: "stub-1",
			models.MetaExitReason:       "time_decay",
		},
	}
	c.handleSignal(ctx, sig, 2.10, true)

	if len(c.eng.Positions()) != 0 {
		t.Fatal("expected the no_trade exit signal to close the open position")
	}
}

func TestScanSymbolsDispatchesApprovedEntry(t *testing.T) {
	c, st, p, _, stub := newTestCoordinator(t, Config{Symbols: []string{"SPY"}})
	ctx := context.Background()
	st.UpsertBudget(ctx, models.StrategyBudget{StrategyName: "stub-1", Budget: 10000})

	stub.sig = &models.Signal{Symbol: "SPY", Direction: models.DirectionLongCall, Confidence: 0.9,
		Metadata: map[string]interface{}{models.MetaStrategyInstance: "stub-1"}}
	p.SetQuote("SPY", broker.Quote{Bid: 449, Ask: 451, HasPrice: true})
	p.SetDepth("SPY", broker.Depth{})
	p.SetAccountValue(AccountValueTag, 100000)

	// SelectOption ranks candidate strikes by proximity to a target derived
	// from spot; this test seeds no chain strikes (no SetChainStrikes
	// call), so no candidate strike exists and SelectOption returns
	// ok=false, exercising the "no usable contract" path rather than a
	// full fill.
	c.scanSymbols(ctx, true)

	if got := len(c.eng.Pending()); got != 0 {
		t.Fatalf("expected no bracket placed without a qualifiable strike, got %d pending", got)
	}
}

// TestHandleSignalUsesPersistedBudgetNotRawInstanceCap exercises a full
// entry through a qualifiable strike and asserts that handleSignal sizes
// against the store's recorded drawdown/committed rather than a
// zero-drawdown stand-in built from instCfg.Budget alone (spec §8
// testable property #1: budget - drawdown - committed = available).
func TestHandleSignalUsesPersistedBudgetNotRawInstanceCap(t *testing.T) {
	c, st, p, reg, stub := newTestCoordinator(t, Config{Symbols: []string{"SPY"}})
	ctx := context.Background()

	if err := reg.Load("stub-1", registry.InstanceConfig{Type: "stub", Enabled: true, Budget: 10000}); err != nil {
		t.Fatalf("reload stub instance with budget: %v", err)
	}
	// Budget is fully consumed by drawdown + committed: available == 0.
	if err := st.UpsertBudget(ctx, models.StrategyBudget{
		StrategyName: "stub-1", Budget: 10000, Drawdown: 6000, Committed: 4000,
	}); err != nil {
		t.Fatalf("seed budget: %v", err)
	}

	stub.sig = &models.Signal{Symbol: "SPY", Direction: models.DirectionLongCall, Confidence: 0.9,
		Metadata: map[string]interface{}{models.MetaStrategyInstance: "stub-1"}}
	p.SetQuote("SPY", broker.Quote{Bid: 449, Ask: 451, HasPrice: true})
	p.SetDepth("SPY", broker.Depth{})
	p.SetAccountValue(AccountValueTag, 100000)
	p.SetChainStrikes("SPY", []float64{450})

	c.scanSymbols(ctx, true)

	if got := len(c.eng.Pending()); got != 0 {
		t.Fatalf("expected no bracket placed once the persisted budget's available headroom is exhausted, got %d pending", got)
	}
}

func TestRunTickConnectionLossSkipsManualCloseDetection(t *testing.T) {
	c, _, p, _, _ := newTestCoordinator(t, Config{})
	p.SetConnected(false)

	// Should not panic or block despite Connected() being false; the
	// portfolio fetch is simply skipped.
	c.runTick(context.Background())
	if c.scanCount != 1 {
		t.Fatalf("expected the tick to still advance, got scanCount=%d", c.scanCount)
	}
}

func TestDiscoverLoadsNewInstanceDisabled(t *testing.T) {
	c, _, _, reg, _ := newTestCoordinator(t, Config{})
	reg.RegisterType("stub", func(instanceName string, _ map[string]interface{}) (strategy.Strategy, error) {
		return &stubStrategy{name: instanceName}, nil
	})
	disc := fakeDiscoverer{instances: map[string]registry.InstanceConfig{
		"stub-1": {Type: "stub", Enabled: true}, // already loaded, should be skipped
		"stub-2": {Type: "stub", Enabled: true}, // new, should load disabled
	}}
	c.disc = disc

	n := c.discover()
	if n != 1 {
		t.Fatalf("expected exactly 1 newly discovered instance, got %d", n)
	}
	statuses := reg.Status()
	found := false
	for _, s := range statuses {
		if s.Name == "stub-2" {
			found = true
			if s.Enabled {
				t.Fatal("expected a newly discovered instance to load disabled by default")
			}
		}
	}
	if !found {
		t.Fatal("expected stub-2 to appear in the registry after discovery")
	}
}

type fakeDiscoverer struct {
	instances map[string]registry.InstanceConfig
}

func (f fakeDiscoverer) Discover() (map[string]registry.InstanceConfig, error) {
	return f.instances, nil
}
