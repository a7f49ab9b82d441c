package registry

import (
	"errors"
	"testing"

	"github.com/optionflow/coretrader/internal/models"
	"github.com/optionflow/coretrader/internal/strategy"
)

type fakeStrategy struct {
	name       string
	defaults   map[string]interface{}
	analyzeErr error
	signal     *models.Signal
	panics     bool
	opened     int
	closed     int
	lastCfg    map[string]interface{}
}

func (f *fakeStrategy) Name() string                          { return f.name }
func (f *fakeStrategy) Type() string                          { return "fake" }
func (f *fakeStrategy) Version() string                       { return "1.0.0" }
func (f *fakeStrategy) Description() string                   { return "test double" }
func (f *fakeStrategy) DefaultConfig() map[string]interface{} { return f.defaults }
func (f *fakeStrategy) ValidateConfig(map[string]interface{}) error { return nil }
func (f *fakeStrategy) OnPositionOpened(*models.Position)           { f.opened++ }
func (f *fakeStrategy) OnPositionClosed(*models.TradeHistoryEntry)  { f.closed++ }

func (f *fakeStrategy) Analyze(snap strategy.Snapshot) (*models.Signal, error) {
	if f.panics {
		panic("boom")
	}
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return f.signal, nil
}

func newFakeFactory(backing map[string]*fakeStrategy, template fakeStrategy) Factory {
	return func(instanceName string, cfg map[string]interface{}) (strategy.Strategy, error) {
		inst := template
		inst.name = instanceName
		inst.lastCfg = cfg
		backing[instanceName] = &inst
		return &inst, nil
	}
}

func TestLoadMergesUserConfigOverDefaults(t *testing.T) {
	backing := make(map[string]*fakeStrategy)
	r := New(nil)
	r.RegisterType("fake", newFakeFactory(backing, fakeStrategy{
		defaults: map[string]interface{}{"a": 1, "b": 2},
	}))

	if err := r.Load("inst-1", InstanceConfig{Type: "fake", Enabled: true, Config: map[string]interface{}{"b": 99}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inst := backing["inst-1"]
	if inst.lastCfg["a"] != 1 || inst.lastCfg["b"] != 99 {
		t.Fatalf("expected merged config a=1 b=99, got %+v", inst.lastCfg)
	}
}

func TestAnalyzeAllTagsSignalWithInstanceAndType(t *testing.T) {
	backing := make(map[string]*fakeStrategy)
	r := New(nil)
	r.RegisterType("fake", newFakeFactory(backing, fakeStrategy{
		defaults: map[string]interface{}{},
		signal:   &models.Signal{Symbol: "SPY", Direction: models.DirectionLongCall, Confidence: 0.8},
	}))
	if err := r.Load("inst-1", InstanceConfig{Type: "fake", Enabled: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	signals := r.AnalyzeAll(strategy.Snapshot{Symbol: "SPY"})
	if len(signals) != 1 {
		t.Fatalf("expected one signal, got %d", len(signals))
	}
	if signals[0].Metadata[models.MetaStrategyInstance] != "inst-1" || signals[0].Metadata[models.MetaStrategyType] != "fake" {
		t.Fatalf("expected tagged metadata, got %+v", signals[0].Metadata)
	}
}

func TestAnalyzeAllSkipsDisabledInstances(t *testing.T) {
	backing := make(map[string]*fakeStrategy)
	r := New(nil)
	r.RegisterType("fake", newFakeFactory(backing, fakeStrategy{
		defaults: map[string]interface{}{},
		signal:   &models.Signal{Symbol: "SPY", Direction: models.DirectionLongCall},
	}))
	if err := r.Load("inst-1", InstanceConfig{Type: "fake", Enabled: false}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if signals := r.AnalyzeAll(strategy.Snapshot{Symbol: "SPY"}); len(signals) != 0 {
		t.Fatalf("expected no signals from a disabled instance, got %d", len(signals))
	}
}

func TestAnalyzeAllSurvivesErrorAndPanicWithoutUnloading(t *testing.T) {
	backing := make(map[string]*fakeStrategy)
	r := New(nil)
	r.RegisterType("erroring", newFakeFactory(backing, fakeStrategy{
		defaults:   map[string]interface{}{},
		analyzeErr: errors.New("boom"),
	}))
	r.RegisterType("panicking", newFakeFactory(backing, fakeStrategy{
		defaults: map[string]interface{}{},
		panics:   true,
	}))
	if err := r.Load("err-inst", InstanceConfig{Type: "erroring", Enabled: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Load("panic-inst", InstanceConfig{Type: "panicking", Enabled: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if signals := r.AnalyzeAll(strategy.Snapshot{Symbol: "SPY"}); len(signals) != 0 {
		t.Fatalf("expected no signals, got %d", len(signals))
	}

	if len(r.Status()) != 2 {
		t.Fatalf("expected both instances to remain loaded after error/panic, got %d", len(r.Status()))
	}
}

func TestAnalyzeAllScopesBySymbol(t *testing.T) {
	backing := make(map[string]*fakeStrategy)
	r := New(nil)
	r.RegisterType("fake", newFakeFactory(backing, fakeStrategy{
		defaults: map[string]interface{}{},
		signal:   &models.Signal{Symbol: "AAPL", Direction: models.DirectionLongCall},
	}))
	if err := r.Load("inst-1", InstanceConfig{Type: "fake", Enabled: true, Symbols: []string{"AAPL"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if signals := r.AnalyzeAll(strategy.Snapshot{Symbol: "MSFT"}); len(signals) != 0 {
		t.Fatalf("expected no signals for an out-of-scope symbol, got %d", len(signals))
	}
	if signals := r.AnalyzeAll(strategy.Snapshot{Symbol: "AAPL"}); len(signals) != 1 {
		t.Fatalf("expected a signal for an in-scope symbol, got %d", len(signals))
	}
}

func TestReloadPreservesEnabledFlag(t *testing.T) {
	backing := make(map[string]*fakeStrategy)
	r := New(nil)
	r.RegisterType("fake", newFakeFactory(backing, fakeStrategy{defaults: map[string]interface{}{}}))
	if err := r.Load("inst-1", InstanceConfig{Type: "fake", Enabled: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Disable("inst-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Reload("inst-1", InstanceConfig{Type: "fake", Enabled: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status := r.Status()
	if len(status) != 1 || status[0].Enabled {
		t.Fatalf("expected reload to preserve the disabled flag, got %+v", status)
	}
}
