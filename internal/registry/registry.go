// Package registry implements the Strategy Registry (spec §4.4): it owns
// the map from strategy instance name to loaded plugin, merges per-instance
// config over each plugin's defaults, dispatches analyze_all, and applies
// the error discipline that keeps one misbehaving strategy from taking
// down a scan. Grounded on the teacher's orders.Manager constructor shape
// (panic on nil required deps, *log.Logger default) generalized from a
// single hard-coded strategy to a plugin map, since the teacher itself
// never had a multi-strategy registry to draw on directly.
package registry

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/optionflow/coretrader/internal/models"
	"github.com/optionflow/coretrader/internal/strategy"
)

// Factory builds a strategy instance of a given type from merged config.
type Factory func(instanceName string, cfg map[string]interface{}) (strategy.Strategy, error)

// InstanceConfig is one entry of the config file's `strategies` map (spec §6).
type InstanceConfig struct {
	Type           string
	Enabled        bool
	Config         map[string]interface{}
	Symbols        []string // empty means "all configured symbols"
	MaxPositions   int      // 0 means "use the global default"
	AllowedRegimes []string // empty means "no regime restriction beyond the global veto"
	MinSectorRS    float64
	Budget         float64
}

type loaded struct {
	strategy.Strategy
	instanceName string
	typeName     string
	enabled      bool
	cfg          InstanceConfig
}

// Registry maintains the instance-name -> loaded-plugin map (spec §4.4).
// All methods are safe for concurrent use; the coordinator calls AnalyzeAll
// from the scan loop while operator commands may concurrently Enable,
// Disable, or Reload an instance.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]*loaded
	log       *logrus.Entry
}

// New constructs an empty Registry. log may be nil, in which case a
// standard logrus entry is used.
func New(log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]*loaded),
		log:       log,
	}
}

// RegisterType makes a strategy implementation kind available for
// instantiation by name (e.g. "swing", "scalping", "orb").
func (r *Registry) RegisterType(typeName string, f Factory) {
	if f == nil {
		panic("registry.RegisterType: factory must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = f
}

// Load instantiates instanceName as an instance of typeName with the given
// per-instance config, merged user-over-default (spec §4.4). Replaces any
// existing instance of the same name.
func (r *Registry) Load(instanceName string, cfg InstanceConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(instanceName, cfg)
}

func (r *Registry) loadLocked(instanceName string, cfg InstanceConfig) error {
	factory, ok := r.factories[cfg.Type]
	if !ok {
		return fmt.Errorf("registry.Load: unknown strategy type %q for instance %q", cfg.Type, instanceName)
	}

	// A strategy's default_config is consulted first; instance config
	// values win on key collision (spec §4.4 "merged user over default").
	probe, err := factory(instanceName, nil)
	if err != nil {
		return fmt.Errorf("registry.Load: probe defaults for %q: %w", instanceName, err)
	}
	merged := make(map[string]interface{}, len(probe.DefaultConfig())+len(cfg.Config))
	for k, v := range probe.DefaultConfig() {
		merged[k] = v
	}
	for k, v := range cfg.Config {
		merged[k] = v
	}

	if err := probe.ValidateConfig(merged); err != nil {
		return fmt.Errorf("registry.Load: validate config for %q: %w", instanceName, err)
	}

	inst, err := factory(instanceName, merged)
	if err != nil {
		return fmt.Errorf("registry.Load: instantiate %q: %w", instanceName, err)
	}

	r.instances[instanceName] = &loaded{
		Strategy:     inst,
		instanceName: instanceName,
		typeName:     cfg.Type,
		enabled:      cfg.Enabled,
		cfg:          cfg,
	}
	return nil
}

// Reload re-reads cfg and re-instantiates instanceName, preserving its
// current enabled flag: cfg.Enabled is ignored for an already-loaded
// instance (spec §4.4 "replace one instance while preserving its enabled
// flag").
func (r *Registry) Reload(instanceName string, cfg InstanceConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.instances[instanceName]; ok {
		cfg.Enabled = existing.enabled
	}
	return r.loadLocked(instanceName, cfg)
}

// Enable marks an instance as eligible for AnalyzeAll dispatch.
func (r *Registry) Enable(instanceName string) error {
	return r.setEnabled(instanceName, true)
}

// Disable excludes an instance from AnalyzeAll dispatch without unloading it.
func (r *Registry) Disable(instanceName string) error {
	return r.setEnabled(instanceName, false)
}

func (r *Registry) setEnabled(instanceName string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[instanceName]
	if !ok {
		return fmt.Errorf("registry: unknown instance %q", instanceName)
	}
	inst.enabled = enabled
	inst.cfg.Enabled = enabled
	return nil
}

// InstanceStatus reports one instance's identity and enabled state, for
// the /strategies and /status CLI commands (spec §6).
type InstanceStatus struct {
	Name         string
	Type         string
	Version      string
	Description  string
	Enabled      bool
	Symbols      []string
	MaxPositions int
}

// Status returns a snapshot of every loaded instance's status.
func (r *Registry) Status() []InstanceStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]InstanceStatus, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, InstanceStatus{
			Name:         inst.instanceName,
			Type:         inst.typeName,
			Version:      inst.Version(),
			Description:  inst.Description(),
			Enabled:      inst.enabled,
			Symbols:      inst.cfg.Symbols,
			MaxPositions: inst.cfg.MaxPositions,
		})
	}
	return out
}

// InstanceConfig returns the stored config for instanceName, for the
// engine to consult per-strategy scope invariants (spec §4.6).
func (r *Registry) InstanceConfig(instanceName string) (InstanceConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[instanceName]
	if !ok {
		return InstanceConfig{}, false
	}
	return inst.cfg, true
}

// AnalyzeAll dispatches snap to every enabled instance scoped to
// snap.Symbol (an empty Symbols list scopes to every symbol), tags each
// produced signal with the originating instance name and type (spec §4.4),
// and returns the list. A strategy that errors or panics during Analyze is
// logged and skipped for this scan; it remains loaded (spec §4.4 "error
// discipline").
func (r *Registry) AnalyzeAll(snap strategy.Snapshot) []*models.Signal {
	r.mu.RLock()
	instances := make([]*loaded, 0, len(r.instances))
	for _, inst := range r.instances {
		instances = append(instances, inst)
	}
	r.mu.RUnlock()

	var out []*models.Signal
	for _, inst := range instances {
		if !inst.enabled || !scopedTo(inst.cfg.Symbols, snap.Symbol) {
			continue
		}
		sig := r.analyzeOne(inst, snap)
		if sig == nil {
			continue
		}
		if sig.Metadata == nil {
			sig.Metadata = make(map[string]interface{})
		}
		sig.Metadata[models.MetaStrategyInstance] = inst.instanceName
		sig.Metadata[models.MetaStrategyType] = inst.typeName
		out = append(out, sig)
	}
	return out
}

// analyzeOne isolates one strategy's Analyze call so a panic inside a
// third-party/plugin implementation cannot take down the scan loop (spec
// §4.4/§7 "strategies must not raise out of analyze; the registry catches
// and logs").
func (r *Registry) analyzeOne(inst *loaded, snap strategy.Snapshot) (sig *models.Signal) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("strategy", inst.instanceName).Errorf("strategy panicked during analyze: %v", rec)
			sig = nil
		}
	}()

	result, err := inst.Analyze(snap)
	if err != nil {
		r.log.WithField("strategy", inst.instanceName).WithError(err).Warn("strategy analyze failed, skipping this scan")
		return nil
	}
	return result
}

// NotifyOpened forwards a fill notification to the owning strategy
// instance's OnPositionOpened callback (spec §4.4 lifecycle callbacks).
// A missing instance (e.g. unloaded since the position was placed) is a
// silent no-op.
func (r *Registry) NotifyOpened(instanceName string, pos *models.Position) {
	r.mu.RLock()
	inst, ok := r.instances[instanceName]
	r.mu.RUnlock()
	if !ok {
		return
	}
	inst.OnPositionOpened(pos)
}

// NotifyClosed forwards a close notification to the owning strategy
// instance's OnPositionClosed callback.
func (r *Registry) NotifyClosed(instanceName string, entry *models.TradeHistoryEntry) {
	r.mu.RLock()
	inst, ok := r.instances[instanceName]
	r.mu.RUnlock()
	if !ok {
		return
	}
	inst.OnPositionClosed(entry)
}

func scopedTo(symbols []string, symbol string) bool {
	if len(symbols) == 0 {
		return true
	}
	for _, s := range symbols {
		if s == symbol {
			return true
		}
	}
	return false
}
