package config

import "github.com/optionflow/coretrader/internal/registry"

// FileDiscoverer implements coordinator.Discoverer by re-reading the
// config file's `strategies` section from disk on every call — the
// config-driven analogue of spec §4.7's "new strategy files are
// auto-discovered on a coarser period", since Go has no portable
// equivalent of loading a new strategy implementation without a
// process restart.
type FileDiscoverer struct {
	Path string
}

// Discover re-loads Path and returns its full set of declared strategy
// instances; the coordinator is responsible for skipping instances it
// already has loaded.
func (d FileDiscoverer) Discover() (map[string]registry.InstanceConfig, error) {
	cfg, err := Load(d.Path)
	if err != nil {
		return nil, err
	}
	return cfg.InstanceConfigs(), nil
}
