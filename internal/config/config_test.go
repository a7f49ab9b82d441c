package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
ib_connection:
  host: 127.0.0.1
  port: 7497
  client_id: 1
symbols: [SPY, QQQ]
risk_management:
  profit_target_pct: 0.5
  stop_loss_pct: 0.3
  max_hold_days: 21
  position_size_pct: 0.02
option_selection:
  min_dte: 25
  max_dte: 45
  call_strike_pct: 1.02
  put_strike_pct: 0.98
order_management:
  order_timeout_seconds: 300
  price_drift_threshold: 0.10
market_regime:
  bull_vix: 20
  range_min: 15
  range_max: 25
strategies:
  swing-1:
    type: swing
    enabled: true
    budget: 10000
    symbols: [SPY]
database:
  path: coretrader.db
operation:
  scan_interval: 30s
  log_level: info
`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IBConnection.Host != "127.0.0.1" || cfg.IBConnection.Port != 7497 {
		t.Fatalf("unexpected ib_connection: %+v", cfg.IBConnection)
	}
	if len(cfg.Symbols) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(cfg.Symbols))
	}
	if _, ok := cfg.Strategies["swing-1"]; !ok {
		t.Fatal("expected swing-1 strategy instance to be present")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml")); err == nil {
		t.Fatal("expected an error loading a nonexistent config file")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, validYAML+"\nbogus_top_level_key: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an unknown top-level key to be rejected")
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_IB_HOST", "10.0.0.5")
	path := writeTempConfig(t, `
ib_connection:
  host: ${TEST_IB_HOST}
  port: 7497
symbols: [SPY]
risk_management: {profit_target_pct: 0.5, stop_loss_pct: 0.3, max_hold_days: 21, position_size_pct: 0.02}
option_selection: {min_dte: 25, max_dte: 45}
order_management: {order_timeout_seconds: 300, price_drift_threshold: 0.10}
market_regime: {bull_vix: 20, range_min: 15, range_max: 25}
strategies: {swing-1: {type: swing, enabled: true}}
database: {path: coretrader.db}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IBConnection.Host != "10.0.0.5" {
		t.Fatalf("expected env var expansion, got %q", cfg.IBConnection.Host)
	}
}

func TestNormalizeAppliesSectionDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Normalize()
	if cfg.RiskManagement.ProfitTargetPct != 0.5 {
		t.Fatalf("expected risk_management defaults to apply, got %+v", cfg.RiskManagement)
	}
	if cfg.Operation.ScanInterval != "30s" {
		t.Fatalf("expected a default scan_interval, got %q", cfg.Operation.ScanInterval)
	}
	if cfg.Database.Path != "coretrader.db" {
		t.Fatalf("expected a default database path, got %q", cfg.Database.Path)
	}
	if cfg.SectorRotation.RSWindow != 5 {
		t.Fatalf("expected a default rs_window, got %d", cfg.SectorRotation.RSWindow)
	}
	if cfg.Dashboard.Port != 8080 {
		t.Fatalf("expected a default dashboard port, got %d", cfg.Dashboard.Port)
	}
}

func validConfig() *Config {
	cfg := &Config{
		IBConnection: IBConnectionConfig{Host: "127.0.0.1", Port: 7497},
		Symbols:      []string{"SPY"},
		Strategies: map[string]StrategyInstanceConfig{
			"swing-1": {Type: "swing", Enabled: true, Budget: 10000},
		},
	}
	cfg.Normalize()
	return cfg
}

func TestValidateRejectsMissingHost(t *testing.T) {
	cfg := validConfig()
	cfg.IBConnection.Host = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected a missing ib_connection.host to be rejected")
	}
}

func TestValidateRejectsEmptySymbols(t *testing.T) {
	cfg := validConfig()
	cfg.Symbols = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an empty symbols list to be rejected")
	}
}

func TestValidateRejectsEmptyStrategies(t *testing.T) {
	cfg := validConfig()
	cfg.Strategies = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an empty strategies map to be rejected")
	}
}

func TestValidateRejectsUnknownTradingRulePattern(t *testing.T) {
	cfg := validConfig()
	cfg.TradingRules = []TradingRuleConfig{{Pattern: "not_a_real_pattern", Direction: "long_call", MinConfidence: 0.5}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an unrecognized trading_rules pattern to be rejected")
	}
}

func TestValidateRejectsBadDTERange(t *testing.T) {
	cfg := validConfig()
	cfg.OptionSelection.MinDTE = 50
	cfg.OptionSelection.MaxDTE = 10
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected min_dte > max_dte to be rejected")
	}
}

func TestValidateRejectsBadScanInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Operation.ScanInterval = "not-a-duration"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected a malformed scan_interval to be rejected")
	}
}

func TestEngineConfigTranslatesTradingRules(t *testing.T) {
	cfg := validConfig()
	cfg.TradingRules = []TradingRuleConfig{{Pattern: "rejection_at_support", Direction: "long_call", MinConfidence: 0.7}}

	ec := cfg.EngineConfig()
	if len(ec.Rules) != 1 || ec.Rules[0].MinConfidence != 0.7 {
		t.Fatalf("expected one translated rule, got %+v", ec.Rules)
	}
	if ec.Risk.ProfitTargetPct != cfg.RiskManagement.ProfitTargetPct {
		t.Fatalf("expected risk config to carry through, got %+v", ec.Risk)
	}
}

func TestInstanceConfigsFoldsLiquidityDefaultsAndExtraKeys(t *testing.T) {
	cfg := validConfig()
	cfg.LiquidityAnalysis.LiquidityThreshold = 2500
	cfg.Strategies["swing-1"] = StrategyInstanceConfig{
		Type: "swing", Enabled: true, Budget: 5000,
		Extra: map[string]interface{}{"entry_price_bias": 0.01},
	}

	instances := cfg.InstanceConfigs()
	inst, ok := instances["swing-1"]
	if !ok {
		t.Fatal("expected swing-1 to translate into an InstanceConfig")
	}
	if inst.Config["liquidity_threshold"] != 2500.0 {
		t.Fatalf("expected the shared liquidity default to be folded in, got %+v", inst.Config)
	}
	if inst.Config["entry_price_bias"] != 0.01 {
		t.Fatalf("expected the strategy-specific extra key to survive, got %+v", inst.Config)
	}
}
