// Package config loads and validates the YAML configuration file that
// drives every other package: connection target, symbol universe, risk
// and order-management knobs, market-context thresholds, the strategy
// instance map, and operational settings. Grounded on the teacher's
// internal/config/config.go three-pass Load/Normalize/Validate pipeline,
// generalized from one hard-coded strangle strategy's section list to
// the broader multi-strategy, multi-section layout this module needs.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/optionflow/coretrader/internal/coordinator"
	"github.com/optionflow/coretrader/internal/dashboard"
	"github.com/optionflow/coretrader/internal/engine"
	"github.com/optionflow/coretrader/internal/marketctx"
	"github.com/optionflow/coretrader/internal/models"
	"github.com/optionflow/coretrader/internal/registry"
	"github.com/optionflow/coretrader/internal/strategy"
)

// Config represents the complete application configuration (spec §6
// "Configuration").
type Config struct {
	IBConnection      IBConnectionConfig              `yaml:"ib_connection"`
	Symbols           []string                        `yaml:"symbols"`
	RiskManagement    RiskManagementConfig             `yaml:"risk_management"`
	TradingRules      []TradingRuleConfig              `yaml:"trading_rules"`
	OptionSelection   OptionSelectionConfig            `yaml:"option_selection"`
	OrderManagement   OrderManagementConfig            `yaml:"order_management"`
	MarketRegime      MarketRegimeConfig               `yaml:"market_regime"`
	SectorRotation    SectorRotationConfig             `yaml:"sector_rotation"`
	LiquidityAnalysis LiquidityAnalysisConfig          `yaml:"liquidity_analysis"`
	Strategies        map[string]StrategyInstanceConfig `yaml:"strategies"`
	Safety            SafetyConfig                     `yaml:"safety"`
	Operation         OperationConfig                  `yaml:"operation"`
	Database          DatabaseConfig                   `yaml:"database"`
	Notifications     NotificationsConfig              `yaml:"notifications"`
	Dashboard         DashboardConfig                  `yaml:"dashboard"`
}

// IBConnectionConfig names the broker connection target (spec §6
// "ib_connection — host, port, client_id").
type IBConnectionConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID int    `yaml:"client_id"`
}

// RiskManagementConfig mirrors engine.RiskConfig with YAML tags.
type RiskManagementConfig struct {
	ProfitTargetPct           float64 `yaml:"profit_target_pct"`
	StopLossPct               float64 `yaml:"stop_loss_pct"`
	TrailingStopEnabled       bool    `yaml:"trailing_stop_enabled"`
	TrailingStopActivationPct float64 `yaml:"trailing_stop_activation_pct"`
	TrailingStopDistancePct   float64 `yaml:"trailing_stop_distance_pct"`
	MaxHoldDays               int     `yaml:"max_hold_days"`
	MaxPositionSize           float64 `yaml:"max_position_size"`
	MaxPositions              int     `yaml:"max_positions"`
	PositionSizePct           float64 `yaml:"position_size_pct"`
}

// TradingRuleConfig is one row of the legacy pattern-confidence rules
// table (spec §4.6 step 3).
type TradingRuleConfig struct {
	Pattern       string  `yaml:"pattern"`
	MinConfidence float64 `yaml:"min_confidence"`
	Direction     string  `yaml:"direction"`
}

// OptionSelectionConfig mirrors engine.OptionSelectionConfig.
type OptionSelectionConfig struct {
	MinDTE        int     `yaml:"min_dte"`
	MaxDTE        int     `yaml:"max_dte"`
	CallStrikePct float64 `yaml:"call_strike_pct"`
	PutStrikePct  float64 `yaml:"put_strike_pct"`
}

// OrderManagementConfig mirrors engine.OrderManagementConfig.
type OrderManagementConfig struct {
	OrderTimeoutSeconds int     `yaml:"order_timeout_seconds"`
	PriceDriftThreshold float64 `yaml:"price_drift_threshold"`
	UseBracketOrders    bool    `yaml:"use_bracket_orders"`
}

// MarketRegimeConfig mirrors marketctx.RegimeConfig.
type MarketRegimeConfig struct {
	HighChaosVIXChange float64 `yaml:"high_chaos_vix_change"`
	HighChaosSPYVol    float64 `yaml:"high_chaos_spy_vol"`
	HighChaosVIX       float64 `yaml:"high_chaos_vix"`
	BullVIX            float64 `yaml:"bull_vix"`
	RangeMin           float64 `yaml:"range_min"`
	RangeMax           float64 `yaml:"range_max"`
}

// SectorRotationConfig drives marketctx.NewSectorRotation and the
// coordinator's periodic sector reassessment.
type SectorRotationConfig struct {
	RSWindow  int               `yaml:"rs_window"`
	BarSize   string            `yaml:"bar_size"`
	Duration  string            `yaml:"duration"`
	Overrides map[string]string `yaml:"overrides"`
}

// LiquidityAnalysisConfig mirrors strategy.LiquidityConfig — parameters
// shared by every depth-reading strategy (spec §6 "liquidity_analysis —
// parameters shared by strategies").
type LiquidityAnalysisConfig struct {
	LiquidityThreshold float64 `yaml:"liquidity_threshold"`
	ZoneProximity      float64 `yaml:"zone_proximity"`
	ImbalanceThreshold float64 `yaml:"imbalance_threshold"`
}

// StrategyInstanceConfig is one entry of the `strategies` map (spec §6):
// `{enabled, budget, symbols?, max_positions?, allowed_regimes?,
// min_sector_rs?}` plus strategy-type-specific keys (e.g.
// `entry_price_bias`, `contract_cost_basis`, `daily_loss_limit`), which
// fall through to Extra rather than earning named fields here since
// they are meaningful to individual strategy types, not the registry.
type StrategyInstanceConfig struct {
	Type           string                 `yaml:"type"`
	Enabled        bool                   `yaml:"enabled"`
	Budget         float64                `yaml:"budget"`
	Symbols        []string               `yaml:"symbols"`
	MaxPositions   int                    `yaml:"max_positions"`
	AllowedRegimes []string               `yaml:"allowed_regimes"`
	MinSectorRS    float64                `yaml:"min_sector_rs"`
	Extra          map[string]interface{} `yaml:",inline"`
}

// SafetyConfig carries the global kill switch (spec §6 "safety").
type SafetyConfig struct {
	EmergencyStop bool    `yaml:"emergency_stop"`
	MaxDailyLoss  float64 `yaml:"max_daily_loss"`
}

// OperationConfig drives the scan loop itself (spec §6 "operation —
// scan_interval, log_level, enable_paper_trading").
type OperationConfig struct {
	ScanInterval       string `yaml:"scan_interval"`
	LogLevel           string `yaml:"log_level"`
	EnablePaperTrading bool   `yaml:"enable_paper_trading"`
	StatusEveryScans   int    `yaml:"status_every_scans"`
	DiscoverEveryScans int    `yaml:"discover_every_scans"`
	RegimeEveryScans   int    `yaml:"regime_every_scans"`
	TradingHoursOnly   bool   `yaml:"trading_hours_only"`
}

// DatabaseConfig names the Trade Store's on-disk path (spec §6
// "database.path").
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// NotificationsConfig carries the optional Discord webhook (spec §6
// "notifications.discord_webhook").
type NotificationsConfig struct {
	DiscordWebhook string `yaml:"discord_webhook"`
}

// DashboardConfig drives internal/dashboard's JSON status/metrics
// surface — a peripheral reporting concern (spec.md non-goals scope
// the interactive frontend out, not this machine-readable surface).
type DashboardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// Load reads, expands, decodes, normalizes, and validates the
// configuration file at path (spec §7 ConfigInvalid: "fail before
// connecting").
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is an operator-provided config file
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %q: %w", path, err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid config: %w", err)
	}
	return &cfg, nil
}

// Normalize fills in every section default (spec §4.6/§4.3's stated
// defaults), applied only where the operator left a field at its zero
// value.
func (c *Config) Normalize() {
	risk, opt, order := riskManagementFromEngine(engine.DefaultRiskConfig),
		optionSelectionFromEngine(engine.DefaultOptionSelectionConfig),
		orderManagementFromEngine(engine.DefaultOrderManagementConfig)
	regime := marketRegimeFromDetector(marketctx.DefaultRegimeConfig)
	liq := liquidityFromStrategy(strategy.DefaultLiquidityConfig)

	if c.RiskManagement.ProfitTargetPct == 0 {
		c.RiskManagement.ProfitTargetPct = risk.ProfitTargetPct
	}
	if c.RiskManagement.StopLossPct == 0 {
		c.RiskManagement.StopLossPct = risk.StopLossPct
	}
	if c.RiskManagement.TrailingStopActivationPct == 0 {
		c.RiskManagement.TrailingStopActivationPct = risk.TrailingStopActivationPct
	}
	if c.RiskManagement.TrailingStopDistancePct == 0 {
		c.RiskManagement.TrailingStopDistancePct = risk.TrailingStopDistancePct
	}
	if c.RiskManagement.MaxHoldDays == 0 {
		c.RiskManagement.MaxHoldDays = risk.MaxHoldDays
	}
	if c.RiskManagement.MaxPositionSize == 0 {
		c.RiskManagement.MaxPositionSize = risk.MaxPositionSize
	}
	if c.RiskManagement.MaxPositions == 0 {
		c.RiskManagement.MaxPositions = risk.MaxPositions
	}
	if c.RiskManagement.PositionSizePct == 0 {
		c.RiskManagement.PositionSizePct = risk.PositionSizePct
	}

	if c.OptionSelection.MinDTE == 0 {
		c.OptionSelection.MinDTE = opt.MinDTE
	}
	if c.OptionSelection.MaxDTE == 0 {
		c.OptionSelection.MaxDTE = opt.MaxDTE
	}
	if c.OptionSelection.CallStrikePct == 0 {
		c.OptionSelection.CallStrikePct = opt.CallStrikePct
	}
	if c.OptionSelection.PutStrikePct == 0 {
		c.OptionSelection.PutStrikePct = opt.PutStrikePct
	}

	if c.OrderManagement.OrderTimeoutSeconds == 0 {
		c.OrderManagement.OrderTimeoutSeconds = order.OrderTimeoutSeconds
	}
	if c.OrderManagement.PriceDriftThreshold == 0 {
		c.OrderManagement.PriceDriftThreshold = order.PriceDriftThreshold
	}

	if c.MarketRegime.HighChaosVIXChange == 0 {
		c.MarketRegime.HighChaosVIXChange = regime.HighChaosVIXChange
	}
	if c.MarketRegime.HighChaosSPYVol == 0 {
		c.MarketRegime.HighChaosSPYVol = regime.HighChaosSPYVol
	}
	if c.MarketRegime.HighChaosVIX == 0 {
		c.MarketRegime.HighChaosVIX = regime.HighChaosVIX
	}
	if c.MarketRegime.BullVIX == 0 {
		c.MarketRegime.BullVIX = regime.BullVIX
	}
	if c.MarketRegime.RangeMin == 0 {
		c.MarketRegime.RangeMin = regime.RangeMin
	}
	if c.MarketRegime.RangeMax == 0 {
		c.MarketRegime.RangeMax = regime.RangeMax
	}

	if c.LiquidityAnalysis.LiquidityThreshold == 0 {
		c.LiquidityAnalysis.LiquidityThreshold = liq.LiquidityThreshold
	}
	if c.LiquidityAnalysis.ZoneProximity == 0 {
		c.LiquidityAnalysis.ZoneProximity = liq.ZoneProximity
	}
	if c.LiquidityAnalysis.ImbalanceThreshold == 0 {
		c.LiquidityAnalysis.ImbalanceThreshold = liq.ImbalanceThreshold
	}

	if c.SectorRotation.RSWindow == 0 {
		c.SectorRotation.RSWindow = 5
	}
	if c.SectorRotation.BarSize == "" {
		c.SectorRotation.BarSize = "1 day"
	}
	if c.SectorRotation.Duration == "" {
		c.SectorRotation.Duration = "20 D"
	}
	if strings.TrimSpace(c.Operation.ScanInterval) == "" {
		c.Operation.ScanInterval = "30s"
	}
	if strings.TrimSpace(c.Operation.LogLevel) == "" {
		c.Operation.LogLevel = "info"
	}
	if c.Operation.StatusEveryScans == 0 {
		c.Operation.StatusEveryScans = 10
	}
	if c.Operation.DiscoverEveryScans == 0 {
		c.Operation.DiscoverEveryScans = 60
	}
	if c.Operation.RegimeEveryScans == 0 {
		c.Operation.RegimeEveryScans = 5
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = "coretrader.db"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// Validate checks every section for internal consistency (spec §7
// ConfigInvalid).
func (c *Config) Validate() error {
	if strings.TrimSpace(c.IBConnection.Host) == "" {
		return fmt.Errorf("ib_connection.host is required")
	}
	if c.IBConnection.Port <= 0 || c.IBConnection.Port > 65535 {
		return fmt.Errorf("ib_connection.port must be between 1 and 65535")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must list at least one underlying")
	}

	if c.RiskManagement.ProfitTargetPct <= 0 {
		return fmt.Errorf("risk_management.profit_target_pct must be > 0")
	}
	if c.RiskManagement.StopLossPct <= 0 {
		return fmt.Errorf("risk_management.stop_loss_pct must be > 0")
	}
	if c.RiskManagement.MaxHoldDays <= 0 {
		return fmt.Errorf("risk_management.max_hold_days must be > 0")
	}
	if c.RiskManagement.PositionSizePct <= 0 || c.RiskManagement.PositionSizePct > 1 {
		return fmt.Errorf("risk_management.position_size_pct must be in (0,1]")
	}

	for i, r := range c.TradingRules {
		if !knownPatterns[models.Pattern(r.Pattern)] {
			return fmt.Errorf("trading_rules[%d].pattern %q is not a recognized pattern", i, r.Pattern)
		}
		if !knownDirections[models.Direction(r.Direction)] {
			return fmt.Errorf("trading_rules[%d].direction %q is not a recognized direction", i, r.Direction)
		}
		if r.MinConfidence < 0 || r.MinConfidence > 1 {
			return fmt.Errorf("trading_rules[%d].min_confidence must be in [0,1]", i)
		}
	}

	if c.OptionSelection.MinDTE <= 0 || c.OptionSelection.MaxDTE <= 0 || c.OptionSelection.MinDTE > c.OptionSelection.MaxDTE {
		return fmt.Errorf("option_selection.min_dte/max_dte must be positive with min_dte <= max_dte")
	}

	if c.OrderManagement.OrderTimeoutSeconds <= 0 {
		return fmt.Errorf("order_management.order_timeout_seconds must be > 0")
	}
	if c.OrderManagement.PriceDriftThreshold <= 0 {
		return fmt.Errorf("order_management.price_drift_threshold must be > 0")
	}

	if c.MarketRegime.RangeMin <= 0 || c.MarketRegime.RangeMax <= c.MarketRegime.RangeMin {
		return fmt.Errorf("market_regime.range_min must be > 0 and < range_max")
	}

	if len(c.Strategies) == 0 {
		return fmt.Errorf("strategies must declare at least one instance")
	}
	for name, inst := range c.Strategies {
		if strings.TrimSpace(inst.Type) == "" {
			return fmt.Errorf("strategies.%s.type is required", name)
		}
		if inst.Budget < 0 {
			return fmt.Errorf("strategies.%s.budget must be >= 0", name)
		}
	}

	if d, err := time.ParseDuration(strings.TrimSpace(c.Operation.ScanInterval)); err != nil {
		return fmt.Errorf("operation.scan_interval invalid: %w", err)
	} else if d <= 0 {
		return fmt.Errorf("operation.scan_interval must be > 0")
	}
	switch strings.ToLower(c.Operation.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("operation.log_level must be one of: debug, info, warn, error")
	}

	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}

	return nil
}

var knownPatterns = map[models.Pattern]bool{
	models.PatternRejectionAtSupport:     true,
	models.PatternRejectionAtResistance:  true,
	models.PatternTestingSupport:         true,
	models.PatternTestingResistance:      true,
	models.PatternPotentialBreakoutUp:    true,
	models.PatternPotentialBreakoutDown:  true,
	models.PatternScalpImbalance:         true,
	models.PatternOpeningRangeBreakoutUp: true,
	models.PatternOpeningRangeBreakoutDown: true,
}

var knownDirections = map[models.Direction]bool{
	models.DirectionLongCall:        true,
	models.DirectionLongPut:         true,
	models.DirectionBullPutSpread:   true,
	models.DirectionBearPutSpread:   true,
	models.DirectionLongPutStraight: true,
	models.DirectionIronCondor:      true,
}

// ScanInterval parses operation.scan_interval, falling back to 30s on a
// malformed value (Validate should already have rejected one, but this
// keeps the accessor total).
func (c *Config) ScanInterval() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.Operation.ScanInterval))
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// EngineConfig builds the engine.Config this file describes.
func (c *Config) EngineConfig() engine.Config {
	rules := make([]engine.Rule, 0, len(c.TradingRules))
	for _, r := range c.TradingRules {
		rules = append(rules, engine.Rule{
			Pattern:       models.Pattern(r.Pattern),
			MinConfidence: r.MinConfidence,
			Direction:     models.Direction(r.Direction),
		})
	}
	return engine.Config{
		Risk: engine.RiskConfig{
			ProfitTargetPct:           c.RiskManagement.ProfitTargetPct,
			StopLossPct:               c.RiskManagement.StopLossPct,
			TrailingStopEnabled:       c.RiskManagement.TrailingStopEnabled,
			TrailingStopActivationPct: c.RiskManagement.TrailingStopActivationPct,
			TrailingStopDistancePct:   c.RiskManagement.TrailingStopDistancePct,
			MaxHoldDays:               c.RiskManagement.MaxHoldDays,
			MaxPositionSize:           c.RiskManagement.MaxPositionSize,
			MaxPositions:              c.RiskManagement.MaxPositions,
			PositionSizePct:           c.RiskManagement.PositionSizePct,
		},
		OptionSelection: engine.OptionSelectionConfig{
			MinDTE:        c.OptionSelection.MinDTE,
			MaxDTE:        c.OptionSelection.MaxDTE,
			CallStrikePct: c.OptionSelection.CallStrikePct,
			PutStrikePct:  c.OptionSelection.PutStrikePct,
		},
		OrderManagement: engine.OrderManagementConfig{
			OrderTimeoutSeconds: c.OrderManagement.OrderTimeoutSeconds,
			PriceDriftThreshold: c.OrderManagement.PriceDriftThreshold,
			UseBracketOrders:    c.OrderManagement.UseBracketOrders,
		},
		Rules: rules,
	}
}

// RegimeConfig builds the marketctx.RegimeConfig this file describes.
func (c *Config) RegimeConfig() marketctx.RegimeConfig {
	return marketctx.RegimeConfig{
		HighChaosVIXChange: c.MarketRegime.HighChaosVIXChange,
		HighChaosSPYVol:    c.MarketRegime.HighChaosSPYVol,
		HighChaosVIX:       c.MarketRegime.HighChaosVIX,
		BullVIX:            c.MarketRegime.BullVIX,
		RangeMin:           c.MarketRegime.RangeMin,
		RangeMax:           c.MarketRegime.RangeMax,
	}
}

// LiquidityConfig builds the strategy.LiquidityConfig every depth-reading
// strategy factory should merge into its own per-instance defaults.
func (c *Config) LiquidityConfig() strategy.LiquidityConfig {
	return strategy.LiquidityConfig{
		LiquidityThreshold: c.LiquidityAnalysis.LiquidityThreshold,
		ZoneProximity:      c.LiquidityAnalysis.ZoneProximity,
		ImbalanceThreshold: c.LiquidityAnalysis.ImbalanceThreshold,
	}
}

// DashboardConfig builds the dashboard.Config this file describes.
func (c *Config) DashboardConfig() dashboard.Config {
	return dashboard.Config{Port: c.Dashboard.Port, AuthToken: c.Dashboard.AuthToken}
}

// CoordinatorConfig builds the coordinator.Config this file describes.
func (c *Config) CoordinatorConfig() coordinator.Config {
	return coordinator.Config{
		Symbols:            c.Symbols,
		ScanInterval:       c.ScanInterval(),
		StatusEverySans:    c.Operation.StatusEveryScans,
		DiscoverEverySScan: c.Operation.DiscoverEveryScans,
		TradingHoursOnly:   c.Operation.TradingHoursOnly,
		EmergencyStop:      c.Safety.EmergencyStop,
		MaxDailyLoss:       c.Safety.MaxDailyLoss,
		RegimeEveryScan:    c.Operation.RegimeEveryScans,
		SectorBarSize:      c.SectorRotation.BarSize,
		SectorDuration:     c.SectorRotation.Duration,
	}
}

// InstanceConfigs converts the `strategies` map into registry.InstanceConfig
// values, folding each instance's Extra keys (and the liquidity_analysis
// shared defaults) into the merged per-instance Config map.
func (c *Config) InstanceConfigs() map[string]registry.InstanceConfig {
	out := make(map[string]registry.InstanceConfig, len(c.Strategies))
	for name, inst := range c.Strategies {
		merged := make(map[string]interface{}, len(inst.Extra)+3)
		merged["liquidity_threshold"] = c.LiquidityAnalysis.LiquidityThreshold
		merged["zone_proximity"] = c.LiquidityAnalysis.ZoneProximity
		merged["imbalance_threshold"] = c.LiquidityAnalysis.ImbalanceThreshold
		for k, v := range inst.Extra {
			merged[k] = v
		}
		out[name] = registry.InstanceConfig{
			Type:           inst.Type,
			Enabled:        inst.Enabled,
			Config:         merged,
			Symbols:        inst.Symbols,
			MaxPositions:   inst.MaxPositions,
			AllowedRegimes: inst.AllowedRegimes,
			MinSectorRS:    inst.MinSectorRS,
			Budget:         inst.Budget,
		}
	}
	return out
}

func riskManagementFromEngine(r engine.RiskConfig) RiskManagementConfig {
	return RiskManagementConfig{
		ProfitTargetPct: r.ProfitTargetPct, StopLossPct: r.StopLossPct,
		TrailingStopEnabled: r.TrailingStopEnabled, TrailingStopActivationPct: r.TrailingStopActivationPct,
		TrailingStopDistancePct: r.TrailingStopDistancePct, MaxHoldDays: r.MaxHoldDays,
		MaxPositionSize: r.MaxPositionSize, MaxPositions: r.MaxPositions, PositionSizePct: r.PositionSizePct,
	}
}

func optionSelectionFromEngine(o engine.OptionSelectionConfig) OptionSelectionConfig {
	return OptionSelectionConfig{MinDTE: o.MinDTE, MaxDTE: o.MaxDTE, CallStrikePct: o.CallStrikePct, PutStrikePct: o.PutStrikePct}
}

func orderManagementFromEngine(o engine.OrderManagementConfig) OrderManagementConfig {
	return OrderManagementConfig{
		OrderTimeoutSeconds: o.OrderTimeoutSeconds,
		PriceDriftThreshold: o.PriceDriftThreshold,
		UseBracketOrders:    o.UseBracketOrders,
	}
}

func marketRegimeFromDetector(r marketctx.RegimeConfig) MarketRegimeConfig {
	return MarketRegimeConfig{
		HighChaosVIXChange: r.HighChaosVIXChange, HighChaosSPYVol: r.HighChaosSPYVol,
		HighChaosVIX: r.HighChaosVIX, BullVIX: r.BullVIX, RangeMin: r.RangeMin, RangeMax: r.RangeMax,
	}
}

func liquidityFromStrategy(l strategy.LiquidityConfig) LiquidityAnalysisConfig {
	return LiquidityAnalysisConfig{
		LiquidityThreshold: l.LiquidityThreshold, ZoneProximity: l.ZoneProximity, ImbalanceThreshold: l.ImbalanceThreshold,
	}
}
