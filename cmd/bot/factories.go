package main

import (
	"time"

	"github.com/optionflow/coretrader/internal/strategy"
)

// toFloat64 normalizes a YAML-decoded scalar into float64: plain
// integers decode as int, not float64, and the inline Extra map can
// hold either depending on how the operator wrote the value.
func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func floatFrom(cfg map[string]interface{}, key string, def float64) float64 {
	if v, ok := cfg[key]; ok {
		if f, ok := toFloat64(v); ok {
			return f
		}
	}
	return def
}

func intFrom(cfg map[string]interface{}, key string, def int) int {
	if v, ok := cfg[key]; ok {
		if f, ok := toFloat64(v); ok {
			return int(f)
		}
	}
	return def
}

func boolFrom(cfg map[string]interface{}, key string, def bool) bool {
	if v, ok := cfg[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// liquidityConfigFromMap reads the three liquidity_analysis keys every
// depth-reading strategy's merged config carries (spec §6
// "liquidity_analysis — parameters shared by strategies"; folded in by
// config.Config.InstanceConfigs).
func liquidityConfigFromMap(cfg map[string]interface{}) strategy.LiquidityConfig {
	d := strategy.DefaultLiquidityConfig
	return strategy.LiquidityConfig{
		LiquidityThreshold: floatFrom(cfg, "liquidity_threshold", d.LiquidityThreshold),
		ZoneProximity:      floatFrom(cfg, "zone_proximity", d.ZoneProximity),
		ImbalanceThreshold: floatFrom(cfg, "imbalance_threshold", d.ImbalanceThreshold),
	}
}

func swingConfigFromMap(cfg map[string]interface{}) strategy.SwingConfig {
	return strategy.SwingConfig{
		Liquidity:            liquidityConfigFromMap(cfg),
		TradeTestingPatterns: boolFrom(cfg, "trade_testing_patterns", false),
	}
}

func swingFactory(instanceName string, cfg map[string]interface{}) (strategy.Strategy, error) {
	return strategy.NewSwing(instanceName, swingConfigFromMap(cfg)), nil
}

func scalpingFactory(instanceName string, cfg map[string]interface{}) (strategy.Strategy, error) {
	d := strategy.DefaultScalpingConfig
	scalpCfg := strategy.ScalpingConfig{
		EntryThreshold:          floatFrom(cfg, "entry_threshold", d.EntryThreshold),
		ExitThreshold:           floatFrom(cfg, "exit_threshold", d.ExitThreshold),
		MaxTicksWithoutProgress: intFrom(cfg, "max_ticks_without_progress", d.MaxTicksWithoutProgress),
		MinProgressPct:          floatFrom(cfg, "min_progress_pct", d.MinProgressPct),
		MinConfidence:           floatFrom(cfg, "min_confidence", d.MinConfidence),
	}
	return strategy.NewScalping(instanceName, scalpCfg), nil
}

// orbFactory reads minute-granularity keys rather than duration strings
// since that's what ORB.DefaultConfig itself emits (int(Minutes())),
// and registry.Load merges an instance's config over those defaults
// before the factory ever sees it.
func orbFactory(instanceName string, cfg map[string]interface{}) (strategy.Strategy, error) {
	d := strategy.DefaultORBConfig
	orbCfg := strategy.ORBConfig{
		OpeningWindow:  time.Duration(intFrom(cfg, "opening_window_minutes", int(d.OpeningWindow.Minutes()))) * time.Minute,
		TradingWindow:  time.Duration(intFrom(cfg, "trading_window_minutes", int(d.TradingWindow.Minutes()))) * time.Minute,
		VIXSlopeWindow: time.Duration(intFrom(cfg, "vix_slope_window_minutes", int(d.VIXSlopeWindow.Minutes()))) * time.Minute,
		MarketOpen:     d.MarketOpen,
	}
	if v, ok := cfg["market_open"]; ok {
		if s, ok := v.(string); ok && s != "" {
			orbCfg.MarketOpen = s
		}
	}
	return strategy.NewORB(instanceName, orbCfg), nil
}

func bullPutSpreadFactory(instanceName string, cfg map[string]interface{}) (strategy.Strategy, error) {
	return strategy.NewBullPutSpread(instanceName, swingConfigFromMap(cfg)), nil
}

func bearPutSpreadFactory(instanceName string, cfg map[string]interface{}) (strategy.Strategy, error) {
	return strategy.NewBearPutSpread(instanceName, swingConfigFromMap(cfg)), nil
}

func longPutStraightFactory(instanceName string, cfg map[string]interface{}) (strategy.Strategy, error) {
	return strategy.NewLongPutStraight(instanceName, swingConfigFromMap(cfg)), nil
}

func ironCondorFactory(instanceName string, cfg map[string]interface{}) (strategy.Strategy, error) {
	return strategy.NewIronCondor(instanceName, liquidityConfigFromMap(cfg)), nil
}
