package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/optionflow/coretrader/internal/models"
	"github.com/optionflow/coretrader/internal/registry"
	"github.com/optionflow/coretrader/internal/store"
)

func TestRegisterStrategyTypesLoadsEveryConcreteType(t *testing.T) {
	reg := registry.New(nil)
	registerStrategyTypes(reg)

	for _, typ := range []string{"swing", "scalping", "orb", "bull_put_spread", "bear_put_spread", "long_put_straight", "iron_condor"} {
		name := "inst-" + typ
		if err := reg.Load(name, registry.InstanceConfig{Type: typ, Enabled: true}); err != nil {
			t.Fatalf("load %q instance: %v", typ, err)
		}
	}

	if got := len(reg.Status()); got != 7 {
		t.Fatalf("expected 7 loaded instances, got %d", got)
	}
}

func TestOrbFactoryReadsMinuteGranularityKeys(t *testing.T) {
	s, err := orbFactory("orb-1", map[string]interface{}{
		"opening_window_minutes": 20,
		"trading_window_minutes": 45,
	})
	if err != nil {
		t.Fatalf("orbFactory: %v", err)
	}
	if s.Name() != "orb-1" {
		t.Fatalf("expected instance name to round-trip, got %q", s.Name())
	}
}

func TestSwingFactoryMergesLiquidityKeysFromYAMLInts(t *testing.T) {
	// yaml.v3 decodes a plain integer scalar as int, not float64; the
	// factory must tolerate either.
	s, err := swingFactory("swing-1", map[string]interface{}{
		"liquidity_threshold": 2500,
		"trade_testing_patterns": true,
	})
	if err != nil {
		t.Fatalf("swingFactory: %v", err)
	}
	if s.Type() != "swing" {
		t.Fatalf("expected type swing, got %q", s.Type())
	}
}

func TestParseFilterArgs(t *testing.T) {
	f := parseFilterArgs([]string{"strategy=swing-1", "winners_only=true", "bogus"})
	if f.Strategy != "swing-1" || !f.WinnersOnly {
		t.Fatalf("unexpected filter: %+v", f)
	}
}

func TestHandleReportCommandRecognizesEveryReportVerb(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	reg := registry.New(nil)
	ctx := t.Context()

	for _, line := range []string{"/pnl", "/budgets", "/metrics SPY", "/trades", "/export unknown-kind"} {
		if !handleReportCommand(ctx, line, st, reg) {
			t.Fatalf("expected %q to be recognized as a report command", line)
		}
	}
	if handleReportCommand(ctx, "/status", st, reg) {
		t.Fatal("expected /status to fall through to the coordinator command channel")
	}
}

func TestExportTradesWritesCSV(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	dir := t.TempDir()
	t.Chdir(dir)

	ctx := t.Context()
	runExport(ctx, st, []string{"trades"})

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	found := false
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".csv" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected /export trades to write a .csv file")
	}
}

func TestWriteTradesCSVIncludesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trades.csv")
	entries := []models.TradeHistoryEntry{
		{
			Contract:           models.OptionContract{Symbol: "SPY"},
			StrategyName:       "swing-1",
			Direction:          models.DirectionLongCall,
			Quantity:           2,
			EntryPrice:         1.5,
			EntryTime:          time.Now(),
			ExitPrice:          2.0,
			ExitTime:           time.Now(),
			ExitReason:         models.ExitProfitTarget,
			RealizedPnLDollars: 100,
			RealizedPnLPercent: 0.33,
		},
	}
	if err := writeTradesCSV(path, entries); err != nil {
		t.Fatalf("writeTradesCSV: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected a non-empty CSV file")
	}
}
