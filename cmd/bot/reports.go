package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/optionflow/coretrader/internal/models"
	"github.com/optionflow/coretrader/internal/registry"
	"github.com/optionflow/coretrader/internal/store"
)

// handleReportCommand answers the CLI surface's store-backed report
// commands (spec §6 "/pnl, /budgets, /metrics, /trades, /export") that
// internal/coordinator/commands.go deliberately leaves unhandled, since
// they read the Trade Store directly and have no bearing on scan-loop
// state. Returns false for any line it does not recognize, so the
// caller falls through to the coordinator's command channel.
func handleReportCommand(ctx context.Context, line string, st *store.Store, reg *registry.Registry) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.TrimPrefix(fields[0], "/") {
	case "pnl":
		printPnL(ctx, st, fields[1:])
	case "budgets":
		printBudgets(ctx, st, reg)
	case "metrics":
		printMetrics(ctx, st, fields[1:])
	case "trades":
		printTrades(ctx, st, fields[1:])
	case "export":
		runExport(ctx, st, fields[1:])
	default:
		return false
	}
	return true
}

// parseFilterArgs reads `key=value` tokens into a PerformanceFilter
// (e.g. `/pnl strategy=swing-1 winners_only=true`).
func parseFilterArgs(args []string) store.PerformanceFilter {
	var f store.PerformanceFilter
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			continue
		}
		switch k {
		case "strategy":
			f.Strategy = v
		case "symbol":
			f.Symbol = v
		case "winners_only":
			f.WinnersOnly, _ = strconv.ParseBool(v)
		case "losers_only":
			f.LosersOnly, _ = strconv.ParseBool(v)
		case "include_administrative":
			f.IncludeAdministrative, _ = strconv.ParseBool(v)
		}
	}
	return f
}

func printPnL(ctx context.Context, st *store.Store, args []string) {
	f := parseFilterArgs(args)
	group := "strategy"
	if len(args) > 0 && !strings.Contains(args[0], "=") {
		group = args[0]
	}

	var (
		rows []store.PerformanceSummary
		err  error
	)
	switch group {
	case "symbol":
		rows, err = st.PerformanceBySymbol(ctx, f)
	case "day":
		rows, err = st.PerformanceByDay(ctx, f)
	default:
		rows, err = st.PerformanceByStrategy(ctx, f)
	}
	if err != nil {
		fmt.Printf("pnl: %v\n", err)
		return
	}
	if len(rows) == 0 {
		fmt.Println("no realized trades match that filter")
		return
	}
	for _, r := range rows {
		fmt.Printf("%-20s trades=%-4d total_pnl=%.2f win_rate=%.0f%%\n", r.Key, r.Trades, r.TotalPnL, r.WinRate*100)
	}
}

func printBudgets(ctx context.Context, st *store.Store, reg *registry.Registry) {
	printed := false
	for _, inst := range reg.Status() {
		b, ok, err := st.Budget(ctx, inst.Name)
		if err != nil || !ok {
			continue
		}
		fmt.Printf("%-20s budget=%.2f drawdown=%.2f committed=%.2f available=%.2f\n",
			b.StrategyName, b.Budget, b.Drawdown, b.Committed, b.Available())
		printed = true
	}
	if !printed {
		fmt.Println("no strategy budgets recorded yet")
	}
}

// printMetrics reports the cached historical-bar coverage for a symbol
// (spec §4.2's bar cache is the only store-resident per-symbol metric
// besides realized P&L, which /pnl already covers).
func printMetrics(ctx context.Context, st *store.Store, args []string) {
	if len(args) == 0 {
		fmt.Println("usage: /metrics <symbol> [bar_size]")
		return
	}
	symbol := args[0]
	barSize := "1 day"
	if len(args) > 1 {
		barSize = args[1]
	}
	bars, ok, err := st.GetBars(ctx, symbol, barSize, 365*24*time.Hour, time.Now())
	if err != nil {
		fmt.Printf("metrics: %v\n", err)
		return
	}
	if !ok || len(bars) == 0 {
		fmt.Printf("%s: no cached %s bars\n", symbol, barSize)
		return
	}
	last := bars[len(bars)-1]
	fmt.Printf("%s: %d cached %s bars, last close %.2f at %s\n", symbol, len(bars), barSize, last.Close, last.Timestamp.Format(time.RFC3339))
}

func printTrades(ctx context.Context, st *store.Store, args []string) {
	from, to := time.Time{}, time.Now()
	var strategy, symbol string
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			continue
		}
		switch k {
		case "strategy":
			strategy = v
		case "symbol":
			symbol = v
		case "since":
			if d, err := time.ParseDuration(v); err == nil {
				from = time.Now().Add(-d)
			}
		}
	}

	entries, err := st.ExportTradeHistory(ctx, from, to)
	if err != nil {
		fmt.Printf("trades: %v\n", err)
		return
	}
	shown := 0
	for _, e := range entries {
		if strategy != "" && e.StrategyName != strategy {
			continue
		}
		if symbol != "" && e.Contract.Symbol != symbol {
			continue
		}
		fmt.Printf("%-12s %-10s %-20s qty=%-4d pnl=%.2f (%s)\n",
			e.ExitTime.Format("2006-01-02"), e.Contract.Symbol, e.StrategyName, e.Quantity, e.RealizedPnLDollars, e.ExitReason)
		shown++
	}
	if shown == 0 {
		fmt.Println("no trades match that filter")
	}
}

// runExport writes a CSV trade-history export or a plain-text P&L
// report to the working directory, timestamped to avoid clobbering a
// prior export (spec §6 "/export [trades|report]").
func runExport(ctx context.Context, st *store.Store, args []string) {
	kind := "trades"
	if len(args) > 0 {
		kind = args[0]
	}
	stamp := time.Now().UTC().Format("20060102T150405Z")

	switch kind {
	case "trades":
		entries, err := st.ExportTradeHistory(ctx, time.Time{}, time.Now())
		if err != nil {
			fmt.Printf("export: %v\n", err)
			return
		}
		path := fmt.Sprintf("trades_%s.csv", stamp)
		if err := writeTradesCSV(path, entries); err != nil {
			fmt.Printf("export: %v\n", err)
			return
		}
		fmt.Printf("wrote %d trades to %s\n", len(entries), path)

	case "report":
		rows, err := st.PerformanceByStrategy(ctx, store.PerformanceFilter{})
		if err != nil {
			fmt.Printf("export: %v\n", err)
			return
		}
		path := fmt.Sprintf("report_%s.txt", stamp)
		if err := writePerformanceReport(path, rows); err != nil {
			fmt.Printf("export: %v\n", err)
			return
		}
		fmt.Printf("wrote performance report to %s\n", path)

	default:
		fmt.Println("usage: /export [trades|report]")
	}
}

func writeTradesCSV(path string, entries []models.TradeHistoryEntry) error {
	f, err := os.Create(path) // #nosec G304 -- operator-requested export to the working directory
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"symbol", "strategy", "direction", "quantity", "entry_price", "entry_time",
		"exit_price", "exit_time", "exit_reason", "realized_pnl_usd", "realized_pnl_pct"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			e.Contract.Symbol, e.StrategyName, string(e.Direction), strconv.Itoa(e.Quantity),
			strconv.FormatFloat(e.EntryPrice, 'f', 2, 64), e.EntryTime.Format(time.RFC3339),
			strconv.FormatFloat(e.ExitPrice, 'f', 2, 64), e.ExitTime.Format(time.RFC3339),
			string(e.ExitReason),
			strconv.FormatFloat(e.RealizedPnLDollars, 'f', 2, 64),
			strconv.FormatFloat(e.RealizedPnLPercent, 'f', 4, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

func writePerformanceReport(path string, rows []store.PerformanceSummary) error {
	f, err := os.Create(path) // #nosec G304 -- operator-requested export to the working directory
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "performance report generated %s\n\n", time.Now().UTC().Format(time.RFC3339))
	for _, r := range rows {
		fmt.Fprintf(f, "%-20s trades=%-4d total_pnl=%.2f win_rate=%.0f%%\n", r.Key, r.Trades, r.TotalPnL, r.WinRate*100)
	}
	return nil
}
