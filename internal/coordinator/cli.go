package coordinator

import (
	"fmt"
	"strings"
)

// HelpText is printed for the /help command (spec §6 CLI surface).
// /help and /quit are handled by the stdin reader directly rather than
// the command channel, since neither one is coordinator state.
const HelpText = `
/help                 show this text
/status               open positions, pending orders, regime, scan count
/strategies            list loaded strategy instances and their enabled state
/reload [name]         reload one instance (or all, if name is omitted)
/enable name           enable a loaded instance
/disable name          disable a loaded instance
/discover              probe config for newly-declared strategy instances
/pause                 suspend new entries; reconciliation and exits still run
/resume                resume new entries
/pnl [symbol|day]      realized P&L by strategy (or by symbol/day) (store-backed)
/budgets               per-strategy budget state (store-backed)
/metrics [symbol]       cached historical-bar coverage for a symbol (store-backed)
/trades [filters]       trade history (store-backed)
/export [trades|report] write a CSV/report export (store-backed)
/quit                  stop the scan loop and exit
`

// ParseCommand turns one stdin line into a Command. /help and /quit are
// not recognized here; the caller owning stdin handles those directly
// since they are not coordinator state.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	name := strings.TrimPrefix(fields[0], "/")
	args := fields[1:]

	switch Kind(name) {
	case KindStatus, KindStrategies, KindDiscover, KindPause, KindResume,
		KindPnL, KindBudgets, KindMetrics, KindTrades, KindExport:
		return Command{Kind: Kind(name), Args: args}, nil
	case KindReload:
		return Command{Kind: KindReload, Args: args}, nil
	case KindEnable, KindDisable:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: /%s <name>", name)
		}
		return Command{Kind: Kind(name), Args: args}, nil
	default:
		return Command{}, fmt.Errorf("unknown command %q (try /help)", fields[0])
	}
}
