// Package store implements the durable SQL-backed Trade Store (spec
// §4.2): positions, trade history, strategy budgets, and a historical-bar
// cache, all behind a single writer connection in WAL mode. Grounded on
// AlejandroRuiz99-polybot's internal/adapters/storage/sqlite.go — pure-Go
// modernc.org/sqlite, a schema string applied at open, single
// sql.DB with SetMaxOpenConns(1), wrapped "store.Method: ..." errors.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/optionflow/coretrader/internal/models"
)

const schema = `
PRAGMA journal_mode = WAL;

CREATE TABLE IF NOT EXISTS positions (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    order_ref      TEXT NOT NULL UNIQUE,
    status         TEXT NOT NULL CHECK (status IN ('pending_fill', 'open')),
    symbol         TEXT NOT NULL,
    local_symbol   TEXT NOT NULL,
    con_id         INTEGER NOT NULL DEFAULT 0,
    strike         REAL NOT NULL,
    expiry         DATETIME NOT NULL,
    right          TEXT NOT NULL,
    quantity       INTEGER NOT NULL,
    direction      TEXT NOT NULL,
    strategy       TEXT NOT NULL,
    entry_price    REAL NOT NULL,
    entry_time     DATETIME NOT NULL,
    peak_price     REAL NOT NULL,
    stop_loss      REAL NOT NULL,
    profit_target  REAL NOT NULL,
    entry_order_id  TEXT NOT NULL DEFAULT '',
    stop_order_id   TEXT NOT NULL DEFAULT '',
    target_order_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
CREATE INDEX IF NOT EXISTS idx_positions_strategy_symbol ON positions(strategy, symbol);

CREATE TABLE IF NOT EXISTS trade_history (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    order_ref          TEXT NOT NULL UNIQUE,
    symbol             TEXT NOT NULL,
    local_symbol       TEXT NOT NULL,
    con_id             INTEGER NOT NULL DEFAULT 0,
    strike             REAL NOT NULL,
    expiry             DATETIME NOT NULL,
    right              TEXT NOT NULL,
    quantity           INTEGER NOT NULL,
    direction          TEXT NOT NULL,
    strategy           TEXT NOT NULL,
    entry_price        REAL NOT NULL,
    entry_time         DATETIME NOT NULL,
    exit_price         REAL NOT NULL,
    exit_time          DATETIME NOT NULL,
    exit_reason        TEXT NOT NULL,
    exit_order_id      TEXT NOT NULL DEFAULT '',
    realized_pnl_usd   REAL NOT NULL,
    realized_pnl_pct   REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_strategy ON trade_history(strategy);
CREATE INDEX IF NOT EXISTS idx_history_symbol ON trade_history(symbol);
CREATE INDEX IF NOT EXISTS idx_history_exit_time ON trade_history(exit_time);

CREATE TABLE IF NOT EXISTS strategy_budgets (
    strategy_name TEXT PRIMARY KEY,
    budget        REAL NOT NULL,
    drawdown      REAL NOT NULL DEFAULT 0,
    committed     REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS historical_bars (
    symbol    TEXT NOT NULL,
    bar_size  TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    open      REAL NOT NULL,
    high      REAL NOT NULL,
    low       REAL NOT NULL,
    close     REAL NOT NULL,
    volume    REAL NOT NULL,
    fetched_at DATETIME NOT NULL,
    PRIMARY KEY (symbol, bar_size, timestamp)
);
`

// Store is the single-writer SQLite-backed Trade Store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, applies the schema, and
// enforces the single-writer discipline the engine's ordering guarantees
// depend on (spec §5).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store.Open: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.Open: apply schema: %w", err)
	}

	if err := migrateColumns(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.Open: migrate columns: %w", err)
	}

	return &Store{db: db}, nil
}

// addedColumn names a column that a pre-existing installation's table may
// predate, along with the ALTER TABLE clause that backfills it safely.
type addedColumn struct {
	table, column, ddl string
}

// columnsToMigrate lists every column spec.md §4.2's schema-migration
// requirement names (`strategy`, `peak_price`, `committed`) plus the
// table each lives in. CREATE TABLE IF NOT EXISTS is a no-op against a
// database file that already has the table under an older layout, so
// these are backfilled explicitly via PRAGMA table_info + ALTER TABLE.
var columnsToMigrate = []addedColumn{
	{"positions", "strategy", "ALTER TABLE positions ADD COLUMN strategy TEXT NOT NULL DEFAULT ''"},
	{"positions", "peak_price", "ALTER TABLE positions ADD COLUMN peak_price REAL NOT NULL DEFAULT 0"},
	{"strategy_budgets", "committed", "ALTER TABLE strategy_budgets ADD COLUMN committed REAL NOT NULL DEFAULT 0"},
}

// migrateColumns backfills columns onto tables from a pre-existing
// installation that predates them (spec §4.2 "Schema migration: the
// store must detect and add new columns ... to pre-existing
// installations without data loss").
func migrateColumns(db *sql.DB) error {
	for _, c := range columnsToMigrate {
		has, err := hasColumn(db, c.table, c.column)
		if err != nil {
			return fmt.Errorf("inspect %s.%s: %w", c.table, c.column, err)
		}
		if has {
			continue
		}
		if _, err := db.Exec(c.ddl); err != nil {
			return fmt.Errorf("add %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

// hasColumn reports whether table already carries column, via
// PRAGMA table_info rather than a failing ALTER TABLE probe.
func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewOrderRef generates a process-unique, collision-checked ref for a
// new pending order (spec §4.2 order_ref generation).
func (s *Store) NewOrderRef(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		ref := uuid.NewString()
		var count int
		err := s.db.QueryRowContext(ctx,
			`SELECT
				(SELECT COUNT(*) FROM positions WHERE order_ref = ?) +
				(SELECT COUNT(*) FROM trade_history WHERE order_ref = ?)`,
			ref, ref,
		).Scan(&count)
		if err != nil {
			return "", fmt.Errorf("store.NewOrderRef: collision check: %w", err)
		}
		if count == 0 {
			return ref, nil
		}
	}
	return "", fmt.Errorf("store.NewOrderRef: exhausted collision retries")
}

func scanPosition(row interface {
	Scan(dest ...interface{}) error
}) (models.PendingOrder, models.PositionStatus, error) {
	var p models.PendingOrder
	var status models.PositionStatus
	var expiry time.Time
	var right string

	err := row.Scan(
		&p.StoreID, &p.OrderRef, &status,
		&p.Contract.Symbol, &p.Contract.LocalSymbol, &p.Contract.ConID,
		&p.Contract.Strike, &expiry, &right,
		&p.Quantity, &p.Direction, &p.StrategyName,
		&p.EntryPrice, &p.OrderTime, new(float64), // peak_price unused on PendingOrder
		&p.StopLoss, &p.ProfitTarget,
		&p.EntryOrderID, &p.StopOrderID, &p.TargetOrderID,
	)
	p.Contract.Expiry = expiry
	p.Contract.Right = models.OptionRight(right)
	return p, status, err
}

const positionColumns = `id, order_ref, status, symbol, local_symbol, con_id, strike, expiry, right,
	quantity, direction, strategy, entry_price, entry_time, peak_price, stop_loss, profit_target,
	entry_order_id, stop_order_id, target_order_id`

// InsertPosition atomically appends a new positions row with status
// pending_fill and peak_price defaulted to entry_price, returning the new
// durable id.
func (s *Store) InsertPosition(ctx context.Context, p *models.PendingOrder) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO positions
			(order_ref, status, symbol, local_symbol, con_id, strike, expiry, right,
			 quantity, direction, strategy, entry_price, entry_time, peak_price,
			 stop_loss, profit_target, entry_order_id, stop_order_id, target_order_id)
		VALUES (?, 'pending_fill', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OrderRef, p.Contract.Symbol, p.Contract.LocalSymbol, p.Contract.ConID,
		p.Contract.Strike, p.Contract.Expiry, string(p.Contract.Right),
		p.Quantity, string(p.Direction), p.StrategyName,
		p.EntryPrice, p.OrderTime, p.EntryPrice,
		p.StopLoss, p.ProfitTarget, p.EntryOrderID, p.StopOrderID, p.TargetOrderID,
	)
	if err != nil {
		return 0, fmt.Errorf("store.InsertPosition: %w", err)
	}
	return res.LastInsertId()
}

// PromoteToOpen transitions a pending_fill row to open on entry fill,
// recording the actual average fill price, entry time, and bracket
// child handles.
func (s *Store) PromoteToOpen(ctx context.Context, storeID int64, entryPrice float64, quantity int, entryTime time.Time, stopOrderID, targetOrderID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE positions
		SET status = 'open', entry_price = ?, quantity = ?, entry_time = ?, peak_price = ?,
		    stop_order_id = ?, target_order_id = ?
		WHERE id = ? AND status = 'pending_fill'`,
		entryPrice, quantity, entryTime, entryPrice, stopOrderID, targetOrderID, storeID,
	)
	if err != nil {
		return fmt.Errorf("store.PromoteToOpen: %w", err)
	}
	return nil
}

// UpdatePeak persists a new peak_price for an open position.
func (s *Store) UpdatePeak(ctx context.Context, storeID int64, peak float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE positions SET peak_price = ? WHERE id = ?`, peak, storeID)
	if err != nil {
		return fmt.Errorf("store.UpdatePeak: %w", err)
	}
	return nil
}

// PendingOrders returns every position row currently in pending_fill.
func (s *Store) PendingOrders(ctx context.Context) ([]models.PendingOrder, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE status = 'pending_fill'`)
	if err != nil {
		return nil, fmt.Errorf("store.PendingOrders: %w", err)
	}
	defer rows.Close()

	var out []models.PendingOrder
	for rows.Next() {
		p, _, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("store.PendingOrders: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// OpenPositions returns every position row currently open, as Positions.
func (s *Store) OpenPositions(ctx context.Context) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE status = 'open'`)
	if err != nil {
		return nil, fmt.Errorf("store.OpenPositions: %w", err)
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		var pos models.Position
		var status models.PositionStatus
		var expiry time.Time
		var right string
		var stopOrderID, targetOrderID string

		if err := rows.Scan(
			&pos.StoreID, &pos.OrderRef, &status,
			&pos.Contract.Symbol, &pos.Contract.LocalSymbol, &pos.Contract.ConID,
			&pos.Contract.Strike, &expiry, &right,
			&pos.Quantity, &pos.Direction, &pos.StrategyName,
			&pos.EntryPrice, &pos.EntryTime, &pos.PeakPrice,
			&pos.StopLoss, &pos.ProfitTarget,
			new(string), &stopOrderID, &targetOrderID,
		); err != nil {
			return nil, fmt.Errorf("store.OpenPositions: scan: %w", err)
		}
		pos.Contract.Expiry = expiry
		pos.Contract.Right = models.OptionRight(right)
		pos.StopOrderID = stopOrderID
		pos.TargetOrderID = targetOrderID
		out = append(out, pos)
	}
	return out, rows.Err()
}

// DeletePosition removes a positions row outright (cancel with no fills).
func (s *Store) DeletePosition(ctx context.Context, storeID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE id = ?`, storeID)
	if err != nil {
		return fmt.Errorf("store.DeletePosition: %w", err)
	}
	return nil
}

// ClosePosition performs, in a single transaction: move from positions to
// trade_history with computed P&L, then a budget release against the
// owning strategy (spec §4.2 close_position). If exitPrice <= 0 the
// committed amount is treated as a total loss.
func (s *Store) ClosePosition(ctx context.Context, storeID int64, exitPrice float64, reason models.ExitReason, exitOrderID string, exitTime time.Time) (*models.TradeHistoryEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store.ClosePosition: begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE id = ?`, storeID)
	var pos models.Position
	var status models.PositionStatus
	var expiry time.Time
	var right string
	var stopOrderID, targetOrderID string
	if err := row.Scan(
		&pos.StoreID, &pos.OrderRef, &status,
		&pos.Contract.Symbol, &pos.Contract.LocalSymbol, &pos.Contract.ConID,
		&pos.Contract.Strike, &expiry, &right,
		&pos.Quantity, &pos.Direction, &pos.StrategyName,
		&pos.EntryPrice, &pos.EntryTime, &pos.PeakPrice,
		&pos.StopLoss, &pos.ProfitTarget,
		new(string), &stopOrderID, &targetOrderID,
	); err != nil {
		return nil, fmt.Errorf("store.ClosePosition: load position %d: %w", storeID, err)
	}
	pos.Contract.Expiry = expiry
	pos.Contract.Right = models.OptionRight(right)

	const multiplier = 100.0
	pnlDollars := (exitPrice - pos.EntryPrice) * float64(pos.Quantity) * multiplier
	costBasis := pos.EntryPrice * float64(pos.Quantity) * multiplier
	var pnlPercent float64
	if costBasis != 0 {
		pnlPercent = pnlDollars / costBasis * 100
	}

	entry := &models.TradeHistoryEntry{
		OrderRef:           pos.OrderRef,
		Contract:           pos.Contract,
		Quantity:           pos.Quantity,
		Direction:          pos.Direction,
		StrategyName:       pos.StrategyName,
		EntryPrice:         pos.EntryPrice,
		EntryTime:          pos.EntryTime,
		ExitPrice:          exitPrice,
		ExitTime:           exitTime,
		ExitReason:         reason,
		ExitOrderID:        exitOrderID,
		RealizedPnLDollars: pnlDollars,
		RealizedPnLPercent: pnlPercent,
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO trade_history
			(order_ref, symbol, local_symbol, con_id, strike, expiry, right, quantity, direction,
			 strategy, entry_price, entry_time, exit_price, exit_time, exit_reason, exit_order_id,
			 realized_pnl_usd, realized_pnl_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.OrderRef, entry.Contract.Symbol, entry.Contract.LocalSymbol, entry.Contract.ConID,
		entry.Contract.Strike, entry.Contract.Expiry, string(entry.Contract.Right),
		entry.Quantity, string(entry.Direction), entry.StrategyName,
		entry.EntryPrice, entry.EntryTime, entry.ExitPrice, entry.ExitTime,
		string(entry.ExitReason), entry.ExitOrderID, entry.RealizedPnLDollars, entry.RealizedPnLPercent,
	)
	if err != nil {
		return nil, fmt.Errorf("store.ClosePosition: insert trade_history: %w", err)
	}
	entry.StoreID, _ = res.LastInsertId()

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE id = ?`, storeID); err != nil {
		return nil, fmt.Errorf("store.ClosePosition: delete position: %w", err)
	}

	committed := pos.EntryPrice * float64(pos.Quantity) * multiplier
	exitValue := exitPrice * float64(pos.Quantity) * multiplier
	if exitPrice <= 0 {
		exitValue = 0
	}
	if err := releaseBudgetTx(ctx, tx, pos.StrategyName, committed, exitValue); err != nil {
		return nil, fmt.Errorf("store.ClosePosition: release budget: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store.ClosePosition: commit: %w", err)
	}
	return entry, nil
}

// CommitBudget increases committed by amount. Fails soft (no-op) if the
// strategy has no budget row (spec §4.2 commit_budget).
func (s *Store) CommitBudget(ctx context.Context, strategy string, amount float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE strategy_budgets SET committed = committed + ? WHERE strategy_name = ?`,
		amount, strategy,
	)
	if err != nil {
		return fmt.Errorf("store.CommitBudget: %w", err)
	}
	return nil
}

func releaseBudgetTx(ctx context.Context, tx *sql.Tx, strategy string, committedAmount, exitValue float64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE strategy_budgets
		SET committed = MAX(0, committed - ?),
		    drawdown  = MAX(0, drawdown - (? - ?))
		WHERE strategy_name = ?`,
		committedAmount, exitValue, committedAmount, strategy,
	)
	return err
}

// ReleaseBudget decreases committed by committedAmount (floored at 0) and
// updates drawdown := max(0, drawdown - (exitValue - committedAmount))
// (spec §4.2 release_budget), in its own transaction. ClosePosition
// applies the same update inside its transaction; pending-order
// cancellation releases through ClosePosition, not through this method.
func (s *Store) ReleaseBudget(ctx context.Context, strategy string, committedAmount, exitValue float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store.ReleaseBudget: begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := releaseBudgetTx(ctx, tx, strategy, committedAmount, exitValue); err != nil {
		return fmt.Errorf("store.ReleaseBudget: %w", err)
	}
	return tx.Commit()
}

// UpsertBudget creates a strategy's budget row; for an existing row it
// updates only budget, keeping drawdown and committed.
func (s *Store) UpsertBudget(ctx context.Context, b models.StrategyBudget) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategy_budgets (strategy_name, budget, drawdown, committed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(strategy_name) DO UPDATE SET budget = excluded.budget`,
		b.StrategyName, b.Budget, b.Drawdown, b.Committed,
	)
	if err != nil {
		return fmt.Errorf("store.UpsertBudget: %w", err)
	}
	return nil
}

// Budget returns the current budget row for strategy, or ok=false if none exists.
func (s *Store) Budget(ctx context.Context, strategy string) (models.StrategyBudget, bool, error) {
	var b models.StrategyBudget
	b.StrategyName = strategy
	err := s.db.QueryRowContext(ctx,
		`SELECT budget, drawdown, committed FROM strategy_budgets WHERE strategy_name = ?`, strategy,
	).Scan(&b.Budget, &b.Drawdown, &b.Committed)
	if err == sql.ErrNoRows {
		return models.StrategyBudget{}, false, nil
	}
	if err != nil {
		return models.StrategyBudget{}, false, fmt.Errorf("store.Budget: %w", err)
	}
	return b, true, nil
}

// HasTradedSymbolToday reports whether any row in positions or
// trade_history for (symbol, strategy) has an entry date equal to the
// local calendar day of now (spec §4.2 has_traded_symbol_today).
func (s *Store) HasTradedSymbolToday(ctx context.Context, symbol, strategy string, now time.Time) (bool, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.Add(24 * time.Hour)

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM positions WHERE symbol = ? AND strategy = ? AND entry_time >= ? AND entry_time < ?) +
			(SELECT COUNT(*) FROM trade_history WHERE symbol = ? AND strategy = ? AND entry_time >= ? AND entry_time < ?)`,
		symbol, strategy, start, end, symbol, strategy, start, end,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("store.HasTradedSymbolToday: %w", err)
	}
	return count > 0, nil
}

// RecalculateBudgetFromHistory replays all closed trades for strategy in
// entry-time order to derive drawdown, and sums open-position entry costs
// to derive committed, clamping the result to cap (spec §4.2). Idempotent.
func (s *Store) RecalculateBudgetFromHistory(ctx context.Context, strategy string, budgetCap float64) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT realized_pnl_usd, exit_reason FROM trade_history
		WHERE strategy = ? ORDER BY entry_time ASC`, strategy)
	if err != nil {
		return fmt.Errorf("store.RecalculateBudgetFromHistory: query history: %w", err)
	}

	var drawdown float64
	for rows.Next() {
		var pnl float64
		var reason string
		if err := rows.Scan(&pnl, &reason); err != nil {
			rows.Close()
			return fmt.Errorf("store.RecalculateBudgetFromHistory: scan: %w", err)
		}
		if pnl < 0 {
			drawdown += -pnl
		} else {
			drawdown -= pnl
			if drawdown < 0 {
				drawdown = 0
			}
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("store.RecalculateBudgetFromHistory: %w", err)
	}
	rows.Close()
	if drawdown > budgetCap {
		drawdown = budgetCap
	}

	var committed float64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(entry_price * quantity * 100), 0) FROM positions WHERE strategy = ?`,
		strategy,
	).Scan(&committed)
	if err != nil {
		return fmt.Errorf("store.RecalculateBudgetFromHistory: sum committed: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE strategy_budgets SET drawdown = ?, committed = ? WHERE strategy_name = ?`,
		drawdown, committed, strategy,
	)
	if err != nil {
		return fmt.Errorf("store.RecalculateBudgetFromHistory: update: %w", err)
	}
	return nil
}

// GetConsecutiveLosses walks history newest-first, excluding administrative
// exit reasons, counting strictly-negative P&L until the first non-loss
// (spec §4.2 get_consecutive_losses). An empty strategy scans all strategies.
func (s *Store) GetConsecutiveLosses(ctx context.Context, strategy string) (int, error) {
	query := `SELECT realized_pnl_usd, exit_reason FROM trade_history`
	args := []interface{}{}
	if strategy != "" {
		query += ` WHERE strategy = ?`
		args = append(args, strategy)
	}
	query += ` ORDER BY exit_time DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("store.GetConsecutiveLosses: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var pnl float64
		var reason string
		if err := rows.Scan(&pnl, &reason); err != nil {
			return 0, fmt.Errorf("store.GetConsecutiveLosses: scan: %w", err)
		}
		if models.AdministrativeExitReasons[models.ExitReason(reason)] {
			continue
		}
		if pnl < 0 {
			count++
		} else {
			break
		}
	}
	return count, rows.Err()
}

// PerformanceFilter narrows a performance query (spec §4.2 Performance queries).
type PerformanceFilter struct {
	Strategy            string
	Symbol              string
	From, To            time.Time
	WinnersOnly         bool
	LosersOnly          bool
	IncludeAdministrative bool
}

// PerformanceSummary is one aggregate row of a performance query.
type PerformanceSummary struct {
	Key        string // symbol, strategy, or day depending on the query
	Trades     int
	TotalPnL   float64
	WinRate    float64
}

// PerformanceByStrategy aggregates realized P&L per strategy, excluding
// administrative exit reasons unless overridden.
func (s *Store) PerformanceByStrategy(ctx context.Context, f PerformanceFilter) ([]PerformanceSummary, error) {
	return s.performanceGroupedBy(ctx, "strategy", f)
}

// PerformanceBySymbol aggregates realized P&L per symbol.
func (s *Store) PerformanceBySymbol(ctx context.Context, f PerformanceFilter) ([]PerformanceSummary, error) {
	return s.performanceGroupedBy(ctx, "symbol", f)
}

// PerformanceByDay aggregates realized P&L per calendar day of exit.
func (s *Store) PerformanceByDay(ctx context.Context, f PerformanceFilter) ([]PerformanceSummary, error) {
	return s.performanceGroupedBy(ctx, "date(exit_time)", f)
}

func (s *Store) performanceGroupedBy(ctx context.Context, groupExpr string, f PerformanceFilter) ([]PerformanceSummary, error) {
	query := fmt.Sprintf(`
		SELECT %s AS grp, COUNT(*), COALESCE(SUM(realized_pnl_usd), 0),
		       COALESCE(AVG(CASE WHEN realized_pnl_usd > 0 THEN 1.0 ELSE 0.0 END), 0)
		FROM trade_history WHERE 1=1`, groupExpr)
	var args []interface{}

	if !f.IncludeAdministrative {
		query += ` AND exit_reason NOT IN ('manual_close', 'reconciliation_not_found')`
	}
	if f.Strategy != "" {
		query += ` AND strategy = ?`
		args = append(args, f.Strategy)
	}
	if f.Symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, f.Symbol)
	}
	if !f.From.IsZero() {
		query += ` AND exit_time >= ?`
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		query += ` AND exit_time <= ?`
		args = append(args, f.To)
	}
	if f.WinnersOnly {
		query += ` AND realized_pnl_usd > 0`
	}
	if f.LosersOnly {
		query += ` AND realized_pnl_usd < 0`
	}
	query += ` GROUP BY grp ORDER BY grp`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store.performanceGroupedBy(%s): %w", groupExpr, err)
	}
	defer rows.Close()

	var out []PerformanceSummary
	for rows.Next() {
		var p PerformanceSummary
		if err := rows.Scan(&p.Key, &p.Trades, &p.TotalPnL, &p.WinRate); err != nil {
			return nil, fmt.Errorf("store.performanceGroupedBy(%s): scan: %w", groupExpr, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ExportTradeHistory returns every trade_history row within [from, to],
// oldest first, for CSV export (spec §8 round-trip law).
func (s *Store) ExportTradeHistory(ctx context.Context, from, to time.Time) ([]models.TradeHistoryEntry, error) {
	query := `SELECT id, order_ref, symbol, local_symbol, con_id, strike, expiry, right, quantity,
		direction, strategy, entry_price, entry_time, exit_price, exit_time, exit_reason,
		exit_order_id, realized_pnl_usd, realized_pnl_pct FROM trade_history WHERE 1=1`
	var args []interface{}
	if !from.IsZero() {
		query += ` AND exit_time >= ?`
		args = append(args, from)
	}
	if !to.IsZero() {
		query += ` AND exit_time <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY exit_time ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store.ExportTradeHistory: %w", err)
	}
	defer rows.Close()

	var out []models.TradeHistoryEntry
	for rows.Next() {
		var e models.TradeHistoryEntry
		var expiry, entryTime, exitTime time.Time
		var right, exitReason string
		if err := rows.Scan(
			&e.StoreID, &e.OrderRef, &e.Contract.Symbol, &e.Contract.LocalSymbol, &e.Contract.ConID,
			&e.Contract.Strike, &expiry, &right, &e.Quantity, &e.Direction, &e.StrategyName,
			&e.EntryPrice, &entryTime, &e.ExitPrice, &exitTime, &exitReason, &e.ExitOrderID,
			&e.RealizedPnLDollars, &e.RealizedPnLPercent,
		); err != nil {
			return nil, fmt.Errorf("store.ExportTradeHistory: scan: %w", err)
		}
		e.Contract.Expiry = expiry
		e.Contract.Right = models.OptionRight(right)
		e.EntryTime = entryTime
		e.ExitTime = exitTime
		e.ExitReason = models.ExitReason(exitReason)
		out = append(out, e)
	}
	return out, rows.Err()
}
