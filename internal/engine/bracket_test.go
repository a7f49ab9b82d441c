package engine

import (
	"context"
	"testing"
	"time"

	"github.com/optionflow/coretrader/internal/broker"
	"github.com/optionflow/coretrader/internal/models"
	"github.com/optionflow/coretrader/internal/store"
)

func newTestEngine(t *testing.T, cfg Config) (*Engine, *store.Store, *broker.Paper) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	p := broker.NewPaper()
	return New(cfg, st, p, nil, nil), st, p
}

func testContract(symbol string) models.OptionContract {
	return models.OptionContract{
		Symbol: symbol, LocalSymbol: symbol + "240119C00450000",
		ConID: 1, Strike: 450, Expiry: time.Now().AddDate(0, 0, 30), Right: models.RightCall,
	}
}

func TestPlaceBracketWritesDurableRowBeforeBrokerPlacement(t *testing.T) {
	e, st, _ := newTestEngine(t, DefaultConfig)
	ctx := context.Background()

	if err := st.UpsertBudget(ctx, models.StrategyBudget{StrategyName: "swing-1", Budget: 10000}); err != nil {
		t.Fatalf("seed budget: %v", err)
	}

	if err := e.PlaceBracket(ctx, "swing-1", testContract("SPY"), models.DirectionLongCall, 2, 2.00); err != nil {
		t.Fatalf("PlaceBracket: %v", err)
	}

	pending := e.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending order, got %d", len(pending))
	}
	if pending[0].EntryOrderID == "" {
		t.Fatal("expected broker entry order id to be recorded")
	}

	budget, ok, err := st.Budget(ctx, "swing-1")
	if err != nil || !ok {
		t.Fatalf("load budget: ok=%v err=%v", ok, err)
	}
	if budget.Committed != 2.00*2*100 {
		t.Fatalf("expected committed = estimate (400), got %v", budget.Committed)
	}
}

func TestPlaceBracketRejectsClashingStrategySymbol(t *testing.T) {
	e, st, _ := newTestEngine(t, DefaultConfig)
	ctx := context.Background()
	st.UpsertBudget(ctx, models.StrategyBudget{StrategyName: "swing-1", Budget: 10000})

	if err := e.PlaceBracket(ctx, "swing-1", testContract("SPY"), models.DirectionLongCall, 1, 2.00); err != nil {
		t.Fatalf("first PlaceBracket: %v", err)
	}
	if err := e.PlaceBracket(ctx, "swing-1", testContract("SPY"), models.DirectionLongCall, 1, 2.00); err == nil {
		t.Fatal("expected second PlaceBracket for the same (strategy, symbol) to be rejected")
	}
}

func TestPlaceBracketReleasesBudgetWithoutDrawdownOnRejection(t *testing.T) {
	e, st, p := newTestEngine(t, DefaultConfig)
	ctx := context.Background()
	st.UpsertBudget(ctx, models.StrategyBudget{StrategyName: "swing-1", Budget: 10000})
	p.SetReject("SPY", true)

	if err := e.PlaceBracket(ctx, "swing-1", testContract("SPY"), models.DirectionLongCall, 1, 2.00); err == nil {
		t.Fatal("expected broker rejection to surface as an error")
	}

	if len(e.Pending()) != 0 {
		t.Fatal("expected the pending order to be removed from memory after rejection")
	}

	budget, _, err := st.Budget(ctx, "swing-1")
	if err != nil {
		t.Fatalf("load budget: %v", err)
	}
	if budget.Drawdown != 0 {
		t.Fatalf("expected no drawdown impact from a never-risked rejection, got %v", budget.Drawdown)
	}
	if budget.Committed != 0 {
		t.Fatalf("expected committed released back to 0, got %v", budget.Committed)
	}
}
