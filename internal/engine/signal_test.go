package engine

import (
	"testing"

	"github.com/optionflow/coretrader/internal/marketctx"
	"github.com/optionflow/coretrader/internal/models"
)

func TestEvaluateSignalNoTradeNeverProducesDirection(t *testing.T) {
	e := &Engine{}
	sig := &models.Signal{Symbol: "SPY", Direction: models.DirectionNoTrade}
	if _, ok := e.EvaluateSignal(sig, marketctx.RegimeUnknown); ok {
		t.Fatal("expected no_trade signal to never produce a trade direction")
	}
}

func TestEvaluateSignalVetoesBullishInBearTrend(t *testing.T) {
	e := &Engine{}
	sig := &models.Signal{Symbol: "SPY", Direction: models.DirectionLongCall, Confidence: 0.9}
	if _, ok := e.EvaluateSignal(sig, marketctx.RegimeBearTrend); ok {
		t.Fatal("expected bullish signal to be vetoed in a bear trend")
	}
}

func TestEvaluateSignalVetoesBearishInBullTrend(t *testing.T) {
	e := &Engine{}
	sig := &models.Signal{Symbol: "SPY", Direction: models.DirectionLongPut, Confidence: 0.9}
	if _, ok := e.EvaluateSignal(sig, marketctx.RegimeBullTrend); ok {
		t.Fatal("expected bearish signal to be vetoed in a bull trend")
	}
}

func TestEvaluateSignalVetoesIronCondorOutsideRangeBound(t *testing.T) {
	e := &Engine{}
	sig := &models.Signal{Symbol: "SPY", Direction: models.DirectionIronCondor, Confidence: 0.9}
	if _, ok := e.EvaluateSignal(sig, marketctx.RegimeBullTrend); ok {
		t.Fatal("expected iron_condor to be vetoed outside a range-bound regime")
	}
	if _, ok := e.EvaluateSignal(sig, marketctx.RegimeRangeBound); !ok {
		t.Fatal("expected iron_condor to pass in a range-bound regime")
	}
}

func TestEvaluateSignalVetoesNonScalpingInHighChaos(t *testing.T) {
	e := &Engine{}
	sig := &models.Signal{
		Symbol: "SPY", Direction: models.DirectionLongCall, Confidence: 0.9,
		Metadata: map[string]interface{}{models.MetaStrategyType: "swing"},
	}
	if _, ok := e.EvaluateSignal(sig, marketctx.RegimeHighChaos); ok {
		t.Fatal("expected non-scalping signal to be vetoed in high chaos")
	}

	sig.Metadata[models.MetaStrategyType] = "scalping"
	if _, ok := e.EvaluateSignal(sig, marketctx.RegimeHighChaos); !ok {
		t.Fatal("expected scalping to be exempt from the high-chaos veto")
	}
}

func TestEvaluateSignalRulesTableOverridesDirection(t *testing.T) {
	e := &Engine{cfg: Config{Rules: []Rule{
		{Pattern: models.PatternRejectionAtSupport, MinConfidence: 0.7, Direction: models.DirectionLongCall},
	}}}
	sig := &models.Signal{
		Symbol: "SPY", Direction: models.DirectionLongPut,
		Pattern: models.PatternRejectionAtSupport, Confidence: 0.8,
	}
	dir, ok := e.EvaluateSignal(sig, marketctx.RegimeUnknown)
	if !ok || dir != models.DirectionLongCall {
		t.Fatalf("expected rules table to override direction to long_call, got %q ok=%v", dir, ok)
	}
}

func TestEvaluateSignalRulesTableIgnoredBelowMinConfidence(t *testing.T) {
	e := &Engine{cfg: Config{Rules: []Rule{
		{Pattern: models.PatternRejectionAtSupport, MinConfidence: 0.9, Direction: models.DirectionLongCall},
	}}}
	sig := &models.Signal{
		Symbol: "SPY", Direction: models.DirectionLongPut,
		Pattern: models.PatternRejectionAtSupport, Confidence: 0.5,
	}
	dir, ok := e.EvaluateSignal(sig, marketctx.RegimeUnknown)
	if !ok || dir != models.DirectionLongPut {
		t.Fatalf("expected own signal direction when below rule's min confidence, got %q ok=%v", dir, ok)
	}
}

func TestSizeClampsToMaxPositionsAndBudget(t *testing.T) {
	e := &Engine{cfg: Config{Risk: RiskConfig{
		PositionSizePct: 1.0, MaxPositionSize: 1_000_000, MaxPositions: 3,
	}}}

	contracts, ok := e.Size(100_000, 1.0, 1.0, nil)
	if !ok || contracts != 3 {
		t.Fatalf("expected sizing to clamp to MaxPositions=3, got %d ok=%v", contracts, ok)
	}

	budget := &models.StrategyBudget{Budget: 150, Drawdown: 0, Committed: 0}
	contracts, ok = e.Size(100_000, 1.0, 1.0, budget)
	if !ok || contracts != 1 {
		t.Fatalf("expected budget headroom (150/100=1.5 -> 1 contract), got %d ok=%v", contracts, ok)
	}
}

func TestSizeRejectsWhenBudgetExhausted(t *testing.T) {
	e := &Engine{cfg: Config{Risk: RiskConfig{PositionSizePct: 1.0, MaxPositionSize: 1_000_000, MaxPositions: 10}}}
	budget := &models.StrategyBudget{Budget: 100, Drawdown: 0, Committed: 100}
	if _, ok := e.Size(100_000, 1.0, 1.0, budget); ok {
		t.Fatal("expected zero-headroom budget to reject the trade")
	}
}

func TestSizeRejectsNonPositivePrice(t *testing.T) {
	e := &Engine{cfg: DefaultConfig}
	if _, ok := e.Size(100_000, 0, 1.0, nil); ok {
		t.Fatal("expected non-positive price to reject sizing")
	}
}
