package models

import "testing"

func TestPositionUpdatePeakLongCall(t *testing.T) {
	p := &Position{Direction: DirectionLongCall, PeakPrice: 2.00}

	if p.UpdatePeak(1.80) {
		t.Fatalf("peak should not move backward for a long call")
	}
	if !p.UpdatePeak(2.50) {
		t.Fatalf("peak should move forward for a long call")
	}
	if p.PeakPrice != 2.50 {
		t.Fatalf("expected peak 2.50, got %v", p.PeakPrice)
	}
}

func TestPositionUpdatePeakLongPut(t *testing.T) {
	p := &Position{Direction: DirectionLongPut, PeakPrice: 2.00}

	if p.UpdatePeak(2.20) {
		t.Fatalf("peak should not move backward (up) for a long put")
	}
	if !p.UpdatePeak(1.50) {
		t.Fatalf("peak should move down for a long put")
	}
	if p.PeakPrice != 1.50 {
		t.Fatalf("expected peak 1.50, got %v", p.PeakPrice)
	}
	if p.UpdatePeak(0) {
		t.Fatalf("non-positive price must never update the peak")
	}
}

func TestStrategyBudgetAvailable(t *testing.T) {
	cases := []struct {
		name                       string
		budget, drawdown, committed float64
		want                       float64
	}{
		{"plenty of room", 5000, 0, 2000, 3000},
		{"fully committed", 5000, 1000, 4000, 0},
		{"overcommitted clamps to zero", 5000, 4000, 2000, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := &StrategyBudget{Budget: c.budget, Drawdown: c.drawdown, Committed: c.committed}
			if got := b.Available(); got != c.want {
				t.Fatalf("Available() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestStateMachineTransitions(t *testing.T) {
	sm := NewStateMachine()
	if sm.Current() != StatusPendingFill {
		t.Fatalf("expected initial state pending_fill, got %s", sm.Current())
	}
	if err := sm.Transition(StatusOpen, ConditionOrderFilled); err != nil {
		t.Fatalf("expected valid transition, got error: %v", err)
	}
	if err := sm.Transition(StatusPendingFill, ConditionOrderFilled); err == nil {
		t.Fatalf("expected invalid backward transition to be rejected")
	}
	if err := sm.Transition(StatusClosed, ConditionExitTriggered); err != nil {
		t.Fatalf("expected open->closed to be valid: %v", err)
	}
}

func TestAdministrativeExitReasonsExcludedFromPerformance(t *testing.T) {
	if !AdministrativeExitReasons[ExitManualClose] {
		t.Fatalf("manual_close must be administrative")
	}
	if !AdministrativeExitReasons[ExitReconciliationNotFound] {
		t.Fatalf("reconciliation_not_found must be administrative")
	}
	if AdministrativeExitReasons[ExitProfitTarget] {
		t.Fatalf("profit_target must not be administrative")
	}
}
