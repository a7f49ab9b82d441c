package strategy

import (
	"testing"
	"time"

	"github.com/optionflow/coretrader/internal/models"
)

func nyTime(t *testing.T, hh, mm int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}
	return time.Date(2026, 7, 29, hh, mm, 0, 0, loc)
}

func TestORBBuildsOpeningRangeThenBreaksOutUp(t *testing.T) {
	o := NewORB("orb-1", ORBConfig{})

	// Opening window ticks build the range.
	for i, price := range []float64{100, 101, 99.5} {
		_, err := o.Analyze(Snapshot{Symbol: "SPY", Price: price, Now: nyTime(t, 9, 30+i), VIX: 20})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Past the opening window, VIX falling (bullish confirmation), price
	// breaks above the range high of 101.
	base := nyTime(t, 9, 46)
	if _, err := o.Analyze(Snapshot{Symbol: "SPY", Price: 101, Now: base, VIX: 20}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sig, err := o.Analyze(Snapshot{Symbol: "SPY", Price: 101.5, Now: base.Add(3 * time.Minute), VIX: 15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil {
		t.Fatalf("expected a breakout signal")
	}
	if sig.Direction != models.DirectionLongCall || sig.Pattern != models.PatternOpeningRangeBreakoutUp {
		t.Fatalf("unexpected signal: %+v", sig)
	}
}

func TestORBOnlyOneSignalPerDay(t *testing.T) {
	o := NewORB("orb-2", ORBConfig{})
	for i, price := range []float64{100, 101, 99.5} {
		if _, err := o.Analyze(Snapshot{Symbol: "SPY", Price: price, Now: nyTime(t, 9, 30+i), VIX: 20}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	base := nyTime(t, 9, 46)
	if _, err := o.Analyze(Snapshot{Symbol: "SPY", Price: 101, Now: base, VIX: 20}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sig, err := o.Analyze(Snapshot{Symbol: "SPY", Price: 101.5, Now: base.Add(3 * time.Minute), VIX: 15})
	if err != nil || sig == nil {
		t.Fatalf("expected first breakout signal, err=%v sig=%+v", err, sig)
	}

	sig2, err := o.Analyze(Snapshot{Symbol: "SPY", Price: 102, Now: base.Add(5 * time.Minute), VIX: 14})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig2 != nil {
		t.Fatalf("expected no second signal on the same day, got %+v", sig2)
	}
}

func TestORBMissedWindowDisablesForDay(t *testing.T) {
	o := NewORB("orb-3", ORBConfig{})
	// First observed tick is already past the opening window; no range
	// was ever built, so the strategy must self-disable for the day.
	sig, err := o.Analyze(Snapshot{Symbol: "SPY", Price: 105, Now: nyTime(t, 10, 0), VIX: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != nil {
		t.Fatalf("expected no signal when the opening range was missed, got %+v", sig)
	}
	sig2, err := o.Analyze(Snapshot{Symbol: "SPY", Price: 110, Now: nyTime(t, 10, 5), VIX: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig2 != nil {
		t.Fatalf("expected strategy to remain disabled for the day, got %+v", sig2)
	}
}
