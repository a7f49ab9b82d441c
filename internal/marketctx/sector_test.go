package marketctx

import (
	"context"
	"testing"
	"time"

	"github.com/optionflow/coretrader/internal/broker"
)

func TestResolveSectorPrefersOverride(t *testing.T) {
	sr := NewSectorRotation(5, map[string]string{"AAPL": "XLC"}, nil)
	if got := sr.ResolveSector("AAPL", "Technology"); got != "XLC" {
		t.Fatalf("expected override XLC, got %s", got)
	}
}

func TestResolveSectorFallsBackToKeywordMap(t *testing.T) {
	sr := NewSectorRotation(5, nil, nil)
	if got := sr.ResolveSector("MSFT", "Technology Services"); got != "XLK" {
		t.Fatalf("expected XLK from keyword match, got %s", got)
	}
}

func TestResolveSectorUnknownWhenNoMatch(t *testing.T) {
	sr := NewSectorRotation(5, nil, nil)
	if got := sr.ResolveSector("ZZZ", "Widgets"); got != "UNKNOWN" {
		t.Fatalf("expected UNKNOWN, got %s", got)
	}
}

func TestAssessComputesRSSlope(t *testing.T) {
	p := broker.NewPaper()
	start := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)

	spyBars := make([]broker.Bar, 5)
	xlkBars := make([]broker.Bar, 5)
	for i := 0; i < 5; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		spyBars[i] = broker.Bar{Timestamp: ts, Close: 450}
		xlkBars[i] = broker.Bar{Timestamp: ts, Close: 200 + float64(i)} // rising vs flat SPY
	}
	p.SetBars("SPY", spyBars)
	p.SetBars("XLK", xlkBars)
	for _, s := range Sectors {
		if s != "XLK" {
			p.SetBars(s, nil) // leave other sectors unseeded; Assess should skip them
		}
	}

	sr := NewSectorRotation(5, nil, nil)
	sr.Assess(context.Background(), p, "1 hour", "5 D")

	slope := sr.RSSlope("ANY", "Technology")
	if slope <= 0 {
		t.Fatalf("expected positive RS slope for rising XLK vs flat SPY, got %v", slope)
	}
}
