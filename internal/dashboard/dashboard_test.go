package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/optionflow/coretrader/internal/broker"
	"github.com/optionflow/coretrader/internal/engine"
	"github.com/optionflow/coretrader/internal/marketctx"
	"github.com/optionflow/coretrader/internal/models"
	"github.com/optionflow/coretrader/internal/registry"
	"github.com/optionflow/coretrader/internal/store"
	"github.com/optionflow/coretrader/internal/strategy"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	p := broker.NewPaper()
	eng := engine.New(engine.DefaultConfig, st, p, nil, nil)
	reg := registry.New(nil)
	regime := marketctx.NewRegimeDetector(marketctx.DefaultRegimeConfig, nil)

	return NewServer(cfg, eng, reg, st, regime, nil), st
}

func TestHealthEndpointNeedsNoAuth(t *testing.T) {
	s, _ := newTestServer(t, Config{AuthToken: "secret"})

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestAPIEndpointsRejectMissingToken(t *testing.T) {
	s, _ := newTestServer(t, Config{AuthToken: "secret"})

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rr.Code)
	}
}

func TestAPIEndpointsAcceptHeaderToken(t *testing.T) {
	s, _ := newTestServer(t, Config{AuthToken: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-Auth-Token", "secret")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid token, got %d", rr.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := body["regime"]; !ok {
		t.Fatal("expected a regime field in /api/status")
	}
}

func TestAPIEndpointsOpenWhenAuthDisabled(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/positions", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with auth disabled, got %d", rr.Code)
	}
}

type noopStrategy struct{ name string }

func (n *noopStrategy) Name() string                                      { return n.name }
func (n *noopStrategy) Type() string                                      { return "noop" }
func (n *noopStrategy) Version() string                                   { return "1.0.0" }
func (n *noopStrategy) Description() string                               { return "" }
func (n *noopStrategy) DefaultConfig() map[string]interface{}             { return map[string]interface{}{} }
func (n *noopStrategy) ValidateConfig(map[string]interface{}) error       { return nil }
func (n *noopStrategy) OnPositionOpened(*models.Position)                 {}
func (n *noopStrategy) OnPositionClosed(*models.TradeHistoryEntry)        {}
func (n *noopStrategy) Analyze(strategy.Snapshot) (*models.Signal, error) { return nil, nil }

func TestBudgetsEndpointReflectsStore(t *testing.T) {
	s, st := newTestServer(t, Config{})
	ctx := t.Context()

	s.reg.RegisterType("noop", func(instanceName string, _ map[string]interface{}) (strategy.Strategy, error) {
		return &noopStrategy{name: instanceName}, nil
	})
	if err := s.reg.Load("swing-1", registry.InstanceConfig{Type: "noop", Enabled: true}); err != nil {
		t.Fatalf("load instance: %v", err)
	}
	if err := st.UpsertBudget(ctx, models.StrategyBudget{StrategyName: "swing-1", Budget: 10000, Committed: 1500}); err != nil {
		t.Fatalf("seed budget: %v", err)
	}

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/budgets", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var views []budgetView
	if err := json.Unmarshal(rr.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(views) != 1 || views[0].Available != 8500 {
		t.Fatalf("expected one budget with 8500 available, got %+v", views)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Body.String(); !strings.Contains(got, "coretrader_veto_total") {
		t.Fatalf("expected the veto gauge to be exposed, got body without it")
	}
}
