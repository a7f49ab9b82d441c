// Package dashboard exposes the running bot's state over HTTP: a small
// set of JSON status endpoints plus a Prometheus /metrics surface.
// Grounded on the teacher's internal/dashboard/server.go chi-based
// server — same middleware stack, same auth-token and request-logging
// idioms — but with the HTML templates and embedded web assets dropped
// in favor of a JSON API, since the peripheral reporting surface this
// package covers only needs machine-readable status, not a rendered
// frontend.
package dashboard

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/optionflow/coretrader/internal/engine"
	"github.com/optionflow/coretrader/internal/marketctx"
	"github.com/optionflow/coretrader/internal/registry"
	"github.com/optionflow/coretrader/internal/store"
)

// Config carries the `dashboard` config section (spec §6 peripheral
// surfaces).
type Config struct {
	Port      int
	AuthToken string // empty disables auth entirely
}

// Server serves the status/metrics surface. It never mutates engine or
// store state — every handler is a read.
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    Config

	eng    *engine.Engine
	reg    *registry.Registry
	store  *store.Store
	regime *marketctx.RegimeDetector

	log       *logrus.Entry
	startedAt time.Time
}

// NewServer wires the status surface to live engine/registry/store/
// regime state. None of these are copied; every request reads through
// to current state.
func NewServer(cfg Config, eng *engine.Engine, reg *registry.Registry, st *store.Store, regime *marketctx.RegimeDetector, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	// Register, not MustRegister: a second Server in the same process
	// (as in tests) would otherwise panic on the duplicate descriptor
	// set rather than simply reusing the already-registered collector.
	var alreadyErr prometheus.AlreadyRegisteredError
	if err := Registry.Register(newCollector(eng, reg, st, regime)); err != nil && !asAlreadyRegistered(err, &alreadyErr) {
		log.WithError(err).Warn("dashboard: failed to register metrics collector")
	}

	s := &Server{cfg: cfg, eng: eng, reg: reg, store: st, regime: regime, log: log, startedAt: time.Now()}
	s.router = chi.NewRouter()
	s.setupRoutes()
	return s
}

func asAlreadyRegistered(err error, target *prometheus.AlreadyRegisteredError) bool {
	return errors.As(err, target)
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLoggerMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(middleware.Compress(5))

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/status", s.handleStatus)
		r.Get("/positions", s.handlePositions)
		r.Get("/pending", s.handlePending)
		r.Get("/strategies", s.handleStrategies)
		r.Get("/budgets", s.handleBudgets)
		r.Get("/regime", s.handleRegime)
	})
}

func (s *Server) requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loggedURL := redactTokenFromURL(r.URL)
		logEntry := s.log.WithFields(logrus.Fields{
			"method":    r.Method,
			"url":       loggedURL.String(),
			"remote_ip": r.RemoteAddr,
		})

		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)

		logEntry.WithFields(logrus.Fields{
			"status":   wrapped.Status(),
			"bytes":    wrapped.BytesWritten(),
			"duration": time.Since(start),
		}).Info("dashboard request")
	})
}

func redactTokenFromURL(original *url.URL) *url.URL {
	redacted := &url.URL{Scheme: original.Scheme, Host: original.Host, Path: original.Path,
		RawQuery: original.RawQuery, Fragment: original.Fragment}
	if original.RawQuery != "" {
		values := original.Query()
		for _, k := range []string{"token", "auth_token"} {
			if values.Has(k) {
				values.Set(k, "[REDACTED]")
			}
		}
		redacted.RawQuery = values.Encode()
	}
	return redacted
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			if cookie, err := r.Cookie("auth_token"); err == nil {
				token = cookie.Value
			}
		}

		if !isValidToken(token, s.cfg.AuthToken) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isValidToken(token, want string) bool {
	if len(token) != len(want) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1
}

// Start blocks serving on cfg.Port until Shutdown is called or the
// listener errors.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Infof("dashboard listening on port %d", s.cfg.Port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server (spec §5 shutdown sequence
// — the dashboard is closed alongside subscriptions and the store).
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("dashboard: failed to encode response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startedAt).String(),
	})
}

// budgetView mirrors models.StrategyBudget with its derived Available
// field folded in, so API consumers don't need the domain method.
type budgetView struct {
	Strategy  string  `json:"strategy"`
	Budget    float64 `json:"budget"`
	Drawdown  float64 `json:"drawdown"`
	Committed float64 `json:"committed"`
	Available float64 `json:"available"`
}

func (s *Server) budgets(ctx context.Context) []budgetView {
	var out []budgetView
	for _, inst := range s.reg.Status() {
		b, ok, err := s.store.Budget(ctx, inst.Name)
		if err != nil || !ok {
			continue
		}
		out = append(out, budgetView{
			Strategy: b.StrategyName, Budget: b.Budget, Drawdown: b.Drawdown,
			Committed: b.Committed, Available: b.Available(),
		})
	}
	return out
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"positions":  s.eng.Positions(),
		"pending":    s.eng.Pending(),
		"strategies": s.reg.Status(),
		"budgets":    s.budgets(r.Context()),
		"regime":     s.regime.Current(),
		"veto_total": s.eng.VetoCount(),
		"uptime":     time.Since(s.startedAt).String(),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.eng.Positions())
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.eng.Pending())
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.reg.Status())
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.budgets(r.Context()))
}

func (s *Server) handleRegime(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"regime": string(s.regime.Current())})
}
