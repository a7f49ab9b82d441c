package broker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/optionflow/coretrader/internal/models"
)

// ErrCircuitOpen is returned by every method on CircuitBreaker while the
// breaker is open, distinct from whatever error the wrapped adapter
// itself raises, so callers can match it with errors.Is.
var ErrCircuitOpen = errors.New("broker: circuit breaker open")

// CircuitBreaker wraps a Broker so that repeated adapter failures (the
// spec's ConnectionLoss error kind, §7) trip the circuit instead of
// letting every caller keep hammering a dead connection. Connected()
// reports false while the breaker is open, which is exactly the signal
// the engine's manual-close detection gates on (spec §4.6): a tripped
// breaker looks identical to "not connected" from the caller's side.
type CircuitBreaker struct {
	underlying Broker
	cb         *gobreaker.CircuitBreaker
}

// NewCircuitBreaker wraps underlying in a circuit breaker named for
// logging/metrics purposes. It trips after 5 consecutive failures and
// allows a single trial call after 30s in the open state.
func NewCircuitBreaker(name string, underlying Broker) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0, // never reset counts while closed
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &CircuitBreaker{
		underlying: underlying,
		cb:         gobreaker.NewCircuitBreaker(settings),
	}
}

func wrap[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	result, err := cb.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, ErrCircuitOpen
		}
		return zero, err
	}
	return result.(T), nil
}

func (cb *CircuitBreaker) Quote(ctx context.Context, symbol string) (Quote, error) {
	return wrap(cb, func() (Quote, error) { return cb.underlying.Quote(ctx, symbol) })
}

func (cb *CircuitBreaker) DepthSnapshot(ctx context.Context, symbol string, levels int) (Depth, error) {
	return wrap(cb, func() (Depth, error) { return cb.underlying.DepthSnapshot(ctx, symbol, levels) })
}

func (cb *CircuitBreaker) HistoricalBars(ctx context.Context, req BarRequest) ([]Bar, error) {
	return wrap(cb, func() ([]Bar, error) { return cb.underlying.HistoricalBars(ctx, req) })
}

func (cb *CircuitBreaker) OptionChain(ctx context.Context, symbol string, minDTE, maxDTE int) (ChainHandle, error) {
	return wrap(cb, func() (ChainHandle, error) { return cb.underlying.OptionChain(ctx, symbol, minDTE, maxDTE) })
}

func (cb *CircuitBreaker) QualifyOption(ctx context.Context, symbol, expiry string, strike float64, right string, quiet bool) (models.OptionContract, bool, error) {
	type result struct {
		contract models.OptionContract
		ok       bool
	}
	r, err := wrap(cb, func() (result, error) {
		contract, ok, err := cb.underlying.QualifyOption(ctx, symbol, expiry, strike, right, quiet)
		return result{contract, ok}, err
	})
	return r.contract, r.ok, err
}

func (cb *CircuitBreaker) PlaceBracket(ctx context.Context, req BracketRequest) (BracketHandles, error) {
	return wrap(cb, func() (BracketHandles, error) { return cb.underlying.PlaceBracket(ctx, req) })
}

func (cb *CircuitBreaker) OrderStatus(ctx context.Context, h OrderHandle) (OrderStatusReport, error) {
	return wrap(cb, func() (OrderStatusReport, error) { return cb.underlying.OrderStatus(ctx, h) })
}

func (cb *CircuitBreaker) Cancel(ctx context.Context, h OrderHandle) error {
	_, err := wrap(cb, func() (struct{}, error) { return struct{}{}, cb.underlying.Cancel(ctx, h) })
	return err
}

func (cb *CircuitBreaker) Portfolio(ctx context.Context) ([]PortfolioLine, error) {
	return wrap(cb, func() ([]PortfolioLine, error) { return cb.underlying.Portfolio(ctx) })
}

func (cb *CircuitBreaker) AccountValue(ctx context.Context, tag string) (float64, error) {
	return wrap(cb, func() (float64, error) { return cb.underlying.AccountValue(ctx, tag) })
}

// Connected reports the underlying adapter's connection state, but never
// true while the breaker itself is open — a tripped breaker behaves like
// a connectivity loss regardless of what the adapter reports.
func (cb *CircuitBreaker) Connected() bool {
	if cb.cb.State() == gobreaker.StateOpen {
		return false
	}
	return cb.underlying.Connected()
}
