// Package retry wraps broker.Broker operations with exponential backoff
// and jitter so transient adapter failures (timeouts, connection resets)
// don't immediately surface as trade-breaking errors.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/optionflow/coretrader/internal/broker"
)

// Config contains retry configuration parameters.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// DefaultConfig provides sensible defaults for retry operations.
var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	Timeout:        2 * time.Minute,
}

// Client wraps a broker with retry logic for individual operations. It
// does not implement broker.Broker itself: callers reach for it around
// the handful of calls worth retrying (bracket placement, cancel), while
// read-path calls (quotes, depth) are left to the circuit breaker to
// short-circuit instead of retry.
type Client struct {
	broker broker.Broker
	log    *logrus.Entry
	config Config
}

// NewClient creates a new retry client with the given broker and optional config.
func NewClient(b broker.Broker, log *logrus.Entry, config ...Config) *Client {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultConfig.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig.MaxBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	return &Client{broker: b, log: log, config: cfg}
}

// PlaceBracketWithRetry attempts bracket placement with retry logic and
// exponential backoff. A client-stable OrderRef is required on req so
// that a retried attempt after a timed-out-but-actually-accepted call is
// deduplicated by the adapter rather than double-placed.
func (c *Client) PlaceBracketWithRetry(ctx context.Context, req broker.BracketRequest) (broker.BracketHandles, error) {
	if req.OrderRef == "" {
		return broker.BracketHandles{}, errors.New("retry: BracketRequest.OrderRef must be set for dedup")
	}

	opCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		select {
		case <-opCtx.Done():
			return broker.BracketHandles{}, fmt.Errorf("bracket placement timed out after %v: %w", c.config.Timeout, opCtx.Err())
		default:
		}

		c.log.WithFields(logrus.Fields{
			"order_ref": req.OrderRef,
			"attempt":   attempt + 1,
			"of":        c.config.MaxRetries + 1,
		}).Debug("placing bracket")

		handles, err := c.broker.PlaceBracket(opCtx, req)
		if err == nil {
			return handles, nil
		}

		lastErr = err
		c.log.WithError(err).WithField("order_ref", req.OrderRef).Warn("bracket placement attempt failed")

		if !isTransientError(err) || attempt >= c.config.MaxRetries {
			break
		}

		c.log.WithField("backoff", backoff).Debug("retrying after transient error")
		select {
		case <-time.After(backoff):
			backoff = c.nextBackoff(backoff)
		case <-opCtx.Done():
			return broker.BracketHandles{}, fmt.Errorf("bracket placement timed out during backoff: %w", opCtx.Err())
		}
	}

	return broker.BracketHandles{}, fmt.Errorf("bracket placement failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// CancelWithRetry cancels an order handle, retrying transient failures.
// A cancel against an already-terminal order is treated as success by
// the adapter contract, so this never needs to distinguish "already
// cancelled" from "cancelled now."
func (c *Client) CancelWithRetry(ctx context.Context, h broker.OrderHandle) error {
	opCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.broker.Cancel(opCtx, h); err == nil {
			return nil
		} else {
			lastErr = err
			c.log.WithError(err).WithField("handle", h).Warn("cancel attempt failed")
		}

		if !isTransientError(lastErr) || attempt >= c.config.MaxRetries {
			break
		}

		select {
		case <-time.After(backoff):
			backoff = c.nextBackoff(backoff)
		case <-opCtx.Done():
			return fmt.Errorf("cancel timed out during backoff: %w", opCtx.Err())
		}
	}

	return fmt.Errorf("cancel failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * 1.5)
	if next > c.config.MaxBackoff {
		next = c.config.MaxBackoff
	}

	maxJitter := int64(next / 4)
	if maxJitter > 0 {
		if jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter)); err == nil {
			next += time.Duration(jitterVal.Int64())
		} else {
			c.log.WithError(err).Debug("failed to generate jitter")
		}
	}

	return next
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"i/o timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"temporarily unavailable",
		"server error",
		"rate limit",
		"429",
		"502",
		"503",
		"504",
		"network",
		"dns",
		"tcp",
		"no such host",
		"deadline exceeded",
		"broken pipe",
		"eof",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
