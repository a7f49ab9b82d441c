// Package broker defines the external brokerage contract (spec §4.1). The
// core treats the broker purely as an adapter: quotes, depth, historical
// bars, option chain lookups, bracket order placement, and portfolio
// queries. Compatibility is behavioral, not wire-format — a reference
// adapter might speak a vendor socket protocol; this package ships a
// deterministic paper adapter for development and testing and wraps any
// Broker in a circuit breaker so the engine can treat connectivity loss
// as a first-class signal (spec §7 ConnectionLoss).
package broker

import (
	"context"
	"time"

	"github.com/optionflow/coretrader/internal/models"
)

// OrderStatus is the broker's reported lifecycle state for a single order
// leg (spec §4.1 order_status).
type OrderStatus string

// The order statuses the adapter contract must be able to report.
const (
	StatusPendingSubmit OrderStatus = "PendingSubmit"
	StatusPreSubmitted  OrderStatus = "PreSubmitted"
	StatusSubmitted     OrderStatus = "Submitted"
	StatusFilled        OrderStatus = "Filled"
	StatusCancelled     OrderStatus = "Cancelled"
	StatusInactive      OrderStatus = "Inactive"
	StatusAPICancelled  OrderStatus = "ApiCancelled"
	StatusRejected      OrderStatus = "Rejected"
)

// Terminal reports whether the status will never change again without a
// new order being placed.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusCancelled, StatusInactive, StatusAPICancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// Quote is a snapshot best-bid/ask/last/close for a symbol.
type Quote struct {
	Bid, Ask, Last, Close float64
	HasPrice              bool // false on a soft "feed unsubscribed or stale" failure
}

// Mid returns the midpoint of bid/ask, falling back to Last.
func (q Quote) Mid() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.Last
}

// DepthLevel is one level of an order book side.
type DepthLevel struct {
	Price float64
	Size  float64
}

// Depth is a two-sided Level-2 snapshot, best price at index 0.
type Depth struct {
	Bids []DepthLevel
	Asks []DepthLevel
}

// Bar is one OHLCV historical bar.
type Bar struct {
	Timestamp time.Time
	Open, High, Low, Close float64
	Volume                 float64
}

// SecurityType distinguishes the instrument historical_bars is fetched for.
type SecurityType string

// Security types historical_bars supports.
const (
	SecurityStock  SecurityType = "STK"
	SecurityOption SecurityType = "OPT"
	SecurityIndex  SecurityType = "IND"
)

// BarRequest bundles the historical_bars parameters (spec §4.1).
type BarRequest struct {
	Symbol       string
	BarSize      string // e.g. "1 day"
	Duration     string // e.g. "1 Y"
	SecurityType SecurityType
	WhatToShow   string // e.g. "TRADES", "MIDPOINT"
	RTH          bool   // regular trading hours only
}

// ChainHandle identifies a resolved option chain for repeated qualify
// calls against the same underlying/date window.
type ChainHandle struct {
	Symbol       string
	Expirations  []string
	Strikes      []float64
}

// OrderHandle is an opaque broker-assigned order identifier.
type OrderHandle string

// BracketHandles are the three order handles returned by place_bracket.
type BracketHandles struct {
	Entry  OrderHandle
	Stop   OrderHandle
	Target OrderHandle
	OK     bool // false on immediate rejection
}

// OrderStatusReport is the result of an order_status query.
type OrderStatusReport struct {
	Status        OrderStatus
	Filled        int
	Remaining     int
	AvgFillPrice  float64
}

// PortfolioLine is one broker-reported holding (spec §4.1 portfolio).
type PortfolioLine struct {
	ConID          int64
	SignedQuantity int
	AvgCost        float64
}

// Broker is the pure adapter contract the trading core depends on. Every
// method may block; callers (the engine, coordinator) must not hold
// locks across a call to it (spec §5).
type Broker interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
	DepthSnapshot(ctx context.Context, symbol string, levels int) (Depth, error)
	HistoricalBars(ctx context.Context, req BarRequest) ([]Bar, error)
	OptionChain(ctx context.Context, symbol string, minDTE, maxDTE int) (ChainHandle, error)
	QualifyOption(ctx context.Context, symbol, expiry string, strike float64, right string, quiet bool) (models.OptionContract, bool, error)
	PlaceBracket(ctx context.Context, req BracketRequest) (BracketHandles, error)
	OrderStatus(ctx context.Context, h OrderHandle) (OrderStatusReport, error)
	Cancel(ctx context.Context, h OrderHandle) error
	Portfolio(ctx context.Context) ([]PortfolioLine, error)
	AccountValue(ctx context.Context, tag string) (float64, error)
	Connected() bool
}

// BracketRequest bundles place_bracket's inputs.
type BracketRequest struct {
	Contract     models.OptionContract
	Quantity     int
	EntryPrice   float64
	StopPrice    float64
	TargetPrice  float64
	TIF          string // e.g. "GTC"
	OrderRef     string
}
