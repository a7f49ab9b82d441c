package engine

import (
	"context"
	"math"
	"time"

	"github.com/optionflow/coretrader/internal/broker"
	"github.com/optionflow/coretrader/internal/models"
)

// ReconcilePending resolves every outstanding PendingOrder against the
// broker's reported order status (spec §4.6 "pending-order
// reconciliation"). It runs once per scan, before exit checks.
func (e *Engine) ReconcilePending(ctx context.Context) {
	e.mu.Lock()
	pending := append([]models.PendingOrder(nil), e.pending...)
	e.mu.Unlock()

	var stillPending []models.PendingOrder
	var promoted []models.Position

	for _, p := range pending {
		report, err := e.brk.OrderStatus(ctx, broker.OrderHandle(p.EntryOrderID))
		if err != nil {
			e.log.WithError(err).WithField("order_ref", p.OrderRef).Warn("engine: order_status query failed, retrying next scan")
			stillPending = append(stillPending, p)
			continue
		}

		switch {
		case report.Status == broker.StatusFilled:
			promoted = append(promoted, e.promote(ctx, p, report))

		case report.Status.Terminal() && report.Filled > 0:
			// Partial fill observed before the order reached a terminal
			// state: the filled portion is a real position (spec §7
			// PartialFill "treat as success for the filled portion").
			promoted = append(promoted, e.promote(ctx, p, report))

		case report.Status.Terminal():
			if _, err := e.store.ClosePosition(ctx, p.StoreID, p.EntryPrice, models.ExitOrderCancelled, p.EntryOrderID, time.Now()); err != nil {
				e.log.WithError(err).Error("engine: close cancelled pending order")
			}

		case p.Age(time.Now()) > time.Duration(e.cfg.OrderManagement.OrderTimeoutSeconds)*time.Second:
			e.reconcileTimedOut(ctx, p, report, &stillPending, &promoted)

		default:
			stillPending = append(stillPending, p)
		}
	}

	e.mu.Lock()
	e.pending = stillPending
	e.positions = append(e.positions, promoted...)
	e.mu.Unlock()
}

func (e *Engine) reconcileTimedOut(ctx context.Context, p models.PendingOrder, report broker.OrderStatusReport, stillPending *[]models.PendingOrder, promoted *[]models.Position) {
	if report.Filled > 0 {
		e.cancelHandle(ctx, p.EntryOrderID)
		*promoted = append(*promoted, e.promote(ctx, p, report))
		return
	}

	quote, err := e.brk.Quote(ctx, p.Contract.LocalSymbol)
	switch {
	case err != nil:
		e.cancelAll(ctx, p)
		if _, closeErr := e.store.ClosePosition(ctx, p.StoreID, p.EntryPrice, models.ExitOrderTimeoutNoPrice, p.EntryOrderID, time.Now()); closeErr != nil {
			e.log.WithError(closeErr).Error("engine: close timed-out pending order (no price)")
		}

	case math.Abs(quote.Mid()-p.EntryPrice)/p.EntryPrice > e.cfg.OrderManagement.PriceDriftThreshold:
		e.cancelAll(ctx, p)
		if _, closeErr := e.store.ClosePosition(ctx, p.StoreID, p.EntryPrice, models.ExitOrderTimeoutDrift, p.EntryOrderID, time.Now()); closeErr != nil {
			e.log.WithError(closeErr).Error("engine: close timed-out pending order (drift)")
		}

	default:
		// Still within drift tolerance: leave it outstanding for the
		// next scan rather than cancel a live order prematurely.
		*stillPending = append(*stillPending, p)
	}
}

// promote converts a (partially or fully) filled PendingOrder into a
// Position, correcting the committed budget estimate from the intended
// limit price to the actual fill cost (spec §4.6 "commit budget for the
// actual fill cost").
func (e *Engine) promote(ctx context.Context, p models.PendingOrder, report broker.OrderStatusReport) models.Position {
	fillPrice := report.AvgFillPrice
	if fillPrice <= 0 {
		fillPrice = p.EntryPrice
	}
	filledQty := report.Filled
	if filledQty <= 0 {
		filledQty = p.Quantity
	}

	actual := fillPrice * float64(filledQty) * 100
	estimate := p.EntryPrice * float64(p.Quantity) * 100
	if delta := actual - estimate; delta != 0 {
		if err := e.store.CommitBudget(ctx, p.StrategyName, delta); err != nil {
			e.log.WithError(err).Warn("engine: correct committed budget to actual fill cost")
		}
	}

	now := time.Now()
	if err := e.store.PromoteToOpen(ctx, p.StoreID, fillPrice, filledQty, now, p.StopOrderID, p.TargetOrderID); err != nil {
		e.log.WithError(err).Error("engine: promote pending order to open")
	}

	return models.Position{
		StoreID:       p.StoreID,
		OrderRef:      p.OrderRef,
		Contract:      p.Contract,
		Quantity:      filledQty,
		Direction:     p.Direction,
		EntryPrice:    fillPrice,
		EntryTime:     now,
		PeakPrice:     fillPrice,
		StopLoss:      p.StopLoss,
		ProfitTarget:  p.ProfitTarget,
		StopOrderID:   p.StopOrderID,
		TargetOrderID: p.TargetOrderID,
		StrategyName:  p.StrategyName,
	}
}

func (e *Engine) cancelHandle(ctx context.Context, id string) {
	if id == "" {
		return
	}
	h := broker.OrderHandle(id)
	var err error
	if e.retry != nil {
		err = e.retry.CancelWithRetry(ctx, h)
	} else {
		err = e.brk.Cancel(ctx, h)
	}
	if err != nil {
		e.log.WithError(err).WithField("handle", id).Warn("engine: cancel order failed")
	}
}

// cancelAll cancels the entry and both bracket children (spec §4.6
// "cancel both the entry and both bracket children").
func (e *Engine) cancelAll(ctx context.Context, p models.PendingOrder) {
	e.cancelHandle(ctx, p.EntryOrderID)
	e.cancelHandle(ctx, p.StopOrderID)
	e.cancelHandle(ctx, p.TargetOrderID)
}
