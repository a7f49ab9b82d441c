package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/optionflow/coretrader/internal/broker"
	"github.com/optionflow/coretrader/internal/models"
	"github.com/optionflow/coretrader/internal/util"
)

// PlaceBracket executes the full entry sequence (spec §4.6 "placing a
// bracket"): the durable pending_fill row is written and its estimated
// cost committed against the strategy's budget before the broker is
// ever contacted, so a crash between these steps never loses the
// store's record of intent (spec §9). The committed estimate is
// corrected to the actual fill cost during reconciliation.
func (e *Engine) PlaceBracket(ctx context.Context, strategyName string, contract models.OptionContract, direction models.Direction, quantity int, entryPrice float64) error {
	if quantity < 1 {
		return errors.New("engine: PlaceBracket: quantity must be >= 1")
	}
	if e.HasClash(strategyName, contract.Symbol) {
		return fmt.Errorf("engine: PlaceBracket: %s already holds a position in %s", strategyName, contract.Symbol)
	}

	entry := util.RoundToTick(entryPrice, util.OptionTick)
	stop := util.FloorToTick(entry*(1-e.cfg.Risk.StopLossPct), util.OptionTick)
	target := util.CeilToTick(entry*(1+e.cfg.Risk.ProfitTargetPct), util.OptionTick)

	orderRef, err := e.store.NewOrderRef(ctx)
	if err != nil {
		return fmt.Errorf("engine: PlaceBracket: %w", err)
	}

	pending := models.PendingOrder{
		OrderRef:     orderRef,
		Contract:     contract,
		Quantity:     quantity,
		Direction:    direction,
		EntryPrice:   entry,
		StopLoss:     stop,
		ProfitTarget: target,
		StrategyName: strategyName,
		OrderTime:    time.Now(),
	}
	storeID, err := e.store.InsertPosition(ctx, &pending)
	if err != nil {
		return fmt.Errorf("engine: PlaceBracket: %w", err)
	}
	pending.StoreID = storeID

	estimate := entry * float64(quantity) * 100
	if err := e.store.CommitBudget(ctx, strategyName, estimate); err != nil {
		e.log.WithError(err).Warn("engine: commit estimated budget failed")
	}

	req := broker.BracketRequest{
		Contract:    contract,
		Quantity:    quantity,
		EntryPrice:  entry,
		StopPrice:   stop,
		TargetPrice: target,
		TIF:         "GTC",
		OrderRef:    orderRef,
	}

	var handles broker.BracketHandles
	if e.retry != nil {
		handles, err = e.retry.PlaceBracketWithRetry(ctx, req)
	} else {
		handles, err = e.brk.PlaceBracket(ctx, req)
	}
	if err != nil || !handles.OK {
		// No money was ever actually at risk: release with exitPrice ==
		// entry so drawdown is unaffected (spec §7 BrokerRejection).
		if _, closeErr := e.store.ClosePosition(ctx, storeID, entry, models.ExitOrderFailed, "", time.Now()); closeErr != nil {
			e.log.WithError(closeErr).Error("engine: close durable row after failed placement")
		}
		if err == nil {
			err = errors.New("broker rejected bracket placement")
		}
		return fmt.Errorf("engine: PlaceBracket: %w", err)
	}

	pending.EntryOrderID = string(handles.Entry)
	pending.StopOrderID = string(handles.Stop)
	pending.TargetOrderID = string(handles.Target)

	e.mu.Lock()
	e.pending = append(e.pending, pending)
	e.mu.Unlock()
	return nil
}
