package engine

import (
	"context"
	"time"

	"github.com/optionflow/coretrader/internal/models"
)

// CheckExits evaluates every open position against the strict exit
// priority order (spec §8 #7): profit_target beats stop_loss beats
// trailing_stop beats max_hold. Quote lookup failures for one symbol
// never block the rest of the scan.
func (e *Engine) CheckExits(ctx context.Context, quote func(localSymbol string) (float64, bool)) []models.TradeHistoryEntry {
	e.mu.Lock()
	positions := append([]models.Position(nil), e.positions...)
	e.mu.Unlock()

	var closed []models.TradeHistoryEntry
	var survivors []models.Position

	for _, pos := range positions {
		price, ok := quote(pos.Contract.LocalSymbol)
		if !ok {
			survivors = append(survivors, pos)
			continue
		}

		if entry, done := e.checkExitsOne(ctx, &pos, price); done {
			closed = append(closed, *entry)
			continue
		}
		survivors = append(survivors, pos)
	}

	e.mu.Lock()
	e.positions = survivors
	e.mu.Unlock()
	return closed
}

// checkExitsOne applies the priority-ordered checks to a single position,
// persisting any peak movement even when no exit fires.
func (e *Engine) checkExitsOne(ctx context.Context, pos *models.Position, current float64) (*models.TradeHistoryEntry, bool) {
	if pos.UpdatePeak(current) {
		if err := e.store.UpdatePeak(ctx, pos.StoreID, pos.PeakPrice); err != nil {
			e.log.WithError(err).Warn("engine: persist peak price")
		}
	}

	var reason models.ExitReason
	switch {
	case profitHit(pos, current):
		reason = models.ExitProfitTarget
	case stopHit(pos, current):
		reason = models.ExitStopLoss
	case e.cfg.Risk.TrailingStopEnabled && trailingStopHit(pos, current, e.cfg.Risk.TrailingStopActivationPct, e.cfg.Risk.TrailingStopDistancePct):
		reason = models.ExitTrailingStop
	case maxHoldHit(pos, e.cfg.Risk.MaxHoldDays):
		reason = models.ExitMaxHold
	default:
		return nil, false
	}

	entry, err := e.store.ClosePosition(ctx, pos.StoreID, current, reason, "", time.Now())
	if err != nil {
		e.log.WithError(err).WithField("reason", reason).Error("engine: close position on exit")
		return nil, false
	}
	return entry, true
}

// profitHit mirrors for DirectionLongPut, where favorable movement is a
// falling premium rather than a rising one (spec §4.6 "exit checks").
func profitHit(pos *models.Position, current float64) bool {
	if pos.Direction == models.DirectionLongPut {
		return current <= pos.ProfitTarget
	}
	return current >= pos.ProfitTarget
}

func stopHit(pos *models.Position, current float64) bool {
	if pos.Direction == models.DirectionLongPut {
		return current >= pos.StopLoss
	}
	return current <= pos.StopLoss
}

// trailingStopHit activates once the position has moved
// activationPct past entry in its favorable direction, then trails the
// peak by distancePct (mirrored for long_put).
func trailingStopHit(pos *models.Position, current, activationPct, distancePct float64) bool {
	if pos.EntryPrice <= 0 {
		return false
	}
	if pos.Direction == models.DirectionLongPut {
		moveFromEntry := (pos.EntryPrice - pos.PeakPrice) / pos.EntryPrice
		if moveFromEntry < activationPct {
			return false
		}
		trailStop := pos.PeakPrice * (1 + distancePct)
		return current >= trailStop
	}
	moveFromEntry := (pos.PeakPrice - pos.EntryPrice) / pos.EntryPrice
	if moveFromEntry < activationPct {
		return false
	}
	trailStop := pos.PeakPrice * (1 - distancePct)
	return current <= trailStop
}

func maxHoldHit(pos *models.Position, maxHoldDays int) bool {
	if maxHoldDays <= 0 {
		return false
	}
	return time.Since(pos.EntryTime) >= time.Duration(maxHoldDays)*24*time.Hour
}

// DetectManualCloses reconciles the in-memory open-position list against
// the broker's reported portfolio, closing any position the broker no
// longer shows a matching holding for (spec §4.6 "manual close
// detection", scenario S3). An empty portfolio report alongside tracked
// positions is treated as a data outage rather than evidence of closure
// and is skipped entirely (scenario S4).
func (e *Engine) DetectManualCloses(ctx context.Context, portfolio []int64) []models.TradeHistoryEntry {
	e.mu.Lock()
	positions := append([]models.Position(nil), e.positions...)
	e.mu.Unlock()

	if len(positions) > 0 && len(portfolio) == 0 {
		e.log.Warn("engine: empty portfolio with open positions tracked, skipping manual-close detection")
		return nil
	}

	held := make(map[int64]bool, len(portfolio))
	for _, conID := range portfolio {
		held[conID] = true
	}

	var closed []models.TradeHistoryEntry
	var survivors []models.Position
	for _, pos := range positions {
		if held[pos.Contract.ConID] {
			survivors = append(survivors, pos)
			continue
		}
		entry, err := e.store.ClosePosition(ctx, pos.StoreID, 0, models.ExitManualClose, "", time.Now())
		if err != nil {
			e.log.WithError(err).Error("engine: close manually-closed position")
			survivors = append(survivors, pos)
			continue
		}
		closed = append(closed, *entry)
	}

	e.mu.Lock()
	e.positions = survivors
	e.mu.Unlock()
	return closed
}

// HandleSignalExit closes the position a strategy names via a no_trade
// signal's exit metadata (spec §4.6 step 1, scenario S6). Strategy-issued
// exit reasons (e.g. scalping's "imbalance_flip") are not members of the
// documented closed ExitReason set; they are recorded verbatim since the
// type carries no runtime enforcement of that set.
func (e *Engine) HandleSignalExit(ctx context.Context, sig *models.Signal) (*models.TradeHistoryEntry, bool) {
	reasonStr, ok := sig.ExitReason()
	if !ok {
		return nil, false
	}
	strategyName, _ := sig.Metadata[models.MetaStrategyInstance].(string)

	e.mu.Lock()
	var target *models.Position
	var survivors []models.Position
	for i := range e.positions {
		pos := e.positions[i]
		if pos.StrategyName == strategyName && pos.Contract.Symbol == sig.Symbol && target == nil {
			target = &pos
			continue
		}
		survivors = append(survivors, pos)
	}
	if target != nil {
		e.positions = survivors
	}
	e.mu.Unlock()

	if target == nil {
		return nil, false
	}

	current := target.PeakPrice
	if sig.PriceLevel > 0 {
		current = sig.PriceLevel
	}
	entry, err := e.store.ClosePosition(ctx, target.StoreID, current, models.ExitReason(reasonStr), "", time.Now())
	if err != nil {
		e.log.WithError(err).WithField("reason", reasonStr).Error("engine: close position on strategy-signalled exit")
		e.mu.Lock()
		e.positions = append(e.positions, *target)
		e.mu.Unlock()
		return nil, false
	}
	return entry, true
}
