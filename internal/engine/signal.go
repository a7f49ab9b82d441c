package engine

import (
	"context"
	"math"
	"sort"

	"github.com/optionflow/coretrader/internal/marketctx"
	"github.com/optionflow/coretrader/internal/models"
)

// EvaluateSignal applies the global veto table and, for pattern signals
// matched against the legacy rules table, returns the rule's direction
// in preference to the strategy's own (spec §4.6 "signal evaluation").
// A no_trade signal never produces a direction here, even though its
// metadata may carry an exit instruction for an existing position — see
// HandleSignalExit for that path (spec §4.6 step 1).
func (e *Engine) EvaluateSignal(sig *models.Signal, regime marketctx.Regime) (models.Direction, bool) {
	if sig == nil || sig.Direction == models.DirectionNoTrade || sig.Direction == "" {
		return "", false
	}
	if vetoed(sig, regime) {
		e.vetoCount.Add(1)
		return "", false
	}

	if sig.Pattern != "" {
		for _, r := range e.cfg.Rules {
			if r.Pattern == sig.Pattern && sig.Confidence >= r.MinConfidence {
				return r.Direction, true
			}
		}
	}
	return sig.Direction, true
}

// vetoed implements the global veto table (spec §4.6 step 2, §8 #8).
func vetoed(sig *models.Signal, regime marketctx.Regime) bool {
	switch {
	case sig.Direction.IsBullish() && regime == marketctx.RegimeBearTrend:
		return true
	case sig.Direction.IsBearish() && regime == marketctx.RegimeBullTrend:
		return true
	case sig.Direction == models.DirectionIronCondor && regime != marketctx.RegimeRangeBound:
		return true
	}
	if regime == marketctx.RegimeHighChaos {
		strategyType, _ := sig.Metadata[models.MetaStrategyType].(string)
		if strategyType != "scalping" {
			return true
		}
	}
	return false
}

// Size computes the contract count for a signal (spec §4.6 "position
// sizing"). budget may be nil, meaning the owning strategy instance has
// no configured capital cap. Returns (0, false) when the trade should be
// silently rejected — BudgetExceeded is not an error (spec §7).
func (e *Engine) Size(accountValue, price, confidence float64, budget *models.StrategyBudget) (int, bool) {
	if price <= 0 || accountValue <= 0 {
		return 0, false
	}

	conf := confidence
	if conf < 0.1 {
		conf = 0.1
	}
	if conf > 1.0 {
		conf = 1.0
	}

	base := accountValue * e.cfg.Risk.PositionSizePct
	scaled := base * conf
	contracts := int(math.Floor(scaled / (price * 100)))

	if maxBySize := int(math.Floor(e.cfg.Risk.MaxPositionSize / (price * 100))); contracts > maxBySize {
		contracts = maxBySize
	}
	if contracts > e.cfg.Risk.MaxPositions {
		contracts = e.cfg.Risk.MaxPositions
	}
	if contracts < 1 {
		contracts = 1
	}

	if budget != nil {
		available := budget.Available()
		if available <= 0 {
			return 0, false
		}
		capByBudget := int(math.Floor(available / (price * 100)))
		if capByBudget < contracts {
			contracts = capByBudget
		}
		if contracts <= 0 {
			return 0, false
		}
	}

	return contracts, true
}

// SelectOption fetches the option chain and returns the first contract
// that qualifies, probing expirations outward and strikes nearest the
// target first (spec §4.6 "option selection"). Direction decides call vs
// put via the closed set's IsBullish/IsBearish split; multi-leg
// structures (spreads, iron condor) are executed as their nearest
// single-leg equivalent since multi-leg execution is out of scope
// (spec.md non-goals) — iron_condor, having neither, defaults to call.
func (e *Engine) SelectOption(ctx context.Context, symbol string, direction models.Direction, spot float64) (models.OptionContract, bool, error) {
	chain, err := e.brk.OptionChain(ctx, symbol, e.cfg.OptionSelection.MinDTE, e.cfg.OptionSelection.MaxDTE)
	if err != nil {
		return models.OptionContract{}, false, err
	}

	right := models.RightCall
	target := spot * e.cfg.OptionSelection.CallStrikePct
	if direction.IsBearish() {
		right = models.RightPut
		target = spot * e.cfg.OptionSelection.PutStrikePct
	}

	strikes := append([]float64(nil), chain.Strikes...)
	sort.Slice(strikes, func(i, j int) bool {
		return math.Abs(strikes[i]-target) < math.Abs(strikes[j]-target)
	})
	if len(strikes) > 20 {
		strikes = strikes[:20]
	}

	expirations := chain.Expirations
	if len(expirations) > 3 {
		expirations = expirations[:3]
	}

	for _, exp := range expirations {
		for _, strike := range strikes {
			contract, ok, qerr := e.brk.QualifyOption(ctx, symbol, exp, strike, string(right), true)
			if qerr != nil || !ok || contract.LocalSymbol == "" {
				continue
			}
			return contract, true, nil
		}
	}
	return models.OptionContract{}, false, nil
}
