package engine

import (
	"github.com/halcyonlab/halcyon/internal/types"
)

// FillModel computes executed prices, costs and PnL under leverage for the
// single-asset path. Leverage is a pass-through multiplier on price movement,
// not a margin simulator; the only margin-like behavior is the liquidation
// guard, which forces a full loss of the capital at risk when the bar's
// adverse extreme moves past the liquidation threshold.
type FillModel struct {
	FeeRate                 float64
	SlippageRate            float64
	Leverage                float64
	LiquidationSafetyFactor float64
}

// RoundTripCost is the total entry+exit cost fraction charged on a close.
func (f FillModel) RoundTripCost() float64 {
	return 2 * (f.FeeRate + f.SlippageRate)
}

// PricePnLPct is the raw price return of a closed position, sign-adjusted
// for shorts.
func (f FillModel) PricePnLPct(side types.Side, entryPrice, exitPrice float64) float64 {
	pct := (exitPrice - entryPrice) / entryPrice
	if side == types.SideShort {
		pct = -pct
	}

	return pct
}

// ClosePnL computes the realized PnL and the fee charged for closing stake
// at exitPrice. The loss is floored at the full stake (the liquidation guard
// and the capital>=0 invariant both rely on the clamp).
func (f FillModel) ClosePnL(side types.Side, entryPrice, exitPrice, stake float64) (realized, fee float64) {
	accountPnLPct := f.PricePnLPct(side, entryPrice, exitPrice)*f.Leverage - f.RoundTripCost()

	realized = accountPnLPct * stake
	if realized < -stake {
		realized = -stake
	}

	fee = f.RoundTripCost() * stake

	return realized, fee
}

// LiquidationPct is the adverse price move fraction that wipes out the
// position under the configured leverage, shrunk by the safety factor.
func (f FillModel) LiquidationPct() float64 {
	if f.Leverage <= 0 {
		return 0
	}

	return (1 / f.Leverage) * f.LiquidationSafetyFactor
}

// BreachesLiquidation checks the bar's adverse extreme (low for longs, high
// for shorts) against the liquidation threshold.
func (f FillModel) BreachesLiquidation(side types.Side, entryPrice float64, bar types.Bar) bool {
	threshold := f.LiquidationPct()
	if threshold <= 0 || threshold >= 1 {
		return false
	}

	switch side {
	case types.SideLong:
		return (entryPrice-bar.Low)/entryPrice >= threshold
	case types.SideShort:
		return (bar.High-entryPrice)/entryPrice >= threshold
	default:
		return false
	}
}

// MarkToMarket values the open stake at the given price, costs excluded.
// Costs are charged on close only, so the equity curve carries no phantom
// fees while a position is open.
func (f FillModel) MarkToMarket(side types.Side, entryPrice, price, stake float64) float64 {
	unrealized := f.PricePnLPct(side, entryPrice, price) * f.Leverage * stake
	if unrealized < -stake {
		unrealized = -stake
	}

	return unrealized
}
