package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/halcyonlab/halcyon/pkg/errors"
)

// PortfolioState is the multi-asset counterpart of Position: cash plus a map
// of signed quantities. It is mutated only by the rebalancer's execution
// step and owned by exactly one run.
type PortfolioState struct {
	Cash decimal.Decimal
	// Positions maps symbol to signed quantity; negative is short exposure.
	Positions map[string]decimal.Decimal
}

// NewPortfolioState creates a portfolio holding only cash.
func NewPortfolioState(initialCash float64) *PortfolioState {
	return &PortfolioState{
		Cash:      decimal.NewFromFloat(initialCash),
		Positions: make(map[string]decimal.Decimal),
	}
}

// Equity is cash plus the mark-to-market value of all holdings.
func (p *PortfolioState) Equity(prices map[string]float64) (float64, error) {
	equity := p.Cash

	for symbol, quantity := range p.Positions {
		price, ok := prices[symbol]
		if !ok {
			return 0, errors.Newf(errors.ErrCodeMissingPrice, "no price for held symbol %q", symbol)
		}

		equity = equity.Add(quantity.Mul(decimal.NewFromFloat(price)))
	}

	value, _ := equity.Float64()

	return value, nil
}

// Weights returns the current portfolio weights relative to equity.
func (p *PortfolioState) Weights(prices map[string]float64) (map[string]float64, error) {
	equity, err := p.Equity(prices)
	if err != nil {
		return nil, err
	}

	weights := make(map[string]float64, len(p.Positions))
	if equity == 0 {
		return weights, nil
	}

	equityDec := decimal.NewFromFloat(equity)

	for symbol, quantity := range p.Positions {
		value := quantity.Mul(decimal.NewFromFloat(prices[symbol]))
		weight, _ := value.Div(equityDec).Float64()
		weights[symbol] = weight
	}

	return weights, nil
}

// RebalanceTrade is one executed delta of a rebalance step.
type RebalanceTrade struct {
	Time     time.Time
	Symbol   string
	Quantity float64 // signed delta
	Price    float64
	Fee      float64
}

// Rebalancer turns target weights into executed deltas at a fixed cadence.
// Weights may be negative for short exposure and need not sum to 1, which
// allows leveraged or net-short books.
type Rebalancer struct {
	state       *PortfolioState
	feeRate     decimal.Decimal
	cadenceBars int

	lastRebalanceIndex int
	rebalancedOnce     bool
}

// NewRebalancer creates a rebalancer over the given portfolio state. A
// cadence of zero or one rebalances every bar.
func NewRebalancer(state *PortfolioState, feeRate float64, cadenceBars int) *Rebalancer {
	if cadenceBars < 1 {
		cadenceBars = 1
	}

	return &Rebalancer{
		state:       state,
		feeRate:     decimal.NewFromFloat(feeRate),
		cadenceBars: cadenceBars,
	}
}

// Due reports whether the cadence has elapsed at the given bar index.
// Intervening bars only mark to market, never trade.
func (r *Rebalancer) Due(index int) bool {
	if !r.rebalancedOnce {
		return true
	}

	return index-r.lastRebalanceIndex >= r.cadenceBars
}

// Execute moves the portfolio to targetWeights using the given prices:
// target_qty = equity * weight / price for every symbol in the union of
// current and target holdings, executed as one atomic signed delta per
// symbol with a proportional fee deducted from cash in the same step.
// Zero-quantity positions are pruned afterwards.
func (r *Rebalancer) Execute(at time.Time, index int, targetWeights map[string]float64, prices map[string]float64) ([]RebalanceTrade, error) {
	equity, err := r.state.Equity(prices)
	if err != nil {
		return nil, err
	}

	equityDec := decimal.NewFromFloat(equity)

	// Union of current and target symbols, sorted for deterministic order.
	symbols := make(map[string]struct{}, len(targetWeights)+len(r.state.Positions))
	for symbol := range targetWeights {
		symbols[symbol] = struct{}{}
	}

	for symbol := range r.state.Positions {
		symbols[symbol] = struct{}{}
	}

	ordered := make([]string, 0, len(symbols))
	for symbol := range symbols {
		ordered = append(ordered, symbol)
	}

	sort.Strings(ordered)

	var trades []RebalanceTrade

	for _, symbol := range ordered {
		price, ok := prices[symbol]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeMissingPrice, "no price for symbol %q in rebalance", symbol)
		}

		if price <= 0 {
			return nil, errors.Newf(errors.ErrCodeRebalanceFailed, "non-positive price %f for symbol %q", price, symbol)
		}

		priceDec := decimal.NewFromFloat(price)
		weightDec := decimal.NewFromFloat(targetWeights[symbol])

		targetQty := equityDec.Mul(weightDec).Div(priceDec)
		currentQty := r.state.Positions[symbol]

		delta := targetQty.Sub(currentQty)
		if delta.IsZero() {
			continue
		}

		notional := delta.Mul(priceDec)
		fee := notional.Abs().Mul(r.feeRate)

		r.state.Cash = r.state.Cash.Sub(notional).Sub(fee)

		if targetQty.IsZero() {
			delete(r.state.Positions, symbol)
		} else {
			r.state.Positions[symbol] = targetQty
		}

		deltaF, _ := delta.Float64()
		feeF, _ := fee.Float64()

		trades = append(trades, RebalanceTrade{
			Time:     at,
			Symbol:   symbol,
			Quantity: deltaF,
			Price:    price,
			Fee:      feeF,
		})
	}

	r.lastRebalanceIndex = index
	r.rebalancedOnce = true

	return trades, nil
}
