package engine

import (
	"math"

	"github.com/halcyonlab/halcyon/internal/types"
)

// MetricsAggregator consumes the stream of closed trades and equity
// snapshots in a single pass, with no look-ahead. Drawdown is tracked from
// the running peak so the final value matches the state machine's
// incremental one exactly.
type MetricsAggregator struct {
	initialEquity float64
	finalEquity   float64

	peakEquity  float64
	maxDrawdown float64

	totalTrades  int
	winningCount int
	losingCount  int
	grossProfit  float64
	grossLoss    float64
	totalFees    float64

	// Welford-style accumulation over period returns keeps the pass single
	// and avoids storing the return series.
	lastEquity    float64
	hasLastEquity bool
	returnCount   int
	returnMean    float64
	returnM2      float64

	periodsPerYear float64
}

// NewMetricsAggregator creates an aggregator for one run.
func NewMetricsAggregator(initialEquity, periodsPerYear float64) *MetricsAggregator {
	return &MetricsAggregator{
		initialEquity:  initialEquity,
		finalEquity:    initialEquity,
		peakEquity:     initialEquity,
		periodsPerYear: periodsPerYear,
	}
}

// ObserveSnapshot feeds one equity observation, in bar order.
func (m *MetricsAggregator) ObserveSnapshot(snapshot types.EquitySnapshot) {
	equity := snapshot.Equity
	m.finalEquity = equity

	if equity > m.peakEquity {
		m.peakEquity = equity
	}

	if m.peakEquity > 0 {
		drawdown := (m.peakEquity - equity) / m.peakEquity
		if drawdown > m.maxDrawdown {
			m.maxDrawdown = drawdown
		}
	}

	if m.hasLastEquity && m.lastEquity > 0 {
		periodReturn := equity/m.lastEquity - 1

		m.returnCount++
		delta := periodReturn - m.returnMean
		m.returnMean += delta / float64(m.returnCount)
		m.returnM2 += delta * (periodReturn - m.returnMean)
	}

	m.lastEquity = equity
	m.hasLastEquity = true
}

// ObserveTrade feeds one closed trade, in close order.
func (m *MetricsAggregator) ObserveTrade(trade types.Trade) {
	m.totalTrades++
	m.totalFees += trade.FeePaid

	if trade.RealizedPnL > 0 {
		m.winningCount++
		m.grossProfit += trade.RealizedPnL
	} else if trade.RealizedPnL < 0 {
		m.losingCount++
		m.grossLoss += -trade.RealizedPnL
	}
}

// Sharpe returns the annualized Sharpe ratio of the observed period
// returns, 0 when the standard deviation is zero or undefined.
func (m *MetricsAggregator) Sharpe() float64 {
	if m.returnCount < 2 {
		return 0
	}

	variance := m.returnM2 / float64(m.returnCount-1)
	if variance <= 0 {
		return 0
	}

	std := math.Sqrt(variance)

	return m.returnMean / std * math.Sqrt(m.periodsPerYear)
}

// MaxDrawdown returns the running-peak max drawdown observed so far.
func (m *MetricsAggregator) MaxDrawdown() float64 {
	return m.maxDrawdown
}

// Summarize produces the final statistics record.
func (m *MetricsAggregator) Summarize() types.Summary {
	summary := types.Summary{
		InitialEquity: m.initialEquity,
		FinalEquity:   m.finalEquity,
		MaxDrawdown:   m.maxDrawdown,
		Trades: types.TradeCounts{
			Total:   m.totalTrades,
			Winning: m.winningCount,
			Losing:  m.losingCount,
		},
		GrossProfit: m.grossProfit,
		GrossLoss:   m.grossLoss,
		TotalFees:   m.totalFees,
		Sharpe:      m.Sharpe(),
	}

	if m.initialEquity > 0 {
		summary.TotalReturn = m.finalEquity/m.initialEquity - 1
	}

	if m.totalTrades > 0 {
		summary.WinRate = float64(m.winningCount) / float64(m.totalTrades)
	}

	if m.grossLoss > 0 {
		summary.ProfitFactor = m.grossProfit / m.grossLoss
	} else {
		// No losing trades: the ratio is undefined (conceptually +inf).
		// Flag it instead of writing a non-finite float into the report.
		summary.NoLosingTrades = true
	}

	return summary
}

// RecomputeMaxDrawdown is the batch counterpart of the streaming drawdown:
// one pass over a full snapshot series. Used by verification tests and by
// hosts reconciling persisted equity curves.
func RecomputeMaxDrawdown(snapshots []types.EquitySnapshot) float64 {
	var peak, maxDrawdown float64

	for i, snapshot := range snapshots {
		if i == 0 || snapshot.Equity > peak {
			peak = snapshot.Equity
		}

		if peak <= 0 {
			continue
		}

		drawdown := (peak - snapshot.Equity) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	return maxDrawdown
}
