package engine

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/halcyonlab/halcyon/internal/feed"
	"github.com/halcyonlab/halcyon/internal/strategy"
	"github.com/halcyonlab/halcyon/internal/types"
	"github.com/halcyonlab/halcyon/pkg/errors"
)

// PortfolioResult is the outcome of one multi-asset rebalancing run.
type PortfolioResult struct {
	RunID     string
	Status    types.RunStatus
	HaltIndex optional.Option[int]
	Summary   types.Summary
	Trades    []RebalanceTrade
	Equity    []types.EquitySnapshot
	Final     *PortfolioState
}

// RunPortfolio replays several feeds in lockstep through a weight source and
// the cadence rebalancer. All feeds must cover the same timestamps; a gap in
// any one of them is a data error that halts the run at that index.
func (b *BacktestEngineV1) RunPortfolio(ctx context.Context, feeds map[string]feed.Feed, source strategy.WeightSource) (PortfolioResult, error) {
	if !b.configLoaded {
		return PortfolioResult{}, errors.New(errors.ErrCodeRunNotInitialized, "engine is not initialized with a configuration")
	}

	if source == nil {
		return PortfolioResult{}, errors.New(errors.ErrCodeNoSignalSource, "no weight source given")
	}

	if len(feeds) == 0 {
		return PortfolioResult{}, errors.New(errors.ErrCodeNoFeed, "no feeds given")
	}

	cfg := b.config
	runID := uuid.New().String()

	series, length, err := materialize(feeds, cfg.StartTime, cfg.EndTime)
	if err != nil {
		return PortfolioResult{}, err
	}

	symbols := make([]string, 0, len(series))
	for symbol := range series {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	state := NewPortfolioState(cfg.InitialCapital)
	rebalancer := NewRebalancer(state, cfg.Rebalance.FeeRate, cfg.Rebalance.CadenceBars)
	metrics := NewMetricsAggregator(cfg.InitialCapital, cfg.PeriodsPerYear)
	risk := NewRiskState(cfg.InitialCapital)

	var (
		trades    []RebalanceTrade
		snapshots []types.EquitySnapshot
	)

	status := types.RunStatusCompleted
	haltIndex := optional.None[int]()

	var prevTime time.Time

	for i := 0; i < length; i++ {
		if ctx.Err() != nil {
			status = types.RunStatusCancelled

			break
		}

		barTime := series[symbols[0]][i].Time

		halted := false
		prices := make(map[string]float64, len(symbols))

		for _, symbol := range symbols {
			bar := series[symbol][i]

			if verr := bar.Validate(); verr != nil {
				b.log.Error("halting portfolio run on malformed bar",
					zap.Int("index", i),
					zap.String("symbol", symbol),
					zap.Error(verr),
				)

				halted = true

				break
			}

			if !bar.Time.Equal(barTime) {
				b.log.Error("halting portfolio run on misaligned bar",
					zap.Int("index", i),
					zap.String("symbol", symbol),
					zap.Time("expected", barTime),
					zap.Time("actual", bar.Time),
				)

				halted = true

				break
			}

			prices[symbol] = bar.Close
		}

		if !halted && !prevTime.IsZero() && !barTime.After(prevTime) {
			b.log.Error("halting portfolio run on non-monotonic bar",
				zap.Int("index", i),
				zap.Time("previous", prevTime),
				zap.Time("current", barTime),
			)

			halted = true
		}

		if halted {
			status = types.RunStatusHaltedDataError
			haltIndex = optional.Some(i)

			break
		}

		prevTime = barTime

		if rebalancer.Due(i) {
			windows := make(map[string][]types.Bar, len(symbols))

			for _, symbol := range symbols {
				from := i + 1 - cfg.WindowSize
				if from < 0 {
					from = 0
				}

				windows[symbol] = series[symbol][from : i+1]
			}

			weights, werr := source.Weights(windows)
			if werr != nil {
				return PortfolioResult{}, errors.Wrap(errors.ErrCodeSignalSourceFailed, "weight source failed", werr)
			}

			if err := validWeights(weights); err != nil {
				return PortfolioResult{}, err
			}

			executed, rerr := rebalancer.Execute(barTime, i, weights, prices)
			if rerr != nil {
				return PortfolioResult{}, rerr
			}

			trades = append(trades, executed...)
		}

		equity, eerr := state.Equity(prices)
		if eerr != nil {
			return PortfolioResult{}, eerr
		}

		drawdown := risk.ObserveEquity(equity)
		snapshot := types.EquitySnapshot{Time: barTime, Equity: equity, DrawdownPct: drawdown}
		snapshots = append(snapshots, snapshot)
		metrics.ObserveSnapshot(snapshot)
	}

	summary := metrics.Summarize()
	summary.RunID = runID
	summary.Timestamp = time.Now().UTC()
	summary.Status = status
	summary.HaltIndex = haltIndex

	for _, trade := range trades {
		summary.TotalFees += trade.Fee
	}

	return PortfolioResult{
		RunID:     runID,
		Status:    status,
		HaltIndex: haltIndex,
		Summary:   summary,
		Trades:    trades,
		Equity:    snapshots,
		Final:     state,
	}, nil
}

// materialize drains every feed and checks that all series have the same
// length. Alignment of individual timestamps is verified bar by bar during
// the replay.
func materialize(feeds map[string]feed.Feed, start, end optional.Option[time.Time]) (map[string][]types.Bar, int, error) {
	series := make(map[string][]types.Bar, len(feeds))
	length := -1

	for symbol, f := range feeds {
		var bars []types.Bar

		for bar, err := range f.ReadAll(start, end) {
			if err != nil {
				return nil, 0, errors.Wrapf(errors.ErrCodeDataReadFailed, err, "failed to read feed for %q", symbol)
			}

			bars = append(bars, bar)
		}

		if len(bars) == 0 {
			return nil, 0, errors.Newf(errors.ErrCodeEmptyFeed, "feed for %q is empty", symbol)
		}

		if length >= 0 && len(bars) != length {
			return nil, 0, errors.Newf(errors.ErrCodeRebalanceFailed,
				"feed for %q has %d bars, expected %d", symbol, len(bars), length)
		}

		length = len(bars)
		series[symbol] = bars
	}

	return series, length, nil
}

// validWeights rejects weight maps no portfolio can hold. NaN or absurdly
// large entries are the weight source's bug, not a market condition.
func validWeights(weights map[string]float64) error {
	for symbol, weight := range weights {
		if weight != weight {
			return errors.Newf(errors.ErrCodeInvalidWeightMap, "weight for %q is NaN", symbol)
		}

		if weight > 1e6 || weight < -1e6 {
			return errors.Newf(errors.ErrCodeInvalidWeightMap, "weight %f for %q is not finite", weight, symbol)
		}
	}

	return nil
}
