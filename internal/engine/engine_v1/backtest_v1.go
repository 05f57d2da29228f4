package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	backtestengine "github.com/halcyonlab/halcyon/internal/engine"
	"github.com/halcyonlab/halcyon/internal/engine/engine_v1/sizing"
	"github.com/halcyonlab/halcyon/internal/engine/engine_v1/sink"
	"github.com/halcyonlab/halcyon/internal/feed"
	"github.com/halcyonlab/halcyon/internal/logger"
	"github.com/halcyonlab/halcyon/internal/strategy"
	"github.com/halcyonlab/halcyon/internal/types"
	"github.com/halcyonlab/halcyon/pkg/errors"
)

// RunResult is the complete outcome of replaying one feed.
type RunResult struct {
	RunID     string
	Symbol    string
	Status    types.RunStatus
	HaltIndex optional.Option[int]
	Summary   types.Summary
	Trades    []types.Trade
	Equity    []types.EquitySnapshot
	Events    []types.RiskEvent
}

type namedFeed struct {
	symbol string
	feed   feed.Feed
}

// BacktestEngineV1 replays closed bars through a signal source and a risk
// state machine. One instance runs its feeds sequentially; concurrent sweeps
// use one engine per goroutine since runs share no state.
type BacktestEngineV1 struct {
	config        Config
	configLoaded  bool
	feeds         []namedFeed
	source        strategy.SignalSource
	resultsFolder string
	log           *logger.Logger
	recorder      sink.Sink
	results       []RunResult
}

var _ backtestengine.Engine = (*BacktestEngineV1)(nil)

// NewBacktestEngineV1 creates an engine with no configuration loaded.
func NewBacktestEngineV1() *BacktestEngineV1 {
	return &BacktestEngineV1{
		log: logger.NewNopLogger(),
	}
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	parsed, err := ParseConfig(config)
	if err != nil {
		return err
	}

	b.config = parsed
	b.configLoaded = true

	return nil
}

// SetConfigPath implements engine.Engine.
func (b *BacktestEngineV1) SetConfigPath(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read config file", err)
	}

	return b.Initialize(string(content))
}

// SetDataPath implements engine.Engine. Each matched CSV file becomes one
// run; the run's symbol is taken from the bars.
func (b *BacktestEngineV1) SetDataPath(path string) error {
	matches, err := filepath.Glob(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDataReadFailed, "invalid data path pattern", err)
	}

	if len(matches) == 0 {
		return errors.Newf(errors.ErrCodeNoFeed, "no data files match %q", path)
	}

	sort.Strings(matches)

	for _, match := range matches {
		bars, err := feed.LoadCSV(match)
		if err != nil {
			return err
		}

		symbol := filepath.Base(match)
		if len(bars) > 0 && bars[0].Symbol != "" {
			symbol = bars[0].Symbol
		}

		b.feeds = append(b.feeds, namedFeed{symbol: symbol, feed: feed.NewSliceFeed(bars)})
	}

	return nil
}

// SetFeed implements engine.Engine.
func (b *BacktestEngineV1) SetFeed(symbol string, f feed.Feed) error {
	if f == nil {
		return errors.New(errors.ErrCodeNoFeed, "feed is nil")
	}

	b.feeds = append(b.feeds, namedFeed{symbol: symbol, feed: f})

	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *BacktestEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder

	return nil
}

// SetSignalSource implements engine.Engine.
func (b *BacktestEngineV1) SetSignalSource(source strategy.SignalSource) error {
	if source == nil {
		return errors.New(errors.ErrCodeNoSignalSource, "signal source is nil")
	}

	b.source = source

	return nil
}

// SetLogger replaces the engine's logger.
func (b *BacktestEngineV1) SetLogger(log *logger.Logger) {
	if log != nil {
		b.log = log
	}
}

// SetSink installs a sink that receives trades, events, and snapshots as
// they are produced. The engine cleans the sink between runs but does not
// close it.
func (b *BacktestEngineV1) SetSink(recorder sink.Sink) {
	b.recorder = recorder
}

// Results returns the results of all runs executed so far, in run order.
func (b *BacktestEngineV1) Results() []RunResult {
	return b.results
}

// GetConfigSchema implements engine.Engine.
func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	return b.config.GenerateSchemaJSON()
}

// Run implements engine.Engine. Each configured feed is replayed as one
// independent run; data errors halt the affected run and are reported in its
// result, not returned here.
func (b *BacktestEngineV1) Run(ctx context.Context, callbacks backtestengine.LifecycleCallbacks) error {
	if !b.configLoaded {
		return errors.New(errors.ErrCodeRunNotInitialized, "engine is not initialized with a configuration")
	}

	if b.source == nil {
		return errors.New(errors.ErrCodeNoSignalSource, "no signal source is set")
	}

	if len(b.feeds) == 0 {
		return errors.New(errors.ErrCodeNoFeed, "no data feed is set")
	}

	for _, nf := range b.feeds {
		runID := uuid.New().String()

		total, err := nf.feed.Count(b.config.StartTime, b.config.EndTime)
		if err != nil {
			return err
		}

		if callbacks.OnRunStart != nil {
			if err := (*callbacks.OnRunStart)(runID, nf.symbol, total); err != nil {
				return err
			}
		}

		result, err := b.runOnce(ctx, runID, nf, total, callbacks)
		if err != nil {
			return err
		}

		b.results = append(b.results, result)

		resultFolder := ""

		if b.resultsFolder != "" {
			resultFolder = filepath.Join(b.resultsFolder, fmt.Sprintf("%s_%s", nf.symbol, runID[:8]))
			if err := b.writeResult(resultFolder, result); err != nil {
				return err
			}
		}

		if callbacks.OnRunEnd != nil {
			(*callbacks.OnRunEnd)(runID, resultFolder)
		}

		b.log.Info("run finished",
			zap.String("run_id", runID),
			zap.String("symbol", nf.symbol),
			zap.String("status", string(result.Status)),
			zap.Float64("final_equity", result.Summary.FinalEquity),
			zap.Int("trades", result.Summary.Trades.Total),
		)
	}

	return nil
}

// runOnce replays a single feed. The returned error is reserved for fatal
// conditions (signal source failures, aborting callbacks); data problems are
// folded into the result's status instead.
func (b *BacktestEngineV1) runOnce(ctx context.Context, runID string, nf namedFeed, total int, callbacks backtestengine.LifecycleCallbacks) (RunResult, error) {
	cfg := b.config

	policy, err := sizing.GetPolicy(cfg.Sizing)
	if err != nil {
		return RunResult{}, err
	}

	fill := FillModel{
		FeeRate:                 cfg.FeeRate,
		SlippageRate:            cfg.SlippageRate,
		Leverage:                cfg.Leverage,
		LiquidationSafetyFactor: cfg.LiquidationSafetyFactor,
	}

	risk := NewRiskState(cfg.InitialCapital)
	metrics := NewMetricsAggregator(cfg.InitialCapital, cfg.PeriodsPerYear)
	capital := cfg.InitialCapital

	var pos *Position

	window := make([]types.Bar, 0, cfg.WindowSize)

	var (
		trades    []types.Trade
		events    []types.RiskEvent
		snapshots []types.EquitySnapshot
	)

	recordEvent := func(event types.RiskEvent) {
		events = append(events, event)

		b.log.Info("risk event",
			zap.String("kind", string(event.Kind)),
			zap.Int("index", event.Index),
			zap.String("detail", event.Detail),
		)

		if b.recorder != nil {
			if err := b.recorder.RecordEvent(event); err != nil {
				b.log.Warn("failed to record risk event", zap.Error(err))
			}
		}
	}

	// closeAt settles stakeToClose of the open position at exitPrice. The
	// realized loss is floored at the closed stake, so capital never goes
	// negative.
	closeAt := func(bar types.Bar, index int, exitPrice, stakeToClose float64, reason types.ExitReason) {
		realized, fee := fill.ClosePnL(pos.Side, pos.EntryPrice, exitPrice, stakeToClose)

		// A breach of the liquidation threshold wipes the entire capital at
		// risk, wherever the threshold fill lands.
		if reason == types.ExitReasonLiquidation {
			realized = -stakeToClose
		}

		capital += realized

		full := stakeToClose >= pos.Stake-1e-9

		closedRatio := 1.0
		if pos.InitialStake > 0 {
			pos.ClosedRatio += stakeToClose / pos.InitialStake
			closedRatio = pos.ClosedRatio
		}

		trade := types.Trade{
			ID:          uuid.New().String(),
			Symbol:      nf.symbol,
			Side:        pos.Side,
			EntryTime:   pos.EntryTime,
			ExitTime:    bar.Time,
			EntryPrice:  pos.EntryPrice,
			ExitPrice:   exitPrice,
			Size:        stakeToClose,
			Leverage:    pos.Leverage,
			FeePaid:     fee,
			RealizedPnL: realized,
			ExitReason:  reason,
			ClosedRatio: closedRatio,
		}
		trades = append(trades, trade)
		metrics.ObserveTrade(trade)

		if b.recorder != nil {
			if err := b.recorder.RecordTrade(trade); err != nil {
				b.log.Warn("failed to record trade", zap.Error(err))
			}
		}

		if reason == types.ExitReasonLiquidation {
			recordEvent(types.RiskEvent{
				Time:   bar.Time,
				Index:  index,
				Kind:   types.RiskEventLiquidation,
				Detail: fmt.Sprintf("position liquidated at %.6f", exitPrice),
			})
		}

		if !full {
			pos.Stake -= stakeToClose

			return
		}

		// Win/loss streaks count full closes only; partial adjustments do not
		// move the sizing ladder.
		day := bar.Day()
		win := realized > 0
		risk.RecordClose(day, win)

		if !win && cfg.MaxConsecutiveLosses > 0 && risk.LossStreak(day) >= cfg.MaxConsecutiveLosses {
			risk.CooldownUntilIndex = index + 1 + cfg.CooldownBars
			recordEvent(types.RiskEvent{
				Time:   bar.Time,
				Index:  index,
				Kind:   types.RiskEventCircuitBreaker,
				Detail: fmt.Sprintf("%d consecutive losses on %s", risk.LossStreak(day), day),
			})
		}

		pos = nil
	}

	tryEnter := func(signal types.Signal, bar types.Bar, index int) {
		if len(cfg.Sessions) > 0 && !inAnySession(cfg.Sessions, bar.Time) {
			recordEvent(types.RiskEvent{
				Time:   bar.Time,
				Index:  index,
				Kind:   types.RiskEventIgnoredSignal,
				Detail: "entry outside configured sessions",
			})

			return
		}

		if index < risk.CooldownUntilIndex {
			recordEvent(types.RiskEvent{
				Time:   bar.Time,
				Index:  index,
				Kind:   types.RiskEventCooldown,
				Detail: fmt.Sprintf("cooling down until bar %d", risk.CooldownUntilIndex),
			})

			return
		}

		day := bar.Day()

		// The loss-streak cap is a standing precondition for the rest of the
		// day, not just while the cooldown index runs.
		if cfg.MaxConsecutiveLosses > 0 && risk.LossStreak(day) >= cfg.MaxConsecutiveLosses {
			recordEvent(types.RiskEvent{
				Time:   bar.Time,
				Index:  index,
				Kind:   types.RiskEventCircuitBreaker,
				Detail: fmt.Sprintf("loss streak of %d on %s at the cap", risk.LossStreak(day), day),
			})

			return
		}

		if cfg.MaxDailyTrades > 0 && risk.TradeCount(day) >= cfg.MaxDailyTrades {
			recordEvent(types.RiskEvent{
				Time:   bar.Time,
				Index:  index,
				Kind:   types.RiskEventCircuitBreaker,
				Detail: fmt.Sprintf("daily trade cap of %d reached", cfg.MaxDailyTrades),
			})

			return
		}

		// A bust resets the sizing ladder but never touches capital.
		if base := policy.BaseStake(); base > 0 && capital < base {
			recordEvent(types.RiskEvent{
				Time:   bar.Time,
				Index:  index,
				Kind:   types.RiskEventBust,
				Detail: fmt.Sprintf("capital %.2f below base stake %.2f", capital, base),
			})
			risk.ResetMartingale()
		}

		stake := policy.Size(capital, sizing.Risk{
			MartingaleLevel: risk.MartingaleLevel,
			ConsecutiveWins: risk.ConsecutiveWins,
		})

		if override, err := signal.Size.Take(); err == nil {
			stake = override
			if stake > capital {
				stake = capital
			}
		}

		if stake <= 0 {
			recordEvent(types.RiskEvent{
				Time:   bar.Time,
				Index:  index,
				Kind:   types.RiskEventIgnoredSignal,
				Detail: "sizing produced a zero stake",
			})

			return
		}

		side := types.SideLong
		if signal.Type == types.SignalTypeEnterShort {
			side = types.SideShort
		}

		entryPrice := bar.Close
		if price, err := signal.Price.Take(); err == nil && price > 0 {
			entryPrice = price
		}

		stopLoss, takeProfit := 0.0, 0.0

		if cfg.StopLossPct > 0 {
			if side == types.SideLong {
				stopLoss = entryPrice * (1 - cfg.StopLossPct)
			} else {
				stopLoss = entryPrice * (1 + cfg.StopLossPct)
			}
		}

		if cfg.TakeProfitPct > 0 {
			if side == types.SideLong {
				takeProfit = entryPrice * (1 + cfg.TakeProfitPct)
			} else {
				takeProfit = entryPrice * (1 - cfg.TakeProfitPct)
			}
		}

		if level, err := signal.StopLoss.Take(); err == nil && level > 0 {
			stopLoss = level
		}

		if level, err := signal.TakeProfit.Take(); err == nil && level > 0 {
			takeProfit = level
		}

		pos = &Position{
			Side:            side,
			EntryPrice:      entryPrice,
			Stake:           stake,
			InitialStake:    stake,
			Leverage:        cfg.Leverage,
			OpenedAtIndex:   index,
			EntryTime:       bar.Time,
			StopLossPrice:   stopLoss,
			TakeProfitPrice: takeProfit,
			TrailingAnchor:  entryPrice,
			MartingaleLevel: risk.MartingaleLevel,
		}
		risk.RecordEntry(day)

		b.log.Debug("opened position",
			zap.String("symbol", nf.symbol),
			zap.String("side", string(side)),
			zap.Float64("entry_price", entryPrice),
			zap.Float64("stake", stake),
		)
	}

	var prevTime time.Time

	var lastBar types.Bar

	haveBar := false
	index := -1
	processed := 0
	status := types.RunStatusCompleted
	haltIndex := optional.None[int]()

	var fatalErr error

	for bar, barErr := range nf.feed.ReadAll(cfg.StartTime, cfg.EndTime) {
		index++

		if ctx.Err() != nil {
			status = types.RunStatusCancelled

			break
		}

		if barErr != nil {
			status = types.RunStatusHaltedDataError
			haltIndex = optional.Some(index)

			b.log.Error("halting on data error",
				zap.Int("index", index),
				zap.Error(&errors.DataHaltError{Index: index, Symbol: nf.symbol, Message: "failed to read bar", Cause: barErr}),
			)

			break
		}

		if verr := bar.Validate(); verr != nil {
			status = types.RunStatusHaltedDataError
			haltIndex = optional.Some(index)

			b.log.Error("halting on malformed bar",
				zap.Int("index", index),
				zap.Error(&errors.DataHaltError{Index: index, Symbol: nf.symbol, Message: "malformed bar", Cause: verr}),
			)

			break
		}

		if !prevTime.IsZero() && !bar.Time.After(prevTime) {
			status = types.RunStatusHaltedDataError
			haltIndex = optional.Some(index)

			b.log.Error("halting on non-monotonic bar",
				zap.Int("index", index),
				zap.Time("previous", prevTime),
				zap.Time("current", bar.Time),
			)

			break
		}

		prevTime = bar.Time
		lastBar = bar
		haveBar = true

		// At most one position transition per bar. Exit rules run first, in
		// fixed priority; a bar that closes a position cannot also open one.
		transitioned := false

		if pos.IsOpen() {
			if reason, price, hit := b.intrabarExit(fill, pos, bar, index); hit {
				closeAt(bar, index, price, pos.Stake, reason)

				transitioned = true
			} else {
				pos.UpdateTrailingAnchor(bar)
			}
		}

		window = append(window, bar)
		if len(window) > cfg.WindowSize {
			window = window[1:]
		}

		// A faulty signal source must not crash a sweep: evaluation errors are
		// logged and treated as no signal for the bar.
		signal, serr := b.source.Evaluate(window)
		if serr != nil {
			recordEvent(types.RiskEvent{
				Time:   bar.Time,
				Index:  index,
				Kind:   types.RiskEventIgnoredSignal,
				Detail: errors.Wrap(errors.ErrCodeSignalSourceFailed, "signal source failed", serr).Error(),
			})

			signal = types.None(bar.Time)
		}

		if !transitioned {
			switch signal.Type {
			case types.SignalTypeExit:
				if pos.IsOpen() {
					closeAt(bar, index, bar.Close, pos.Stake, types.ExitReasonSignal)

					transitioned = true
				} else {
					recordEvent(types.RiskEvent{
						Time:   bar.Time,
						Index:  index,
						Kind:   types.RiskEventIgnoredSignal,
						Detail: "exit signal while flat",
					})
				}
			case types.SignalTypeAdjust:
				switch {
				case !pos.IsOpen():
					recordEvent(types.RiskEvent{
						Time:   bar.Time,
						Index:  index,
						Kind:   types.RiskEventIgnoredSignal,
						Detail: "adjust signal while flat",
					})
				case signal.Delta == 0:
					recordEvent(types.RiskEvent{
						Time:   bar.Time,
						Index:  index,
						Kind:   types.RiskEventIgnoredSignal,
						Detail: "adjust signal with zero delta",
					})
				default:
					b.adjustPosition(signal, bar, index, &capital, pos, closeAt)

					transitioned = true
				}
			case types.SignalTypeEnterLong, types.SignalTypeEnterShort:
				if pos.IsOpen() {
					recordEvent(types.RiskEvent{
						Time:   bar.Time,
						Index:  index,
						Kind:   types.RiskEventIgnoredSignal,
						Detail: "entry signal while position is open",
					})
				} else {
					tryEnter(signal, bar, index)

					transitioned = pos.IsOpen()
				}
			case types.SignalTypeNone:
			default:
				recordEvent(types.RiskEvent{
					Time:   bar.Time,
					Index:  index,
					Kind:   types.RiskEventIgnoredSignal,
					Detail: fmt.Sprintf("unsupported signal type %q", signal.Type),
				})
			}
		} else if signal.Type == types.SignalTypeEnterLong || signal.Type == types.SignalTypeEnterShort {
			recordEvent(types.RiskEvent{
				Time:   bar.Time,
				Index:  index,
				Kind:   types.RiskEventIgnoredSignal,
				Detail: "position already transitioned this bar",
			})
		}

		// Trailing stop is the lowest-priority exit: checked only when
		// nothing else moved the position this bar.
		if !transitioned && pos.IsOpen() && cfg.TrailingStopPct > 0 {
			trail := pos.TrailingStopPrice(cfg.TrailingStopPct)
			if trail > 0 && trailingHit(pos.Side, trail, bar) {
				closeAt(bar, index, trail, pos.Stake, types.ExitReasonTrailingStop)
			}
		}

		equity := capital
		if pos.IsOpen() {
			equity += fill.MarkToMarket(pos.Side, pos.EntryPrice, bar.Close, pos.Stake)
		}

		drawdown := risk.ObserveEquity(equity)
		snapshot := types.EquitySnapshot{Time: bar.Time, Equity: equity, DrawdownPct: drawdown}
		snapshots = append(snapshots, snapshot)
		metrics.ObserveSnapshot(snapshot)

		if b.recorder != nil {
			if err := b.recorder.RecordSnapshot(snapshot); err != nil {
				b.log.Warn("failed to record snapshot", zap.Error(err))
			}
		}

		processed++

		if callbacks.OnProcessData != nil {
			if err := (*callbacks.OnProcessData)(processed, total); err != nil {
				fatalErr = err

				break
			}
		}
	}

	if fatalErr != nil {
		return RunResult{}, fatalErr
	}

	// Settle any position still open at the end of the feed so the summary
	// reflects realized capital only.
	if haveBar && pos.IsOpen() {
		closeAt(lastBar, index, lastBar.Close, pos.Stake, types.ExitReasonEndOfData)

		drawdown := risk.ObserveEquity(capital)
		snapshot := types.EquitySnapshot{Time: lastBar.Time, Equity: capital, DrawdownPct: drawdown}
		snapshots = append(snapshots, snapshot)
		metrics.ObserveSnapshot(snapshot)
	}

	summary := metrics.Summarize()
	summary.RunID = runID
	summary.Symbol = nf.symbol
	summary.Timestamp = time.Now().UTC()
	summary.Status = status
	summary.HaltIndex = haltIndex
	summary.RiskEvents = len(events)

	return RunResult{
		RunID:     runID,
		Symbol:    nf.symbol,
		Status:    status,
		HaltIndex: haltIndex,
		Summary:   summary,
		Trades:    trades,
		Equity:    snapshots,
		Events:    events,
	}, nil
}

// intrabarExit checks the exits that can trigger inside the bar's range, in
// priority order: liquidation, stop loss, take profit, max hold. When both a
// stop and a take profit fall inside one bar the stop wins.
func (b *BacktestEngineV1) intrabarExit(fill FillModel, pos *Position, bar types.Bar, index int) (types.ExitReason, float64, bool) {
	if fill.BreachesLiquidation(pos.Side, pos.EntryPrice, bar) {
		liqPct := fill.LiquidationPct()

		price := pos.EntryPrice * (1 - liqPct)
		if pos.Side == types.SideShort {
			price = pos.EntryPrice * (1 + liqPct)
		}

		return types.ExitReasonLiquidation, price, true
	}

	if pos.StopLossPrice > 0 {
		if pos.Side == types.SideLong && bar.Low <= pos.StopLossPrice {
			return types.ExitReasonStopLoss, pos.StopLossPrice, true
		}

		if pos.Side == types.SideShort && bar.High >= pos.StopLossPrice {
			return types.ExitReasonStopLoss, pos.StopLossPrice, true
		}
	}

	if pos.TakeProfitPrice > 0 {
		if pos.Side == types.SideLong && bar.High >= pos.TakeProfitPrice {
			return types.ExitReasonTakeProfit, pos.TakeProfitPrice, true
		}

		if pos.Side == types.SideShort && bar.Low <= pos.TakeProfitPrice {
			return types.ExitReasonTakeProfit, pos.TakeProfitPrice, true
		}
	}

	if b.config.MaxHoldBars > 0 && index-pos.OpenedAtIndex >= b.config.MaxHoldBars {
		return types.ExitReasonMaxHold, bar.Close, true
	}

	return "", 0, false
}

// adjustPosition resizes the open position by signal.Delta. Negative deltas
// close that fraction of the current stake; positive deltas add stake funded
// from capital at the bar close, blending the entry price.
func (b *BacktestEngineV1) adjustPosition(signal types.Signal, bar types.Bar, index int, capital *float64, pos *Position, closeAt func(types.Bar, int, float64, float64, types.ExitReason)) {
	if signal.Delta < 0 {
		fraction := -signal.Delta
		if fraction > 1 {
			fraction = 1
		}

		closeAt(bar, index, bar.Close, pos.Stake*fraction, types.ExitReasonAdjust)

		return
	}

	// Adding stake never moves capital; it only raises the amount at risk,
	// bounded so the total stake stays within available capital.
	add := pos.Stake * signal.Delta
	if pos.Stake+add > *capital {
		add = *capital - pos.Stake
	}

	if add <= 0 {
		return
	}

	newStake := pos.Stake + add
	pos.EntryPrice = (pos.EntryPrice*pos.Stake + bar.Close*add) / newStake
	pos.Stake = newStake
	pos.InitialStake += add
}

func trailingHit(side types.Side, trail float64, bar types.Bar) bool {
	if side == types.SideLong {
		return bar.Low <= trail
	}

	return bar.High >= trail
}

func inAnySession(sessions []Session, t time.Time) bool {
	for _, session := range sessions {
		if session.Contains(t) {
			return true
		}
	}

	return false
}

// writeResult persists one run's artifacts under folder.
func (b *BacktestEngineV1) writeResult(folder string, result RunResult) error {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeSinkWriteFailed, "failed to create results folder", err)
	}

	if err := types.WriteSummary(filepath.Join(folder, "summary.yaml"), result.Summary); err != nil {
		return errors.Wrap(errors.ErrCodeSinkWriteFailed, "failed to write summary", err)
	}

	if b.recorder != nil {
		if err := b.recorder.Write(folder); err != nil {
			return err
		}

		if cleaner, ok := b.recorder.(interface{ Cleanup() error }); ok {
			if err := cleaner.Cleanup(); err != nil {
				return err
			}
		}
	}

	return nil
}
