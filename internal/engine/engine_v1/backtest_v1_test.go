package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	backtestengine "github.com/halcyonlab/halcyon/internal/engine"
	"github.com/halcyonlab/halcyon/internal/feed"
	"github.com/halcyonlab/halcyon/internal/types"
)

// scriptedSource replays a fixed schedule of signals keyed by evaluation
// count, which equals the bar index because the engine evaluates once per
// closed bar.
type scriptedSource struct {
	signals map[int]types.Signal
	errs    map[int]error
	calls   int
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Evaluate(window []types.Bar) (types.Signal, error) {
	idx := s.calls
	s.calls++

	if err, ok := s.errs[idx]; ok {
		return types.Signal{}, err
	}

	if signal, ok := s.signals[idx]; ok {
		return signal, nil
	}

	var t time.Time
	if len(window) > 0 {
		t = window[len(window)-1].Time
	}

	return types.None(t), nil
}

func enterLong() types.Signal {
	return types.Signal{Type: types.SignalTypeEnterLong}
}

func exitSignal() types.Signal {
	return types.Signal{Type: types.SignalTypeExit}
}

// flatBars builds n hourly bars pinned at price with a small range.
func flatBars(n int, price float64) []types.Bar {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	bars := make([]types.Bar, n)
	for i := range bars {
		bars[i] = types.Bar{
			Symbol: "TEST",
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   price,
			High:   price + 0.5,
			Low:    price - 0.5,
			Close:  price,
			Volume: 100,
		}
	}

	return bars
}

type BacktestV1TestSuite struct {
	suite.Suite
}

func TestBacktestV1Suite(t *testing.T) {
	suite.Run(t, new(BacktestV1TestSuite))
}

func (s *BacktestV1TestSuite) runEngine(config string, bars []types.Bar, source *scriptedSource) RunResult {
	b := NewBacktestEngineV1()
	s.Require().NoError(b.Initialize(config))
	s.Require().NoError(b.SetFeed("TEST", feed.NewSliceFeed(bars)))
	s.Require().NoError(b.SetSignalSource(source))
	s.Require().NoError(b.Run(context.Background(), backtestengine.LifecycleCallbacks{}))

	results := b.Results()
	s.Require().Len(results, 1)

	return results[0]
}

func (s *BacktestV1TestSuite) TestStopLossScenario() {
	config := `
initial_capital: 10000
leverage: 1
fee_rate: 0.001
slippage_rate: 0.0005
stop_loss_pct: 0.03
take_profit_pct: 0.05
window_size: 5
sizing:
  policy: fixed_fraction
  position_ratio: 0.5
`

	bars := flatBars(100, 100)
	bars[11].Low = 96
	bars[11].Open = 100
	bars[11].Close = 99

	source := &scriptedSource{signals: map[int]types.Signal{10: enterLong()}}

	result := s.runEngine(config, bars, source)

	s.Equal(types.RunStatusCompleted, result.Status)
	s.Require().Len(result.Trades, 1)

	trade := result.Trades[0]
	s.Equal(types.ExitReasonStopLoss, trade.ExitReason)
	s.InDelta(97, trade.ExitPrice, 1e-9)
	s.InDelta(5000, trade.Size, 1e-9)
	// 3% adverse move plus the full round-trip cost on the stake.
	s.InDelta(5000*(-0.03-0.003), trade.RealizedPnL, 1e-9)
	s.InDelta(10000+5000*(-0.03-0.003), result.Summary.FinalEquity, 1e-9)
}

func (s *BacktestV1TestSuite) TestStopLossWinsOverTakeProfitInSameBar() {
	config := `
initial_capital: 10000
leverage: 1
stop_loss_pct: 0.03
take_profit_pct: 0.04
window_size: 5
sizing:
  policy: fixed_fraction
  position_ratio: 1.0
`

	bars := flatBars(20, 100)
	// Bar 11 spans both levels; the stop must win.
	bars[11].Low = 95
	bars[11].High = 106

	source := &scriptedSource{signals: map[int]types.Signal{10: enterLong()}}

	result := s.runEngine(config, bars, source)

	s.Require().Len(result.Trades, 1)
	s.Equal(types.ExitReasonStopLoss, result.Trades[0].ExitReason)
	s.InDelta(97, result.Trades[0].ExitPrice, 1e-9)
}

func (s *BacktestV1TestSuite) TestMartingaleBust() {
	config := `
initial_capital: 60
leverage: 1
stop_loss_pct: 0.10
window_size: 3
sizing:
  policy: martingale
  base_stake: 50
  sequence: [1, 3]
`

	bars := flatBars(10, 100)
	bars[3].Low = 89
	bars[5].Low = 89

	source := &scriptedSource{signals: map[int]types.Signal{
		2: enterLong(),
		4: enterLong(),
		6: enterLong(),
	}}

	result := s.runEngine(config, bars, source)

	s.Require().Len(result.Trades, 3)

	// Trade 1: base stake, stopped out for -10%.
	s.InDelta(50, result.Trades[0].Size, 1e-9)
	s.InDelta(-5, result.Trades[0].RealizedPnL, 1e-9)

	// Trade 2: next rung wants 150 but is capped at remaining capital.
	s.InDelta(55, result.Trades[1].Size, 1e-9)
	s.InDelta(-5.5, result.Trades[1].RealizedPnL, 1e-9)

	// Capital 49.5 is now below the base stake: the third entry records a
	// bust, resets the ladder, and sizes from the base rung again.
	busts := 0

	for _, event := range result.Events {
		if event.Kind == types.RiskEventBust {
			busts++
		}
	}

	s.Equal(1, busts)
	s.InDelta(49.5, result.Trades[2].Size, 1e-9)

	// The reset touches only the ladder; capital carries the losses.
	s.InDelta(49.5, result.Summary.FinalEquity, 1e-9)
}

func (s *BacktestV1TestSuite) TestCapitalNeverNegative() {
	config := `
initial_capital: 1000
leverage: 10
window_size: 3
liquidation_safety_factor: 0.8
sizing:
  policy: fixed_fraction
  position_ratio: 1.0
`

	bars := flatBars(10, 100)
	// A crash far beyond the liquidation threshold.
	bars[3].Low = 10
	bars[3].Close = 12

	source := &scriptedSource{signals: map[int]types.Signal{2: enterLong()}}

	result := s.runEngine(config, bars, source)

	s.Require().Len(result.Trades, 1)
	s.Equal(types.ExitReasonLiquidation, result.Trades[0].ExitReason)
	// A liquidation loses the entire capital at risk.
	s.InDelta(-1000, result.Trades[0].RealizedPnL, 1e-9)

	for _, snapshot := range result.Equity {
		s.GreaterOrEqual(snapshot.Equity, 0.0)
	}

	s.InDelta(0, result.Equity[len(result.Equity)-1].Equity, 1e-9)

	liquidations := 0

	for _, event := range result.Events {
		if event.Kind == types.RiskEventLiquidation {
			liquidations++
		}
	}

	s.Equal(1, liquidations)
}

func (s *BacktestV1TestSuite) TestClosedBarExclusivity() {
	config := `
initial_capital: 10000
leverage: 1
stop_loss_pct: 0.03
window_size: 5
sizing:
  policy: fixed_fraction
  position_ratio: 1.0
`

	bars := flatBars(20, 100)
	bars[3].Low = 95

	// The stop fires on bar 3 and the same bar carries a fresh entry signal:
	// exactly one transition per bar, so the entry must be ignored.
	source := &scriptedSource{signals: map[int]types.Signal{
		2: enterLong(),
		3: enterLong(),
	}}

	result := s.runEngine(config, bars, source)

	s.Require().Len(result.Trades, 1)
	s.Equal(types.ExitReasonStopLoss, result.Trades[0].ExitReason)

	ignored := false

	for _, event := range result.Events {
		if event.Kind == types.RiskEventIgnoredSignal {
			ignored = true
		}
	}

	s.True(ignored)
}

func (s *BacktestV1TestSuite) TestFeeRoundTripExact() {
	config := `
initial_capital: 10000
leverage: 1
fee_rate: 0.001
slippage_rate: 0.0005
window_size: 3
sizing:
  policy: fixed_fraction
  position_ratio: 1.0
`

	bars := flatBars(10, 100)

	source := &scriptedSource{signals: map[int]types.Signal{
		2: enterLong(),
		4: exitSignal(),
	}}

	result := s.runEngine(config, bars, source)

	s.Require().Len(result.Trades, 1)

	trade := result.Trades[0]
	s.Equal(trade.EntryPrice, trade.ExitPrice)
	s.InDelta(-10000*2*(0.001+0.0005), trade.RealizedPnL, 1e-12)
	s.InDelta(10000*2*(0.001+0.0005), trade.FeePaid, 1e-12)
}

func (s *BacktestV1TestSuite) TestStreamingDrawdownMatchesBatch() {
	config := `
initial_capital: 10000
leverage: 2
stop_loss_pct: 0.05
take_profit_pct: 0.03
window_size: 5
sizing:
  policy: fixed_fraction
  position_ratio: 0.8
`

	bars := flatBars(60, 100)
	bars[11].High = 104
	bars[21].Low = 94
	bars[30].Low = 96
	bars[40].High = 103

	source := &scriptedSource{signals: map[int]types.Signal{
		10: enterLong(),
		20: enterLong(),
		29: enterLong(),
		39: enterLong(),
	}}

	result := s.runEngine(config, bars, source)

	s.InDelta(RecomputeMaxDrawdown(result.Equity), result.Summary.MaxDrawdown, 1e-12)
}

func (s *BacktestV1TestSuite) TestDataErrorHaltsWithIndex() {
	config := `
initial_capital: 10000
window_size: 3
sizing:
  policy: fixed_fraction
  position_ratio: 1.0
`

	bars := flatBars(10, 100)
	// Bar 5 steps backwards in time.
	bars[5].Time = bars[4].Time.Add(-time.Minute)

	source := &scriptedSource{}

	result := s.runEngine(config, bars, source)

	s.Equal(types.RunStatusHaltedDataError, result.Status)
	s.True(result.HaltIndex.IsSome())

	idx, err := result.HaltIndex.Take()
	s.Require().NoError(err)
	s.Equal(5, idx)

	// Snapshots cover only the bars before the halt.
	s.Len(result.Equity, 5)
}

func (s *BacktestV1TestSuite) TestMalformedBarHalts() {
	config := `
initial_capital: 10000
window_size: 3
sizing:
  policy: fixed_fraction
  position_ratio: 1.0
`

	bars := flatBars(10, 100)
	bars[4].High = 10 // below open and close

	result := s.runEngine(config, bars, &scriptedSource{})

	s.Equal(types.RunStatusHaltedDataError, result.Status)

	idx, err := result.HaltIndex.Take()
	s.Require().NoError(err)
	s.Equal(4, idx)
}

func (s *BacktestV1TestSuite) TestCancelledRun() {
	config := `
initial_capital: 10000
window_size: 3
sizing:
  policy: fixed_fraction
  position_ratio: 1.0
`

	b := NewBacktestEngineV1()
	s.Require().NoError(b.Initialize(config))
	s.Require().NoError(b.SetFeed("TEST", feed.NewSliceFeed(flatBars(10, 100))))
	s.Require().NoError(b.SetSignalSource(&scriptedSource{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.Require().NoError(b.Run(ctx, backtestengine.LifecycleCallbacks{}))

	results := b.Results()
	s.Require().Len(results, 1)
	s.Equal(types.RunStatusCancelled, results[0].Status)
}

func (s *BacktestV1TestSuite) TestFaultySignalSourceDoesNotCrashRun() {
	config := `
initial_capital: 10000
window_size: 3
sizing:
  policy: fixed_fraction
  position_ratio: 1.0
`

	source := &scriptedSource{
		signals: map[int]types.Signal{4: enterLong()},
		errs:    map[int]error{2: context.DeadlineExceeded},
	}

	result := s.runEngine(config, flatBars(10, 100), source)

	s.Equal(types.RunStatusCompleted, result.Status)
	s.Require().Len(result.Trades, 1)

	ignored := 0

	for _, event := range result.Events {
		if event.Kind == types.RiskEventIgnoredSignal {
			ignored++
		}
	}

	s.Equal(1, ignored)
}

func (s *BacktestV1TestSuite) TestCircuitBreakerCooldown() {
	config := `
initial_capital: 10000
leverage: 1
stop_loss_pct: 0.03
window_size: 3
max_consecutive_losses: 2
cooldown_bars: 4
sizing:
  policy: fixed_fraction
  position_ratio: 0.5
`

	bars := flatBars(30, 100)
	bars[3].Low = 95
	bars[5].Low = 95

	source := &scriptedSource{signals: map[int]types.Signal{
		2:  enterLong(),
		4:  enterLong(),
		6:  enterLong(), // inside cooldown, must be rejected
		12: enterLong(), // cooldown lapsed, but the streak still caps the day
		26: enterLong(), // next UTC day, streak reset
	}}

	result := s.runEngine(config, bars, source)

	s.Require().Len(result.Trades, 3)
	s.Equal(types.ExitReasonStopLoss, result.Trades[0].ExitReason)
	s.Equal(types.ExitReasonStopLoss, result.Trades[1].ExitReason)
	s.Equal(types.ExitReasonEndOfData, result.Trades[2].ExitReason)
	s.Equal(bars[26].Time, result.Trades[2].EntryTime)

	var breakerAtTwelve, cooldown bool

	for _, event := range result.Events {
		switch event.Kind {
		case types.RiskEventCircuitBreaker:
			if event.Index == 12 {
				breakerAtTwelve = true
			}
		case types.RiskEventCooldown:
			cooldown = true
		}
	}

	s.True(breakerAtTwelve)
	s.True(cooldown)
}

func (s *BacktestV1TestSuite) TestLossStreakBlocksEntriesWithoutCooldown() {
	config := `
initial_capital: 10000
leverage: 1
stop_loss_pct: 0.03
window_size: 3
max_consecutive_losses: 2
cooldown_bars: 0
sizing:
  policy: fixed_fraction
  position_ratio: 0.5
`

	bars := flatBars(20, 100) // all bars on the same UTC day
	bars[3].Low = 95
	bars[5].Low = 95

	source := &scriptedSource{signals: map[int]types.Signal{
		2: enterLong(),
		4: enterLong(),
		6: enterLong(), // streak at the cap, no third entry today
	}}

	result := s.runEngine(config, bars, source)

	s.Require().Len(result.Trades, 2)
	s.Equal(types.ExitReasonStopLoss, result.Trades[0].ExitReason)
	s.Equal(types.ExitReasonStopLoss, result.Trades[1].ExitReason)

	blocked := false

	for _, event := range result.Events {
		if event.Kind == types.RiskEventCircuitBreaker && event.Index == 6 {
			blocked = true
		}
	}

	s.True(blocked)
}

func (s *BacktestV1TestSuite) TestMaxDailyTradesCap() {
	config := `
initial_capital: 10000
leverage: 1
window_size: 3
max_daily_trades: 1
sizing:
  policy: fixed_fraction
  position_ratio: 0.5
`

	bars := flatBars(10, 100) // all bars on the same UTC day

	source := &scriptedSource{signals: map[int]types.Signal{
		2: enterLong(),
		4: exitSignal(),
		6: enterLong(),
	}}

	result := s.runEngine(config, bars, source)

	s.Require().Len(result.Trades, 1)

	capped := false

	for _, event := range result.Events {
		if event.Kind == types.RiskEventCircuitBreaker {
			capped = true
		}
	}

	s.True(capped)
}

func (s *BacktestV1TestSuite) TestInvalidSignalsRecordedWhileFlat() {
	config := `
initial_capital: 10000
leverage: 1
window_size: 3
sizing:
  policy: fixed_fraction
  position_ratio: 0.5
`

	bars := flatBars(12, 100)

	source := &scriptedSource{signals: map[int]types.Signal{
		2: exitSignal(),
		4: {Type: types.SignalTypeAdjust, Delta: -0.5},
		6: enterLong(),
		8: {Type: types.SignalTypeAdjust, Delta: 0},
	}}

	result := s.runEngine(config, bars, source)

	// Only the real entry trades; the invalid signals leave an event trail.
	s.Require().Len(result.Trades, 1)
	s.Equal(types.ExitReasonEndOfData, result.Trades[0].ExitReason)

	ignored := map[int]bool{}

	for _, event := range result.Events {
		if event.Kind == types.RiskEventIgnoredSignal {
			ignored[event.Index] = true
		}
	}

	s.True(ignored[2], "exit while flat must be recorded")
	s.True(ignored[4], "adjust while flat must be recorded")
	s.True(ignored[8], "zero-delta adjust must be recorded")
}

func (s *BacktestV1TestSuite) TestAdjustPartialClose() {
	config := `
initial_capital: 10000
leverage: 1
window_size: 3
sizing:
  policy: fixed_fraction
  position_ratio: 1.0
`

	bars := flatBars(12, 100)

	source := &scriptedSource{signals: map[int]types.Signal{
		2: enterLong(),
		5: {Type: types.SignalTypeAdjust, Delta: -0.5},
	}}

	result := s.runEngine(config, bars, source)

	// The partial close and the end-of-data settle of the remainder.
	s.Require().Len(result.Trades, 2)
	s.Equal(types.ExitReasonAdjust, result.Trades[0].ExitReason)
	s.InDelta(5000, result.Trades[0].Size, 1e-9)
	s.InDelta(0.5, result.Trades[0].ClosedRatio, 1e-9)

	s.Equal(types.ExitReasonEndOfData, result.Trades[1].ExitReason)
	s.InDelta(5000, result.Trades[1].Size, 1e-9)
}

func (s *BacktestV1TestSuite) TestTakeProfitExit() {
	config := `
initial_capital: 10000
leverage: 1
take_profit_pct: 0.04
window_size: 3
sizing:
  policy: fixed_fraction
  position_ratio: 1.0
`

	bars := flatBars(10, 100)
	bars[4].High = 105

	source := &scriptedSource{signals: map[int]types.Signal{2: enterLong()}}

	result := s.runEngine(config, bars, source)

	s.Require().Len(result.Trades, 1)
	s.Equal(types.ExitReasonTakeProfit, result.Trades[0].ExitReason)
	s.InDelta(104, result.Trades[0].ExitPrice, 1e-9)
	s.InDelta(400, result.Trades[0].RealizedPnL, 1e-9)
}

func (s *BacktestV1TestSuite) TestMaxHoldExit() {
	config := `
initial_capital: 10000
leverage: 1
window_size: 3
max_hold_bars: 3
sizing:
  policy: fixed_fraction
  position_ratio: 1.0
`

	bars := flatBars(12, 100)

	source := &scriptedSource{signals: map[int]types.Signal{2: enterLong()}}

	result := s.runEngine(config, bars, source)

	s.Require().Len(result.Trades, 1)
	s.Equal(types.ExitReasonMaxHold, result.Trades[0].ExitReason)
	// Opened at bar 2, held for 3 bars, closed on bar 5.
	s.Equal(bars[5].Time, result.Trades[0].ExitTime)
}

func (s *BacktestV1TestSuite) TestShortPosition() {
	config := `
initial_capital: 10000
leverage: 1
stop_loss_pct: 0.03
take_profit_pct: 0.05
window_size: 3
sizing:
  policy: fixed_fraction
  position_ratio: 1.0
`

	bars := flatBars(10, 100)
	bars[4].Low = 94

	source := &scriptedSource{signals: map[int]types.Signal{
		2: {Type: types.SignalTypeEnterShort},
	}}

	result := s.runEngine(config, bars, source)

	s.Require().Len(result.Trades, 1)
	s.Equal(types.SideShort, result.Trades[0].Side)
	s.Equal(types.ExitReasonTakeProfit, result.Trades[0].ExitReason)
	s.InDelta(95, result.Trades[0].ExitPrice, 1e-9)
	s.InDelta(500, result.Trades[0].RealizedPnL, 1e-9)
}

func (s *BacktestV1TestSuite) TestRunRejectsMissingPieces() {
	b := NewBacktestEngineV1()

	err := b.Run(context.Background(), backtestengine.LifecycleCallbacks{})
	s.Error(err)

	s.Require().NoError(b.Initialize(`
initial_capital: 1000
window_size: 3
sizing:
  policy: fixed_fraction
  position_ratio: 1.0
`))

	err = b.Run(context.Background(), backtestengine.LifecycleCallbacks{})
	s.Error(err)
}

func (s *BacktestV1TestSuite) TestProcessDataCallback() {
	config := `
initial_capital: 10000
window_size: 3
sizing:
  policy: fixed_fraction
  position_ratio: 1.0
`

	b := NewBacktestEngineV1()
	s.Require().NoError(b.Initialize(config))
	s.Require().NoError(b.SetFeed("TEST", feed.NewSliceFeed(flatBars(10, 100))))
	s.Require().NoError(b.SetSignalSource(&scriptedSource{}))

	seen := 0
	var lastTotal int

	onData := backtestengine.OnProcessDataCallback(func(current, total int) error {
		seen = current
		lastTotal = total

		return nil
	})

	s.Require().NoError(b.Run(context.Background(), backtestengine.LifecycleCallbacks{
		OnProcessData: &onData,
	}))

	s.Equal(10, seen)
	s.Equal(10, lastTotal)
}

func (s *BacktestV1TestSuite) TestTrailingStopExit() {
	config := `
initial_capital: 10000
leverage: 1
trailing_stop_pct: 0.05
window_size: 5
sizing:
  policy: fixed_fraction
  position_ratio: 0.5
`

	bars := flatBars(20, 100)
	bars[3].Open, bars[3].High, bars[3].Low, bars[3].Close = 110, 110.5, 109.5, 110
	for i := 4; i < 20; i++ {
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = 104, 104.5, 103.5, 104
	}

	source := &scriptedSource{signals: map[int]types.Signal{2: enterLong()}}

	result := s.runEngine(config, bars, source)

	s.Require().Len(result.Trades, 1)
	trade := result.Trades[0]
	s.Equal(types.ExitReasonTrailingStop, trade.ExitReason)
	// Anchor rides up to the bar-3 high, so the trail sits at 110.5 * 0.95.
	s.InDelta(110.5*0.95, trade.ExitPrice, 1e-9)
	s.Equal(bars[4].Time, trade.ExitTime)
	s.InDelta(5000*(110.5*0.95/100-1), trade.RealizedPnL, 1e-9)
}

func (s *BacktestV1TestSuite) TestSessionFilterBlocksEntries() {
	config := `
initial_capital: 10000
leverage: 1
window_size: 5
sessions:
  - open: "09:00"
    close: "17:00"
sizing:
  policy: fixed_fraction
  position_ratio: 0.5
`

	bars := flatBars(20, 100)
	source := &scriptedSource{signals: map[int]types.Signal{
		3:  enterLong(), // 03:00, outside the session
		10: enterLong(), // 10:00, inside
		12: exitSignal(),
	}}

	result := s.runEngine(config, bars, source)

	s.Require().Len(result.Trades, 1)
	s.Equal(bars[10].Time, result.Trades[0].EntryTime)
	s.Equal(types.ExitReasonSignal, result.Trades[0].ExitReason)

	blocked := 0
	for _, event := range result.Events {
		if event.Kind == types.RiskEventIgnoredSignal && event.Index == 3 {
			blocked++
		}
	}
	s.Equal(1, blocked)
}
