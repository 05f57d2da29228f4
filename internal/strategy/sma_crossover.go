package strategy

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/halcyonlab/halcyon/internal/types"
	"github.com/halcyonlab/halcyon/pkg/errors"
)

// SMACrossover emits enter_long when the fast simple moving average crosses
// above the slow one and exit when it crosses back below. It holds no
// position state itself; crossings are derived from the window alone so the
// source stays replayable.
type SMACrossover struct {
	fastPeriod int
	slowPeriod int
}

// NewSMACrossover builds a crossover source. fast must be shorter than slow.
func NewSMACrossover(fastPeriod, slowPeriod int) (*SMACrossover, error) {
	if fastPeriod <= 0 || slowPeriod <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"sma periods must be positive, got fast=%d slow=%d", fastPeriod, slowPeriod)
	}

	if fastPeriod >= slowPeriod {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"fast period %d must be below slow period %d", fastPeriod, slowPeriod)
	}

	return &SMACrossover{fastPeriod: fastPeriod, slowPeriod: slowPeriod}, nil
}

func (s *SMACrossover) Name() string {
	return "sma_crossover"
}

// Evaluate compares the fast and slow averages on the last bar against the
// bar before it. Windows shorter than slowPeriod+1 produce no signal.
func (s *SMACrossover) Evaluate(window []types.Bar) (types.Signal, error) {
	if len(window) < s.slowPeriod+1 {
		return types.None(lastTime(window)), nil
	}

	latest := window[len(window)-1]

	fastNow := sma(window, s.fastPeriod, 0)
	slowNow := sma(window, s.slowPeriod, 0)
	fastPrev := sma(window, s.fastPeriod, 1)
	slowPrev := sma(window, s.slowPeriod, 1)

	crossedUp := fastPrev <= slowPrev && fastNow > slowNow
	crossedDown := fastPrev >= slowPrev && fastNow < slowNow

	switch {
	case crossedUp:
		return types.Signal{
			Time:   latest.Time,
			Type:   types.SignalTypeEnterLong,
			Reason: "fast sma crossed above slow sma",
			Price:  optional.Some(latest.Close),
		}, nil
	case crossedDown:
		return types.Signal{
			Time:   latest.Time,
			Type:   types.SignalTypeExit,
			Reason: "fast sma crossed below slow sma",
		}, nil
	default:
		return types.None(latest.Time), nil
	}
}

func lastTime(window []types.Bar) time.Time {
	if len(window) == 0 {
		return time.Time{}
	}

	return window[len(window)-1].Time
}

// sma averages the closes of the last period bars, skipping back bars from
// the window end.
func sma(window []types.Bar, period, back int) float64 {
	end := len(window) - back

	sum := 0.0
	for _, bar := range window[end-period : end] {
		sum += bar.Close
	}

	return sum / float64(period)
}
