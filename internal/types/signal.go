package types

import (
	"time"

	"github.com/moznion/go-optional"
)

type SignalType string

const (
	// SignalTypeNone tells the engine to take no action.
	SignalTypeNone SignalType = "none"
	// SignalTypeEnterLong tells the engine to open a long position.
	SignalTypeEnterLong SignalType = "enter_long"
	// SignalTypeEnterShort tells the engine to open a short position.
	SignalTypeEnterShort SignalType = "enter_short"
	// SignalTypeExit tells the engine to close the open position.
	SignalTypeExit SignalType = "exit"
	// SignalTypeAdjust tells the engine to resize the open position by Delta.
	SignalTypeAdjust SignalType = "adjust"
)

// Signal is the single verdict a signal source emits for one bar.
// Hints are optional: absent hints fall back to engine configuration
// (entry at bar close, percentage stop/take levels). A strategy that
// computes ATR-based levels passes them through as absolute prices.
type Signal struct {
	// Time is the time of the bar the signal was computed on.
	Time time.Time
	// Type is the type of the signal.
	Type SignalType
	// Reason is a free-form note from the strategy, carried into the trade log.
	Reason string
	// Price overrides the entry reference price when present.
	Price optional.Option[float64]
	// Size overrides the sizing policy's stake when present.
	Size optional.Option[float64]
	// StopLoss is an absolute stop price overriding the configured percentage.
	StopLoss optional.Option[float64]
	// TakeProfit is an absolute take-profit price overriding the configured percentage.
	TakeProfit optional.Option[float64]
	// Delta is the signed resize fraction for adjust signals, relative to the
	// current position size. -0.5 closes half, +0.5 adds half again.
	Delta float64
}

// None returns the no-action signal for the given time.
func None(t time.Time) Signal {
	return Signal{
		Time: t,
		Type: SignalTypeNone,
	}
}
