// Package strategy defines the signal interfaces the backtest engine drives.
// The engine treats every implementation as a black box: it hands over a
// trailing bar window and obeys the returned signal without inspecting how
// the signal was produced.
package strategy

import (
	"github.com/halcyonlab/halcyon/internal/types"
)

// SignalSource produces at most one signal per closed bar. Evaluate is called
// once per bar with the trailing window, most recent bar last; the window
// never contains the forming bar. Implementations may keep internal state but
// must not touch process-wide state, so independent runs stay isolated.
type SignalSource interface {
	// Name identifies the source in results and logs.
	Name() string
	// Evaluate inspects the window and returns the signal for the next bar.
	// Returning a signal of type SignalTypeNone means no action.
	Evaluate(window []types.Bar) (types.Signal, error)
}

// WeightSource drives the multi-asset rebalancer: it maps each symbol's
// trailing window to a target portfolio weight. Weights may be negative for
// short exposure and need not sum to one.
type WeightSource interface {
	Name() string
	Weights(windows map[string][]types.Bar) (map[string]float64, error)
}
