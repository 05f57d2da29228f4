// Package feed supplies ordered OHLCV bars to the replay loop. Loading and
// cleaning historical data (column normalization, deduplication, resampling)
// belongs to external tooling; a feed only hands over what it was given, in
// order, and the engine halts on input that breaks the ordering contract.
package feed

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/halcyonlab/halcyon/internal/types"
)

// Feed is an ordered sequence of bars. The iterator shape allows sources to
// stream without materializing, and keeps the replay loop single-threaded.
type Feed interface {
	// ReadAll yields every bar within the optional [start, end] range, in order.
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool)
	// Count returns the number of bars within the optional [start, end] range.
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
}

// SliceFeed serves bars from an in-memory slice. The slice is shared
// read-only, so one SliceFeed may back many concurrent runs.
type SliceFeed struct {
	bars []types.Bar
}

// NewSliceFeed creates a feed over the given bars. The caller keeps ownership
// of the slice and must not mutate it while runs are active.
func NewSliceFeed(bars []types.Bar) *SliceFeed {
	return &SliceFeed{bars: bars}
}

func inRange(t time.Time, start optional.Option[time.Time], end optional.Option[time.Time]) bool {
	if start.IsSome() && t.Before(start.Unwrap()) {
		return false
	}

	if end.IsSome() && t.After(end.Unwrap()) {
		return false
	}

	return true
}

// ReadAll implements Feed.
func (f *SliceFeed) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		for _, bar := range f.bars {
			if !inRange(bar.Time, start, end) {
				continue
			}

			if !yield(bar, nil) {
				return
			}
		}
	}
}

// Count implements Feed.
func (f *SliceFeed) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	count := 0

	for _, bar := range f.bars {
		if inRange(bar.Time, start, end) {
			count++
		}
	}

	return count, nil
}
