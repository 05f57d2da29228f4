package engine

import (
	"time"

	"github.com/halcyonlab/halcyon/internal/types"
)

// Position is the single open position of a run. It exists only while
// Side != SideFlat and is owned exclusively by the state machine.
type Position struct {
	Side       types.Side
	EntryPrice float64
	// Stake is the remaining capital at risk, in account currency.
	Stake float64
	// InitialStake is the stake at entry, the denominator for ClosedRatio.
	InitialStake    float64
	Leverage        float64
	OpenedAtIndex   int
	EntryTime       time.Time
	StopLossPrice   float64
	TakeProfitPrice float64
	// TrailingAnchor tracks the best price seen since entry: the running
	// high for longs, the running low for shorts.
	TrailingAnchor  float64
	MartingaleLevel int
	// ClosedRatio is the cumulative fraction of InitialStake already closed
	// by partial adjustments.
	ClosedRatio float64
}

// IsOpen reports whether a position is currently held.
func (p *Position) IsOpen() bool {
	return p != nil && p.Side != types.SideFlat
}

// UpdateTrailingAnchor advances the anchor with the bar's favorable extreme.
func (p *Position) UpdateTrailingAnchor(bar types.Bar) {
	switch p.Side {
	case types.SideLong:
		if bar.High > p.TrailingAnchor {
			p.TrailingAnchor = bar.High
		}
	case types.SideShort:
		if p.TrailingAnchor == 0 || bar.Low < p.TrailingAnchor {
			p.TrailingAnchor = bar.Low
		}
	}
}

// TrailingStopPrice returns the trailing stop level for the given trail
// fraction, or 0 when no anchor has been established.
func (p *Position) TrailingStopPrice(trailPct float64) float64 {
	if trailPct <= 0 || p.TrailingAnchor <= 0 {
		return 0
	}

	if p.Side == types.SideLong {
		return p.TrailingAnchor * (1 - trailPct)
	}

	return p.TrailingAnchor * (1 + trailPct)
}

// RiskState owns every risk counter of one run. It is reset only at the
// start of a run and never shared across concurrent runs: each parameter
// sweep owns its own instance.
type RiskState struct {
	// TradeCountByDay counts entries per UTC calendar day of the entry bar.
	TradeCountByDay map[string]int
	// ConsecutiveLossesByDay tracks the loss streak keyed by the calendar
	// day of the close, not the entry day.
	ConsecutiveLossesByDay map[string]int
	// CooldownUntilIndex blocks entries while the bar index is below it.
	CooldownUntilIndex int
	PeakEquity         float64
	MaxDrawdown        float64
	// MartingaleLevel is the sizing ladder position: up on losses, reset on
	// wins and busts.
	MartingaleLevel int
	// ConsecutiveWins is the current winning streak for anti-martingale sizing.
	ConsecutiveWins int
}

// NewRiskState creates the risk counters for a fresh run.
func NewRiskState(initialEquity float64) *RiskState {
	return &RiskState{
		TradeCountByDay:        make(map[string]int),
		ConsecutiveLossesByDay: make(map[string]int),
		CooldownUntilIndex:     0,
		PeakEquity:             initialEquity,
		MaxDrawdown:            0,
		MartingaleLevel:        0,
		ConsecutiveWins:        0,
	}
}

// ObserveEquity updates the running peak and max drawdown and returns the
// current drawdown fraction. Called once per bar regardless of position
// state, so the streaming value always matches a batch recomputation over
// the snapshot series.
func (r *RiskState) ObserveEquity(equity float64) float64 {
	if equity > r.PeakEquity {
		r.PeakEquity = equity
	}

	if r.PeakEquity <= 0 {
		return 0
	}

	drawdown := (r.PeakEquity - equity) / r.PeakEquity
	if drawdown > r.MaxDrawdown {
		r.MaxDrawdown = drawdown
	}

	return drawdown
}

// RecordEntry counts one entry against the day's trade cap.
func (r *RiskState) RecordEntry(day string) {
	r.TradeCountByDay[day]++
}

// RecordClose updates the win/loss streaks for a full close. The day key is
// the close's calendar day.
func (r *RiskState) RecordClose(day string, win bool) {
	if win {
		r.ConsecutiveLossesByDay[day] = 0
		r.ConsecutiveWins++
		r.MartingaleLevel = 0

		return
	}

	r.ConsecutiveLossesByDay[day]++
	r.ConsecutiveWins = 0
	r.MartingaleLevel++
}

// LossStreak returns the loss streak recorded for the given day.
func (r *RiskState) LossStreak(day string) int {
	return r.ConsecutiveLossesByDay[day]
}

// TradeCount returns the entries recorded for the given day.
func (r *RiskState) TradeCount(day string) int {
	return r.TradeCountByDay[day]
}

// ResetMartingale clears the sizing ladder after a bust. Only the level is
// touched; capital is never changed by a reset.
func (r *RiskState) ResetMartingale() {
	r.MartingaleLevel = 0
}
