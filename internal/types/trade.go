package types

import "time"

type Side string

const (
	SideFlat  Side = "flat"
	SideLong  Side = "long"
	SideShort Side = "short"
)

type ExitReason string

const (
	ExitReasonStopLoss     ExitReason = "stop_loss"
	ExitReasonTakeProfit   ExitReason = "take_profit"
	ExitReasonMaxHold      ExitReason = "max_hold"
	ExitReasonSignal       ExitReason = "signal"
	ExitReasonTrailingStop ExitReason = "trailing_stop"
	ExitReasonLiquidation  ExitReason = "liquidation"
	ExitReasonAdjust       ExitReason = "adjust"
	ExitReasonEndOfData    ExitReason = "end_of_data"
)

// Trade is an immutable record created when a position fully or partially
// closes. Appended to an ordered trade log and never mutated afterward.
type Trade struct {
	ID         string     `csv:"id" yaml:"id"`
	Symbol     string     `csv:"symbol" yaml:"symbol"`
	Side       Side       `csv:"side" yaml:"side"`
	EntryTime  time.Time  `csv:"entry_time" yaml:"entry_time"`
	ExitTime   time.Time  `csv:"exit_time" yaml:"exit_time"`
	EntryPrice float64    `csv:"entry_price" yaml:"entry_price"`
	ExitPrice  float64    `csv:"exit_price" yaml:"exit_price"`
	// Size is the capital at risk for the closed fraction, in account currency.
	Size     float64 `csv:"size" yaml:"size"`
	Leverage float64 `csv:"leverage" yaml:"leverage"`
	// FeePaid is the round-trip fee and slippage cost charged on this close.
	FeePaid     float64    `csv:"fee_paid" yaml:"fee_paid"`
	RealizedPnL float64    `csv:"realized_pnl" yaml:"realized_pnl"`
	ExitReason  ExitReason `csv:"exit_reason" yaml:"exit_reason"`
	// ClosedRatio is the cumulative fraction of the original position closed
	// after this trade, 1.0 for a full close.
	ClosedRatio float64 `csv:"closed_ratio" yaml:"closed_ratio"`
	// Reason is the strategy-supplied note, when the close came from a signal.
	Reason string `csv:"reason" yaml:"reason"`
}

// IsWin reports whether the trade realized a profit.
func (t Trade) IsWin() bool {
	return t.RealizedPnL > 0
}
