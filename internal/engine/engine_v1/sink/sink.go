// Package sink persists the artifacts of a backtest run: trades, risk
// events, and the equity curve.
package sink

import (
	"github.com/halcyonlab/halcyon/internal/types"
)

// Sink receives run artifacts as they are produced. Implementations are
// owned by a single run and never shared.
type Sink interface {
	// RecordTrade stores one closed trade.
	RecordTrade(trade types.Trade) error
	// RecordEvent stores one risk event.
	RecordEvent(event types.RiskEvent) error
	// RecordSnapshot stores one per-bar equity snapshot.
	RecordSnapshot(snapshot types.EquitySnapshot) error
	// Write exports everything recorded so far to the given directory.
	Write(path string) error
	// Close releases the sink's resources.
	Close() error
}
