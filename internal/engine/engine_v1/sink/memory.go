package sink

import (
	"github.com/halcyonlab/halcyon/internal/types"
)

// MemorySink keeps everything in slices. Used for programmatic runs and
// tests where no export is needed.
type MemorySink struct {
	trades    []types.Trade
	events    []types.RiskEvent
	snapshots []types.EquitySnapshot
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) RecordTrade(trade types.Trade) error {
	m.trades = append(m.trades, trade)

	return nil
}

func (m *MemorySink) RecordEvent(event types.RiskEvent) error {
	m.events = append(m.events, event)

	return nil
}

func (m *MemorySink) RecordSnapshot(snapshot types.EquitySnapshot) error {
	m.snapshots = append(m.snapshots, snapshot)

	return nil
}

// Write is a no-op for the in-memory sink.
func (m *MemorySink) Write(string) error {
	return nil
}

func (m *MemorySink) Close() error {
	return nil
}

// Trades returns the recorded trades in insertion order.
func (m *MemorySink) Trades() []types.Trade {
	return m.trades
}

// Events returns the recorded risk events in insertion order.
func (m *MemorySink) Events() []types.RiskEvent {
	return m.events
}

// Snapshots returns the recorded equity snapshots in insertion order.
func (m *MemorySink) Snapshots() []types.EquitySnapshot {
	return m.snapshots
}
