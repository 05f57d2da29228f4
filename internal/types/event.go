package types

import "time"

type RiskEventKind string

const (
	// RiskEventBust records capital falling below the martingale base stake;
	// the sizing level resets to zero, capital is untouched.
	RiskEventBust RiskEventKind = "bust"
	// RiskEventLiquidation records a forced full-loss close from the
	// liquidation guard.
	RiskEventLiquidation RiskEventKind = "liquidation"
	// RiskEventCircuitBreaker records an entry rejected by the daily trade
	// cap or consecutive-loss cap.
	RiskEventCircuitBreaker RiskEventKind = "circuit_breaker"
	// RiskEventCooldown records an entry rejected by an active cooldown.
	RiskEventCooldown RiskEventKind = "cooldown"
	// RiskEventIgnoredSignal records an invalid signal that was dropped
	// (e.g. exit with no open position).
	RiskEventIgnoredSignal RiskEventKind = "ignored_signal"
)

// RiskEvent is a structured, non-fatal event recorded alongside the trade
// log. The run continues after every one of them.
type RiskEvent struct {
	Time   time.Time     `csv:"time" yaml:"time"`
	Index  int           `csv:"index" yaml:"index"`
	Kind   RiskEventKind `csv:"kind" yaml:"kind"`
	Detail string        `csv:"detail" yaml:"detail"`
}
