package types

import (
	"fmt"
	"os"
	"time"

	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"
)

// EquitySnapshot is one mark-to-market observation per bar. Snapshots are
// append-only and never retroactively edited.
type EquitySnapshot struct {
	Time        time.Time `csv:"time" yaml:"time"`
	Equity      float64   `csv:"equity" yaml:"equity"`
	DrawdownPct float64   `csv:"drawdown_pct" yaml:"drawdown_pct"`
}

type RunStatus string

const (
	// RunStatusCompleted means the full feed was replayed.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusHaltedDataError means the run stopped mid-feed on a malformed
	// or non-monotonic bar. Results up to the halt index are valid.
	RunStatusHaltedDataError RunStatus = "halted_data_error"
	// RunStatusCancelled means the run was abandoned between bars by the caller.
	RunStatusCancelled RunStatus = "cancelled"
)

type TradeCounts struct {
	// Count of all closed trades.
	Total int `yaml:"total"`
	// Count of trades with positive pnl.
	Winning int `yaml:"winning"`
	// Count of trades with negative pnl.
	Losing int `yaml:"losing"`
}

// Summary is the final statistics record of one run. Field names and
// semantics are stable for cross-implementation comparability.
type Summary struct {
	// RunID is the unique identifier of the run.
	RunID string `yaml:"run_id"`
	// Symbol of the instrument, empty for portfolio runs.
	Symbol string `yaml:"symbol"`
	// Timestamp is when the run was executed.
	Timestamp time.Time `yaml:"timestamp"`
	// Status distinguishes completed runs from ones halted on a data error.
	Status RunStatus `yaml:"status"`
	// HaltIndex is the feed index of the offending bar for halted runs.
	HaltIndex optional.Option[int] `yaml:"halt_index,omitempty"`

	InitialEquity float64 `yaml:"initial_equity"`
	FinalEquity   float64 `yaml:"final_equity"`
	// TotalReturn is final_equity/initial_equity - 1.
	TotalReturn float64 `yaml:"total_return"`
	// MaxDrawdown is the peak-to-trough drawdown fraction from the running peak.
	MaxDrawdown float64 `yaml:"max_drawdown"`

	Trades TradeCounts `yaml:"trades"`
	// WinRate is winning/total, 0 when there are no trades.
	WinRate float64 `yaml:"win_rate"`
	// ProfitFactor is gross_profit/gross_loss. When there are no losing
	// trades it is undefined; NoLosingTrades flags that case and
	// ProfitFactor holds 0.
	ProfitFactor   float64 `yaml:"profit_factor"`
	NoLosingTrades bool    `yaml:"no_losing_trades"`
	GrossProfit    float64 `yaml:"gross_profit"`
	GrossLoss      float64 `yaml:"gross_loss"`
	// Sharpe is mean(period returns)/std(period returns) * sqrt(periods per
	// year), 0 when the standard deviation is 0.
	Sharpe float64 `yaml:"sharpe"`

	TotalFees  float64 `yaml:"total_fees"`
	RiskEvents int     `yaml:"risk_events"`
}

// WriteSummary writes the summary of a run to a YAML file.
func WriteSummary(path string, summary Summary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary to file: %w", err)
	}

	return nil
}
