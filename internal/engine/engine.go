// Package engine defines the public surface of the backtest engines and the
// lifecycle callbacks callers use to observe a run.
package engine

import (
	"context"

	"github.com/halcyonlab/halcyon/internal/feed"
	"github.com/halcyonlab/halcyon/internal/strategy"
)

// Lifecycle callback types for backtest phases.
// All callbacks with an error return can abort execution by returning one.

// OnRunStartCallback is called when processing of one data feed begins.
// runID is a unique identifier for the run, generated before processing.
type OnRunStartCallback func(runID string, symbol string, totalBars int) error

// OnRunEndCallback is called when processing of one data feed ends.
type OnRunEndCallback func(runID string, resultFolderPath string)

// OnProcessDataCallback is called for each bar processed.
type OnProcessDataCallback func(current int, total int) error

// LifecycleCallbacks holds the lifecycle callback functions for a backtest.
// All fields are pointers; nil means no callback will be invoked.
type LifecycleCallbacks struct {
	OnRunStart    *OnRunStartCallback
	OnRunEnd      *OnRunEndCallback
	OnProcessData *OnProcessDataCallback
}

type Engine interface {
	// Initialize configures the engine from YAML content. Invalid
	// configuration fails here, before any run starts.
	Initialize(config string) error
	// SetConfigPath reads the configuration from a file.
	SetConfigPath(path string) error
	// SetDataPath points the engine at market data CSV files. Accepts glob
	// patterns for batch loading (e.g. "data/*.csv"); each file is one run.
	SetDataPath(path string) error
	// SetFeed supplies a bar feed directly, bypassing SetDataPath. Used for
	// programmatic runs and tests.
	SetFeed(symbol string, f feed.Feed) error
	// SetResultsFolder sets the output directory for run artifacts.
	SetResultsFolder(folder string) error
	// SetSignalSource installs the signal source driving entries and exits.
	SetSignalSource(source strategy.SignalSource) error
	// Run executes one backtest per configured feed. The context cancels
	// between bars; a cancelled run is finalized with its partial results.
	Run(ctx context.Context, callbacks LifecycleCallbacks) error
	// GetConfigSchema returns the JSON schema of the engine configuration.
	GetConfigSchema() (string, error)
}
