package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	backtestengine "github.com/halcyonlab/halcyon/internal/engine"
	engine "github.com/halcyonlab/halcyon/internal/engine/engine_v1"
	"github.com/halcyonlab/halcyon/internal/engine/engine_v1/sink"
	"github.com/halcyonlab/halcyon/internal/logger"
	"github.com/halcyonlab/halcyon/internal/strategy"
	"github.com/halcyonlab/halcyon/internal/version"
)

// runAction executes one backtest per matched data file using the SMA
// crossover source.
func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	dataPath := cmd.String("data")
	outputPath := cmd.String("output")
	fastPeriod := cmd.Int("fast")
	slowPeriod := cmd.Int("slow")

	appLog, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLog.Sync()

	backtester := engine.NewBacktestEngineV1()
	backtester.SetLogger(appLog)

	if err := backtester.SetConfigPath(configPath); err != nil {
		return err
	}

	if err := backtester.SetDataPath(dataPath); err != nil {
		return err
	}

	source, err := strategy.NewSMACrossover(int(fastPeriod), int(slowPeriod))
	if err != nil {
		return err
	}

	if err := backtester.SetSignalSource(source); err != nil {
		return err
	}

	if outputPath != "" {
		if err := backtester.SetResultsFolder(outputPath); err != nil {
			return err
		}

		recorder, err := sink.NewDuckDBSink(appLog)
		if err != nil {
			return err
		}
		defer recorder.Close()

		backtester.SetSink(recorder)
	}

	var bar *progressbar.ProgressBar

	onRunStart := backtestengine.OnRunStartCallback(func(runID, symbol string, totalBars int) error {
		bar = progressbar.Default(int64(totalBars))
		bar.Describe(fmt.Sprintf("Replaying %s", symbol))

		return nil
	})

	onProcessData := backtestengine.OnProcessDataCallback(func(current, total int) error {
		if bar != nil {
			return bar.Add(1)
		}

		return nil
	})

	onRunEnd := backtestengine.OnRunEndCallback(func(runID, resultFolderPath string) {
		if bar != nil {
			_ = bar.Finish()
		}

		if resultFolderPath != "" {
			fmt.Printf("results written to %s\n", resultFolderPath)
		}
	})

	return backtester.Run(ctx, backtestengine.LifecycleCallbacks{
		OnRunStart:    &onRunStart,
		OnRunEnd:      &onRunEnd,
		OnProcessData: &onProcessData,
	})
}

// schemaAction prints the JSON schema of the engine configuration.
func schemaAction(ctx context.Context, cmd *cli.Command) error {
	backtester := engine.NewBacktestEngineV1()

	schema, err := backtester.GetConfigSchema()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "backtest",
		Usage:   "Replay historical bars through a signal source with risk management",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a backtest over CSV market data",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the YAML engine configuration",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "CSV data file or glob pattern (e.g. \"data/*.csv\")",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Directory for run artifacts (summary, trades, equity)",
					},
					&cli.IntFlag{
						Name:  "fast",
						Usage: "Fast SMA period of the crossover source",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "slow",
						Usage: "Slow SMA period of the crossover source",
						Value: 30,
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the engine configuration",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
