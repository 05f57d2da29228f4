package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/halcyonlab/halcyon/internal/feed"
)

// generateAction writes one synthetic CSV series per requested symbol.
func generateAction(ctx context.Context, cmd *cli.Command) error {
	symbols := strings.Split(cmd.String("symbols"), ",")
	outputDir := cmd.String("output")

	config := feed.DefaultGeneratorConfig()
	config.Count = int(cmd.Int("count"))
	config.InitialPrice = cmd.Float64("price")
	config.Volatility = cmd.Float64("volatility")
	config.Trend = cmd.Float64("trend")

	interval, err := time.ParseDuration(cmd.String("interval"))
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}

	config.Interval = interval

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	gen := feed.NewGenerator(int64(cmd.Int("seed")))
	series := gen.GenerateMultiSymbol(symbols, config)

	bar := progressbar.Default(int64(len(series)))
	bar.Describe("Writing CSV files")

	for symbol, bars := range series {
		path := filepath.Join(outputDir, fmt.Sprintf("%s.csv", symbol))
		if err := feed.WriteCSV(path, bars); err != nil {
			return err
		}

		if err := bar.Add(1); err != nil {
			return err
		}
	}

	return bar.Finish()
}

func main() {
	cmd := &cli.Command{
		Name:  "data",
		Usage: "Generate synthetic OHLCV market data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "symbols",
				Aliases: []string{"s"},
				Usage:   "Comma-separated symbols to generate",
				Value:   "SYNTH",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory for CSV files",
				Value:   "data",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Number of bars per symbol",
				Value:   10000,
			},
			&cli.StringFlag{
				Name:  "interval",
				Usage: "Bar interval as a Go duration (e.g. 1h, 5m)",
				Value: "1h",
			},
			&cli.Float64Flag{
				Name:  "price",
				Usage: "Initial price",
				Value: 100,
			},
			&cli.Float64Flag{
				Name:  "volatility",
				Usage: "Per-bar volatility fraction",
				Value: 0.002,
			},
			&cli.Float64Flag{
				Name:  "trend",
				Usage: "Total drift over the whole series",
				Value: 0,
			},
			&cli.IntFlag{
				Name:  "seed",
				Usage: "Random seed for reproducible series",
				Value: 42,
			},
		},
		Action: generateAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
