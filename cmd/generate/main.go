package main

import (
	"log"
	"os"
	"path/filepath"

	engine "github.com/halcyonlab/halcyon/internal/engine/engine_v1"
)

const sampleConfig = `initial_capital: 10000
leverage: 1
fee_rate: 0.001
slippage_rate: 0.0005
stop_loss_pct: 0.03
take_profit_pct: 0.06
trailing_stop_pct: 0
max_hold_bars: 0
liquidation_safety_factor: 0.8
window_size: 50
max_daily_trades: 0
max_consecutive_losses: 0
cooldown_bars: 0
periods_per_year: 252
sizing:
  policy: fixed_fraction
  position_ratio: 0.5
rebalance:
  cadence_bars: 1
  fee_rate: 0.001
`

func main() {
	config := engine.DefaultConfig()

	schemaJSON, err := config.GenerateSchemaJSON()
	if err != nil {
		log.Fatalf("Failed to generate schema: %v", err)
	}

	schemaPath := filepath.Join("./config", "backtest-engine-v1-config.json")
	sampleConfigPath := filepath.Join("./config", "backtest-engine-v1-config.yaml")

	if err := os.MkdirAll(filepath.Dir(schemaPath), 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0644); err != nil {
		log.Fatalf("Failed to write schema to file: %v", err)
	}

	// Write the sample config only when none exists yet.
	if _, err := os.Stat(sampleConfigPath); os.IsNotExist(err) {
		if err := os.WriteFile(sampleConfigPath, []byte(sampleConfig), 0644); err != nil {
			log.Fatalf("Failed to write sample config: %v", err)
		}
	}

	log.Printf("Schema written to %s", schemaPath)
}
