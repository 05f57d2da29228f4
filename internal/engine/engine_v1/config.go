package engine

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/halcyonlab/halcyon/internal/engine/engine_v1/sizing"
	"github.com/halcyonlab/halcyon/internal/version"
	"github.com/halcyonlab/halcyon/pkg/errors"
)

// Session is a trading-session window in "HH:MM" wall-clock time (UTC).
// Entries are only allowed while the bar time falls inside a session;
// exits are always allowed.
type Session struct {
	Open  string `yaml:"open" json:"open" validate:"required"`
	Close string `yaml:"close" json:"close" validate:"required"`
}

// Contains reports whether t falls inside the session window. Windows may
// wrap past midnight (e.g. 22:00-02:00).
func (s Session) Contains(t time.Time) bool {
	open, errOpen := time.Parse("15:04", s.Open)
	close, errClose := time.Parse("15:04", s.Close)

	if errOpen != nil || errClose != nil {
		return false
	}

	minutes := t.UTC().Hour()*60 + t.UTC().Minute()
	openMinutes := open.Hour()*60 + open.Minute()
	closeMinutes := close.Hour()*60 + close.Minute()

	if openMinutes <= closeMinutes {
		return minutes >= openMinutes && minutes < closeMinutes
	}

	return minutes >= openMinutes || minutes < closeMinutes
}

// RebalanceConfig parameterizes the multi-asset rebalancer path.
type RebalanceConfig struct {
	// CadenceBars is the number of bars between rebalances.
	CadenceBars int `yaml:"cadence_bars" json:"cadence_bars" validate:"gte=0"`
	// FeeRate is the proportional fee charged on each executed delta.
	FeeRate float64 `yaml:"fee_rate" json:"fee_rate" validate:"gte=0"`
}

// Config is the full, immutable configuration of one backtest run. All of it
// is supplied at construction; nothing is read from process-wide state.
type Config struct {
	// ConfigVersion is the engine version the config was written against.
	// Empty skips the compatibility check.
	ConfigVersion string `yaml:"config_version" json:"config_version" jsonschema:"title=Config Version"`

	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" validate:"required,gt=0" jsonschema:"title=Initial Capital,description=Starting capital for the backtest,minimum=0"`
	Leverage       float64 `yaml:"leverage" json:"leverage" validate:"required,gt=0" jsonschema:"title=Leverage,description=Multiplier applied to price returns"`
	FeeRate        float64 `yaml:"fee_rate" json:"fee_rate" validate:"gte=0" jsonschema:"title=Fee Rate,description=Proportional fee per side"`
	SlippageRate   float64 `yaml:"slippage_rate" json:"slippage_rate" validate:"gte=0" jsonschema:"title=Slippage Rate,description=Proportional slippage per side"`

	// StopLossPct and TakeProfitPct are fractions of the entry price; zero
	// disables the level. Strategy signals may override both with absolute
	// prices (ATR-multiple levels pass through this way).
	StopLossPct     float64 `yaml:"stop_loss_pct" json:"stop_loss_pct" validate:"gte=0,lt=1"`
	TakeProfitPct   float64 `yaml:"take_profit_pct" json:"take_profit_pct" validate:"gte=0"`
	TrailingStopPct float64 `yaml:"trailing_stop_pct" json:"trailing_stop_pct" validate:"gte=0,lt=1"`
	// MaxHoldBars forces an exit after the position has been open this many
	// bars; zero disables the limit.
	MaxHoldBars int `yaml:"max_hold_bars" json:"max_hold_bars" validate:"gte=0"`
	// LiquidationSafetyFactor shrinks the 1/leverage liquidation threshold.
	LiquidationSafetyFactor float64 `yaml:"liquidation_safety_factor" json:"liquidation_safety_factor" validate:"gte=0,lte=1"`

	// WindowSize is the trailing bar window handed to the signal source.
	WindowSize int `yaml:"window_size" json:"window_size" validate:"required,gt=0"`

	// Circuit breakers. Zero disables the respective cap.
	MaxDailyTrades       int `yaml:"max_daily_trades" json:"max_daily_trades" validate:"gte=0"`
	MaxConsecutiveLosses int `yaml:"max_consecutive_losses" json:"max_consecutive_losses" validate:"gte=0"`
	// CooldownBars blocks entries for this many bars after the
	// consecutive-loss cap trips.
	CooldownBars int `yaml:"cooldown_bars" json:"cooldown_bars" validate:"gte=0"`

	Sessions []Session `yaml:"sessions" json:"sessions" validate:"dive"`

	Sizing sizing.Settings `yaml:"sizing" json:"sizing" validate:"required"`

	// PeriodsPerYear annualizes the Sharpe ratio (e.g. 252 for daily bars,
	// 365*24 for hourly crypto bars).
	PeriodsPerYear float64 `yaml:"periods_per_year" json:"periods_per_year" validate:"gte=0"`

	Rebalance RebalanceConfig `yaml:"rebalance" json:"rebalance"`

	// StartTime and EndTime optionally clip the feed range.
	StartTime optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time"`
	EndTime   optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time"`
}

// UnmarshalYAML implements custom unmarshaling so optional times read as
// plain timestamps.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plainConfig struct {
		ConfigVersion           string          `yaml:"config_version"`
		InitialCapital          float64         `yaml:"initial_capital"`
		Leverage                float64         `yaml:"leverage"`
		FeeRate                 float64         `yaml:"fee_rate"`
		SlippageRate            float64         `yaml:"slippage_rate"`
		StopLossPct             float64         `yaml:"stop_loss_pct"`
		TakeProfitPct           float64         `yaml:"take_profit_pct"`
		TrailingStopPct         float64         `yaml:"trailing_stop_pct"`
		MaxHoldBars             int             `yaml:"max_hold_bars"`
		LiquidationSafetyFactor float64         `yaml:"liquidation_safety_factor"`
		WindowSize              int             `yaml:"window_size"`
		MaxDailyTrades          int             `yaml:"max_daily_trades"`
		MaxConsecutiveLosses    int             `yaml:"max_consecutive_losses"`
		CooldownBars            int             `yaml:"cooldown_bars"`
		Sessions                []Session       `yaml:"sessions"`
		Sizing                  sizing.Settings `yaml:"sizing"`
		PeriodsPerYear          float64         `yaml:"periods_per_year"`
		Rebalance               RebalanceConfig `yaml:"rebalance"`
		StartTime               *time.Time      `yaml:"start_time"`
		EndTime                 *time.Time      `yaml:"end_time"`
	}

	var plain plainConfig
	if err := value.Decode(&plain); err != nil {
		return err
	}

	c.ConfigVersion = plain.ConfigVersion
	c.InitialCapital = plain.InitialCapital
	c.Leverage = plain.Leverage
	c.FeeRate = plain.FeeRate
	c.SlippageRate = plain.SlippageRate
	c.StopLossPct = plain.StopLossPct
	c.TakeProfitPct = plain.TakeProfitPct
	c.TrailingStopPct = plain.TrailingStopPct
	c.MaxHoldBars = plain.MaxHoldBars
	c.LiquidationSafetyFactor = plain.LiquidationSafetyFactor
	c.WindowSize = plain.WindowSize
	c.MaxDailyTrades = plain.MaxDailyTrades
	c.MaxConsecutiveLosses = plain.MaxConsecutiveLosses
	c.CooldownBars = plain.CooldownBars
	c.Sessions = plain.Sessions
	c.Sizing = plain.Sizing
	c.PeriodsPerYear = plain.PeriodsPerYear
	c.Rebalance = plain.Rebalance

	if plain.StartTime != nil {
		c.StartTime = optional.Some(*plain.StartTime)
	} else {
		c.StartTime = optional.None[time.Time]()
	}

	if plain.EndTime != nil {
		c.EndTime = optional.Some(*plain.EndTime)
	} else {
		c.EndTime = optional.None[time.Time]()
	}

	return nil
}

// ParseConfig decodes and validates a YAML configuration. Every rejection is
// a configuration error raised here, before the run starts.
func ParseConfig(content string) (Config, error) {
	config := DefaultConfig()

	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config YAML", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate enforces the construction-time rules of the engine. Runs never
// see an invalid configuration.
func (c *Config) Validate() error {
	if c.ConfigVersion != "" {
		if err := version.CheckCompatibility(version.GetVersion(), c.ConfigVersion); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfiguration, "incompatible config version", err)
		}
	}

	if c.Leverage <= 0 {
		return errors.Newf(errors.ErrCodeInvalidLeverage, "leverage must be positive, got %f", c.Leverage)
	}

	if c.InitialCapital <= 0 {
		return errors.Newf(errors.ErrCodeInvalidCapital, "initial capital must be positive, got %f", c.InitialCapital)
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	// A stop that cannot fire before the take profit on the same side of the
	// entry is a contradiction, not a strategy choice.
	if c.StopLossPct > 0 && c.StopLossPct >= 1 {
		return errors.Newf(errors.ErrCodeInvalidStopLevels, "stop_loss_pct must be below 1, got %f", c.StopLossPct)
	}

	for _, session := range c.Sessions {
		if _, err := time.Parse("15:04", session.Open); err != nil {
			return errors.Newf(errors.ErrCodeInvalidSession, "invalid session open time %q", session.Open)
		}

		if _, err := time.Parse("15:04", session.Close); err != nil {
			return errors.Newf(errors.ErrCodeInvalidSession, "invalid session close time %q", session.Close)
		}
	}

	if c.MaxConsecutiveLosses > 0 && c.CooldownBars < 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "cooldown_bars must be non-negative")
	}

	if _, err := sizing.GetPolicy(c.Sizing); err != nil {
		return err
	}

	return nil
}

// DefaultConfig returns the configuration defaults applied before YAML
// decoding.
func DefaultConfig() Config {
	return Config{
		Leverage:                1,
		LiquidationSafetyFactor: 0.8,
		WindowSize:              50,
		PeriodsPerYear:          252,
		Sizing: sizing.Settings{
			Policy:        sizing.PolicyFixedFraction,
			PositionRatio: 1.0,
		},
		Rebalance: RebalanceConfig{CadenceBars: 1},
		StartTime: optional.None[time.Time](),
		EndTime:   optional.None[time.Time](),
	}
}

// GenerateSchema generates a JSON schema for the engine configuration.
func (c *Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}
			if strings.Contains(t.String(), "sizing.PolicyName") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: sizing.AllPolicies,
				}
			}
			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for BacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates a JSON schema string for the engine
// configuration.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
