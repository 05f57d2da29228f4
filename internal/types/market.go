package types

import (
	"time"

	"github.com/halcyonlab/halcyon/pkg/errors"
)

// Bar is a single OHLCV observation for a fixed time interval.
// Bars are immutable once constructed; the engine never mutates them and
// shares them freely across concurrent runs.
type Bar struct {
	Symbol string    `csv:"symbol" yaml:"symbol"`
	Time   time.Time `csv:"time" yaml:"time"`
	Open   float64   `csv:"open" yaml:"open"`
	High   float64   `csv:"high" yaml:"high"`
	Low    float64   `csv:"low" yaml:"low"`
	Close  float64   `csv:"close" yaml:"close"`
	Volume float64   `csv:"volume" yaml:"volume"`
}

// Validate checks OHLC sanity. Timestamp ordering is a feed-level property
// checked by the replay loop, which knows the bar index.
func (b Bar) Validate() error {
	if b.Time.IsZero() {
		return errors.New(errors.ErrCodeMalformedBar, "bar has zero timestamp")
	}

	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return errors.Newf(errors.ErrCodeMalformedBar,
			"bar has non-positive price: open=%f high=%f low=%f close=%f",
			b.Open, b.High, b.Low, b.Close)
	}

	if b.High < b.Open || b.High < b.Close {
		return errors.Newf(errors.ErrCodeMalformedBar,
			"bar high %f below max(open=%f, close=%f)", b.High, b.Open, b.Close)
	}

	if b.Low > b.Open || b.Low > b.Close {
		return errors.Newf(errors.ErrCodeMalformedBar,
			"bar low %f above min(open=%f, close=%f)", b.Low, b.Open, b.Close)
	}

	if b.Volume < 0 {
		return errors.Newf(errors.ErrCodeMalformedBar, "bar has negative volume: %f", b.Volume)
	}

	return nil
}

// Day returns the UTC calendar day key used by daily risk counters.
func (b Bar) Day() string {
	return b.Time.UTC().Format("2006-01-02")
}
