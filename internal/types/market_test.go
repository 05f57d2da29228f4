package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MarketTestSuite struct {
	suite.Suite
}

func TestMarketSuite(t *testing.T) {
	suite.Run(t, new(MarketTestSuite))
}

func (suite *MarketTestSuite) TestBarStruct() {
	now := time.Now()
	bar := Bar{
		Symbol: "AAPL",
		Time:   now,
		Open:   150.0,
		High:   155.0,
		Low:    148.0,
		Close:  152.5,
		Volume: 1000000.0,
	}

	suite.Equal("AAPL", bar.Symbol)
	suite.Equal(now, bar.Time)
	suite.Equal(150.0, bar.Open)
	suite.Equal(155.0, bar.High)
	suite.Equal(148.0, bar.Low)
	suite.Equal(152.5, bar.Close)
	suite.Equal(1000000.0, bar.Volume)
}

func (suite *MarketTestSuite) TestBarValidate() {
	base := Bar{
		Symbol: "AAPL",
		Time:   time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Open:   100,
		High:   105,
		Low:    98,
		Close:  103,
		Volume: 500,
	}

	tests := []struct {
		name    string
		mutate  func(b Bar) Bar
		wantErr bool
	}{
		{"valid bar", func(b Bar) Bar { return b }, false},
		{"doji bar", func(b Bar) Bar { b.Open, b.High, b.Low, b.Close = 100, 100, 100, 100; return b }, false},
		{"zero timestamp", func(b Bar) Bar { b.Time = time.Time{}; return b }, true},
		{"negative open", func(b Bar) Bar { b.Open = -1; return b }, true},
		{"zero close", func(b Bar) Bar { b.Close = 0; return b }, true},
		{"high below open", func(b Bar) Bar { b.High = 99; return b }, true},
		{"high below close", func(b Bar) Bar { b.High = 102; return b }, true},
		{"low above open", func(b Bar) Bar { b.Low = 101; return b }, true},
		{"low above close", func(b Bar) Bar { b.Low = 104; b.Open = 104.5; b.High = 106; return b }, true},
		{"negative volume", func(b Bar) Bar { b.Volume = -10; return b }, true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			err := tc.mutate(base).Validate()
			if tc.wantErr {
				suite.Error(err)
			} else {
				suite.NoError(err)
			}
		})
	}
}

func (suite *MarketTestSuite) TestBarDay() {
	bar := Bar{Time: time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("UTC+2", 2*3600))}
	// 23:30 UTC+2 is 21:30 UTC, still March 1st
	suite.Equal("2024-03-01", bar.Day())

	bar = Bar{Time: time.Date(2024, 3, 2, 1, 30, 0, 0, time.FixedZone("UTC+2", 2*3600))}
	// 01:30 UTC+2 is 23:30 UTC the previous day
	suite.Equal("2024-03-01", bar.Day())
}
