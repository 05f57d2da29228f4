package strategy

import (
	"github.com/halcyonlab/halcyon/internal/types"
	"github.com/halcyonlab/halcyon/pkg/errors"
)

// MomentumWeights allocates toward the symbols with the strongest trailing
// return: each symbol's lookback return is floored at zero and the positive
// momenta are normalized into weights. When no symbol has positive momentum
// the portfolio goes fully to cash.
type MomentumWeights struct {
	lookback int
}

// NewMomentumWeights builds a momentum weight source over the given lookback.
func NewMomentumWeights(lookback int) (*MomentumWeights, error) {
	if lookback <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"momentum lookback must be positive, got %d", lookback)
	}

	return &MomentumWeights{lookback: lookback}, nil
}

func (m *MomentumWeights) Name() string {
	return "momentum_weights"
}

func (m *MomentumWeights) Weights(windows map[string][]types.Bar) (map[string]float64, error) {
	momenta := make(map[string]float64, len(windows))

	total := 0.0

	for symbol, window := range windows {
		if len(window) < m.lookback+1 {
			continue
		}

		past := window[len(window)-1-m.lookback].Close
		latest := window[len(window)-1].Close

		if past <= 0 {
			return nil, errors.Newf(errors.ErrCodeMalformedBar,
				"non-positive close %f for symbol %q", past, symbol)
		}

		momentum := latest/past - 1
		if momentum <= 0 {
			continue
		}

		momenta[symbol] = momentum
		total += momentum
	}

	weights := make(map[string]float64, len(momenta))
	for symbol, momentum := range momenta {
		weights[symbol] = momentum / total
	}

	return weights, nil
}
