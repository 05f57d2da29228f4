// Package sizing holds the pluggable position sizing policies. Every policy
// is a pure function of the current capital and the explicit risk counters:
// calling it twice with identical inputs yields identical output, and no
// policy keeps hidden mutable state.
package sizing

import (
	"github.com/halcyonlab/halcyon/pkg/errors"
)

// Risk is the slice of risk state a sizing policy is allowed to see.
type Risk struct {
	// MartingaleLevel is the number of consecutive losses, clamped to the
	// configured sequence and reset on wins or busts by the state machine.
	MartingaleLevel int
	// ConsecutiveWins is the current winning streak, used by anti-martingale.
	ConsecutiveWins int
}

// Policy computes the capital at risk for the next entry.
type Policy interface {
	// Name returns the policy identifier used in configuration.
	Name() PolicyName
	// Size returns the stake for the next trade. Implementations cap the
	// result at capital: a trade can never stake more than is available.
	Size(capital float64, risk Risk) float64
	// BaseStake returns the policy's reference stake, used by the bust check
	// (capital < base stake). Zero means the policy has no bust concept.
	BaseStake() float64
}

type PolicyName string

const (
	PolicyFixedFraction PolicyName = "fixed_fraction"
	PolicyMartingale    PolicyName = "martingale"
	PolicyParoli        PolicyName = "paroli"
)

// AllPolicies lists the valid sizing policy names for schema generation.
var AllPolicies = []any{
	PolicyFixedFraction,
	PolicyMartingale,
	PolicyParoli,
}

func capAt(size, capital float64) float64 {
	if capital <= 0 {
		return 0
	}

	if size > capital {
		return capital
	}

	if size < 0 {
		return 0
	}

	return size
}

// FixedFraction stakes a constant fraction of current capital.
type FixedFraction struct {
	ratio float64
}

// NewFixedFraction creates a fixed-fraction policy staking capital*ratio.
func NewFixedFraction(ratio float64) *FixedFraction {
	return &FixedFraction{ratio: ratio}
}

func (p *FixedFraction) Name() PolicyName { return PolicyFixedFraction }

func (p *FixedFraction) BaseStake() float64 { return 0 }

func (p *FixedFraction) Size(capital float64, _ Risk) float64 {
	return capAt(capital*p.ratio, capital)
}

// Martingale stakes baseStake * sequence[level]; the level advances on
// losses and resets on wins or busts, tracked by the caller's risk state.
type Martingale struct {
	baseStake float64
	sequence  []float64
}

// NewMartingale creates a martingale policy over the caller-supplied
// multiplier sequence (e.g. [1, 3, 9, 27, 81]).
func NewMartingale(baseStake float64, sequence []float64) *Martingale {
	seq := make([]float64, len(sequence))
	copy(seq, sequence)

	return &Martingale{baseStake: baseStake, sequence: seq}
}

func (p *Martingale) Name() PolicyName { return PolicyMartingale }

func (p *Martingale) BaseStake() float64 { return p.baseStake }

func (p *Martingale) Size(capital float64, risk Risk) float64 {
	if len(p.sequence) == 0 {
		return 0
	}

	level := risk.MartingaleLevel
	if level < 0 {
		level = 0
	}

	// A streak longer than the sequence stays at the last multiplier.
	if level >= len(p.sequence) {
		level = len(p.sequence) - 1
	}

	return capAt(p.baseStake*p.sequence[level], capital)
}

// Paroli is the anti-martingale: the stake grows on wins up to
// maxConsecutiveWins, then the streak resets. Mirrors Martingale with the
// win/loss roles inverted.
type Paroli struct {
	baseStake          float64
	growthFactor       float64
	maxConsecutiveWins int
}

// NewParoli creates an anti-martingale policy multiplying the stake by
// growthFactor per consecutive win.
func NewParoli(baseStake, growthFactor float64, maxConsecutiveWins int) *Paroli {
	return &Paroli{
		baseStake:          baseStake,
		growthFactor:       growthFactor,
		maxConsecutiveWins: maxConsecutiveWins,
	}
}

func (p *Paroli) Name() PolicyName { return PolicyParoli }

func (p *Paroli) BaseStake() float64 { return p.baseStake }

func (p *Paroli) Size(capital float64, risk Risk) float64 {
	wins := risk.ConsecutiveWins
	if wins < 0 {
		wins = 0
	}

	// The streak resets after maxConsecutiveWins, so the stake does too.
	if p.maxConsecutiveWins > 0 {
		wins = wins % p.maxConsecutiveWins
	}

	size := p.baseStake
	for i := 0; i < wins; i++ {
		size *= p.growthFactor
	}

	return capAt(size, capital)
}

// Settings selects and parameterizes a policy from configuration.
type Settings struct {
	Policy             PolicyName `yaml:"policy" json:"policy" validate:"required,oneof=fixed_fraction martingale paroli"`
	PositionRatio      float64    `yaml:"position_ratio" json:"position_ratio" validate:"gte=0,lte=1"`
	BaseStake          float64    `yaml:"base_stake" json:"base_stake" validate:"gte=0"`
	Sequence           []float64  `yaml:"sequence" json:"sequence"`
	GrowthFactor       float64    `yaml:"growth_factor" json:"growth_factor" validate:"gte=0"`
	MaxConsecutiveWins int        `yaml:"max_consecutive_wins" json:"max_consecutive_wins" validate:"gte=0"`
}

// GetPolicy builds the configured policy. Invalid settings are configuration
// errors raised at construction time, never mid-run.
func GetPolicy(settings Settings) (Policy, error) {
	switch settings.Policy {
	case PolicyFixedFraction:
		if settings.PositionRatio <= 0 || settings.PositionRatio > 1 {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
				"fixed fraction position_ratio must be in (0, 1], got %f", settings.PositionRatio)
		}

		return NewFixedFraction(settings.PositionRatio), nil
	case PolicyMartingale:
		if len(settings.Sequence) == 0 {
			return nil, errors.New(errors.ErrCodeEmptySizingSequence, "martingale sequence is empty")
		}

		if settings.BaseStake <= 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
				"martingale base_stake must be positive, got %f", settings.BaseStake)
		}

		for i, multiplier := range settings.Sequence {
			if multiplier <= 0 {
				return nil, errors.Newf(errors.ErrCodeEmptySizingSequence,
					"martingale sequence multiplier %d must be positive, got %f", i, multiplier)
			}
		}

		return NewMartingale(settings.BaseStake, settings.Sequence), nil
	case PolicyParoli:
		if settings.BaseStake <= 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
				"paroli base_stake must be positive, got %f", settings.BaseStake)
		}

		if settings.GrowthFactor <= 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
				"paroli growth_factor must be positive, got %f", settings.GrowthFactor)
		}

		return NewParoli(settings.BaseStake, settings.GrowthFactor, settings.MaxConsecutiveWins), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownSizingPolicy, "unknown sizing policy %q", settings.Policy)
	}
}
