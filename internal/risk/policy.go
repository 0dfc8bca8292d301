package risk

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Weights assigns the relative importance of each risk factor. They must
// sum to 1 so the total score stays on the 0-100 scale.
type Weights struct {
	TraderHistory float64 `yaml:"trader_history"`
	Commodity     float64 `yaml:"commodity"`
	Origin        float64 `yaml:"origin"`
	ValueAnomaly  float64 `yaml:"value_anomaly"`
	Documents     float64 `yaml:"documents"`
}

// Thresholds are the channel boundaries. A score exactly on a boundary
// routes to the stricter channel.
type Thresholds struct {
	Documentary float64 `yaml:"documentary"`
	Physical    float64 `yaml:"physical"`
	Detailed    float64 `yaml:"detailed"`
}

// Policy bundles weights and thresholds. Exact figures are jurisdiction
// policy, not contract, so callers pass a Policy into every assessment
// instead of the engine reading package state.
type Policy struct {
	Weights    Weights    `yaml:"weights"`
	Thresholds Thresholds `yaml:"thresholds"`
}

// DefaultPolicy returns the standard five-factor split with 20/50/75
// channel boundaries.
func DefaultPolicy() Policy {
	return Policy{
		Weights: Weights{
			TraderHistory: 0.30,
			Commodity:     0.25,
			Origin:        0.20,
			ValueAnomaly:  0.15,
			Documents:     0.10,
		},
		Thresholds: Thresholds{
			Documentary: 20,
			Physical:    50,
			Detailed:    75,
		},
	}
}

// LoadPolicy reads a policy from a YAML file and validates it.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read risk policy: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse risk policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks that weights sum to 1 and thresholds increase strictly
// within the 0-100 score range.
func (p Policy) Validate() error {
	sum := p.Weights.TraderHistory + p.Weights.Commodity + p.Weights.Origin +
		p.Weights.ValueAnomaly + p.Weights.Documents
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("risk weights sum to %v, expected 1.0", sum)
	}
	t := p.Thresholds
	if !(0 < t.Documentary && t.Documentary < t.Physical && t.Physical < t.Detailed && t.Detailed <= 100) {
		return fmt.Errorf("risk thresholds %v/%v/%v are not strictly increasing within 0-100",
			t.Documentary, t.Physical, t.Detailed)
	}
	return nil
}
