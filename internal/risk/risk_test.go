package risk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradegate/customs-api/internal/types"
)

func testEngine() *Engine {
	return NewEngine(DefaultPolicy(), NewStaticReference())
}

func TestAssessDeterministic(t *testing.T) {
	e := testEngine()
	in := Input{
		TraderViolationRate: 0.3,
		CommodityTier:       TierHigh,
		OriginTier:          TierMedium,
		ValueAnomalyRatio:   1.1,
		DocumentsComplete:   true,
	}

	first := e.Assess(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Assess(in))
	}
	require.Len(t, first.Factors, 5)

	// Total equals the sum of the retained weighted factors.
	sum := 0.0
	for _, f := range first.Factors {
		sum += f.Weighted
	}
	assert.InDelta(t, sum, first.TotalScore, 1e-9)
}

// Boundary scores route to the stricter channel.
func TestChannelBoundaryDeterminism(t *testing.T) {
	e := testEngine()

	tests := []struct {
		score float64
		want  types.Channel
	}{
		{score: 0, want: types.ChannelGreen},
		{score: 19.999, want: types.ChannelGreen},
		{score: 20, want: types.ChannelYellow},
		{score: 49.999, want: types.ChannelYellow},
		{score: 50, want: types.ChannelOrange},
		{score: 74.999, want: types.ChannelOrange},
		{score: 75, want: types.ChannelRed},
		{score: 100, want: types.ChannelRed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, e.channelFor(tt.score), "score %v", tt.score)
	}
}

func TestTrustedTraderOverride(t *testing.T) {
	e := testEngine()

	// Worst possible inputs apart from certification.
	in := Input{
		TraderViolationRate: 1.0,
		TrustedTrader:       true,
		CommodityTier:       TierCritical,
		OriginTier:          TierCritical,
		ValueAnomalyRatio:   3.0,
		DocumentsComplete:   false,
	}

	a := e.Assess(in)
	assert.True(t, a.TrustedTraderOverride)
	assert.Zero(t, a.TotalScore)
	assert.Equal(t, types.ChannelGreen, a.Channel)

	// The breakdown is still retained for audit.
	require.Len(t, a.Factors, 5)
	assert.Greater(t, a.Factors[0].Weighted, 0.0)

	// Without certification the same inputs hit the red channel.
	in.TrustedTrader = false
	assert.Equal(t, types.ChannelRed, e.Assess(in).Channel)
}

func channelRank(c types.Channel) int {
	switch c {
	case types.ChannelGreen:
		return 0
	case types.ChannelYellow:
		return 1
	case types.ChannelOrange:
		return 2
	default:
		return 3
	}
}

// Raising any single factor while holding the others fixed never yields a
// less scrutinized channel.
func TestMonotonicChannelOrdering(t *testing.T) {
	e := testEngine()
	base := Input{
		TraderViolationRate: 0.2,
		CommodityTier:       TierMedium,
		OriginTier:          TierMedium,
		ValueAnomalyRatio:   1.0,
		DocumentsComplete:   true,
	}
	baseRank := channelRank(e.Assess(base).Channel)

	bump := []func(Input) Input{
		func(in Input) Input { in.TraderViolationRate = 0.9; return in },
		func(in Input) Input { in.CommodityTier = TierCritical; return in },
		func(in Input) Input { in.OriginTier = TierCritical; return in },
		func(in Input) Input { in.ValueAnomalyRatio = 2.5; return in },
		func(in Input) Input { in.DocumentsComplete = false; return in },
	}
	for i, f := range bump {
		got := channelRank(e.Assess(f(base)).Channel)
		assert.GreaterOrEqual(t, got, baseRank, "factor %d lowered scrutiny", i)
	}
}

func TestValueAnomalyScore(t *testing.T) {
	tests := []struct {
		ratio float64
		want  float64
	}{
		{ratio: 0, want: 0},    // no reference value
		{ratio: 1.0, want: 0},  // spot on
		{ratio: 1.25, want: 0.5},
		{ratio: 0.75, want: 0.5},
		{ratio: 0.5, want: 1.0}, // half the reference saturates
		{ratio: 3.0, want: 1.0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, valueAnomalyScore(tt.ratio), 1e-9, "ratio %v", tt.ratio)
	}
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	bad := DefaultPolicy()
	bad.Weights.Documents = 0.5
	assert.Error(t, bad.Validate())

	bad = DefaultPolicy()
	bad.Thresholds.Physical = 10
	assert.Error(t, bad.Validate())
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := []byte(`
weights:
  trader_history: 0.40
  commodity: 0.30
  origin: 0.15
  value_anomaly: 0.10
  documents: 0.05
thresholds:
  documentary: 25
  physical: 55
  detailed: 80
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 0.40, p.Weights.TraderHistory)
	assert.Equal(t, 80.0, p.Thresholds.Detailed)

	_, err = LoadPolicy(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestStaticReferenceTiers(t *testing.T) {
	ref := NewStaticReference()
	assert.Equal(t, TierCritical, ref.CommodityRiskTier("240220"))
	assert.Equal(t, TierLow, ref.CommodityRiskTier("010101"))
	assert.Equal(t, TierLow, ref.CountryRiskTier("de"))
	assert.Equal(t, TierMedium, ref.CountryRiskTier("ZZ"))
}
