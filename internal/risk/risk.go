// Package risk implements the weighted risk assessment that routes a
// declaration into a clearance channel. Assessment is a pure function of
// its inputs and the supplied policy: no I/O, no clock, fully
// deterministic, safe to call in parallel.
package risk

import (
	"math"

	"github.com/tradegate/customs-api/internal/types"
)

// Factor names used in the profile breakdown.
const (
	FactorTraderHistory = "trader_history"
	FactorCommodity     = "commodity"
	FactorOrigin        = "origin"
	FactorValueAnomaly  = "value_anomaly"
	FactorDocuments     = "documents"
)

// Input carries the declaration attributes the engine scores. Callers
// assemble it from the declaration and the reference-data provider.
type Input struct {
	TraderViolationRate float64 // share of the trader's declarations rejected, 0-1
	TrustedTrader       bool    // valid trusted-trader certification
	CommodityTier       Tier    // worst tier across goods items
	OriginTier          Tier    // worst tier across origins and destination
	ValueAnomalyRatio   float64 // declared value / reference value, 0 when no reference
	DocumentsComplete   bool
}

// Factor is one scored component of an assessment, retained for
// explainability and appeals.
type Factor struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`  // 0-1
	Weight   float64 `json:"weight"` // 0-1
	Weighted float64 `json:"weighted"`
}

// Assessment is the engine's output for one declaration version.
type Assessment struct {
	Factors               []Factor
	TotalScore            float64 // 0-100
	Channel               types.Channel
	TrustedTraderOverride bool
}

// Engine scores declarations against a policy and reference data.
type Engine struct {
	policy Policy
	ref    ReferenceData
}

func NewEngine(policy Policy, ref ReferenceData) *Engine {
	return &Engine{policy: policy, ref: ref}
}

// Policy returns the policy the engine was built with.
func (e *Engine) Policy() Policy { return e.policy }

// Assess computes the weighted score and channel for one input. A valid
// trusted-trader certification overrides the total to zero, which routes
// green under any threshold set; the per-factor breakdown is still
// retained so the override is auditable.
func (e *Engine) Assess(in Input) Assessment {
	w := e.policy.Weights

	anomaly := valueAnomalyScore(in.ValueAnomalyRatio)
	docs := 0.0
	if !in.DocumentsComplete {
		docs = 1.0
	}

	factors := []Factor{
		{Name: FactorTraderHistory, Score: clamp01(in.TraderViolationRate), Weight: w.TraderHistory},
		{Name: FactorCommodity, Score: in.CommodityTier.factorScore(), Weight: w.Commodity},
		{Name: FactorOrigin, Score: in.OriginTier.factorScore(), Weight: w.Origin},
		{Name: FactorValueAnomaly, Score: anomaly, Weight: w.ValueAnomaly},
		{Name: FactorDocuments, Score: docs, Weight: w.Documents},
	}

	total := 0.0
	for i := range factors {
		factors[i].Weighted = factors[i].Score * factors[i].Weight * 100
		total += factors[i].Weighted
	}
	total = math.Min(math.Max(total, 0), 100)

	a := Assessment{Factors: factors, TotalScore: total}
	if in.TrustedTrader {
		a.TrustedTraderOverride = true
		a.TotalScore = 0
	}
	a.Channel = e.channelFor(a.TotalScore)
	return a
}

// channelFor routes a score to a channel. Boundary scores go to the
// stricter side.
func (e *Engine) channelFor(score float64) types.Channel {
	t := e.policy.Thresholds
	switch {
	case score >= t.Detailed:
		return types.ChannelRed
	case score >= t.Physical:
		return types.ChannelOrange
	case score >= t.Documentary:
		return types.ChannelYellow
	default:
		return types.ChannelGreen
	}
}

// valueAnomalyScore scores the deviation of the declared value from the
// reference range. A declaration at half or double the reference value
// saturates the factor; an unknown reference (ratio 0) scores neutral.
func valueAnomalyScore(ratio float64) float64 {
	if ratio <= 0 {
		return 0
	}
	return clamp01(math.Abs(ratio-1) * 2)
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

// WorstTier returns the higher of two tiers.
func WorstTier(a, b Tier) Tier {
	if b > a {
		return b
	}
	return a
}
