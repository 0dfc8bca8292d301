package risk

import "strings"

// Tier is the risk tier assigned to a commodity or country by the
// reference-data provider.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
	TierCritical
)

// factorScore maps a tier onto the 0-1 factor scale.
func (t Tier) factorScore() float64 {
	switch t {
	case TierMedium:
		return 0.4
	case TierHigh:
		return 0.7
	case TierCritical:
		return 1.0
	default:
		return 0.0
	}
}

// ReferenceData provides synchronous lookups against externally managed
// reference tables. The core never owns or updates these tables.
type ReferenceData interface {
	CommodityRiskTier(hsCode string) Tier
	CountryRiskTier(countryCode string) Tier
	ReferenceUnitValue(hsCode string) float64
	TraderCertified(declarantID string) bool
}

// StaticReference is an in-memory provider used for tests and local
// deployments. Commodity tiers are keyed by HS chapter (first two digits).
type StaticReference struct {
	ChapterTiers   map[string]Tier
	CountryTiers   map[string]Tier
	UnitValues     map[string]float64
	TrustedTraders map[string]bool
}

// NewStaticReference seeds a provider with a small plausible table.
func NewStaticReference() *StaticReference {
	return &StaticReference{
		ChapterTiers: map[string]Tier{
			"22": TierHigh,     // beverages, spirits
			"24": TierCritical, // tobacco
			"30": TierMedium,   // pharmaceuticals
			"71": TierHigh,     // precious stones
			"87": TierMedium,   // vehicles
			"93": TierCritical, // arms
		},
		CountryTiers: map[string]Tier{
			"DE": TierLow,
			"FR": TierLow,
			"CN": TierMedium,
			"PA": TierHigh,
			"KP": TierCritical,
		},
		UnitValues: map[string]float64{
			"870323": 8000,
			"401110": 400,
			"220830": 25,
		},
		TrustedTraders: map[string]bool{},
	}
}

func (r *StaticReference) CommodityRiskTier(hsCode string) Tier {
	if len(hsCode) < 2 {
		return TierMedium
	}
	if t, ok := r.ChapterTiers[hsCode[:2]]; ok {
		return t
	}
	return TierLow
}

func (r *StaticReference) CountryRiskTier(countryCode string) Tier {
	if t, ok := r.CountryTiers[strings.ToUpper(countryCode)]; ok {
		return t
	}
	return TierMedium
}

func (r *StaticReference) ReferenceUnitValue(hsCode string) float64 {
	return r.UnitValues[hsCode]
}

func (r *StaticReference) TraderCertified(declarantID string) bool {
	return r.TrustedTraders[declarantID]
}
