package clearance

import (
	"encoding/json"
	"fmt"

	"github.com/tradegate/customs-api/internal/types"
)

// Duty rates by HS chapter. Anything unlisted pays the standard rate.
// Rates are assessment inputs, not risk policy, so they live here rather
// than in the risk package.
var chapterDutyRates = map[string]float64{
	"22": 0.25, // beverages, spirits
	"24": 0.45, // tobacco
	"71": 0.03, // precious stones
	"87": 0.10, // vehicles
}

const (
	standardDutyRate = 0.05
	vatRate          = 0.15
)

func dutyRate(hsCode string) float64 {
	if len(hsCode) >= 2 {
		if rate, ok := chapterDutyRates[hsCode[:2]]; ok {
			return rate
		}
	}
	return standardDutyRate
}

// computeDuties assesses duty and VAT lines for every goods item, storing
// the lines on the items, and returns the total payable amount. Export and
// transit declarations owe nothing at clearance.
func computeDuties(decType types.DeclarationType, items []types.GoodsItem) ([]types.GoodsItem, float64, error) {
	if decType == types.TypeExport || decType == types.TypeTransit {
		return items, 0, nil
	}

	var total float64
	for i := range items {
		rate := dutyRate(items[i].HSCode)
		duty := items[i].Value * rate
		vat := (items[i].Value + duty) * vatRate

		lines := []types.DutyLine{
			{Kind: "DUTY", Rate: rate, Amount: duty},
			{Kind: "VAT", Rate: vatRate, Amount: vat},
		}
		encoded, err := json.Marshal(lines)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal duty lines: %w", err)
		}
		items[i].DutyLines = string(encoded)
		total += duty + vat
	}
	return items, total, nil
}
