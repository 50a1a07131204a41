package quota

import "fmt"

// Tier is a closed set of subscription levels. Each tier fixes a pair of
// download limits and a monthly price; assigning a tier overwrites the user's
// individual limits.
type Tier string

const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// TierPlan is the fixed record a tier maps to.
type TierPlan struct {
	DailyLimit   int
	MonthlyLimit int
	PriceUSD     float64
}

var tierPlans = map[Tier]TierPlan{
	TierFree:     {DailyLimit: 10, MonthlyLimit: 100, PriceUSD: 0},
	TierStandard: {DailyLimit: 50, MonthlyLimit: 500, PriceUSD: 9.99},
	TierPremium:  {DailyLimit: 100, MonthlyLimit: 1000, PriceUSD: 24.99},
}

// ParseTier validates a tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if _, ok := tierPlans[t]; !ok {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// Plan returns the limits and price for the tier.
func (t Tier) Plan() TierPlan {
	return tierPlans[t]
}
