package quota

// Limits is the rate budget for one model within a tier. RPD of zero
// means the model has no daily cap.
type Limits struct {
	RPM int
	TPM int
	RPD int
}

// Tier is a named quota plan.
type Tier string

const (
	TierFree  Tier = "free"
	TierOne   Tier = "tier1"
	TierTwo   Tier = "tier2"
	TierThree Tier = "tier3"
)

// limitTable is the static (tier, model) budget table. Values mirror the
// provider's published free and paid tier limits for the model family.
var limitTable = map[Tier]map[string]Limits{
	TierFree: {
		"gemini-2.5-pro":                    {RPM: 5, TPM: 250_000, RPD: 100},
		"gemini-2.5-flash":                  {RPM: 10, TPM: 250_000, RPD: 250},
		"gemini-2.5-flash-preview-09-2025":  {RPM: 10, TPM: 250_000, RPD: 250},
		"gemini-2.5-flash-lite":             {RPM: 15, TPM: 250_000, RPD: 1000},
	},
	TierOne: {
		"gemini-2.5-pro":                    {RPM: 150, TPM: 2_000_000, RPD: 10_000},
		"gemini-2.5-flash":                  {RPM: 1000, TPM: 1_000_000, RPD: 10_000},
		"gemini-2.5-flash-preview-09-2025":  {RPM: 1000, TPM: 1_000_000, RPD: 10_000},
		"gemini-2.5-flash-lite":             {RPM: 4000, TPM: 4_000_000},
	},
	TierTwo: {
		"gemini-2.5-pro":                    {RPM: 1000, TPM: 5_000_000, RPD: 50_000},
		"gemini-2.5-flash":                  {RPM: 2000, TPM: 3_000_000, RPD: 100_000},
		"gemini-2.5-flash-preview-09-2025":  {RPM: 2000, TPM: 3_000_000, RPD: 100_000},
		"gemini-2.5-flash-lite":             {RPM: 10_000, TPM: 10_000_000},
	},
	TierThree: {
		"gemini-2.5-pro":                    {RPM: 2000, TPM: 8_000_000},
		"gemini-2.5-flash":                  {RPM: 10_000, TPM: 8_000_000},
		"gemini-2.5-flash-preview-09-2025":  {RPM: 10_000, TPM: 8_000_000},
		"gemini-2.5-flash-lite":             {RPM: 30_000, TPM: 30_000_000},
	},
}

// LimitsFor returns the budget for (tier, model). ok is false when the
// model is not available in the tier.
func LimitsFor(tier Tier, model string) (Limits, bool) {
	models, ok := limitTable[tier]
	if !ok {
		return Limits{}, false
	}
	l, ok := models[model]
	return l, ok
}

// ModelsInTier returns the set of models available in the tier.
func ModelsInTier(tier Tier) map[string]Limits {
	return limitTable[tier]
}
