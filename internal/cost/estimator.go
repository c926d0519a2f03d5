// Package cost estimates the token cost of provider calls before they
// are made, for use as the admission estimate.
package cost

// Rates holds the estimation constants. Video content is billed by the
// provider at a fixed token rate per second of media; prose is
// approximated at four characters per token.
type Rates struct {
	CharsPerToken        int `yaml:"chars_per_token" mapstructure:"chars_per_token"`
	VideoTokensPerSecond int `yaml:"video_tokens_per_second" mapstructure:"video_tokens_per_second"`
	OutputAllowance      int `yaml:"output_allowance" mapstructure:"output_allowance"`
}

// DefaultRates returns the default estimation constants.
func DefaultRates() Rates {
	return Rates{
		CharsPerToken:        4,
		VideoTokensPerSecond: 300,
		OutputAllowance:      2048,
	}
}

// Estimator computes token estimates. Estimates feed admission only; the
// ledger records the provider-reported actual usage afterwards.
type Estimator struct {
	rates Rates
}

// NewEstimator creates an Estimator with the given rates.
func NewEstimator(rates Rates) *Estimator {
	if rates.CharsPerToken <= 0 {
		rates.CharsPerToken = 4
	}
	if rates.VideoTokensPerSecond <= 0 {
		rates.VideoTokensPerSecond = 300
	}
	if rates.OutputAllowance < 0 {
		rates.OutputAllowance = 0
	}
	return &Estimator{rates: rates}
}

// PromptTokens estimates the token count of prose.
func (e *Estimator) PromptTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + e.rates.CharsPerToken - 1) / e.rates.CharsPerToken
}

// ChunkTokens estimates an insight call over a media window: the prompt
// plus the media tokens for the window plus the output allowance.
func (e *Estimator) ChunkTokens(prompt string, chunkSeconds int) int {
	if chunkSeconds < 0 {
		chunkSeconds = 0
	}
	return e.PromptTokens(prompt) + chunkSeconds*e.rates.VideoTokensPerSecond + e.rates.OutputAllowance
}

// ResearchTokens estimates a research call: the prompt, the aggregated
// insight text, and the output allowance.
func (e *Estimator) ResearchTokens(prompt, insights string) int {
	return e.PromptTokens(prompt) + e.PromptTokens(insights) + e.rates.OutputAllowance
}
