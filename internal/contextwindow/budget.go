package contextwindow

import "fmt"

// Profile holds the per-model constants supplied by configuration.
type Profile struct {
	Model            string
	MaxContextTokens int
	MaxOutputTokens  int
	CharsPerToken    int
}

// DefaultProfile returns the limits for the default backend model.
func DefaultProfile() Profile {
	return Profile{
		Model:            "meta-llama/llama-4-maverick-17b-128e-instruct",
		MaxContextTokens: 128000,
		MaxOutputTokens:  4096,
		CharsPerToken:    4,
	}
}

// TokenBudget is the token allowance derived from a Profile after reserving
// space for the system prompt, the anticipated output, and a safety margin
// that absorbs estimation error.
type TokenBudget struct {
	MaxContextTokens   int
	MaxOutputTokens    int
	SystemPromptTokens int
	SafetyMargin       int
}

const (
	defaultSystemPromptTokens = 200
	defaultSafetyMargin       = 500
)

// NewTokenBudget derives a budget from a model profile.
func NewTokenBudget(p Profile) TokenBudget {
	return TokenBudget{
		MaxContextTokens:   p.MaxContextTokens,
		MaxOutputTokens:    p.MaxOutputTokens,
		SystemPromptTokens: defaultSystemPromptTokens,
		SafetyMargin:       defaultSafetyMargin,
	}
}

// Available returns the soft budget for conversation history.
func (b TokenBudget) Available() int {
	return b.MaxContextTokens - b.MaxOutputTokens - b.SystemPromptTokens - b.SafetyMargin
}

// HardLimit is the ceiling the assembled prompt must never exceed. It is
// deliberately looser than Available so the assembler has room to absorb
// estimation error before truncating.
func (b TokenBudget) HardLimit() int {
	return b.MaxContextTokens - b.MaxOutputTokens
}

// Validate rejects profiles whose reservations exceed the context window.
func (b TokenBudget) Validate() error {
	if b.Available() < 0 {
		return fmt.Errorf("token budget misconfigured: max_context=%d output=%d system=%d margin=%d leaves %d available",
			b.MaxContextTokens, b.MaxOutputTokens, b.SystemPromptTokens, b.SafetyMargin, b.Available())
	}
	return nil
}

// Estimator converts text to an approximate token count using the model's
// characters-per-token ratio. Exact tokenization is not worth the cost here;
// the safety margin and the assembler's truncation pass absorb the error.
type Estimator struct {
	charsPerToken int
}

// NewEstimator builds an estimator for the given profile.
func NewEstimator(p Profile) Estimator {
	cpt := p.CharsPerToken
	if cpt <= 0 {
		cpt = 4
	}
	return Estimator{charsPerToken: cpt}
}

// Estimate returns at least 1 so empty messages never get zero weight.
func (e Estimator) Estimate(text string) int {
	n := len(text) / e.charsPerToken
	if n < 1 {
		return 1
	}
	return n
}
