package contextwindow

// Assembler produces the final ordered sequence for the backend and is the
// single fallback guaranteeing the hard input limit is never exceeded.
type Assembler struct {
	estimator Estimator
}

// NewAssembler builds an assembler using the given token estimator.
func NewAssembler(estimator Estimator) Assembler {
	return Assembler{estimator: estimator}
}

// Assemble builds [system] + context + [query]. If the estimated total
// exceeds hardLimit, context messages are dropped oldest-first until the
// sequence fits or only the preamble and query remain. The preamble and
// query themselves are never touched.
func (a Assembler) Assemble(systemPrompt string, context []PromptMessage, query string, hardLimit int) []PromptMessage {
	final := make([]PromptMessage, 0, len(context)+2)
	final = append(final, PromptMessage{Role: RoleSystem, Content: systemPrompt})
	final = append(final, context...)
	final = append(final, PromptMessage{Role: RoleUser, Content: query})

	total := 0
	for _, msg := range final {
		total += a.estimator.Estimate(msg.Content)
	}

	for total > hardLimit && len(final) > 2 {
		total -= a.estimator.Estimate(final[1].Content)
		final = append(final[:1], final[2:]...)
	}

	return final
}

// EstimateTotal sums the estimated tokens of a prompt sequence.
func (a Assembler) EstimateTotal(messages []PromptMessage) int {
	total := 0
	for _, msg := range messages {
		total += a.estimator.Estimate(msg.Content)
	}
	return total
}
