package llm

// Pricing holds per-1M-token prices used for cost accounting. Zero values
// mean "consult the built-in price table by model name".
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// modelPricing holds per-model pricing in USD per 1M tokens.
type modelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// priceTable maps model identifiers to their pricing.
var priceTable = map[string]modelPricing{
	// OpenAI models
	"gpt-4o":      {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini": {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4.1":     {InputPerMillion: 2.00, OutputPerMillion: 8.00},

	// Anthropic models
	"claude-sonnet-4-5-20250929": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-haiku-4-5-20251001":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},

	// Embedding models
	"text-embedding-3-small": {InputPerMillion: 0.02},
	"text-embedding-3-large": {InputPerMillion: 0.13},
}

// CostFor returns the cost in USD for the given model and token counts.
// Explicit pricing overrides win over the table; unknown models cost 0.
func (p Pricing) CostFor(model string, inputTokens, outputTokens int) float64 {
	in, out := p.InputPerMillion, p.OutputPerMillion
	if in == 0 && out == 0 {
		tbl, ok := priceTable[model]
		if !ok {
			return 0
		}
		in, out = tbl.InputPerMillion, tbl.OutputPerMillion
	}
	return float64(inputTokens)/1_000_000.0*in + float64(outputTokens)/1_000_000.0*out
}

// EstimateCost returns the table cost for the given model and token counts.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	return Pricing{}.CostFor(model, inputTokens, outputTokens)
}

// EstimateTokens provides a rough token count estimation for the given text.
// Uses the approximation of 1 token per 4 characters.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}
