package message

// ContextLimits describes the window sizes of the model that produced a
// response, for display alongside usage.
type ContextLimits struct {
	InputMax    int `json:"inputMax"`
	TotalMax    int `json:"totalMax"`
	CombinedMax int `json:"combinedMax"`
}

// Usage is a read-only token and cost accounting snapshot attached to a
// completed response. It is derived from the provider's usage block and
// per-model pricing; it is never persisted.
type Usage struct {
	InputTokens       int64         `json:"inputTokens"`
	OutputTokens      int64         `json:"outputTokens"`
	ReasoningTokens   int64         `json:"reasoningTokens"`
	CachedInputTokens int64         `json:"cachedInputTokens"`
	TotalTokens       int64         `json:"totalTokens"`
	Context           ContextLimits `json:"context"`
	CostUSD           float64       `json:"costUSD"`
}

// Pricing is the per-1K-token cost of a model.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Cost computes the dollar cost of this usage under the given pricing.
func (u Usage) Cost(p Pricing) float64 {
	return float64(u.InputTokens)/1000*p.InputPer1K + float64(u.OutputTokens)/1000*p.OutputPer1K
}
