package shortterm

// Usage accumulates token consumption across the turns of a run. The
// field layout follows the accounting providers report, so provider
// responses can be added directly.
type Usage struct {
	CompletionTokens        int64                   `json:"completion_tokens"`
	PromptTokens            int64                   `json:"prompt_tokens"`
	TotalTokens             int64                   `json:"total_tokens"`
	CompletionTokensDetails CompletionTokensDetails `json:"completion_tokens_details"`
	PromptTokensDetails     PromptTokensDetails     `json:"prompt_tokens_details"`
}

// AddUsage adds the counts from other into u.
func (u *Usage) AddUsage(other *Usage) {
	u.CompletionTokens += other.CompletionTokens
	u.PromptTokens += other.PromptTokens
	u.TotalTokens += other.TotalTokens
	u.CompletionTokensDetails.AddUsage(&other.CompletionTokensDetails)
	u.PromptTokensDetails.AddUsage(&other.PromptTokensDetails)
}

// CompletionTokensDetails breaks down completion token consumption.
type CompletionTokensDetails struct {
	AcceptedPredictionTokens int64 `json:"accepted_prediction_tokens"`
	AudioTokens              int64 `json:"audio_tokens"`
	ReasoningTokens          int64 `json:"reasoning_tokens"`
	RejectedPredictionTokens int64 `json:"rejected_prediction_tokens"`
}

// AddUsage adds the counts from other into d.
func (d *CompletionTokensDetails) AddUsage(other *CompletionTokensDetails) {
	d.AcceptedPredictionTokens += other.AcceptedPredictionTokens
	d.AudioTokens += other.AudioTokens
	d.ReasoningTokens += other.ReasoningTokens
	d.RejectedPredictionTokens += other.RejectedPredictionTokens
}

// PromptTokensDetails breaks down prompt token consumption.
type PromptTokensDetails struct {
	AudioTokens  int64 `json:"audio_tokens"`
	CachedTokens int64 `json:"cached_tokens"`
}

// AddUsage adds the counts from other into d.
func (d *PromptTokensDetails) AddUsage(other *PromptTokensDetails) {
	d.AudioTokens += other.AudioTokens
	d.CachedTokens += other.CachedTokens
}
