package llm

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// CompletionRequest is the input for all LLM providers.
type CompletionRequest struct {
	// Model overrides the provider's default model.
	Model        string    `json:"model,omitempty"`
	Messages     []Message `json:"messages"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	// Temperature of zero means the provider default.
	Temperature float64 `json:"temperature,omitempty"`
	// MaxTokens of zero means the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
	// JSON asks the backend to constrain output to a JSON object.
	JSON bool `json:"json,omitempty"`
}

// CompletionResponse is the output from all LLM providers.
type CompletionResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	// FinishReason is normalized to one of the FinishReason constants.
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Normalized finish reasons.
const (
	FinishStop      = "STOP"
	FinishMaxTokens = "MAX_TOKENS"
	FinishSafety    = "SAFETY"
	FinishOther     = "OTHER"
)

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
