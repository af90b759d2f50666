// Package contextwindow decides which subset of a conversation's history
// accompanies a new query when calling a token-bounded generative backend.
package contextwindow

// Message roles as stored in the conversation log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a read-only snapshot of one conversation turn. The durable copy
// is owned by the message store; this package never mutates it.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Intent    string `json:"intent,omitempty"`
}

// PromptMessage is one entry of the final sequence handed to the backend.
type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Summary describes one context build for observability.
type Summary struct {
	MessagesAvailable  int     `json:"messages_available"`
	MessagesSelected   int     `json:"messages_selected"`
	EstimatedTokens    int     `json:"estimated_tokens"`
	TokenBudget        int     `json:"token_budget"`
	UtilizationPercent float64 `json:"utilization_percent"`
}
