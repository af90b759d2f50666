package store

// Conversation status values.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Conversation is one chat thread belonging to a user.
type Conversation struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Title        string `json:"title"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
	MessageCount int    `json:"message_count"`
	Status       string `json:"status"`
}

// Message is one durable conversation turn.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	Intent         string `json:"intent"`
	Timestamp      int64  `json:"timestamp"`
	Tokens         int    `json:"tokens"`
	ResponseTimeMS int64  `json:"response_time_ms"`
	Cached         bool   `json:"cached"`
}

// User is a registered account. The password hash never leaves this package
// except through the auth service.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
	LastLoginAt  int64  `json:"last_login_at"`
}

// Export bundles a conversation with its full message log.
type Export struct {
	Conversation Conversation `json:"conversation"`
	Messages     []Message    `json:"messages"`
}

// UserStats aggregates a user's activity across collections.
type UserStats struct {
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
}
