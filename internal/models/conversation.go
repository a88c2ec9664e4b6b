package models

import "time"

// MaxContentLength bounds both the content and response columns of a message.
const MaxContentLength = 500

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is the single thread between a user and one chatbot persona.
type Conversation struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ChatbotID int64     `json:"chatbot_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one turn of a conversation. Turns alternate user/assistant by
// insertion order; Response is kept for storage compatibility and is always nil.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Content        string    `json:"content"`
	Response       *string   `json:"response"`
	CreatedAt      time.Time `json:"created_at"`
}
