package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RichardoC/companion-chat/internal/models"
)

// GetConversation returns the conversation for the pair, or ErrNotFound.
func (db *Database) GetConversation(ctx context.Context, userID, chatbotID int64) (*models.Conversation, error) {
	query := db.rebind(`
        SELECT id, user_id, chatbot_id, created_at
        FROM conversations
        WHERE user_id = ? AND chatbot_id = ?`)

	var conv models.Conversation
	err := db.db.QueryRowContext(ctx, query, userID, chatbotID).
		Scan(&conv.ID, &conv.UserID, &conv.ChatbotID, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// FindOrCreateConversation returns the conversation for the pair, creating it
// on first use. The unique index on (user_id, chatbot_id) makes the insert a
// no-op for every caller but the first, so concurrent requests converge on
// one row.
func (db *Database) FindOrCreateConversation(ctx context.Context, userID, chatbotID int64) (*models.Conversation, error) {
	query := db.rebind(`
        INSERT INTO conversations (user_id, chatbot_id, created_at)
        VALUES (?, ?, ?)
        ON CONFLICT (user_id, chatbot_id) DO NOTHING`)

	if _, err := db.db.ExecContext(ctx, query, userID, chatbotID, now()); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return db.GetConversation(ctx, userID, chatbotID)
}

// CountConversations reports how many conversations exist for the pair.
func (db *Database) CountConversations(ctx context.Context, userID, chatbotID int64) (int, error) {
	query := db.rebind(`SELECT COUNT(*) FROM conversations WHERE user_id = ? AND chatbot_id = ?`)

	var n int
	if err := db.db.QueryRowContext(ctx, query, userID, chatbotID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return n, nil
}
