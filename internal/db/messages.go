package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/RichardoC/companion-chat/internal/models"
)

func (db *Database) CreateMessage(ctx context.Context, conversationID int64, content string, response *string) (*models.Message, error) {
	query := db.rebind(`
        INSERT INTO messages (conversation_id, content, response, created_at)
        VALUES (?, ?, ?, ?)
        RETURNING id`)

	msg := &models.Message{
		ConversationID: conversationID,
		Content:        content,
		Response:       response,
		CreatedAt:      now(),
	}
	err := db.db.QueryRowContext(ctx, query, conversationID, content, response, msg.CreatedAt).Scan(&msg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// ListMessages returns every message of the conversation in insertion order.
func (db *Database) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	query := db.rebind(`
        SELECT id, conversation_id, content, response, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY id ASC`)

	rows, err := db.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var (
			msg      models.Message
			response sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Content, &response, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if response.Valid {
			msg.Response = &response.String
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}
