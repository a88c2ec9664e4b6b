package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RichardoC/companion-chat/internal/models"
)

// CreateUser registers username. A duplicate yields ErrUsernameTaken.
func (db *Database) CreateUser(ctx context.Context, username string) (*models.User, error) {
	query := db.rebind(`
        INSERT INTO users (username, created_at)
        VALUES (?, ?)
        RETURNING id`)

	user := &models.User{Username: username, CreatedAt: now()}
	err := db.db.QueryRowContext(ctx, query, username, user.CreatedAt).Scan(&user.ID)
	if isUniqueViolation(err) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (db *Database) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := db.rebind(`SELECT id, username, created_at FROM users WHERE id = ?`)
	return db.scanUser(db.db.QueryRowContext(ctx, query, id))
}

func (db *Database) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := db.rebind(`SELECT id, username, created_at FROM users WHERE username = ?`)
	return db.scanUser(db.db.QueryRowContext(ctx, query, username))
}

func (db *Database) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}
