package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken is returned when registering a username that already exists.
	ErrUsernameTaken = errors.New("username already exists")
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite3"
}

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS users (
    id %[1]s,
    username VARCHAR(80) NOT NULL UNIQUE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversations (
    id %[1]s,
    user_id BIGINT NOT NULL REFERENCES users(id),
    chatbot_id INTEGER NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_user_chatbot
    ON conversations(user_id, chatbot_id);

CREATE TABLE IF NOT EXISTS messages (
    id %[1]s,
    conversation_id BIGINT NOT NULL REFERENCES conversations(id),
    content VARCHAR(500) NOT NULL,
    response VARCHAR(500),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_id
    ON messages(conversation_id, id);`

func schema(d dialect) string {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d == dialectPostgres {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}
	return fmt.Sprintf(schemaTemplate, idColumn)
}

// Database is the relational store behind users, conversations and messages.
// It is safe for concurrent use.
type Database struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to postgres when databaseURL is set and falls back to a
// sqlite file at dbPath otherwise. The schema is applied on every open.
func Open(ctx context.Context, databaseURL, dbPath string) (*Database, error) {
	var (
		conn *sql.DB
		d    dialect
		err  error
	)
	if databaseURL != "" {
		conn, err = openPostgres(databaseURL)
		d = dialectPostgres
	} else {
		conn, err = openSQLite(dbPath)
		d = dialectSQLite
	}
	if err != nil {
		return nil, err
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", d, err)
	}

	if _, err := conn.ExecContext(ctx, schema(d)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Database{db: conn, dialect: d}, nil
}

// Driver names the underlying database driver.
func (db *Database) Driver() string {
	return db.dialect.String()
}

func (db *Database) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *Database) Close() error {
	return db.db.Close()
}

// rebind rewrites ? placeholders into the numbered form postgres expects.
func (db *Database) rebind(query string) string {
	if db.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// now is truncated to seconds so stored and returned timestamps agree across drivers.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func isUniqueViolation(err error) bool {
	return isSQLiteUniqueViolation(err) || isPostgresUniqueViolation(err)
}
