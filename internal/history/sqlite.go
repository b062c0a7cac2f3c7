package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jasper0315/icebreak-app/internal/phase"
	"github.com/jasper0315/icebreak-app/internal/session"
)

// SQLiteStore persists conversations to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite connects to the database at dsn and ensures the schema.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn must be provided")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			phase TEXT NOT NULL,
			ts INTEGER NOT NULL,
			FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) StartConversation(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, created_at) VALUES (?, ?)`,
		id, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("start conversation: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID string, msg session.Message) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO messages (id, conversation_id, role, content, phase, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, conversationID, msg.Role, msg.Content, string(msg.Phase), msg.Timestamp)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Replayed message ID; the log is append-only so the first
		// write wins and the retry is a no-op.
		return nil
	}
	return nil
}

func (s *SQLiteStore) LoadHistory(ctx context.Context, conversationID string) ([]session.Message, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM conversations WHERE id = ?`, conversationID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if exists == 0 {
		return nil, ErrConversationNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, phase, ts FROM messages WHERE conversation_id = ? ORDER BY ts, rowid`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []session.Message
	for rows.Next() {
		var m session.Message
		var ph string
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &ph, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Phase = phase.Phase(ph)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) EndConversation(ctx context.Context, conversationID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET ended_at = ? WHERE id = ?`,
		time.Now().UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("end conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
