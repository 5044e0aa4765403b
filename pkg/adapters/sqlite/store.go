package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aretw0/relay/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	user_id           INTEGER PRIMARY KEY,
	chat_id           INTEGER NOT NULL,
	workflow          TEXT    NOT NULL,
	state             TEXT    NOT NULL,
	pinned_message_id INTEGER NOT NULL,
	data              TEXT    NOT NULL,
	updated_at        TEXT    NOT NULL
)`

// Store implements ports.SessionStore on a single SQLite file.
// Sessions survive a restart, which lets half-finished wizards resume.
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put upserts the user's session row.
func (s *Store) Put(ctx context.Context, sess *domain.Session) error {
	updated := sess.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	data, err := json.Marshal(sess.Data)
	if err != nil {
		return fmt.Errorf("marshal session data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO sessions(user_id, chat_id, workflow, state, pinned_message_id, data, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	chat_id=excluded.chat_id,
	workflow=excluded.workflow,
	state=excluded.state,
	pinned_message_id=excluded.pinned_message_id,
	data=excluded.data,
	updated_at=excluded.updated_at
`, sess.UserID, sess.ChatID, sess.Workflow, sess.State, sess.PinnedMessageID, string(data), ts(updated))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Get loads the user's session row.
func (s *Store) Get(ctx context.Context, userID int64) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT user_id, chat_id, workflow, state, pinned_message_id, data, updated_at
FROM sessions WHERE user_id = ?`, userID)
	sess, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Remove deletes the user's session row.
func (s *Store) Remove(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List returns all session rows.
func (s *Store) List(ctx context.Context) ([]*domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT user_id, chat_id, workflow, state, pinned_message_id, data, updated_at
FROM sessions ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		sess, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*domain.Session, error) {
	var (
		sess    domain.Session
		data    string
		updated string
	)
	if err := row.Scan(&sess.UserID, &sess.ChatID, &sess.Workflow, &sess.State, &sess.PinnedMessageID, &data, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &sess.Data); err != nil {
		return nil, fmt.Errorf("unmarshal session data: %w", err)
	}
	if sess.Data == nil {
		sess.Data = make(map[string]any)
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		sess.UpdatedAt = t
	}
	return &sess, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
