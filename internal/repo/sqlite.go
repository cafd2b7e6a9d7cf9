package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS gemini_api_keys (
	id TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	cooldown_until INTEGER NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	type TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_session_idx ON messages (session_id, created_at);
`

// SQLite stores keys and messages in a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer; also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) ListActiveGeminiKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, value, cooldown_until FROM gemini_api_keys WHERE active = 1 ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list gemini keys: %w", err)
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var (
			k        APIKey
			cooldown sql.NullInt64
		)
		if err := rows.Scan(&k.ID, &k.Value, &cooldown); err != nil {
			return nil, fmt.Errorf("scan gemini key: %w", err)
		}
		if cooldown.Valid {
			t := time.Unix(cooldown.Int64, 0).UTC()
			k.CooldownUntil = &t
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLite) SetCooldownUntil(ctx context.Context, keyID string, until time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE gemini_api_keys SET cooldown_until = ? WHERE id = ?`, until.Unix(), keyID); err != nil {
		return fmt.Errorf("set cooldown: %w", err)
	}
	return nil
}

func (s *SQLite) SeedGeminiKeys(ctx context.Context, values []string) error {
	now := time.Now().Unix()
	for _, v := range values {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO gemini_api_keys (id, value, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
			KeyID(v), v, now,
		); err != nil {
			return fmt.Errorf("seed gemini key: %w", err)
		}
	}
	return nil
}

func (s *SQLite) InsertMessage(ctx context.Context, msg MessageRecord) error {
	msg = normaliseMessage(msg)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, direction, type, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), msg.SessionID, msg.Direction, msg.Type, msg.Content, msg.CreatedAt.Unix(),
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// CountMessages returns how many messages were logged for sessionID.
func (s *SQLite) CountMessages(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
