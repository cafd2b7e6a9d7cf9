// Package repo stores the Gemini key pool and the outbound/inbound message log.
// Conversation state is never read back from here; sessions live in memory only.
package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnsupportedURL is returned by Open for database URLs it cannot route.
var ErrUnsupportedURL = errors.New("repo: unsupported database url")

// APIKey is one Gemini API key of the rotation pool.
type APIKey struct {
	ID            string
	Value         string
	CooldownUntil *time.Time
}

// MessageRecord is one logged chat message.
type MessageRecord struct {
	SessionID string
	Direction string
	Type      string
	Content   string
	CreatedAt time.Time
}

// Repository is implemented by every storage backend.
type Repository interface {
	ListActiveGeminiKeys(ctx context.Context) ([]APIKey, error)
	SetCooldownUntil(ctx context.Context, keyID string, until time.Time) error
	SeedGeminiKeys(ctx context.Context, values []string) error
	InsertMessage(ctx context.Context, msg MessageRecord) error
	Close() error
}

// Open picks a backend from databaseURL: empty for in-memory, postgres:// or
// postgresql:// for Postgres, sqlite:<path> for SQLite.
func Open(ctx context.Context, databaseURL string) (Repository, error) {
	switch {
	case databaseURL == "":
		return NewMemory(), nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return NewPostgres(ctx, databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return NewSQLite(ctx, strings.TrimPrefix(databaseURL, "sqlite:"))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, redactURL(databaseURL))
	}
}

// KeyID derives a stable identifier for a key value so the raw key never
// appears in logs.
func KeyID(value string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(value)).String()
}

func normaliseMessage(msg MessageRecord) MessageRecord {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Type == "" {
		msg.Type = "text"
	}
	return msg
}

func redactURL(raw string) string {
	if idx := strings.Index(raw, "://"); idx >= 0 {
		return raw[:idx] + "://…"
	}
	if len(raw) > 8 {
		return raw[:8] + "…"
	}
	return raw
}
