package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS gemini_api_keys (
	id TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	cooldown_until TIMESTAMPTZ NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS messages (
	id UUID PRIMARY KEY,
	session_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	type TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_session_idx ON messages (session_id, created_at);
`

// Postgres stores keys and messages in PostgreSQL through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and applies the schema.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) ListActiveGeminiKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, value, cooldown_until FROM gemini_api_keys WHERE active ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list gemini keys: %w", err)
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.Value, &k.CooldownUntil); err != nil {
			return nil, fmt.Errorf("scan gemini key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (p *Postgres) SetCooldownUntil(ctx context.Context, keyID string, until time.Time) error {
	if _, err := p.pool.Exec(ctx, `UPDATE gemini_api_keys SET cooldown_until = $1 WHERE id = $2`, until, keyID); err != nil {
		return fmt.Errorf("set cooldown: %w", err)
	}
	return nil
}

func (p *Postgres) SeedGeminiKeys(ctx context.Context, values []string) error {
	for _, v := range values {
		if _, err := p.pool.Exec(ctx,
			`INSERT INTO gemini_api_keys (id, value) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
			KeyID(v), v,
		); err != nil {
			return fmt.Errorf("seed gemini key: %w", err)
		}
	}
	return nil
}

func (p *Postgres) InsertMessage(ctx context.Context, msg MessageRecord) error {
	msg = normaliseMessage(msg)
	if _, err := p.pool.Exec(ctx,
		`INSERT INTO messages (id, session_id, direction, type, content, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), msg.SessionID, msg.Direction, msg.Type, msg.Content, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
