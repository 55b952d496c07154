package store

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres-backed document store, selected when DATABASE_URL is set
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	)
	`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}

	log.Println("Connected to PostgreSQL document store")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) LoadOrCreate(ctx context.Context, id string) (string, error) {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO documents (id, content) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING",
		id, DefaultContent,
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var content string
	err = s.pool.QueryRow(ctx,
		"SELECT content FROM documents WHERE id = $1",
		id,
	).Scan(&content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return content, nil
}

func (s *PostgresStore) Update(ctx context.Context, id, content string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, content) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = NOW()
	`, id, content)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
