// Package postgres implements the record store against a hosted
// Postgres backend: latest-row reads, upsert-on-owner writes and a
// LISTEN/NOTIFY change feed.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

type Storage struct {
	pool *pgxpool.Pool
	log  *slog.Logger
	feed *listener
}

func New(ctx context.Context, databaseURI string, log *slog.Logger) (*Storage, error) {
	pool, err := pgxpool.New(ctx, databaseURI)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	s := &Storage{
		pool: pool,
		log:  log.With("component", "postgres_store"),
	}
	s.feed = newListener(pool, s.log)
	return s, nil
}

func (s *Storage) Close() error {
	s.feed.shutdown()
	s.pool.Close()
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
