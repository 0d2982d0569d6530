package client

import (
	"context"

	"golang.org/x/exp/slog"

	"smartledger/internal/domain/ledger"
	"smartledger/internal/infrastructure/storage"
)

// cachingStore оборачивает удалённое хранилище локальным кэшем: при
// недоступном бэкенде отдаёт последнюю известную запись вместе с
// ошибкой, чтобы дашборд оставался читаемым офлайн.
type cachingStore struct {
	remote storage.Store
	local  *LocalStore
	log    *slog.Logger
}

func newCachingStore(remote storage.Store, local *LocalStore, log *slog.Logger) *cachingStore {
	return &cachingStore{
		remote: remote,
		local:  local,
		log:    log.With("component", "record_cache"),
	}
}

func (c *cachingStore) FetchLatest(ctx context.Context, entity ledger.Entity, owner string) (*ledger.Record, error) {
	rec, err := c.remote.FetchLatest(ctx, entity, owner)
	if err != nil {
		cached, cacheErr := c.local.CachedRecord(entity, owner)
		if cacheErr != nil {
			c.log.Warn("cache read failed", "entity", entity, "error", cacheErr)
			return nil, err
		}
		// Запись вместе с ошибкой: черновик из кэша, тост об ошибке.
		return cached, err
	}

	if rec != nil {
		if cacheErr := c.local.CacheRecord(entity, rec); cacheErr != nil {
			c.log.Warn("cache write failed", "entity", entity, "error", cacheErr)
		}
	}
	return rec, nil
}

// cachingFeed зеркалирует пуш-обновления в локальный кэш по пути к
// подписчику.
type cachingFeed struct {
	remote storage.Feed
	local  *LocalStore
	log    *slog.Logger
}

func newCachingFeed(remote storage.Feed, local *LocalStore, log *slog.Logger) *cachingFeed {
	return &cachingFeed{
		remote: remote,
		local:  local,
		log:    log.With("component", "record_cache"),
	}
}

func (c *cachingFeed) Subscribe(ctx context.Context, entity ledger.Entity, owner string, onChange func(ledger.Record)) (storage.Subscription, error) {
	return c.remote.Subscribe(ctx, entity, owner, func(rec ledger.Record) {
		if err := c.local.CacheRecord(entity, &rec); err != nil {
			c.log.Warn("cache write failed", "entity", entity, "error", err)
		}
		onChange(rec)
	})
}

func (c *cachingStore) Upsert(ctx context.Context, entity ledger.Entity, owner string, values ledger.Values) (*ledger.Record, error) {
	rec, err := c.remote.Upsert(ctx, entity, owner, values)
	if err != nil {
		return nil, err
	}

	if cacheErr := c.local.CacheRecord(entity, rec); cacheErr != nil {
		c.log.Warn("cache write failed", "entity", entity, "error", cacheErr)
	}
	return rec, nil
}
