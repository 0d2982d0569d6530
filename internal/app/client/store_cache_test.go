package client

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"smartledger/internal/domain/ledger"
	"smartledger/internal/infrastructure/storage"
)

type stubRemote struct {
	rec      *ledger.Record
	fetchErr error
}

func (s *stubRemote) FetchLatest(_ context.Context, _ ledger.Entity, _ string) (*ledger.Record, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.rec, nil
}

func (s *stubRemote) Upsert(_ context.Context, _ ledger.Entity, owner string, values ledger.Values) (*ledger.Record, error) {
	s.rec = &ledger.Record{Owner: owner, Values: values, UpdatedAt: time.Now().UTC()}
	return s.rec, nil
}

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFetchCachesOnSuccess(t *testing.T) {
	local := newTestLocalStore(t)
	remote := &stubRemote{rec: &ledger.Record{
		Owner:     "u1",
		Values:    ledger.Values{"amount": 320.5},
		UpdatedAt: time.Now().UTC(),
	}}
	store := newCachingStore(remote, local, slog.Default())
	ctx := context.Background()

	rec, err := store.FetchLatest(ctx, ledger.EntityBankBalance, "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)

	cached, err := local.CachedRecord(ledger.EntityBankBalance, "u1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 320.5, cached.Values["amount"])
}

func TestFetchFallsBackToCacheOnError(t *testing.T) {
	local := newTestLocalStore(t)
	remote := &stubRemote{rec: &ledger.Record{
		Owner:     "u1",
		Values:    ledger.Values{"amount": 320.5},
		UpdatedAt: time.Now().UTC(),
	}}
	store := newCachingStore(remote, local, slog.Default())
	ctx := context.Background()

	_, err := store.FetchLatest(ctx, ledger.EntityBankBalance, "u1")
	require.NoError(t, err)

	remote.fetchErr = errors.New("backend down")

	rec, err := store.FetchLatest(ctx, ledger.EntityBankBalance, "u1")
	require.Error(t, err)
	require.NotNil(t, rec, "cached record must survive the outage")
	assert.Equal(t, 320.5, rec.Values["amount"])
}

func TestFetchErrorWithoutCache(t *testing.T) {
	local := newTestLocalStore(t)
	remote := &stubRemote{fetchErr: errors.New("backend down")}
	store := newCachingStore(remote, local, slog.Default())

	rec, err := store.FetchLatest(context.Background(), ledger.EntitySales, "u1")
	require.Error(t, err)
	assert.Nil(t, rec)
}

func TestUpsertRefreshesCache(t *testing.T) {
	local := newTestLocalStore(t)
	remote := &stubRemote{}
	store := newCachingStore(remote, local, slog.Default())
	ctx := context.Background()

	_, err := store.Upsert(ctx, ledger.EntitySales, "u1", ledger.Values{"amount": 75.0})
	require.NoError(t, err)

	remote.fetchErr = errors.New("backend down")

	rec, err := store.FetchLatest(ctx, ledger.EntitySales, "u1")
	require.Error(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 75.0, rec.Values["amount"])
}

func TestForgetOwnerClearsCache(t *testing.T) {
	local := newTestLocalStore(t)
	remote := &stubRemote{}
	store := newCachingStore(remote, local, slog.Default())
	ctx := context.Background()

	_, err := store.Upsert(ctx, ledger.EntitySales, "u1", ledger.Values{"amount": 75.0})
	require.NoError(t, err)

	require.NoError(t, local.ForgetOwner("u1"))

	cached, err := local.CachedRecord(ledger.EntitySales, "u1")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

type stubFeed struct {
	onChange func(ledger.Record)
}

type stubSubscription struct{}

func (stubSubscription) Cancel() {}

func (s *stubFeed) Subscribe(_ context.Context, _ ledger.Entity, _ string, onChange func(ledger.Record)) (storage.Subscription, error) {
	s.onChange = onChange
	return stubSubscription{}, nil
}

func TestPushMirroredIntoCache(t *testing.T) {
	local := newTestLocalStore(t)
	feed := &stubFeed{}
	caching := newCachingFeed(feed, local, slog.Default())

	var delivered []ledger.Record
	_, err := caching.Subscribe(context.Background(), ledger.EntityReminders, "u1", func(rec ledger.Record) {
		delivered = append(delivered, rec)
	})
	require.NoError(t, err)

	feed.onChange(ledger.Record{
		Owner:     "u1",
		Values:    ledger.Values{"title": "rent", "due_date": "2026-09-01"},
		UpdatedAt: time.Now().UTC(),
	})

	require.Len(t, delivered, 1)

	cached, err := local.CachedRecord(ledger.EntityReminders, "u1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "rent", cached.Values["title"])
}

func TestKVRoundTrip(t *testing.T) {
	local := newTestLocalStore(t)

	value, err := local.Get("missing")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, local.Put("k", "v1"))
	require.NoError(t, local.Put("k", "v2"))

	value, err = local.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
}
