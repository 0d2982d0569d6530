package client

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartledger/internal/domain/identity/anon"
)

func TestLocalStoreUsableAfterMigration(t *testing.T) {
	store := newTestLocalStore(t)

	// Первое же обращение после открытия: анонимная личность должна
	// читаться и сохраняться без переоткрытия базы.
	ident, err := anon.New(store).Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.NotEmpty(t, ident.ID)

	stored, err := store.Get(anon.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, ident.ID, stored)
}

func TestLocalStoreReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	store, err := NewLocalStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put("k", "v"))
	require.NoError(t, store.Close())

	// Повторное открытие прогоняет миграции по уже готовой схеме
	store, err = NewLocalStore(path)
	require.NoError(t, err)
	defer store.Close()

	value, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}
