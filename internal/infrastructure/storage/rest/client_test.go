package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"smartledger/internal/domain/ledger"
	"smartledger/internal/infrastructure/storage"
)

// fakeBackend is an in-memory rendition of the REST API: one latest
// row per owner per entity.
type fakeBackend struct {
	mu   gosync.Mutex
	rows map[string]map[ledger.Entity]*dashboardRow

	failUpsert     string // error body to return on upsert, "" for none
	plainTextError bool   // reject with a text/plain body instead of JSON
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{rows: make(map[string]map[ledger.Entity]*dashboardRow)}
}

func (b *fakeBackend) handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/api/dashboard/{ownerID}", func(w http.ResponseWriter, req *http.Request) {
		owner := chi.URLParam(req, "ownerID")

		b.mu.Lock()
		out := make(map[string]*dashboardRow, len(ledger.Entities()))
		for _, entity := range ledger.Entities() {
			out[string(entity)] = b.rows[owner][entity]
		}
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/api/upsert/{entity}", func(w http.ResponseWriter, req *http.Request) {
		entity, err := ledger.ParseEntity(chi.URLParam(req, "entity"))
		if err != nil {
			http.Error(w, `{"error":"unknown entity"}`, http.StatusNotFound)
			return
		}

		if b.failUpsert != "" {
			if b.plainTextError {
				http.Error(w, b.failUpsert, http.StatusUnprocessableEntity)
				return
			}
			http.Error(w, `{"error":"`+b.failUpsert+`"}`, http.StatusUnprocessableEntity)
			return
		}

		var in upsertRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}

		row := &dashboardRow{
			OwnerID:   in.OwnerID,
			Values:    in.Values,
			UpdatedAt: time.Now().UTC(),
		}

		b.mu.Lock()
		if b.rows[in.OwnerID] == nil {
			b.rows[in.OwnerID] = make(map[ledger.Entity]*dashboardRow)
		}
		b.rows[in.OwnerID][entity] = row
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(row)
	})

	return r
}

func newTestClient(t *testing.T, backend *fakeBackend) *Client {
	t.Helper()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)
	return New(strings.TrimPrefix(srv.URL, "http://"), false, slog.Default())
}

func TestFetchLatestAbsent(t *testing.T) {
	client := newTestClient(t, newFakeBackend())

	rec, err := client.FetchLatest(context.Background(), ledger.EntitySales, "u1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUpsertThenFetch(t *testing.T) {
	client := newTestClient(t, newFakeBackend())
	ctx := context.Background()

	written, err := client.Upsert(ctx, ledger.EntityExpenses, "u1", ledger.Values{
		"amount": 250.75,
		"month":  "August",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", written.Owner)
	assert.Equal(t, 250.75, written.Values["amount"])

	rec, err := client.FetchLatest(ctx, ledger.EntityExpenses, "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, written.Values, rec.Values)
	assert.False(t, rec.UpdatedAt.IsZero())
}

func TestFetchDashboardCoversAllEntities(t *testing.T) {
	client := newTestClient(t, newFakeBackend())
	ctx := context.Background()

	_, err := client.Upsert(ctx, ledger.EntityOrders, "u1", ledger.Values{
		"total_orders": int64(12),
		"pending":      int64(3),
		"completed":    int64(9),
	})
	require.NoError(t, err)

	dashboard, err := client.FetchDashboard(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, dashboard, len(ledger.Entities()))

	require.NotNil(t, dashboard[ledger.EntityOrders])
	assert.Equal(t, int64(12), dashboard[ledger.EntityOrders].Values["total_orders"])
	assert.Nil(t, dashboard[ledger.EntityReminders])
}

func TestCountsSurviveJSONRoundTrip(t *testing.T) {
	client := newTestClient(t, newFakeBackend())
	ctx := context.Background()

	// JSON turns integers into float64; Coerce must bring them back.
	written, err := client.Upsert(ctx, ledger.EntityOrders, "u1", ledger.Values{
		"total_orders": int64(7),
		"pending":      nil,
		"completed":    int64(7),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), written.Values["total_orders"])
	assert.Nil(t, written.Values["pending"])
}

func TestUpsertRejectedSurfacesBackendMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.failUpsert = "amount out of range"
	client := newTestClient(t, backend)

	_, err := client.Upsert(context.Background(), ledger.EntitySales, "u1", ledger.Values{"amount": 1.0})
	require.Error(t, err)

	var storeErr *storage.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "upsert", storeErr.Op)
	assert.Equal(t, ledger.EntitySales, storeErr.Entity)
	assert.Equal(t, "amount out of range", storeErr.Message)
}

func TestUpsertRejectedPlainTextMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.failUpsert = "quota exceeded"
	backend.plainTextError = true
	client := newTestClient(t, backend)

	_, err := client.Upsert(context.Background(), ledger.EntitySales, "u1", ledger.Values{"amount": 1.0})
	require.Error(t, err)

	var storeErr *storage.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "quota exceeded", storeErr.Message)
}

func TestFetchOwnerIsolation(t *testing.T) {
	client := newTestClient(t, newFakeBackend())
	ctx := context.Background()

	_, err := client.Upsert(ctx, ledger.EntityBankBalance, "u1", ledger.Values{"amount": 500.0})
	require.NoError(t, err)

	rec, err := client.FetchLatest(ctx, ledger.EntityBankBalance, "u2")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestBackendUnreachable(t *testing.T) {
	client := New("127.0.0.1:1", false, slog.Default())

	_, err := client.FetchLatest(context.Background(), ledger.EntitySales, "u1")
	require.Error(t, err)

	var storeErr *storage.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "backend unreachable", storeErr.Message)
}
