package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"smartledger/internal/domain/ledger"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "valid bank balance",
			payload: `{"table":"bank_balance","owner_id":"u1","values":{"amount":120.5}}`,
		},
		{
			name:    "valid reminder",
			payload: `{"table":"reminders","owner_id":"u1","values":{"title":"rent","due_date":"2026-09-01"}}`,
		},
		{
			name:    "unknown table",
			payload: `{"table":"audit_log","owner_id":"u1","values":{}}`,
			wantErr: true,
		},
		{
			name:    "missing owner",
			payload: `{"table":"sales","values":{"amount":1}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			payload: `NOTIFY`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change, err := parsePayload(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", change.OwnerID)
		})
	}
}

func TestDispatchFiltersByOwnerAndEntity(t *testing.T) {
	l := &listener{
		log:  slog.Default(),
		subs: make(map[int]*subscriber),
	}

	var got []ledger.Record
	l.subs[1] = &subscriber{id: 1, entity: ledger.EntitySales, owner: "u1", onChange: func(r ledger.Record) {
		got = append(got, r)
	}}
	l.subs[2] = &subscriber{id: 2, entity: ledger.EntitySales, owner: "u2", onChange: func(ledger.Record) {
		t.Fatal("change delivered to wrong owner")
	}}
	l.subs[3] = &subscriber{id: 3, entity: ledger.EntityOrders, owner: "u1", onChange: func(ledger.Record) {
		t.Fatal("change delivered to wrong entity")
	}}

	l.dispatch(`{"table":"sales","owner_id":"u1","values":{"amount":99}}`)

	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].Owner)
	assert.Equal(t, float64(99), got[0].Values["amount"])
}

func TestDispatchSkipsMalformedPayload(t *testing.T) {
	l := &listener{
		log:  slog.Default(),
		subs: make(map[int]*subscriber),
	}
	l.subs[1] = &subscriber{id: 1, entity: ledger.EntitySales, owner: "u1", onChange: func(ledger.Record) {
		t.Fatal("malformed payload must not be delivered")
	}}

	l.dispatch(`{"table":"sales"`)
}

func TestSubscriptionCancelStopsDelivery(t *testing.T) {
	l := &listener{
		log:  slog.Default(),
		subs: make(map[int]*subscriber),
		// running is left false so unsubscribe never touches the
		// connection loop.
	}

	sub := &subscription{listener: l, id: 7}
	l.subs[7] = &subscriber{id: 7, entity: ledger.EntitySales, owner: "u1", onChange: func(ledger.Record) {
		t.Fatal("cancelled subscription still receives changes")
	}}

	sub.Cancel()
	sub.Cancel() // idempotent

	l.dispatch(`{"table":"sales","owner_id":"u1","values":{"amount":1}}`)
	assert.Empty(t, l.subs)
}
