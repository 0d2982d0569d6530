// Package storage defines the record store abstraction both backend
// variants implement: one latest row per owner per entity, written by
// full-replacement upsert, optionally observable through a change feed.
package storage

import (
	"context"
	"errors"
	"fmt"

	"smartledger/internal/domain/ledger"
)

// ErrNoFeed is returned when a backend without push capability is asked
// to subscribe.
var ErrNoFeed = errors.New("backend does not support change feeds")

// StoreError is a rejected remote operation. Message carries the
// backend's human-readable explanation for the toast; Op is "fetch" or
// "upsert".
type StoreError struct {
	Op      string
	Entity  ledger.Entity
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store is the minimal per-entity record store.
type Store interface {
	// FetchLatest returns the single record for the owner, or (nil, nil)
	// when the owner has no row. Absence is not an error. A non-nil
	// record alongside a non-nil error is a stale cached fallback.
	FetchLatest(ctx context.Context, entity ledger.Entity, owner string) (*ledger.Record, error)

	// Upsert writes values merged with the owner as the full record for
	// that owner, replacing any existing row, and returns the written
	// record. Failures are *StoreError.
	Upsert(ctx context.Context, entity ledger.Entity, owner string, values ledger.Values) (*ledger.Record, error)
}

// Subscription is a live change-feed registration.
type Subscription interface {
	// Cancel stops delivery and releases the transport-level channel.
	// Safe to call more than once.
	Cancel()
}

// Feed delivers remote record changes outside the request/response
// cycle. Present only on the push-enabled backend.
type Feed interface {
	// Subscribe invokes onChange whenever the remote record for the
	// owner is created, updated or deleted. Handlers re-check the owner
	// field before applying, even though the transport already scopes
	// delivery.
	Subscribe(ctx context.Context, entity ledger.Entity, owner string, onChange func(ledger.Record)) (Subscription, error)
}
