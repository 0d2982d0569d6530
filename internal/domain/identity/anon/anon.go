// Package anon implements the anonymous identity variant: a random
// RFC-4122 v4 identifier generated once, persisted under a fixed key in
// the local store and reused thereafter.
package anon

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/google/uuid"

	"smartledger/internal/domain/identity"
)

// StorageKey is the fixed local-store key the identifier lives under.
const StorageKey = "smartledger.anon_id"

// KV is the piece of the local store the provider needs. Get returns
// ("", nil) when the key is absent.
type KV interface {
	Get(key string) (string, error)
	Put(key, value string) error
}

type Provider struct {
	kv      KV
	mu      gosync.Mutex
	id      *identity.Identity
	changes chan identity.Change
}

func New(kv KV) *Provider {
	return &Provider{
		kv:      kv,
		changes: make(chan identity.Change, 8),
	}
}

// Current returns the persisted anonymous identity, generating and
// storing a fresh v4 id on first use or when the stored value is not a
// valid UUID.
func (p *Provider) Current(_ context.Context) (*identity.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id != nil {
		return p.id, nil
	}

	stored, err := p.kv.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read anonymous id: %w", err)
	}

	if _, parseErr := uuid.Parse(stored); stored == "" || parseErr != nil {
		stored = uuid.NewString()
		if err := p.kv.Put(StorageKey, stored); err != nil {
			return nil, fmt.Errorf("persist anonymous id: %w", err)
		}
	}

	p.id = &identity.Identity{ID: stored, Anonymous: true}

	// Первое разрешение личности — единственное событие анонимного варианта.
	select {
	case p.changes <- identity.Change{Identity: p.id}:
	default:
	}

	return p.id, nil
}

func (p *Provider) Changes() <-chan identity.Change {
	return p.changes
}

// SignInWithProvider is not available without an auth service.
func (p *Provider) SignInWithProvider(context.Context, string, string) (*identity.Identity, error) {
	return nil, identity.ErrNotSupported
}

// SignOut is not available: the anonymous id has no server session.
func (p *Provider) SignOut(context.Context) error {
	return identity.ErrNotSupported
}
