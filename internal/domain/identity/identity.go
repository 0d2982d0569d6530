// Package identity abstracts who owns the dashboard records: either a
// server-verified session or a locally generated anonymous id.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotSupported is returned by providers that do not implement an
// operation (the anonymous provider has no sign-in or sign-out).
var ErrNotSupported = errors.New("operation not supported by this identity provider")

// AuthError is a failed sign-in or sign-out. It is surfaced as a
// notification only; it never terminates the application.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("auth %s: %s", e.Op, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Identity is the stable owner of the five records.
type Identity struct {
	ID        string
	Email     string
	Anonymous bool
}

// Display returns what the dashboard header shows for this identity:
// the email when known, otherwise the shortened id.
func (i Identity) Display() string {
	if i.Email != "" {
		return i.Email
	}
	return ShortID(i.ID)
}

// ShortID shortens an anonymous id for display.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Change is one auth-state transition. Identity is nil after sign-out.
type Change struct {
	Identity *Identity
}

// Provider supplies the current owner identity and its changes.
type Provider interface {
	// Current returns the identity, or (nil, nil) when nobody is signed
	// in. The anonymous provider never returns nil.
	Current(ctx context.Context) (*Identity, error)

	// Changes streams auth-state transitions: sign-in, sign-out, session
	// restore. The channel is never closed by the provider.
	Changes() <-chan Change

	// SignInWithProvider delegates sign-in to the named external
	// provider. Secret is the provider-issued credential; its meaning is
	// the auth service's business.
	SignInWithProvider(ctx context.Context, provider, secret string) (*Identity, error)

	// SignOut invalidates the session.
	SignOut(ctx context.Context) error
}
