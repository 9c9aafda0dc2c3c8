package session

import (
	"context"
	"net/url"
)

// Provider is the identity provider boundary. Implementations live in
// infrastructure; the lifecycle manager only depends on this interface.
type Provider interface {
	// StoredSession returns the previously persisted session, or nil
	// when none exists. No network-side code exchange happens here.
	StoredSession(ctx context.Context) (*Session, error)

	// ExchangeCode trades the OAuth redirect-callback payload carried in
	// the current address for a session.
	ExchangeCode(ctx context.Context, current *url.URL) (*Session, error)

	// Refresh obtains a fresh session from the refresh credential.
	Refresh(ctx context.Context) (*Session, error)

	// SignOut revokes the session at the provider.
	SignOut(ctx context.Context) error

	// OnSessionChanged registers a callback for provider-pushed session
	// events. Every event carries the full replacement session (nil on
	// sign-out). The returned function removes the subscription.
	OnSessionChanged(fn func(*Session)) (unsubscribe func())
}
