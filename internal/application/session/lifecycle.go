package session

import (
	"context"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/Raulito1/collections-web/internal/domain/session"
)

// Navigator replaces the visible address without pushing a new history
// entry. The HTTP layer implements it with a redirect; tests record it.
type Navigator interface {
	Replace(u *url.URL)
}

// Manager bootstraps the session store from either a stored token or an
// OAuth redirect callback, keeps the store in sync with provider-pushed
// events, and tears down cleanly. It is the store's only writer.
type Manager struct {
	store    *session.Store
	provider session.Provider
	nav      Navigator
	logger   *zap.Logger

	mu sync.Mutex
	// lastCallback is the query of the most recently exchanged callback
	// address. A replay of that exact callback is skipped; a fresh
	// callback (new code, e.g. signing back in) exchanges normally.
	lastCallback string
	alive        bool
	unsub        func()
}

// NewManager wires a lifecycle manager. Start must be called before the
// store settles.
func NewManager(store *session.Store, provider session.Provider, nav Navigator, logger *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		provider: provider,
		nav:      nav,
		logger:   logger.Named("session"),
	}
}

// Start subscribes to provider push events and runs the bootstrap for
// the given startup address. The push subscription is live before the
// bootstrap begins and stays active until Stop; pushed events replace
// the session wholesale and never perform the callback exchange.
func (m *Manager) Start(ctx context.Context, current *url.URL) {
	m.mu.Lock()
	if m.alive {
		m.mu.Unlock()
		m.Bootstrap(ctx, current)
		return
	}
	m.alive = true
	m.mu.Unlock()

	m.unsub = m.provider.OnSessionChanged(func(sess *session.Session) {
		m.mu.Lock()
		alive := m.alive
		m.mu.Unlock()
		if !alive {
			return
		}
		m.store.Set(sess)
	})

	m.Bootstrap(ctx, current)
}

// Bootstrap resolves the store for the given address. Re-entry is safe:
// each distinct callback address exchanges and scrubs at most once, so
// a reloaded or replayed callback request cannot double-exchange, while
// a fresh callback after a sign-out starts a fresh exchange.
func (m *Manager) Bootstrap(ctx context.Context, current *url.URL) {
	if !HasCallbackMarkers(current) {
		m.bootstrapStored(ctx)
		return
	}

	m.mu.Lock()
	if m.lastCallback != "" && current.RawQuery == m.lastCallback {
		// This exact callback already ran; nothing left to exchange or scrub.
		m.mu.Unlock()
		return
	}
	m.lastCallback = current.RawQuery
	m.mu.Unlock()

	sess, err := m.provider.ExchangeCode(ctx, current)
	if err != nil {
		// Non-fatal: degrade to an unauthenticated session.
		m.logger.Error("oauth code exchange failed", zap.Error(err))
		sess = nil
	}

	// Scrub happens after the exchange attempt, success or failure, and
	// exactly once: a reload of the scrubbed address cannot re-exchange.
	m.nav.Replace(ScrubbedAddress(current))

	m.settle(sess)
}

func (m *Manager) bootstrapStored(ctx context.Context) {
	sess, err := m.provider.StoredSession(ctx)
	if err != nil {
		m.logger.Warn("stored session lookup failed", zap.Error(err))
		sess = nil
	}
	m.settle(sess)
}

// settle writes the bootstrap result unless the manager was stopped
// while the provider call was in flight.
func (m *Manager) settle(sess *session.Session) {
	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.store.Set(sess)
}

// SignOut revokes the session at the provider. The store update arrives
// through the push channel like any other session change.
func (m *Manager) SignOut(ctx context.Context) error {
	return m.provider.SignOut(ctx)
}

// Stop unsubscribes from the push channel and marks the manager dead so
// a late-resolving bootstrap cannot write to the store.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.alive = false
	unsub := m.unsub
	m.unsub = nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// HasCallbackMarkers reports whether an address carries OAuth redirect
// callback parameters.
func HasCallbackMarkers(u *url.URL) bool {
	if u == nil {
		return false
	}
	q := u.Query()
	return q.Has("code") || q.Has("error") || q.Has("error_description")
}

// ScrubbedAddress returns the address with the OAuth query parameters
// removed, preserving the path and fragment.
func ScrubbedAddress(u *url.URL) *url.URL {
	clean := *u
	clean.RawQuery = ""
	return &clean
}
