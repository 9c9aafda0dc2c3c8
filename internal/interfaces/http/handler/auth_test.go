package handler

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appsession "github.com/Raulito1/collections-web/internal/application/session"
	"github.com/Raulito1/collections-web/internal/domain/session"
)

// countingProvider records provider calls for the auth flow tests.
type countingProvider struct {
	mu        sync.Mutex
	exchanges int
	signOuts  int
	session   *session.Session
	push      func(*session.Session)
}

func (p *countingProvider) StoredSession(ctx context.Context) (*session.Session, error) {
	return nil, nil
}

func (p *countingProvider) ExchangeCode(ctx context.Context, u *url.URL) (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchanges++
	return p.session, nil
}

func (p *countingProvider) Refresh(ctx context.Context) (*session.Session, error) { return nil, nil }

func (p *countingProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.signOuts++
	push := p.push
	p.mu.Unlock()
	if push != nil {
		push(nil)
	}
	return nil
}

func (p *countingProvider) OnSessionChanged(fn func(*session.Session)) func() {
	p.mu.Lock()
	p.push = fn
	p.mu.Unlock()
	return func() {}
}

type recordingNav struct{ replaced []*url.URL }

func (n *recordingNav) Replace(u *url.URL) { n.replaced = append(n.replaced, u) }

type authFixture struct {
	provider *countingProvider
	store    *session.Store
	manager  *appsession.Manager
	engine   *gin.Engine
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	provider := &countingProvider{
		session: &session.Session{
			AccessToken: "token-1",
			User:        session.User{Email: "ops@example.com"},
		},
	}
	store := session.NewStore()
	logger := zap.NewNop()
	manager := appsession.NewManager(store, provider, &recordingNav{}, logger)
	manager.Start(context.Background(), mustParse(t, "http://localhost:8080/"))

	h := NewAuthHandler(manager, store, "https://auth.example.com/auth/v1/authorize?provider=google", logger)
	engine := gin.New()
	h.RegisterRoutes(engine.Group("/"))

	return &authFixture{provider: provider, store: store, manager: manager, engine: engine}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestLoginWithoutSessionServesSignInURL(t *testing.T) {
	f := newAuthFixture(t)

	w := doJSON(f.engine, http.MethodGet, "/login", "")
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	assert.Equal(t, "https://auth.example.com/auth/v1/authorize?provider=google", data["sign_in_url"])
}

func TestLoginWithSessionRedirectsHome(t *testing.T) {
	f := newAuthFixture(t)
	f.store.Set(&session.Session{AccessToken: "token-1"})

	w := doJSON(f.engine, http.MethodGet, "/login", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestCallbackExchangesOnceAndRedirects(t *testing.T) {
	f := newAuthFixture(t)

	w := doJSON(f.engine, http.MethodGet, "/auth/callback?code=abc123", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	assert.Equal(t, 1, f.provider.exchanges)
	snapshot := f.store.Snapshot()
	require.NotNil(t, snapshot.Session)
	assert.Equal(t, "token-1", snapshot.Session.AccessToken)

	// A replayed callback must not exchange again.
	doJSON(f.engine, http.MethodGet, "/auth/callback?code=abc123", "")
	assert.Equal(t, 1, f.provider.exchanges)
}

func TestLogoutEndsSession(t *testing.T) {
	f := newAuthFixture(t)
	f.store.Set(&session.Session{AccessToken: "token-1"})

	w := doJSON(f.engine, http.MethodPost, "/auth/logout", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1, f.provider.signOuts)
	assert.Nil(t, f.store.Snapshot().Session)
}
