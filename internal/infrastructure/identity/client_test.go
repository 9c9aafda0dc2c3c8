package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raulito1/collections-web/internal/domain/session"
)

// unsignedJWT builds a syntactically valid token carrying the given
// claims; the client never verifies signatures.
func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "."
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *MemorySessionCache) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cache := NewMemorySessionCache()
	client, err := NewClient(&Config{BaseURL: srv.URL, APIKey: "anon-key"}, cache)
	require.NoError(t, err)
	return client, cache
}

func TestExchangeCode(t *testing.T) {
	var gotGrant, gotCode, gotAPIKey string
	client, cache := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGrant = r.URL.Query().Get("grant_type")
		gotAPIKey = r.Header.Get("apikey")
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotCode = body["auth_code"]

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "tok-exchanged",
			"refresh_token": "ref-1",
			"expires_in":    3600,
			"user": map[string]any{
				"id":    "u1",
				"email": "ops@example.com",
				"user_metadata": map[string]any{
					"full_name":  "Ada Lovelace",
					"avatar_url": "https://img.example.com/a.png",
				},
			},
		})
	}))

	var pushed []*session.Session
	client.OnSessionChanged(func(s *session.Session) { pushed = append(pushed, s) })

	current, _ := url.Parse("https://app.example.com/?code=abc123")
	sess, err := client.ExchangeCode(context.Background(), current)
	require.NoError(t, err)

	assert.Equal(t, "pkce", gotGrant)
	assert.Equal(t, "abc123", gotCode)
	assert.Equal(t, "anon-key", gotAPIKey)
	assert.Equal(t, "tok-exchanged", sess.AccessToken)
	assert.Equal(t, "Ada Lovelace", sess.User.FullName)
	assert.False(t, sess.ExpiresAt.IsZero())

	// The exchanged session is persisted and pushed.
	stored, err := cache.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "tok-exchanged", stored.AccessToken)
	require.Len(t, pushed, 1)
	assert.Equal(t, sess, pushed[0])
}

func TestExchangeCodeProviderErrorInAddress(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	current, _ := url.Parse("https://app.example.com/?error=access_denied&error_description=user+said+no")
	_, err := client.ExchangeCode(context.Background(), current)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user said no")
	assert.Zero(t, calls, "callback errors fail without a network call")
}

func TestExchangeCodeBackendRejection(t *testing.T) {
	client, cache := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error_description": "code already used"})
	}))

	current, _ := url.Parse("https://app.example.com/?code=stale")
	_, err := client.ExchangeCode(context.Background(), current)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code already used")

	stored, _ := cache.Load(context.Background())
	assert.Nil(t, stored)
}

func TestStoredSessionRefreshesExpiredToken(t *testing.T) {
	client, cache := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "tok-fresh",
			"refresh_token": "ref-2",
			"expires_in":    3600,
			"user":          map[string]any{"id": "u1"},
		})
	}))

	require.NoError(t, cache.Save(context.Background(), &session.Session{
		AccessToken:  "tok-expired",
		RefreshToken: "ref-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	sess, err := client.StoredSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "tok-fresh", sess.AccessToken)
}

func TestStoredSessionMiss(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("stored-session lookups must not hit the network")
	}))

	sess, err := client.StoredSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSignOutClearsAndPushesNil(t *testing.T) {
	client, cache := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/logout", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, cache.Save(context.Background(), &session.Session{AccessToken: "tok-1"}))

	pushes := 0
	var last *session.Session
	client.OnSessionChanged(func(s *session.Session) {
		pushes++
		last = s
	})

	require.NoError(t, client.SignOut(context.Background()))
	assert.Equal(t, 1, pushes)
	assert.Nil(t, last)

	stored, _ := cache.Load(context.Background())
	assert.Nil(t, stored)
}

func TestFillFromClaims(t *testing.T) {
	token := unsignedJWT(t, map[string]any{
		"sub":   "u-claims",
		"email": "claims@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	sess := &session.Session{AccessToken: token}
	fillFromClaims(sess)

	assert.Equal(t, "u-claims", sess.User.ID)
	assert.Equal(t, "claims@example.com", sess.User.Email)
	assert.False(t, sess.ExpiresAt.IsZero())
}

func TestUnsubscribeStopsPushes(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	calls := 0
	unsub := client.OnSessionChanged(func(*session.Session) { calls++ })
	client.publish(&session.Session{})
	unsub()
	client.publish(&session.Session{})

	assert.Equal(t, 1, calls)
}
