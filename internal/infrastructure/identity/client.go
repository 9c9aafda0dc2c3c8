package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Raulito1/collections-web/internal/domain/session"
)

// maxAuthResponseSize limits auth response bodies to prevent memory
// exhaustion from a misbehaving provider.
const maxAuthResponseSize = 1 * 1024 * 1024

// Config holds identity provider settings.
type Config struct {
	// BaseURL is the provider root, e.g. "https://xyz.supabase.co".
	BaseURL string
	// APIKey is the provider's publishable key, sent on every request.
	APIKey string
	// TimeoutSeconds bounds every provider call.
	TimeoutSeconds int
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("identity: base_url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("identity: invalid base_url: %w", err)
	}
	return nil
}

// Client implements session.Provider against a GoTrue-style identity
// service. It also plays the push channel: exchange, refresh and
// sign-out publish the resulting session to all subscribers.
type Client struct {
	config     *Config
	httpClient *http.Client
	cache      SessionCache

	mu        sync.Mutex
	listeners map[int]func(*session.Session)
	nextID    int
}

// NewClient creates an identity client backed by the given cache.
func NewClient(config *Config, cache SessionCache) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		listeners:  make(map[int]func(*session.Session)),
	}, nil
}

// tokenResponse is the provider's session payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		UserMetadata struct {
			FullName  string `json:"full_name"`
			Name      string `json:"name"`
			UserName  string `json:"user_name"`
			Email     string `json:"email"`
			AvatarURL string `json:"avatar_url"`
			Picture   string `json:"picture"`
			Avatar    string `json:"avatar"`
		} `json:"user_metadata"`
	} `json:"user"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (r *tokenResponse) toSession() *session.Session {
	sess := &session.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		User: session.User{
			ID:        r.User.ID,
			Email:     r.User.Email,
			FullName:  r.User.UserMetadata.FullName,
			Name:      r.User.UserMetadata.Name,
			UserName:  r.User.UserMetadata.UserName,
			AvatarURL: r.User.UserMetadata.AvatarURL,
			Picture:   r.User.UserMetadata.Picture,
			Avatar:    r.User.UserMetadata.Avatar,
		},
	}
	if sess.User.Email == "" {
		sess.User.Email = r.User.UserMetadata.Email
	}
	switch {
	case r.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		sess.ExpiresAt = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	fillFromClaims(sess)
	return sess
}

// fillFromClaims backfills identity fields from the access token's
// claims when the provider's user object is sparse. The token is
// trusted as delivered (the provider minted it over TLS), so no local
// signature verification happens here.
func fillFromClaims(sess *session.Session) {
	if sess.AccessToken == "" {
		return
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(sess.AccessToken, claims); err != nil {
		return
	}
	if sess.User.ID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			sess.User.ID = sub
		}
	}
	if sess.User.Email == "" {
		if email, ok := claims["email"].(string); ok {
			sess.User.Email = email
		}
	}
	if sess.ExpiresAt.IsZero() {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			sess.ExpiresAt = exp.Time
		}
	}
}

// StoredSession loads the persisted session, refreshing it once when
// the access token has expired. No code exchange happens here.
func (c *Client) StoredSession(ctx context.Context) (*session.Session, error) {
	sess, err := c.cache.Load(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Expired(time.Now()) {
		if sess.RefreshToken == "" {
			_ = c.cache.Clear(ctx)
			return nil, nil
		}
		return c.refreshWith(ctx, sess.RefreshToken)
	}
	return sess, nil
}

// ExchangeCode trades the OAuth callback payload in the current address
// for a session. A provider-reported error in the address fails the
// exchange without a network call.
func (c *Client) ExchangeCode(ctx context.Context, current *url.URL) (*session.Session, error) {
	q := current.Query()
	if errCode := q.Get("error"); errCode != "" {
		desc := q.Get("error_description")
		if desc == "" {
			desc = errCode
		}
		return nil, fmt.Errorf("identity: oauth callback carried an error: %s", desc)
	}
	code := q.Get("code")
	if code == "" {
		return nil, fmt.Errorf("identity: oauth callback carried no code")
	}

	body := map[string]string{"auth_code": code}
	resp, err := c.post(ctx, "/auth/v1/token?grant_type=pkce", "", body)
	if err != nil {
		return nil, err
	}

	sess := resp.toSession()
	if err := c.cache.Save(ctx, sess); err != nil {
		return nil, err
	}
	c.publish(sess)
	return sess, nil
}

// Refresh obtains a fresh session from the persisted refresh credential.
func (c *Client) Refresh(ctx context.Context) (*session.Session, error) {
	stored, err := c.cache.Load(ctx)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.RefreshToken == "" {
		return nil, fmt.Errorf("identity: no refresh credential available")
	}
	return c.refreshWith(ctx, stored.RefreshToken)
}

func (c *Client) refreshWith(ctx context.Context, refreshToken string) (*session.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	resp, err := c.post(ctx, "/auth/v1/token?grant_type=refresh_token", "", body)
	if err != nil {
		return nil, err
	}
	sess := resp.toSession()
	if err := c.cache.Save(ctx, sess); err != nil {
		return nil, err
	}
	c.publish(sess)
	return sess, nil
}

// SignOut revokes the session at the provider, clears the cache, and
// pushes the nil session to subscribers. Revocation failures still end
// the local session.
func (c *Client) SignOut(ctx context.Context) error {
	stored, _ := c.cache.Load(ctx)
	var revokeErr error
	if stored != nil && stored.AccessToken != "" {
		_, revokeErr = c.post(ctx, "/auth/v1/logout", stored.AccessToken, nil)
	}
	if err := c.cache.Clear(ctx); err != nil {
		return err
	}
	c.publish(nil)
	return revokeErr
}

// OnSessionChanged subscribes to session push events.
func (c *Client) OnSessionChanged(fn func(*session.Session)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) publish(sess *session.Session) {
	c.mu.Lock()
	listeners := make([]func(*session.Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(sess)
	}
}

func (c *Client) post(ctx context.Context, path, bearer string, body any) (*tokenResponse, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(c.config.BaseURL, "/")+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("apikey", c.config.APIKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxAuthResponseSize))
	if err != nil {
		return nil, err
	}

	var resp tokenResponse
	if len(data) > 0 {
		if err := json.Unmarshal(data, &resp); err != nil && httpResp.StatusCode < 300 {
			return nil, fmt.Errorf("identity: malformed provider response: %w", err)
		}
	}
	if httpResp.StatusCode >= 300 {
		msg := resp.ErrorDescription
		if msg == "" {
			msg = resp.Error
		}
		if msg == "" {
			msg = httpResp.Status
		}
		return nil, fmt.Errorf("identity: provider returned %d: %s", httpResp.StatusCode, msg)
	}
	return &resp, nil
}

var _ session.Provider = (*Client)(nil)
