package session

import (
	"strings"
	"time"
)

// User holds the identity attached to a session. The metadata fields are
// candidates: different OAuth providers populate different subsets, so
// display values are derived through ordered fallbacks.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Name     string `json:"name,omitempty"`
	UserName string `json:"user_name,omitempty"`

	AvatarURL string `json:"avatar_url,omitempty"`
	Picture   string `json:"picture,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}

// DisplayName resolves the user-facing name: full name, then short name,
// then username, then email, then a generic fallback.
func (u User) DisplayName() string {
	for _, candidate := range []string{u.FullName, u.Name, u.UserName, u.Email} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return "Signed in user"
}

// AvatarSource resolves the avatar URL candidates in order.
func (u User) AvatarSource() string {
	for _, candidate := range []string{u.AvatarURL, u.Picture, u.Avatar} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// Initials derives a one-or-two letter monogram for the avatar fallback.
func (u User) Initials() string {
	source := strings.TrimSpace(u.DisplayName())
	if source == "" || source == "Signed in user" {
		source = u.Email
	}
	parts := strings.Fields(source)
	switch len(parts) {
	case 0:
		return "?"
	case 1:
		runes := []rune(parts[0])
		if len(runes) > 2 {
			runes = runes[:2]
		}
		return strings.ToUpper(string(runes))
	default:
		first := []rune(parts[0])
		second := []rune(parts[1])
		return strings.ToUpper(string(first[0:1]) + string(second[0:1]))
	}
}

// Session is the opaque credential bundle issued by the identity provider.
// Sessions are replaced wholesale on every provider event or refresh and
// are never partially mutated.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is past its expiry. Sessions
// without an expiry are treated as live.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}
