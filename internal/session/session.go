// Package session maps issued tokens onto HTTP-only, secure cookies.
package session

import (
	"net/http"
	"time"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// Manager sets and clears both session cookies with one attribute set;
// browsers ignore a clear whose path, domain or flags differ from the set.
type Manager struct {
	sameSite   http.SameSite
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(sameSite http.SameSite, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{sameSite: sameSite, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (m *Manager) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: m.sameSite,
	}
}

// Attach sets both cookies on the response.
func (m *Manager) Attach(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, m.cookie(AccessCookie, accessToken, int(m.accessTTL.Seconds())))
	http.SetCookie(w, m.cookie(RefreshCookie, refreshToken, int(m.refreshTTL.Seconds())))
}

// Clear expires both cookies.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(AccessCookie, "", -1))
	http.SetCookie(w, m.cookie(RefreshCookie, "", -1))
}

// AccessToken reads the access token from the cookie or a bearer header.
func AccessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// RefreshToken reads the refresh token cookie.
func RefreshToken(r *http.Request) string {
	if c, err := r.Cookie(RefreshCookie); err == nil {
		return c.Value
	}
	return ""
}
