package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jason-s-yu/durak/internal/auth"
)

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name == cookieName {
			return value
		}
	}
	return ""
}

// EnsureIdentity returns the identity in the request's auth cookie. Visitors without
// a valid token become guests and get a fresh cookie on w, so it must run before the
// response headers are written.
func EnsureIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, error) {
	if token := extractCookieToken(r.Header.Get("Cookie"), auth.CookieName); token != "" {
		if id, err := auth.AuthenticateJWT(token); err == nil {
			return id, nil
		}
	}

	id := auth.NewGuest()
	token, err := auth.CreateJWT(id)
	if err != nil {
		return auth.Identity{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
