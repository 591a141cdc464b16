package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

const authCookieName = "auth_token"

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

// requestToken reads the bearer token from the auth cookie, the Authorization
// header or the token query parameter, in that order.
func requestToken(r *http.Request) string {
	if tok := extractCookieToken(r.Header.Get("Cookie"), authCookieName); tok != "" {
		return tok
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
