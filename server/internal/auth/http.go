package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// queryParam carries the key for clients that cannot set headers, such as
// browser WebSocket connections.
const queryParam = "api_key"

// Middleware wraps next with API key checks for HTTP requests. The key is
// read from header, falling back to the api_key query parameter. Requests
// whose path starts with one of exempt pass through unchecked. When mode is
// not "apikey" or key is empty the middleware is a no-op.
func Middleware(mode, header, key string, exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled(mode, key) {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range exempt {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			got := r.Header.Get(header)
			if got == "" {
				got = r.URL.Query().Get(queryParam)
			}
			if !matches(got, key) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
