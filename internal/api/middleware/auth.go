package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/notifyhub/tipcast/internal/domain"
)

// BearerSecret guards a route with a shared secret sent as
// "Authorization: Bearer <secret>". An empty secret rejects every request
// so a missing CRON_SECRET never leaves the dispatch endpoint open.
func BearerSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if secret == "" || !found || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": domain.ErrUnauthorized.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
