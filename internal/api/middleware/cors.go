package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS answers preflight requests with 204 and sets the cross-origin
// headers on actual requests. An allowed origin of "*" admits any origin;
// an empty list admits none.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", CorrelationHeader},
		ExposedHeaders: []string{CorrelationHeader},
		MaxAge:         86400,
	}
	if len(allowedOrigins) == 0 {
		// cors treats an empty list as "*"
		opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	return cors.Handler(opts)
}
