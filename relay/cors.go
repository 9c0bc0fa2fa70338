package relay

import "net/http"

// CORS response headers sent on every response so browser extensions can
// call the relay from any origin.
const (
	allowOrigin  = "*"
	allowHeaders = "Authorization, Content-Type, X-API-Key"
	allowMethods = "GET, POST, OPTIONS"
)

// corsMiddleware sets permissive CORS headers on every response and
// short-circuits preflight OPTIONS requests with 204 before any handler
// logic runs.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
		w.Header().Set("Access-Control-Allow-Methods", allowMethods)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
