package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	corsMethods        = "GET, POST, PUT, DELETE, OPTIONS"
	corsRequestHeaders = "Authorization, Content-Type, " + RequestIDHeader
)

// WithCORS lets the listed frontend origins call the API with credentials. "*" admits any
// origin, echoed back since a wildcard cannot be combined with credentials. Requests from
// other origins pass through without CORS headers and are left to the browser to block.
func WithCORS(origins []string, maxAge time.Duration) Middleware {
	allowed := make(map[string]struct{}, len(origins))
	anyOrigin := false
	for _, o := range origins {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		switch o {
		case "":
		case "*":
			anyOrigin = true
		default:
			allowed[o] = struct{}{}
		}
	}
	if len(allowed) == 0 && !anyOrigin {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			if _, ok := allowed[strings.ToLower(origin)]; origin == "" || !(ok || anyOrigin) {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)

			if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsRequestHeaders)
			if maxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(int(maxAge.Seconds())))
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
