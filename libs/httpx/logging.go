package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type recorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *recorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *recorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

type logAttrs struct {
	mu    sync.Mutex
	attrs []any
}

// AddLogAttrs attaches key/value pairs to the access log line of the request carried by ctx,
// e.g. the caller resolved by an inner auth middleware. It is a no-op outside WithAccessLog.
func AddLogAttrs(ctx context.Context, args ...any) {
	la, ok := ctx.Value(ctxKeyLogAttrs).(*logAttrs)
	if !ok {
		return
	}
	la.mu.Lock()
	la.attrs = append(la.attrs, args...)
	la.mu.Unlock()
}

// WithAccessLog logs one line per request. 5xx responses are logged at error level and
// 4xx at warn, so rejected bookings show up without debug logging.
func WithAccessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &recorder{ResponseWriter: w}
			la := &logAttrs{}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKeyLogAttrs, la)))

			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rec.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			la.mu.Lock()
			args := append([]any{
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"bytes", rec.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
			}, la.attrs...)
			la.mu.Unlock()
			logger.Log(r.Context(), level, "http request", args...)
		})
	}
}
