package httpx

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainAppliesInOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
	}), mark("a"), mark("b"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "handler" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestWithRequestIDEchoesHeader(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if seen != "req-123" || rw.Header().Get(RequestIDHeader) != "req-123" {
		t.Fatalf("request id not propagated: ctx=%q header=%q", seen, rw.Header().Get(RequestIDHeader))
	}

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(rw.Header().Get(RequestIDHeader)) != 36 {
		t.Fatalf("expected generated uuid, got %q", rw.Header().Get(RequestIDHeader))
	}
}

func TestWithRequestIDReplacesMalformedHeader(t *testing.T) {
	h := WithRequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	for _, in := range []string{"has space", "line\nbreak", strings.Repeat("a", maxRequestIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, in)
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		got := rw.Header().Get(RequestIDHeader)
		assert.NotEqual(t, in, got)
		assert.Len(t, got, 36)
	}
}

func TestWithCORSPreflight(t *testing.T) {
	h := WithCORS([]string{"https://agenda.example.com/"}, 10*time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("preflight should not reach handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/appointments", nil)
	req.Header.Set("Origin", "https://agenda.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rw.Code)
	}
	if rw.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected credentials header")
	}
	assert.Equal(t, "https://agenda.example.com", rw.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "600", rw.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, rw.Header().Get("Access-Control-Allow-Headers"), RequestIDHeader)
}

func TestWithCORSIgnoresUnknownOrigin(t *testing.T) {
	served := false
	h := WithCORS([]string{"https://agenda.example.com"}, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		served = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.True(t, served)
	assert.Empty(t, rw.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rw.Header().Get("Vary"))
}

func TestWithCORSWildcardEchoesOrigin(t *testing.T) {
	h := WithCORS([]string{"*"}, 0)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.Equal(t, "http://localhost:5173", rw.Header().Get("Access-Control-Allow-Origin"))
}

func TestWithTimeoutAnswersJSON(t *testing.T) {
	h := WithTimeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rw.Code)
	assert.Equal(t, "application/json", rw.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"request timed out"}`, rw.Body.String())
}

func TestWithBodyLimitRejectsLargeBody(t *testing.T) {
	var readErr error
	h := WithBodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"too long"}`)))
	var maxErr *http.MaxBytesError
	require.ErrorAs(t, readErr, &maxErr)
}

func TestWithAccessLogIncludesAttrsFromInnerHandlers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddLogAttrs(r.Context(), "owner_id", "42")
		w.WriteHeader(http.StatusConflict)
	}), WithRequestID, WithAccessLog(logger))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/appointments", nil))
	line := buf.String()
	assert.Contains(t, line, `"level":"WARN"`)
	assert.Contains(t, line, `"status":409`)
	assert.Contains(t, line, `"owner_id":"42"`)
	assert.Contains(t, line, `"request_id":`)
}

func TestAddLogAttrsOutsideAccessLog(t *testing.T) {
	assert.NotPanics(t, func() { AddLogAttrs(context.Background(), "k", "v") })
}
