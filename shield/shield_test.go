package shield

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "shield.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Init(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(DefaultHeaders())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing frame options header")
	}
}

func TestTraceID(t *testing.T) {
	var traceFromCtx string
	h := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceFromCtx = GetTraceID(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	header := rec.Header().Get("X-Trace-ID")
	if header == "" || header != traceFromCtx {
		t.Errorf("trace id header %q, context %q", header, traceFromCtx)
	}
}

func TestRateLimiter(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.Exec(
		`INSERT INTO rate_limits (endpoint, max_requests, window_seconds, enabled) VALUES (?, 2, 60, 1)`,
		"POST /api/auth/login"); err != nil {
		t.Fatal(err)
	}

	rl := NewRateLimiter(db)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(path string) int {
		req := httptest.NewRequest("POST", path, nil)
		req.RemoteAddr = "10.1.2.3:4567"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// Limit is 2 per window for the configured endpoint.
	if code := send("/api/auth/login"); code != http.StatusOK {
		t.Fatalf("first request = %d", code)
	}
	if code := send("/api/auth/login"); code != http.StatusOK {
		t.Fatalf("second request = %d", code)
	}
	if code := send("/api/auth/login"); code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", code)
	}

	// Unconfigured endpoints are not limited.
	for i := 0; i < 5; i++ {
		if code := send("/api/projects"); code != http.StatusOK {
			t.Fatalf("unlimited endpoint = %d", code)
		}
	}
}

func TestRateLimiterRouteClass(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.Exec(
		`INSERT INTO rate_limits (endpoint, max_requests, window_seconds, enabled) VALUES (?, 2, 60, 1)`,
		"PUT /api/documents/:id/content"); err != nil {
		t.Fatal(err)
	}

	rl := NewRateLimiter(db)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(path string) int {
		req := httptest.NewRequest("PUT", path, nil)
		req.RemoteAddr = "10.1.2.3:4567"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// Different document IDs fall into the same route class and share a bucket.
	if code := send("/api/documents/0198c2f4-aaaa-7000-8000-000000000001/content"); code != http.StatusOK {
		t.Fatalf("first request = %d", code)
	}
	if code := send("/api/documents/0198c2f4-bbbb-7000-8000-000000000002/content"); code != http.StatusOK {
		t.Fatalf("second request = %d", code)
	}
	if code := send("/api/documents/0198c2f4-cccc-7000-8000-000000000003/content"); code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", code)
	}
}

func TestRouteClass(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{"POST", "/api/auth/login", "POST /api/auth/login"},
		{"GET", "/api/documents/0198c2f4-1111-7000-8000-0000000000ab/versions/3",
			"GET /api/documents/:id/versions/:id"},
		{"POST", "/api/sessions/0198c2f4-2222-7000-8000-0000000000cd/chat/stream",
			"POST /api/sessions/:id/chat/stream"},
	}
	for _, tt := range tests {
		if got := routeClass(tt.method, tt.path); got != tt.want {
			t.Errorf("routeClass(%q, %q) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestExtractIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if ip := ExtractIP(req); ip != "192.0.2.1" {
		t.Errorf("remote addr ip = %q", ip)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := ExtractIP(req); ip != "203.0.113.9" {
		t.Errorf("forwarded ip = %q", ip)
	}
}
