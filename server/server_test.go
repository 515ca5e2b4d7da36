package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-gateway/middleware/ratelimit"
	"chat-gateway/middleware/ratelimit/application"
	"chat-gateway/middleware/ratelimit/domain"
	"chat-gateway/middleware/ratelimit/infra"

	"github.com/prometheus/client_golang/prometheus"
)

var t0 = time.Date(2024, 3, 4, 5, 6, 7, 890_000_000, time.UTC)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestServer(t *testing.T, max int, chatCalls *int) (*Server, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: t0}

	ctrl := &application.AdmissionController{
		Store: infra.NewMemoryWindowStore(domain.Policy{Window: 15 * time.Minute, Max: max}, clock.t),
		Clock: clock,
	}

	chat := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*chatCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	s := New(Options{
		AllowedOrigin: "https://example.github.io",
		Chat:          chat,
		Admission: []func(http.Handler) http.Handler{
			ratelimit.Middleware(ratelimit.Options{Controller: ctrl, TrustXForwardedFor: true}),
		},
		Registry: prometheus.NewRegistry(),
		Now:      clock.Now,
	})
	return s, clock
}

func serve(s *Server, method, target string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, body)
	for k, v := range hdr {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	s, _ := body["error"].(string)
	return s
}

func TestServer_PreflightOnAnyRoute(t *testing.T) {
	calls := 0
	s, _ := newTestServer(t, 1, &calls)

	for _, path := range []string{"/api/chat", "/api/health", "/whatever"} {
		w := serve(s, http.MethodOptions, "http://gw"+path, nil, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		if w.Body.Len() != 0 {
			t.Fatalf("%s: expected empty body, got %q", path, w.Body.String())
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://example.github.io" {
			t.Fatalf("%s: unexpected origin %q", path, got)
		}
		if w.Header().Get("Access-Control-Allow-Methods") == "" || w.Header().Get("Access-Control-Allow-Headers") == "" {
			t.Fatalf("%s: expected CORS methods/headers", path)
		}
	}
	if calls != 0 {
		t.Fatalf("expected preflight to never reach chat handler")
	}
}

func TestServer_Health(t *testing.T) {
	calls := 0
	s, _ := newTestServer(t, 1, &calls)

	w := serve(s, http.MethodGet, "http://gw/api/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "OK" || body["timestamp"] != "2024-03-04T05:06:07.890Z" {
		t.Fatalf("unexpected health body %v", body)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected CORS headers on health")
	}
}

func TestServer_MethodNotAllowedAndNotFound(t *testing.T) {
	calls := 0
	s, _ := newTestServer(t, 1, &calls)

	w := serve(s, http.MethodGet, "http://gw/api/chat", nil, nil)
	if w.Code != http.StatusMethodNotAllowed || errorOf(t, w) != "Method not allowed" {
		t.Fatalf("expected 405 Method not allowed, got %d %q", w.Code, w.Body.String())
	}

	w = serve(s, http.MethodGet, "http://gw/nope", nil, nil)
	if w.Code != http.StatusNotFound || errorOf(t, w) != "Not found" {
		t.Fatalf("expected 404, got %d %q", w.Code, w.Body.String())
	}
}

func TestServer_RateLimitsChatPerClient(t *testing.T) {
	calls := 0
	s, clock := newTestServer(t, 2, &calls)
	xff := map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}

	for i := 0; i < 2; i++ {
		w := serve(s, http.MethodPost, "http://gw/api/chat", strings.NewReader(`{"messages":[]}`), xff)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := serve(s, http.MethodPost, "http://gw/api/chat", strings.NewReader(`{"messages":[]}`), xff)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if errorOf(t, w) != "Too many requests. Please try again later." {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
	if calls != 2 {
		t.Fatalf("expected rejected request to never reach chat, got %d calls", calls)
	}

	// outro cliente não é afetado
	other := map[string]string{"X-Forwarded-For": "198.51.100.1"}
	if w := serve(s, http.MethodPost, "http://gw/api/chat", strings.NewReader(`{}`), other); w.Code != http.StatusOK {
		t.Fatalf("expected other client 200, got %d", w.Code)
	}

	// health não consome cota
	if w := serve(s, http.MethodGet, "http://gw/api/health", nil, xff); w.Code != http.StatusOK {
		t.Fatalf("expected health 200 for limited client, got %d", w.Code)
	}

	clock.t = clock.t.Add(15*time.Minute + time.Second)
	if w := serve(s, http.MethodPost, "http://gw/api/chat", strings.NewReader(`{}`), xff); w.Code != http.StatusOK {
		t.Fatalf("expected 200 after window reset, got %d", w.Code)
	}
}

func TestServer_RequestIDAndMetrics(t *testing.T) {
	calls := 0
	s, _ := newTestServer(t, 5, &calls)

	w := serve(s, http.MethodGet, "http://gw/api/health", nil, map[string]string{RequestIDHeader: "abc-123"})
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
	w = serve(s, http.MethodGet, "http://gw/api/health", nil, nil)
	if got := w.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Fatalf("expected generated uuid, got %q", got)
	}

	w = serve(s, http.MethodGet, "http://gw/metrics", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `gateway_http_requests_total{method="GET",route="/api/health",status="200"} 2`) {
		t.Fatalf("expected health requests to be counted, got:\n%s", w.Body.String())
	}
}

func TestServer_RecoversFromPanics(t *testing.T) {
	s := New(Options{
		Chat: http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
	})

	w := serve(s, http.MethodPost, "http://gw/api/chat", strings.NewReader(`{}`), nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", w.Code)
	}
}
