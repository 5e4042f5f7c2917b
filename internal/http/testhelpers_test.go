package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ahava-health/ahava-api/internal/data"
	mockauth "github.com/ahava-health/ahava-api/internal/mocks/auth"
	"github.com/ahava-health/ahava-api/internal/observability/statsd"
	"github.com/ahava-health/ahava-api/internal/ratelimit"
	"github.com/ahava-health/ahava-api/internal/service"
)

// plainHasher keeps HTTP tests independent of key-derivation cost.
type plainHasher struct{}

func (plainHasher) Hash(_ context.Context, p string) (string, error) { return "plain$" + p, nil }
func (plainHasher) Verify(_ context.Context, p, enc string) bool     { return enc == "plain$"+p }
func (plainHasher) NeedsRehash(string) bool                          { return false }

type testServer struct {
	handler  http.Handler
	svc      *service.AuthService
	users    *mockauth.MemoryUserStore
	sessions *mockauth.MemorySessionStore
	audit    *mockauth.RecordingAuditLogger
	clock    *data.FixedTimeProvider
	metrics  *statsd.Recorder
}

const testPassword = "Str0ngPass"

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := data.NewFixedTimeProvider(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	ts := &testServer{
		users:    mockauth.NewMemoryUserStore(),
		sessions: mockauth.NewMemorySessionStore(clock),
		audit:    &mockauth.RecordingAuditLogger{},
		clock:    clock,
		metrics:  statsd.NewRecorder(),
	}
	svc, err := service.NewAuthService(service.AuthServiceOptions{
		Users:    ts.users,
		Profiles: ts.users,
		Sessions: ts.sessions,
		Hasher:   plainHasher{},
		Audit:    ts.audit,
		Clock:    clock,
		Metrics:  ts.metrics,
	})
	require.NoError(t, err)
	ts.svc = svc

	ts.handler = NewRouter(RouterServices{
		Auth:     svc,
		Accounts: ts.users,
		Audit:    ts.audit,
		RateLimit: NewRateLimit(RateLimitOptions{
			Limiter:    ratelimit.NewFixedWindow(ratelimit.Options{Clock: clock}),
			TrustProxy: true,
			Metrics:    ts.metrics,
		}),
		TrustProxy: true,
		Logger:     discardLogger(),
		Metrics:    ts.metrics,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, mods ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mods {
		m(req)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value}) }
}

func withIP(ip string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("CF-Connecting-IP", ip) }
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", DefaultCookieName)
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(strings.NewReader(rec.Body.String())).Decode(&out))
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
