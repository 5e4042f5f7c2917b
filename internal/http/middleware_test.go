package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/ahava-health/ahava-api/internal/domain/auth"
	apperrors "github.com/ahava-health/ahava-api/internal/errors"
	"github.com/ahava-health/ahava-api/internal/observability/statsd"
)

type fakeAuth struct {
	calls    int
	identity domainauth.Identity
	err      error
	role     domainauth.Role
	roleErr  error
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (domainauth.Identity, error) {
	f.calls++
	if f.err != nil {
		return domainauth.Identity{}, f.err
	}
	id := f.identity
	if id.UserID == "" {
		id = domainauth.Identity{UserID: "user-" + token, Email: "pat@example.com", SessionExpiresAt: time.Now().Add(time.Hour)}
	}
	return id, nil
}

func (f *fakeAuth) RoleOf(context.Context, string) (domainauth.Role, error) {
	return f.role, f.roleErr
}

func okHandler(t *testing.T, wantUser string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, wantUser, id.UserID)
		w.WriteHeader(http.StatusOK)
	})
}

func TestGate_NoTokenSkipsStore(t *testing.T) {
	auth := &fakeAuth{}
	rec := statsd.NewRecorder()
	gate := NewGate(GateOptions{Auth: auth, Roles: auth, Metrics: rec})

	w := httptest.NewRecorder()
	gate.Authenticate(okHandler(t, "")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
	assert.Zero(t, auth.calls)
	assert.Equal(t, int64(1), rec.CountTagged("auth.gate", "outcome", "no_token"))
}

func TestGate_CookieAndBearer(t *testing.T) {
	auth := &fakeAuth{}
	gate := NewGate(GateOptions{Auth: auth, Roles: auth})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "c1"})
	w := httptest.NewRecorder()
	gate.Authenticate(okHandler(t, "user-c1")).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer b1")
	w = httptest.NewRecorder()
	gate.Authenticate(okHandler(t, "user-b1")).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGate_CookieWinsOverBearer(t *testing.T) {
	auth := &fakeAuth{}
	gate := NewGate(GateOptions{Auth: auth, Roles: auth, CookieName: "sid"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")
	w := httptest.NewRecorder()
	gate.Authenticate(okHandler(t, "user-from-cookie")).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGate_RejectsAndFails(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"invalid session", apperrors.Unauthenticated("Unauthorized"), http.StatusUnauthorized, `{"error":"Unauthorized"}`},
		{"store unavailable", apperrors.Unavailable(errors.New("dial tcp"), "session store unavailable"), http.StatusInternalServerError, `{"error":"Internal server error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuth{err: tt.err}
			gate := NewGate(GateOptions{Auth: auth, Roles: auth})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer tok")
			w := httptest.NewRecorder()
			gate.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler must not run")
			})).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			assert.NotContains(t, w.Body.String(), "dial tcp")
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		role     domainauth.Role
		roleErr  error
		withID   bool
		wantCode int
	}{
		{"no identity", "", nil, false, http.StatusUnauthorized},
		{"allowed", domainauth.RoleDoctor, nil, true, http.StatusOK},
		{"not allowed", domainauth.RolePatient, nil, true, http.StatusForbidden},
		{"no profile", "", nil, true, http.StatusForbidden},
		{"store failure", "", errors.New("boom"), true, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuth{role: tt.role, roleErr: tt.roleErr}
			gate := NewGate(GateOptions{Auth: auth, Roles: auth})

			var gotRole domainauth.Role
			h := gate.RequireRole(domainauth.RoleDoctor, domainauth.RoleAdmin)(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					id, _ := IdentityFromContext(r.Context())
					gotRole = id.Role
					w.WriteHeader(http.StatusOK)
				}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.withID {
				req = req.WithContext(SetIdentityInContext(req.Context(), domainauth.Identity{UserID: "u1"}))
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusForbidden {
				assert.JSONEq(t, `{"error":"Forbidden"}`, w.Body.String())
			}
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.role, gotRole)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	const incoming = "9b2f3c1e-6d4a-4c55-8f0e-2a7b1c9d0e11"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, incoming, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not a uuid\n")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "not a uuid\n", seen)
}

func TestRecover(t *testing.T) {
	h := Recover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}
