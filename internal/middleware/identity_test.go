package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DukeRupert/labsnap/internal/auth"
)

type stubProvider struct {
	id  auth.Identity
	err error
}

func (p stubProvider) Identify(*http.Request) (auth.Identity, error) {
	return p.id, p.err
}

func TestIdentityMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name     string
		provider auth.Provider
		wantUser string
		wantAuth bool
	}{
		{"signed in", stubProvider{id: auth.Identity{UserID: "u-1", Authenticated: true}}, "u-1", true},
		{"no token", stubProvider{id: auth.Demo(), err: auth.ErrNoToken}, auth.DemoUserID, false},
		{"bad token", stubProvider{id: auth.Demo(), err: errors.New("signature mismatch")}, auth.DemoUserID, false},
		{"demo provider", auth.DemoProvider{}, auth.DemoUserID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got auth.Identity
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = auth.GetIdentity(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})

			rec := httptest.NewRecorder()
			NewIdentityMiddleware(tt.provider, logger).Handler(next).ServeHTTP(rec, httptest.NewRequest("GET", "/api/usage", nil))

			if rec.Code != http.StatusNoContent {
				t.Errorf("request should never be rejected, got %d", rec.Code)
			}
			if got.UserID != tt.wantUser || got.Authenticated != tt.wantAuth {
				t.Errorf("got identity %+v, want user %q authenticated=%v", got, tt.wantUser, tt.wantAuth)
			}
		})
	}
}

func TestStack_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Stack(mark("outer"), mark("inner"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if len(order) != 3 || order[0] != "outer" || order[1] != "inner" || order[2] != "handler" {
		t.Errorf("unexpected order %v", order)
	}
}
