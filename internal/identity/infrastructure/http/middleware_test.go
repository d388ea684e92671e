package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/caprisoft/storefront/internal/identity/domain"
)

type resolverFunc func(ctx context.Context, token string) (domain.User, error)

func (f resolverFunc) Resolve(ctx context.Context, token string) (domain.User, error) {
	return f(ctx, token)
}

func testResolver() Resolver {
	return resolverFunc(func(_ context.Context, token string) (domain.User, error) {
		switch token {
		case "client":
			return domain.User{ID: 1, Role: domain.RoleClient}, nil
		case "admin":
			return domain.User{ID: 2, Role: domain.RoleAdmin}, nil
		}
		return domain.User{}, domain.ErrUnauthenticated
	})
}

func serve(h http.Handler, token string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestAuthenticate(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	var seen domain.User
	h := Authenticate(log, testResolver())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFrom(r.Context())
	}))

	assert.Equal(t, http.StatusOK, serve(h, "client"))
	assert.Equal(t, int64(1), seen.ID)
	assert.Equal(t, http.StatusUnauthorized, serve(h, ""))
	assert.Equal(t, http.StatusUnauthorized, serve(h, "nope"))
}

func TestRequireAdmin(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Authenticate(log, testResolver())(RequireAdmin(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))

	assert.Equal(t, http.StatusOK, serve(h, "admin"))
	assert.Equal(t, http.StatusForbidden, serve(h, "client"))
}
