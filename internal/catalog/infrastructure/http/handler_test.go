package http_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caprisoft/storefront/internal/catalog/application"
	"github.com/caprisoft/storefront/internal/catalog/domain"
	cataloghttp "github.com/caprisoft/storefront/internal/catalog/infrastructure/http"
	identity "github.com/caprisoft/storefront/internal/identity/domain"
	identityhttp "github.com/caprisoft/storefront/internal/identity/infrastructure/http"
	"github.com/caprisoft/storefront/internal/store/memory"
)

// headerAuth trusts an X-Role header so tests can switch callers cheaply.
func headerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := identity.Role(r.Header.Get("X-Role"))
		if role == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		u := identity.User{ID: 1, Email: "someone@example.com", Role: role}
		next.ServeHTTP(w, r.WithContext(identityhttp.WithUser(r.Context(), u)))
	})
}

func newServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	svc := application.NewService(log, store.CatalogUnitOfWork(), store.ProductReader())

	r := chi.NewRouter()
	r.Mount("/api/products", cataloghttp.NewHandler(log, svc, 5).Routes(headerAuth))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func call(t *testing.T, srv *httptest.Server, method, path, role, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestCreateAndGetProduct(t *testing.T) {
	srv, _ := newServer(t)

	code, _ := call(t, srv, http.MethodPost, "/api/products", "CLIENT", `{}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, raw := call(t, srv, http.MethodPost, "/api/products", "ADMIN",
		`{"name":"Queso fresco","price":"8.90","stock":0,"category":"CHEESE","unit":"kg"}`)
	require.Equal(t, http.StatusCreated, code)
	created := decode[map[string]any](t, raw)
	assert.Equal(t, "8.90", created["price"])
	assert.Equal(t, "OUT_OF_STOCK", created["status"])
	assert.Equal(t, "Cheese", created["categoryDisplayName"])

	code, raw = call(t, srv, http.MethodGet, "/api/products/1", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Queso fresco", decode[map[string]any](t, raw)["name"])

	code, _ = call(t, srv, http.MethodPost, "/api/products", "ADMIN", `{"name":"x","price":"1","category":"WINE","unit":"l"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListFiltersAndCategories(t *testing.T) {
	srv, store := newServer(t)
	store.AddProduct(domain.NewProduct("Whole milk", decimal.RequireFromString("1.20"), 40, domain.CategoryMilk, "l"))
	store.AddProduct(domain.NewProduct("Skim milk", decimal.RequireFromString("1.10"), 0, domain.CategoryMilk, "l"))
	store.AddProduct(domain.NewProduct("Brie", decimal.RequireFromString("9.00"), 3, domain.CategoryCheese, "kg"))

	_, raw := call(t, srv, http.MethodGet, "/api/products?category=MILK", "", "")
	assert.Len(t, decode[[]map[string]any](t, raw), 2)

	_, raw = call(t, srv, http.MethodGet, "/api/products?status=AVAILABLE&name=milk", "", "")
	got := decode[[]map[string]any](t, raw)
	require.Len(t, got, 1)
	assert.Equal(t, "Whole milk", got[0]["name"])

	_, raw = call(t, srv, http.MethodGet, "/api/products/categories", "", "")
	assert.Len(t, decode[[]map[string]any](t, raw), len(domain.Categories))

	code, raw := call(t, srv, http.MethodGet, "/api/products/low-stock", "ADMIN", "")
	require.Equal(t, http.StatusOK, code)
	low := decode[[]map[string]any](t, raw)
	require.Len(t, low, 2)
	assert.Equal(t, "Skim milk", low[0]["name"])
}

func TestAdjustStockAndDeactivate(t *testing.T) {
	srv, store := newServer(t)
	p := store.AddProduct(domain.NewProduct("Yogurt", decimal.RequireFromString("0.80"), 2, domain.CategoryYogurt, "cup"))
	path := "/api/products/1"

	code, raw := call(t, srv, http.MethodPatch, path+"/stock", "ADMIN", `{"delta":-2}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OUT_OF_STOCK", decode[map[string]any](t, raw)["status"])

	code, _ = call(t, srv, http.MethodPatch, path+"/stock", "ADMIN", `{"delta":-1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, raw = call(t, srv, http.MethodPatch, path+"/stock", "ADMIN", `{"delta":5}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "AVAILABLE", decode[map[string]any](t, raw)["status"])

	code, _ = call(t, srv, http.MethodPut, path, "ADMIN", `{"stock":1}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, raw = call(t, srv, http.MethodPut, path, "ADMIN", `{"status":"DISCONTINUED"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "DISCONTINUED", decode[map[string]any](t, raw)["status"])

	code, _ = call(t, srv, http.MethodDelete, path, "ADMIN", "")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = call(t, srv, http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusNotFound, code)

	stored, ok := store.Product(p.ID)
	require.True(t, ok)
	assert.False(t, stored.Active)
}

func TestAvailability(t *testing.T) {
	srv, store := newServer(t)
	store.AddProduct(domain.NewProduct("Butter", decimal.RequireFromString("3.40"), 4, domain.CategoryOther, "pack"))

	code, raw := call(t, srv, http.MethodGet, "/api/products/1/availability?quantity=4", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, decode[map[string]any](t, raw)["available"])

	_, raw = call(t, srv, http.MethodGet, "/api/products/1/availability?quantity=5", "", "")
	assert.Equal(t, false, decode[map[string]any](t, raw)["available"])

	code, _ = call(t, srv, http.MethodGet, "/api/products/1/availability?quantity=0", "", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, srv, http.MethodGet, "/api/products/9/availability", "", "")
	assert.Equal(t, http.StatusNotFound, code)
}
