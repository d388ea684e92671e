package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/caprisoft/storefront/internal/catalog/application"
	"github.com/caprisoft/storefront/internal/catalog/domain"
	identityhttp "github.com/caprisoft/storefront/internal/identity/infrastructure/http"
)

type Handler struct {
	log               *slog.Logger
	service           *application.Service
	lowStockThreshold int
}

func NewHandler(log *slog.Logger, service *application.Service, lowStockThreshold int) *Handler {
	return &Handler{log: log, service: service, lowStockThreshold: lowStockThreshold}
}

// Routes mounts under /api/products. Reads are public; writes need an admin.
func (h *Handler) Routes(auth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/categories", h.categories)
	r.Get("/{id}", h.get)
	r.Get("/{id}/availability", h.availability)

	r.Group(func(r chi.Router) {
		r.Use(auth, identityhttp.RequireAdmin)
		r.Get("/low-stock", h.lowStock)
		r.Get("/counts", h.counts)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.deactivate)
		r.Patch("/{id}/stock", h.adjustStock)
	})
	return r
}

type productResp struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	Price               string    `json:"price"`
	Stock               int       `json:"stock"`
	Category            string    `json:"category"`
	CategoryDisplayName string    `json:"categoryDisplayName"`
	Status              string    `json:"status"`
	StatusDisplayName   string    `json:"statusDisplayName"`
	ImageURL            string    `json:"imageUrl,omitempty"`
	Unit                string    `json:"unit"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func toResp(p domain.Product) productResp {
	return productResp{
		ID:                  p.ID,
		Name:                p.Name,
		Description:         p.Description,
		Price:               p.Price.StringFixed(2),
		Stock:               p.Stock,
		Category:            string(p.Category),
		CategoryDisplayName: p.Category.DisplayName(),
		Status:              string(p.Status),
		StatusDisplayName:   p.Status.DisplayName(),
		ImageURL:            p.ImageURL,
		Unit:                p.Unit,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

func toResps(ps []domain.Product) []productResp {
	out := make([]productResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, toResp(p))
	}
	return out
}

type productReq struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Category    *string          `json:"category"`
	Status      *string          `json:"status"`
	ImageURL    *string          `json:"imageUrl"`
	Unit        *string          `json:"unit"`
}

// stockReq adjusts stock by a signed delta.
type stockReq struct {
	Delta int `json:"delta"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := h.service.ListProducts(r.Context(), application.ProductFilter{
		Category: domain.Category(q.Get("category")),
		Status:   domain.ProductStatus(q.Get("status")),
		Name:     q.Get("name"),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResps(products))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResp(p))
}

// availability answers whether quantity units (default 1) can be ordered now.
func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	quantity := 1
	if v := r.URL.Query().Get("quantity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "quantity must be a positive integer", Field: "quantity"})
			return
		}
		quantity = n
	}
	available, err := h.service.HasStock(r.Context(), id, quantity)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"productId": id, "quantity": quantity, "available": available})
}

func (h *Handler) categories(w http.ResponseWriter, _ *http.Request) {
	type label struct {
		Value       string `json:"value"`
		DisplayName string `json:"displayName"`
	}
	out := make([]label, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		out = append(out, label{Value: string(c), DisplayName: c.DisplayName()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	threshold := h.lowStockThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid threshold", Field: "threshold"})
			return
		}
		threshold = n
	}
	products, err := h.service.LowStock(r.Context(), threshold)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResps(products))
}

func (h *Handler) counts(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Counts(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"available": c.Available, "outOfStock": c.OutOfStock})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	in := application.ProductInput{
		Name:        deref(req.Name),
		Description: deref(req.Description),
		Category:    domain.Category(deref(req.Category)),
		ImageURL:    deref(req.ImageURL),
		Unit:        deref(req.Unit),
	}
	if req.Price != nil {
		in.Price = *req.Price
	}
	if req.Stock != nil {
		in.Stock = *req.Stock
	}
	p, err := h.service.CreateProduct(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResp(p))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	if req.Stock != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "stock is changed through PATCH /stock", Field: "stock"})
		return
	}
	upd := application.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Unit:        req.Unit,
	}
	if req.Category != nil {
		c := domain.Category(*req.Category)
		upd.Category = &c
	}
	if req.Status != nil {
		s := domain.ProductStatus(*req.Status)
		upd.Status = &s
	}
	p, err := h.service.UpdateProduct(r.Context(), id, upd)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResp(p))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeactivateProduct(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req stockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}

	var (
		p   domain.Product
		err error
	)
	switch {
	case req.Delta > 0:
		p, err = h.service.IncreaseStock(r.Context(), id, req.Delta)
	case req.Delta < 0:
		p, err = h.service.DecreaseStock(r.Context(), id, -req.Delta)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "delta must not be zero", Field: "delta"})
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResp(p))
}

type errorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	ProductID int64  `json:"productId,omitempty"`
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var (
		validation *application.ValidationError
		notFound   *domain.ProductNotFoundError
		stock      *domain.InsufficientStockError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: validation.Error(), Field: validation.Field})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: notFound.Error(), ProductID: notFound.ProductID})
	case errors.As(err, &stock):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: stock.Error(), ProductID: stock.ProductID})
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		h.log.Error("product request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid product id"})
		return 0, false
	}
	return id, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
