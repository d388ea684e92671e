package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	catalog "github.com/caprisoft/storefront/internal/catalog/domain"
	identity "github.com/caprisoft/storefront/internal/identity/domain"
	identityhttp "github.com/caprisoft/storefront/internal/identity/infrastructure/http"
	"github.com/caprisoft/storefront/internal/order/application"
	"github.com/caprisoft/storefront/internal/order/domain"
)

type Middleware = func(http.Handler) http.Handler

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

// Routes mounts under /api/orders. auth resolves the caller; idem guards
// order creation against retried submissions.
func (h *Handler) Routes(auth, idem Middleware) http.Handler {
	r := chi.NewRouter()
	r.Get("/statuses", h.statuses)
	r.Get("/payment-methods", h.paymentMethods)

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.With(idem).Post("/", h.createOrder)
		r.Get("/my-orders", h.myOrders)
		r.Get("/my-orders/count", h.myOrderCount)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}/cancel", h.cancelOrder)

		r.Group(func(r chi.Router) {
			r.Use(identityhttp.RequireAdmin)
			r.Get("/all", h.allOrders)
			r.Get("/status/{status}", h.ordersByStatus)
			r.Patch("/{id}/status", h.updateStatus)
			r.Get("/stats", h.stats)
		})
	})
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	user, _ := identityhttp.UserFrom(ctx)
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}

	o, err := h.service.CreateOrder(ctx, req.input(user.ID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.fail(w, err)
		return
	}
	span.SetAttributes(attribute.String("order.number", o.Number), attribute.Int64("order.id", o.ID))
	writeJSON(w, http.StatusCreated, toResp(o))
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	user, _ := identityhttp.UserFrom(r.Context())
	orders, err := h.service.ListOrders(r.Context(), user.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResps(orders))
}

func (h *Handler) myOrderCount(w http.ResponseWriter, r *http.Request) {
	user, _ := identityhttp.UserFrom(r.Context())
	n, err := h.service.CountUserOrders(r.Context(), user.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, _ := identityhttp.UserFrom(r.Context())
	o, err := h.service.GetOrder(r.Context(), user.ID, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResp(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req cancelReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
			return
		}
	}
	user, _ := identityhttp.UserFrom(ctx)
	o, err := h.service.CancelOrder(ctx, application.CancelOrderInput{RequesterID: user.ID, OrderID: id, Reason: req.Reason})
	if err != nil {
		span.RecordError(err)
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResp(o))
}

func (h *Handler) allOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListAllOrders(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResps(orders))
}

func (h *Handler) ordersByStatus(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(chi.URLParam(r, "status"))
	orders, err := h.service.ListOrdersByStatus(r.Context(), status)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResps(orders))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	o, err := h.service.UpdateOrderStatus(r.Context(), id, domain.OrderStatus(req.Status))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResp(o))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	resp := statsResp{Total: st.Total, ByStatus: make(map[string]int64, len(st.ByStatus))}
	for status, n := range st.ByStatus {
		resp.ByStatus[string(status)] = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) statuses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.StatusLabels())
}

func (h *Handler) paymentMethods(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.PaymentMethodLabels())
}

type errorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	ProductID int64  `json:"productId,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var (
		validation *application.ValidationError
		notFound   *catalog.ProductNotFoundError
		stock      *catalog.InsufficientStockError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: validation.Error(), Field: validation.Field})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: notFound.Error(), ProductID: notFound.ProductID})
	case errors.As(err, &stock):
		available := stock.Available
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error: stock.Error(), ProductID: stock.ProductID, Requested: stock.Requested, Available: &available,
		})
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, identity.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotCancellable):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, identity.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
	case errors.Is(err, identity.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	default:
		h.log.Error("order request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid order id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
