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

	identityhttp "github.com/caprisoft/storefront/internal/identity/infrastructure/http"
	"github.com/caprisoft/storefront/internal/report/application"
	"github.com/caprisoft/storefront/internal/report/domain"
	"github.com/caprisoft/storefront/pkg/validation"
)

type Middleware = func(http.Handler) http.Handler

type Handler struct {
	log     *slog.Logger
	service *application.Service
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service}
}

// Routes mounts under /api/reports. Every route is admin only.
func (h *Handler) Routes(auth Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(auth, identityhttp.RequireAdmin)
	r.Get("/orders", h.orders)
	r.Get("/statistics", h.statistics)
	r.Get("/sales-by-product", h.salesByProduct)
	r.Get("/sales-by-category", h.salesByCategory)
	r.Get("/sales-by-month", h.salesByMonth)
	r.Get("/top-customers", h.topCustomers)
	return r
}

// DashboardRoutes mounts under /api/dashboard.
func (h *Handler) DashboardRoutes(auth Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(auth, identityhttp.RequireAdmin)
	r.Get("/stats", h.dashboard)
	return r
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

type orderRowResp struct {
	OrderNumber   string    `json:"orderNumber"`
	CustomerName  string    `json:"customerName"`
	OrderDate     time.Time `json:"orderDate"`
	Status        string    `json:"status"`
	TotalAmount   string    `json:"totalAmount"`
	ItemCount     int       `json:"itemCount"`
	PaymentMethod string    `json:"paymentMethod"`
}

type statisticsResp struct {
	TotalOrders       int    `json:"totalOrders"`
	DeliveredOrders   int    `json:"deliveredOrders"`
	TotalRevenue      string `json:"totalRevenue"`
	AverageOrderValue string `json:"averageOrderValue"`
	PeriodStart       string `json:"periodStart"`
	PeriodEnd         string `json:"periodEnd"`
}

type productSalesResp struct {
	ProductName       string `json:"productName"`
	TotalQuantity     int    `json:"totalQuantity"`
	TotalRevenue      string `json:"totalRevenue"`
	OrderCount        int    `json:"orderCount"`
	PercentageOfTotal string `json:"percentageOfTotal"`
}

type categorySalesResp struct {
	Category   string `json:"category"`
	Label      string `json:"label"`
	Revenue    string `json:"revenue"`
	Percentage string `json:"percentage"`
}

type categoryReportResp struct {
	Data         []categorySalesResp `json:"data"`
	TotalRevenue string              `json:"totalRevenue"`
}

type monthSalesResp struct {
	Month   string `json:"month"`
	Revenue string `json:"revenue"`
}

type customerResp struct {
	UserID       int64  `json:"userId"`
	CustomerName string `json:"customerName"`
	TotalSpent   string `json:"totalSpent"`
	OrderCount   int    `json:"orderCount"`
}

type dashboardResp struct {
	TotalProducts      int64  `json:"totalProducts"`
	AvailableProducts  int64  `json:"availableProducts"`
	OutOfStockProducts int64  `json:"outOfStockProducts"`
	LowStockProducts   int64  `json:"lowStockProducts"`
	TotalOrders        int64  `json:"totalOrders"`
	PendingOrders      int64  `json:"pendingOrders"`
	ConfirmedOrders    int64  `json:"confirmedOrders"`
	DeliveredOrders    int64  `json:"deliveredOrders"`
	CancelledOrders    int64  `json:"cancelledOrders"`
	TotalRevenue       string `json:"totalRevenue"`
	MonthlyRevenue     string `json:"monthlyRevenue"`
	TotalUsers         int64  `json:"totalUsers"`
	ActiveUsers        int64  `json:"activeUsers"`
}

func (h *Handler) orders(w http.ResponseWriter, r *http.Request) {
	p, ok := period(w, r)
	if !ok {
		return
	}
	rows, err := h.service.Orders(r.Context(), p)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]orderRowResp, 0, len(rows))
	for _, row := range rows {
		out = append(out, orderRowResp{
			OrderNumber:   row.Number,
			CustomerName:  row.CustomerName,
			OrderDate:     row.OrderDate,
			Status:        row.Status,
			TotalAmount:   money(row.Total),
			ItemCount:     row.ItemCount,
			PaymentMethod: row.PaymentMethod,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	p, ok := period(w, r)
	if !ok {
		return
	}
	st, err := h.service.Statistics(r.Context(), p)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statisticsResp{
		TotalOrders:       st.TotalOrders,
		DeliveredOrders:   st.DeliveredOrders,
		TotalRevenue:      money(st.TotalRevenue),
		AverageOrderValue: money(st.AverageOrderValue),
		PeriodStart:       st.Period.Start.Format(domain.DateLayout),
		PeriodEnd:         st.Period.End.Format(domain.DateLayout),
	})
}

func (h *Handler) salesByProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := period(w, r)
	if !ok {
		return
	}
	sales, err := h.service.SalesByProduct(r.Context(), p)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]productSalesResp, 0, len(sales))
	for _, s := range sales {
		out = append(out, productSalesResp{
			ProductName:       s.ProductName,
			TotalQuantity:     s.TotalQuantity,
			TotalRevenue:      money(s.TotalRevenue),
			OrderCount:        s.OrderCount,
			PercentageOfTotal: money(s.PercentageOfTotal),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) salesByCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := period(w, r)
	if !ok {
		return
	}
	rep, err := h.service.SalesByCategory(r.Context(), p)
	if err != nil {
		h.fail(w, err)
		return
	}
	resp := categoryReportResp{Data: make([]categorySalesResp, 0, len(rep.Data)), TotalRevenue: money(rep.TotalRevenue)}
	for _, c := range rep.Data {
		resp.Data = append(resp.Data, categorySalesResp{
			Category:   string(c.Category),
			Label:      c.Category.DisplayName(),
			Revenue:    money(c.Revenue),
			Percentage: money(c.Percentage),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) salesByMonth(w http.ResponseWriter, r *http.Request) {
	p, ok := period(w, r)
	if !ok {
		return
	}
	months, err := h.service.SalesByMonth(r.Context(), p)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]monthSalesResp, 0, len(months))
	for _, m := range months {
		out = append(out, monthSalesResp{Month: m.Month, Revenue: money(m.Revenue)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) topCustomers(w http.ResponseWriter, r *http.Request) {
	p, ok := period(w, r)
	if !ok {
		return
	}
	limit := application.DefaultTopCustomers
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid limit: must be a number", Field: "limit"})
			return
		}
		limit = n
	}
	customers, err := h.service.TopCustomers(r.Context(), p, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]customerResp, 0, len(customers))
	for _, c := range customers {
		out = append(out, customerResp{
			UserID:       c.UserID,
			CustomerName: c.CustomerName,
			TotalSpent:   money(c.TotalSpent),
			OrderCount:   c.OrderCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResp{
		TotalProducts:      d.TotalProducts,
		AvailableProducts:  d.AvailableProducts,
		OutOfStockProducts: d.OutOfStockProducts,
		LowStockProducts:   d.LowStockProducts,
		TotalOrders:        d.TotalOrders,
		PendingOrders:      d.PendingOrders,
		ConfirmedOrders:    d.ConfirmedOrders,
		DeliveredOrders:    d.DeliveredOrders,
		CancelledOrders:    d.CancelledOrders,
		TotalRevenue:       money(d.TotalRevenue),
		MonthlyRevenue:     money(d.MonthlyRevenue),
		TotalUsers:         d.TotalUsers,
		ActiveUsers:        d.ActiveUsers,
	})
}

// period reads the required startDate and endDate query parameters.
func period(w http.ResponseWriter, r *http.Request) (domain.Period, bool) {
	q := r.URL.Query()
	var dates [2]time.Time
	for i, name := range []string{"startDate", "endDate"} {
		raw := q.Get(name)
		if raw == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid " + name + ": is required", Field: name})
			return domain.Period{}, false
		}
		t, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid " + name + ": must be YYYY-MM-DD", Field: name})
			return domain.Period{}, false
		}
		dates[i] = t
	}
	p, err := domain.NewPeriod(dates[0], dates[1])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Field: "startDate"})
		return domain.Period{}, false
	}
	return p, true
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var invalid *validation.FieldError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: invalid.Error(), Field: invalid.Field})
	default:
		h.log.Error("report request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
