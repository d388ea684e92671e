package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	catalog "github.com/caprisoft/storefront/internal/catalog/domain"
	identity "github.com/caprisoft/storefront/internal/identity/domain"
	order "github.com/caprisoft/storefront/internal/order/domain"
	"github.com/caprisoft/storefront/internal/report/domain"
	"github.com/caprisoft/storefront/pkg/validation"
)

const (
	DefaultTopCustomers = 10
	MaxTopCustomers     = 100
)

type OrderReader interface {
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]order.Order, error)
	ListByStatus(ctx context.Context, status order.OrderStatus) ([]order.Order, error)
	CountByStatus(ctx context.Context) (map[order.OrderStatus]int64, error)
}

type ProductReader interface {
	ListByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error)
	ListLowStock(ctx context.Context, threshold int) ([]catalog.Product, error)
	CountByStatus(ctx context.Context, status catalog.ProductStatus) (int64, error)
	CountAll(ctx context.Context) (int64, error)
}

type UserReader interface {
	FindByID(ctx context.Context, id int64) (identity.User, error)
	CountUsers(ctx context.Context) (identity.UserCounts, error)
}

type Deps struct {
	Log      *slog.Logger
	Orders   OrderReader
	Products ProductReader
	Users    UserReader
	// LowStockThreshold is the stock level the dashboard counts as low.
	LowStockThreshold int
}

// Service builds read-only sales views. Reads are not serialized against
// order writes.
type Service struct {
	log       *slog.Logger
	orders    OrderReader
	products  ProductReader
	users     UserReader
	threshold int
	now       func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		log:       d.Log,
		orders:    d.Orders,
		products:  d.Products,
		users:     d.Users,
		threshold: d.LowStockThreshold,
		now:       time.Now,
	}
}

func (s *Service) inPeriod(ctx context.Context, p domain.Period) ([]order.Order, error) {
	from, to := p.Bounds()
	orders, err := s.orders.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// customerNames resolves display names once per user. Accounts without a
// name show their email; unknown accounts show an empty name.
func (s *Service) customerNames(ctx context.Context, orders []order.Order) (func(int64) string, error) {
	names := map[int64]string{}
	for _, o := range orders {
		if _, ok := names[o.UserID]; ok {
			continue
		}
		u, err := s.users.FindByID(ctx, o.UserID)
		switch {
		case err == nil:
			names[o.UserID] = u.Name
			if u.Name == "" {
				names[o.UserID] = u.Email
			}
		case errors.Is(err, identity.ErrUserNotFound):
			names[o.UserID] = ""
		default:
			return nil, fmt.Errorf("find customer %d: %w", o.UserID, err)
		}
	}
	return func(id int64) string { return names[id] }, nil
}

// Orders lists the non-cancelled orders of p, newest first.
func (s *Service) Orders(ctx context.Context, p domain.Period) ([]domain.OrderRow, error) {
	orders, err := s.inPeriod(ctx, p)
	if err != nil {
		return nil, err
	}
	nameOf, err := s.customerNames(ctx, orders)
	if err != nil {
		return nil, err
	}
	return domain.OrderRows(orders, nameOf), nil
}

func (s *Service) Statistics(ctx context.Context, p domain.Period) (domain.Statistics, error) {
	orders, err := s.inPeriod(ctx, p)
	if err != nil {
		return domain.Statistics{}, err
	}
	return domain.Summarize(p, orders), nil
}

func (s *Service) SalesByProduct(ctx context.Context, p domain.Period) ([]domain.ProductSales, error) {
	orders, err := s.inPeriod(ctx, p)
	if err != nil {
		return nil, err
	}
	return domain.SalesByProduct(orders), nil
}

func (s *Service) SalesByCategory(ctx context.Context, p domain.Period) (domain.CategoryReport, error) {
	orders, err := s.inPeriod(ctx, p)
	if err != nil {
		return domain.CategoryReport{}, err
	}
	delivered := domain.Delivered(orders)
	seen := map[int64]bool{}
	var ids []int64
	for _, o := range delivered {
		for _, it := range o.Items {
			if !seen[it.ProductID] {
				seen[it.ProductID] = true
				ids = append(ids, it.ProductID)
			}
		}
	}
	categories := make(map[int64]catalog.Category, len(ids))
	if len(ids) > 0 {
		products, err := s.products.ListByIDs(ctx, ids)
		if err != nil {
			return domain.CategoryReport{}, fmt.Errorf("load products: %w", err)
		}
		for _, pr := range products {
			categories[pr.ID] = pr.Category
		}
	}
	return domain.SalesByCategory(delivered, categories), nil
}

func (s *Service) SalesByMonth(ctx context.Context, p domain.Period) ([]domain.MonthSales, error) {
	orders, err := s.inPeriod(ctx, p)
	if err != nil {
		return nil, err
	}
	return domain.SalesByMonth(orders), nil
}

// TopCustomers returns up to limit buyers, limit being 1 to MaxTopCustomers.
func (s *Service) TopCustomers(ctx context.Context, p domain.Period, limit int) ([]domain.CustomerSales, error) {
	if err := validation.Var("limit", limit, fmt.Sprintf("gt=0,max=%d", MaxTopCustomers)); err != nil {
		return nil, err
	}
	orders, err := s.inPeriod(ctx, p)
	if err != nil {
		return nil, err
	}
	delivered := domain.Delivered(orders)
	nameOf, err := s.customerNames(ctx, delivered)
	if err != nil {
		return nil, err
	}
	return domain.TopCustomers(delivered, nameOf, limit), nil
}

// Dashboard counts products, orders and users and totals delivered revenue,
// overall and for the current UTC month.
func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	var d domain.Dashboard
	var err error

	if d.TotalProducts, err = s.products.CountAll(ctx); err != nil {
		return domain.Dashboard{}, fmt.Errorf("count products: %w", err)
	}
	if d.AvailableProducts, err = s.products.CountByStatus(ctx, catalog.StatusAvailable); err != nil {
		return domain.Dashboard{}, fmt.Errorf("count available products: %w", err)
	}
	if d.OutOfStockProducts, err = s.products.CountByStatus(ctx, catalog.StatusOutOfStock); err != nil {
		return domain.Dashboard{}, fmt.Errorf("count out of stock products: %w", err)
	}
	low, err := s.products.ListLowStock(ctx, s.threshold)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("list low stock: %w", err)
	}
	d.LowStockProducts = int64(len(low))

	counts, err := s.orders.CountByStatus(ctx)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("count orders: %w", err)
	}
	for _, n := range counts {
		d.TotalOrders += n
	}
	d.PendingOrders = counts[order.StatusPending]
	d.ConfirmedOrders = counts[order.StatusConfirmed]
	d.DeliveredOrders = counts[order.StatusDelivered]
	d.CancelledOrders = counts[order.StatusCancelled]

	delivered, err := s.orders.ListByStatus(ctx, order.StatusDelivered)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("list delivered orders: %w", err)
	}
	monthStart := domain.MonthStart(s.now())
	d.TotalRevenue, d.MonthlyRevenue = decimal.Zero, decimal.Zero
	for _, o := range delivered {
		d.TotalRevenue = d.TotalRevenue.Add(o.Total)
		if !o.CreatedAt.Before(monthStart) {
			d.MonthlyRevenue = d.MonthlyRevenue.Add(o.Total)
		}
	}

	users, err := s.users.CountUsers(ctx)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("count users: %w", err)
	}
	d.TotalUsers, d.ActiveUsers = users.Total, users.Active
	return d, nil
}
