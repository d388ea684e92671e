package application_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/caprisoft/storefront/internal/catalog/domain"
	identity "github.com/caprisoft/storefront/internal/identity/domain"
	orderapp "github.com/caprisoft/storefront/internal/order/application"
	order "github.com/caprisoft/storefront/internal/order/domain"
	"github.com/caprisoft/storefront/internal/report/application"
	"github.com/caprisoft/storefront/internal/report/domain"
	"github.com/caprisoft/storefront/internal/store/memory"
	"github.com/caprisoft/storefront/pkg/validation"
)

type fixture struct {
	svc   *application.Service
	store *memory.Store
	milk  catalog.Product
	ham   catalog.Product
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New()
	store.AddUser(identity.User{ID: 1, Email: "ana@example.com", Name: "Ana Torres", Role: identity.RoleClient, Active: true})
	store.AddUser(identity.User{ID: 2, Email: "luis@example.com", Role: identity.RoleClient})
	f := fixture{
		svc: application.NewService(application.Deps{
			Log:               slog.New(slog.NewTextHandler(io.Discard, nil)),
			Orders:            store.OrderReader(),
			Products:          store.ProductReader(),
			Users:             store,
			LowStockThreshold: 5,
		}),
		store: store,
		milk:  store.AddProduct(catalog.NewProduct("Milk", decimal.RequireFromString("1.25"), 40, catalog.CategoryMilk, "l")),
		ham:   store.AddProduct(catalog.NewProduct("Ham", decimal.RequireFromString("11.00"), 3, catalog.CategoryMeat, "kg")),
	}
	store.AddProduct(catalog.NewProduct("Goat cheese", decimal.RequireFromString("9.00"), 0, catalog.CategoryCheese, "kg"))
	return f
}

func (f fixture) order(t *testing.T, userID int64, status order.OrderStatus, at time.Time, p catalog.Product, qty int) {
	t.Helper()
	o := order.NewOrder(order.FormatOrderNumber(int64(f.store.OrderCount()+1)), userID, order.PaymentCash, order.Delivery{})
	require.NoError(t, o.AddItem(order.NewLineItem(p, qty)))
	o.CalculateTotal()
	o.Status = status
	o.CreatedAt = at
	err := f.store.OrderUnitOfWork().WithinTx(context.Background(), func(ctx context.Context, repos orderapp.Repositories) error {
		return repos.Orders.Insert(ctx, &o)
	})
	require.NoError(t, err)
}

func january(t *testing.T) domain.Period {
	t.Helper()
	p, err := domain.NewPeriod(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return p
}

func TestReportsOnlyCoverThePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.order(t, 1, order.StatusDelivered, time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC), f.milk, 4)
	f.order(t, 2, order.StatusDelivered, time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC), f.ham, 1)
	f.order(t, 1, order.StatusCancelled, time.Date(2026, 1, 3, 8, 0, 0, 0, time.UTC), f.ham, 2)
	f.order(t, 1, order.StatusDelivered, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), f.ham, 3)

	rows, err := f.svc.Orders(ctx, january(t))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ana Torres", rows[0].CustomerName)
	assert.Equal(t, "luis@example.com", rows[1].CustomerName)

	st, err := f.svc.Statistics(ctx, january(t))
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalOrders)
	assert.Equal(t, "16.00", st.TotalRevenue.StringFixed(2))

	cats, err := f.svc.SalesByCategory(ctx, january(t))
	require.NoError(t, err)
	require.Len(t, cats.Data, 2)
	assert.Equal(t, catalog.CategoryMeat, cats.Data[0].Category)
	assert.Equal(t, catalog.CategoryMilk, cats.Data[1].Category)

	top, err := f.svc.TopCustomers(ctx, january(t), application.DefaultTopCustomers)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(2), top[0].UserID)
}

func TestTopCustomersLimitBounds(t *testing.T) {
	f := newFixture(t)
	for _, limit := range []int{0, -3, application.MaxTopCustomers + 1} {
		_, err := f.svc.TopCustomers(context.Background(), january(t), limit)
		var invalid *validation.FieldError
		require.ErrorAs(t, err, &invalid, "limit %d", limit)
		assert.Equal(t, "limit", invalid.Field)
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	f.order(t, 1, order.StatusDelivered, now, f.milk, 4)
	f.order(t, 2, order.StatusDelivered, domain.MonthStart(now).Add(-time.Hour), f.ham, 1)
	f.order(t, 2, order.StatusPending, now, f.ham, 1)
	f.order(t, 1, order.StatusCancelled, now, f.milk, 1)

	d, err := f.svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), d.TotalProducts)
	assert.Equal(t, int64(2), d.AvailableProducts)
	assert.Equal(t, int64(1), d.OutOfStockProducts)
	assert.Equal(t, int64(2), d.LowStockProducts)
	assert.Equal(t, int64(4), d.TotalOrders)
	assert.Equal(t, int64(2), d.DeliveredOrders)
	assert.Equal(t, int64(1), d.PendingOrders)
	assert.Equal(t, int64(1), d.CancelledOrders)
	assert.Equal(t, "16.00", d.TotalRevenue.StringFixed(2))
	assert.Equal(t, "5.00", d.MonthlyRevenue.StringFixed(2))
	assert.Equal(t, int64(2), d.TotalUsers)
	assert.Equal(t, int64(1), d.ActiveUsers)
}
