package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caprisoft/storefront/internal/catalog/application"
	"github.com/caprisoft/storefront/internal/catalog/domain"
	"github.com/caprisoft/storefront/internal/store/memory"
)

func newService() (*application.Service, *memory.Store) {
	store := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return application.NewService(log, store.CatalogUnitOfWork(), store.ProductReader()), store
}

func validInput() application.ProductInput {
	return application.ProductInput{
		Name:     " <i>Goat cheese</i> ",
		Price:    decimal.RequireFromString("15.00"),
		Stock:    6,
		Category: domain.CategoryCheese,
		Unit:     "kg",
	}
}

func TestCreateProduct(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, validInput())
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "Goat cheese", p.Name)
	assert.Equal(t, domain.StatusAvailable, p.Status)
	assert.True(t, p.Active)

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := newService()
	cases := map[string]func(in *application.ProductInput){
		"name":     func(in *application.ProductInput) { in.Name = "<b></b>" },
		"price":    func(in *application.ProductInput) { in.Price = decimal.RequireFromString("-1") },
		"stock":    func(in *application.ProductInput) { in.Stock = -1 },
		"category": func(in *application.ProductInput) { in.Category = "WINE" },
		"unit":     func(in *application.ProductInput) { in.Unit = " " },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := svc.CreateProduct(context.Background(), in)
			var verr *application.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, field, verr.Field)
		})
	}
}

func TestStockOperations(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	p, err := svc.CreateProduct(ctx, validInput())
	require.NoError(t, err)

	ok, err := svc.HasStock(ctx, p.ID, 6)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.HasStock(ctx, p.ID, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	p, err = svc.DecreaseStock(ctx, p.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, domain.StatusOutOfStock, p.Status)

	_, err = svc.DecreaseStock(ctx, p.ID, 1)
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 0, stockErr.Available)

	p, err = svc.IncreaseStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)
	assert.Equal(t, domain.StatusAvailable, p.Status)

	_, err = svc.IncreaseStock(ctx, p.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = svc.DecreaseStock(ctx, 404, 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestUpdateProductStatus(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	p, err := svc.CreateProduct(ctx, validInput())
	require.NoError(t, err)

	discontinued := domain.StatusDiscontinued
	p, err = svc.UpdateProduct(ctx, p.ID, application.ProductUpdate{Status: &discontinued})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDiscontinued, p.Status)

	ok, err := svc.HasStock(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	outOfStock := domain.StatusOutOfStock
	_, err = svc.UpdateProduct(ctx, p.ID, application.ProductUpdate{Status: &outOfStock})
	var verr *application.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)

	available := domain.StatusAvailable
	price := decimal.RequireFromString("16.50")
	p, err = svc.UpdateProduct(ctx, p.ID, application.ProductUpdate{Status: &available, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAvailable, p.Status)
	assert.True(t, p.Price.Equal(price))
}

func TestUpdateProductValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	p, err := svc.CreateProduct(ctx, validInput())
	require.NoError(t, err)

	blank := " <b></b> "
	negative := decimal.RequireFromString("-0.01")
	wine := domain.Category("WINE")
	cases := map[string]application.ProductUpdate{
		"name":     {Name: &blank},
		"price":    {Price: &negative},
		"category": {Category: &wine},
	}
	for field, upd := range cases {
		t.Run(field, func(t *testing.T) {
			_, err := svc.UpdateProduct(ctx, p.ID, upd)
			var verr *application.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, field, verr.Field)
		})
	}

	renamed := "  <em>Aged</em> goat cheese "
	got, err := svc.UpdateProduct(ctx, p.ID, application.ProductUpdate{Name: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "Aged goat cheese", got.Name)
	assert.Equal(t, "  <em>Aged</em> goat cheese ", renamed)

	_, err = svc.LowStock(ctx, -1)
	var verr *application.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "threshold", verr.Field)
}

func TestDeactivateHidesProduct(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	p, err := svc.CreateProduct(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateProduct(ctx, p.ID))

	_, err = svc.GetProduct(ctx, p.ID)
	assert.True(t, errors.Is(err, domain.ErrProductNotFound))
	_, err = svc.IncreaseStock(ctx, p.ID, 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	list, err := svc.ListProducts(ctx, application.ProductFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	stored, ok := store.Product(p.ID)
	require.True(t, ok)
	assert.Equal(t, 6, stored.Stock)
}

func TestCountsAndLowStock(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	for _, stock := range []int{0, 2, 20} {
		in := validInput()
		in.Stock = stock
		_, err := svc.CreateProduct(ctx, in)
		require.NoError(t, err)
	}

	c, err := svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, application.StockCounts{Available: 2, OutOfStock: 1}, c)

	low, err := svc.LowStock(ctx, 5)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, 0, low[0].Stock)

	_, err = svc.LowStock(ctx, -1)
	assert.Error(t, err)
}
