//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogapp "github.com/caprisoft/storefront/internal/catalog/application"
	catalog "github.com/caprisoft/storefront/internal/catalog/domain"
	catalogpg "github.com/caprisoft/storefront/internal/catalog/infrastructure/postgres"
	identity "github.com/caprisoft/storefront/internal/identity/domain"
	identitypg "github.com/caprisoft/storefront/internal/identity/infrastructure/postgres"
	"github.com/caprisoft/storefront/internal/order/application"
	"github.com/caprisoft/storefront/internal/order/domain"
	orderkafka "github.com/caprisoft/storefront/internal/order/infrastructure/kafka"
	orderpg "github.com/caprisoft/storefront/internal/order/infrastructure/postgres"
	"github.com/caprisoft/storefront/pkg/database"
	"github.com/caprisoft/storefront/pkg/outbox"
)

var (
	env  *Env
	pool *pgxpool.Pool
	log  = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	var err error
	env, err = Setup(ctx, true)
	if err != nil {
		slog.Error("integration setup failed", "err", err)
		os.Exit(1)
	}
	pool, err = database.Connect(ctx, database.PoolConfig{URL: env.PGURL, MaxConns: 30})
	if err == nil {
		err = database.Migrate(ctx, log, pool)
	}
	if err != nil {
		slog.Error("database setup failed", "err", err)
		env.Teardown(ctx)
		os.Exit(1)
	}

	code := m.Run()
	pool.Close()
	env.Teardown(ctx)
	os.Exit(code)
}

type fixture struct {
	orders  *application.Service
	catalog *catalogapp.Service
	client  identity.User
	admin   identity.User
}

func newFixture(t *testing.T, emailPrefix string) fixture {
	t.Helper()
	ctx := context.Background()
	users := identitypg.NewRepository(log, pool)
	client, err := users.Ensure(ctx, identity.User{Email: emailPrefix + "-client@example.com", Role: identity.RoleClient})
	require.NoError(t, err)
	admin, err := users.Ensure(ctx, identity.User{Email: emailPrefix + "-admin@example.com", Role: identity.RoleAdmin})
	require.NoError(t, err)

	return fixture{
		orders: application.NewService(application.Deps{
			Log:    log,
			UoW:    orderpg.NewUnitOfWork(log, pool),
			Orders: orderpg.NewRepository(log, pool),
			Users:  users,
		}),
		catalog: catalogapp.NewService(log, catalogpg.NewUnitOfWork(log, pool), catalogpg.NewRepository(log, pool)),
		client:  client,
		admin:   admin,
	}
}

func (f fixture) product(t *testing.T, name, price string, stock int) catalog.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), catalogapp.ProductInput{
		Name: name, Price: decimal.RequireFromString(price), Stock: stock, Category: catalog.CategoryMilk, Unit: "l",
	})
	require.NoError(t, err)
	return p
}

func input(userID int64, items ...application.ItemRequest) application.CreateOrderInput {
	return application.CreateOrderInput{
		UserID:        userID,
		Items:         items,
		PaymentMethod: domain.PaymentTransfer,
		Delivery:      domain.Delivery{Name: "Ana", Phone: "555", Address: "Calle 1", City: "Lima"},
	}
}

func TestCreateAndCancelRoundTrip(t *testing.T) {
	f := newFixture(t, "roundtrip")
	ctx := context.Background()
	milk := f.product(t, "Milk", "1.25", 10)
	cheese := f.product(t, "Cheese", "7.00", 3)

	o, err := f.orders.CreateOrder(ctx, input(f.client.ID,
		application.ItemRequest{ProductID: cheese.ID, Quantity: 3},
		application.ItemRequest{ProductID: milk.ID, Quantity: 4},
	))
	require.NoError(t, err)
	assert.Equal(t, "26.00", o.Total.StringFixed(2))

	loaded, err := f.orders.GetOrder(ctx, f.client.ID, o.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, cheese.ID, loaded.Items[0].ProductID)
	assert.Equal(t, "Cheese", loaded.Items[0].ProductName)
	assert.True(t, loaded.Total.Equal(o.Total))

	sold, err := f.catalog.GetProduct(ctx, cheese.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusOutOfStock, sold.Status)

	cancelled, err := f.orders.CancelOrder(ctx, application.CancelOrderInput{RequesterID: f.client.ID, OrderID: o.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, domain.DefaultCancellationReason, cancelled.CancellationReason)

	restocked, err := f.catalog.GetProduct(ctx, cheese.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, restocked.Stock)
	assert.Equal(t, catalog.StatusAvailable, restocked.Status)
}

func TestFailedCreateLeavesNoTrace(t *testing.T) {
	f := newFixture(t, "atomic")
	ctx := context.Background()
	milk := f.product(t, "Milk", "1.25", 10)
	cheese := f.product(t, "Cheese", "7.00", 1)

	_, err := f.orders.CreateOrder(ctx, input(f.client.ID,
		application.ItemRequest{ProductID: milk.ID, Quantity: 4},
		application.ItemRequest{ProductID: cheese.ID, Quantity: 2},
	))
	var stockErr *catalog.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, cheese.ID, stockErr.ProductID)

	p, err := f.catalog.GetProduct(ctx, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)

	mine, err := f.orders.ListOrders(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	f := newFixture(t, "concurrent")
	ctx := context.Background()
	a := f.product(t, "Goat milk", "2.00", 7)
	b := f.product(t, "Goat cheese", "9.00", 7)

	const buyers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
		failed  int
	)
	for i := range buyers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Alternate item order so locks are requested in both directions.
			items := []application.ItemRequest{{ProductID: a.ID, Quantity: 1}, {ProductID: b.ID, Quantity: 1}}
			if i%2 == 1 {
				items[0], items[1] = items[1], items[0]
			}
			o, err := f.orders.CreateOrder(ctx, input(f.client.ID, items...))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var stockErr *catalog.InsufficientStockError
				assert.True(t, errors.As(err, &stockErr), "unexpected error: %v", err)
				failed++
				return
			}
			assert.False(t, numbers[o.Number], "duplicate number %s", o.Number)
			numbers[o.Number] = true
		}(i)
	}
	wg.Wait()

	assert.Len(t, numbers, 7)
	assert.Equal(t, buyers-7, failed)
	for _, id := range []int64{a.ID, b.ID} {
		p, err := f.catalog.GetProduct(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Stock)
		assert.Equal(t, catalog.StatusOutOfStock, p.Status)
	}
}

func TestOutboxRelayPublishesOrderEvents(t *testing.T) {
	f := newFixture(t, "outbox")
	ctx := context.Background()
	milk := f.product(t, "Milk", "1.25", 10)

	o, err := f.orders.CreateOrder(ctx, input(f.client.ID, application.ItemRequest{ProductID: milk.ID, Quantity: 2}))
	require.NoError(t, err)

	topic := "order.events.test"
	writer := orderkafka.NewWriter(env.KAddr)
	defer writer.Close()
	relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool, 3), outbox.NewDispatcher(log, writer, topic), "it")

	require.Eventually(t, func() bool {
		n, err := relay.Drain(ctx)
		return err == nil && n > 0
	}, 30*time.Second, 500*time.Millisecond)

	reader := kafka.NewReader(kafka.ReaderConfig{Brokers: env.KAddr, Topic: topic, GroupID: "it-reader"})
	defer reader.Close()

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for {
		msg, err := reader.ReadMessage(readCtx)
		require.NoError(t, err)
		var ev domain.OrderCreated
		require.NoError(t, json.Unmarshal(msg.Value, &ev))
		if ev.OrderNumber != o.Number {
			continue
		}
		assert.Equal(t, "2.50", ev.Total)
		assert.Equal(t, f.client.ID, ev.UserID)
		return
	}
}
