package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	catalog "github.com/caprisoft/storefront/internal/catalog/domain"
	identity "github.com/caprisoft/storefront/internal/identity/domain"
	"github.com/caprisoft/storefront/internal/order/domain"
	"github.com/caprisoft/storefront/pkg/textutil"
)

type Deps struct {
	Log    *slog.Logger
	UoW    UnitOfWork
	Orders OrderReader
	Users  UserRepository
	Clock  func() time.Time
}

type Service struct {
	log    *slog.Logger
	uow    UnitOfWork
	orders OrderReader
	users  UserRepository
	clock  func() time.Time
}

func NewService(deps Deps) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		log:    log,
		uow:    deps.UoW,
		orders: deps.Orders,
		users:  deps.Users,
		clock:  func() time.Time { return clock().UTC() },
	}
}

// CreateOrder reserves stock for every requested item and persists the
// order in one unit of work. Any failure leaves stock untouched.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if err := in.normalize(); err != nil {
		return domain.Order{}, err
	}
	user, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		return domain.Order{}, err
	}

	var created domain.Order
	err = s.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		number, err := repos.Numbers.NextOrderNumber(ctx)
		if err != nil {
			return fmt.Errorf("allocate order number: %w", err)
		}
		o := domain.NewOrder(number, user.ID, in.PaymentMethod, in.Delivery)
		now := s.clock()
		o.CreatedAt, o.UpdatedAt = now, now

		products, err := lockProducts(ctx, repos.Products, in.Items)
		if err != nil {
			return err
		}
		for _, item := range in.Items {
			p, ok := products[item.ProductID]
			if !ok || !p.Active {
				return &catalog.ProductNotFoundError{ProductID: item.ProductID}
			}
			if !p.HasStock(item.Quantity) {
				return &catalog.InsufficientStockError{ProductID: p.ID, Requested: item.Quantity, Available: p.Stock}
			}
			if err := o.AddItem(domain.NewLineItem(*p, item.Quantity)); err != nil {
				return err
			}
			if err := p.DecreaseStock(item.Quantity); err != nil {
				return err
			}
		}
		o.CalculateTotal()

		for _, id := range sortedIDs(products) {
			if err := repos.Products.Save(ctx, *products[id]); err != nil {
				return fmt.Errorf("save product %d: %w", id, err)
			}
		}
		if err := repos.Orders.Insert(ctx, &o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if err := record(ctx, repos.Events, o.ID, domain.EventOrderCreated, domain.NewOrderCreated(o)); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order created", "order_id", created.ID, "number", created.Number, "total", created.Total.StringFixed(2))
	return created, nil
}

// CancelOrder restocks every line item and marks the order cancelled. Orders
// that are not visible to the requester are reported as not found.
func (s *Service) CancelOrder(ctx context.Context, in CancelOrderInput) (domain.Order, error) {
	requester, err := s.users.FindByID(ctx, in.RequesterID)
	if err != nil {
		return domain.Order{}, err
	}
	reason := textutil.Clean(in.Reason)

	var cancelled domain.Order
	err = s.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		o, err := repos.Orders.GetForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if !visible(o, requester) {
			return domain.ErrOrderNotFound
		}
		if !o.Cancellable() {
			return domain.ErrNotCancellable
		}

		restock := make(map[int64]int, len(o.Items))
		for _, item := range o.Items {
			restock[item.ProductID] += item.Quantity
		}
		for _, id := range sortedKeys(restock) {
			p, err := repos.Products.GetForUpdate(ctx, id)
			if err != nil {
				return fmt.Errorf("restock product %d: %w", id, err)
			}
			if err := p.IncreaseStock(restock[id]); err != nil {
				return err
			}
			if err := repos.Products.Save(ctx, p); err != nil {
				return fmt.Errorf("save product %d: %w", id, err)
			}
		}

		if err := o.Cancel(reason, s.clock()); err != nil {
			return err
		}
		if err := repos.Orders.Update(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		ev := domain.OrderCancelled{
			OrderID:     o.ID,
			OrderNumber: o.Number,
			UserID:      o.UserID,
			Reason:      o.CancellationReason,
			CancelledAt: *o.CancelledAt,
		}
		if err := record(ctx, repos.Events, o.ID, domain.EventOrderCancelled, ev); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order cancelled", "order_id", cancelled.ID, "number", cancelled.Number, "by", requester.ID)
	return cancelled, nil
}

// UpdateOrderStatus applies an administrative status change. No transition
// guard applies here; only CancelOrder enforces the cancellable states.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	var updated domain.Order
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		o, err := repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		from := o.Status
		now := s.clock()
		o.SetStatus(status, now)
		if err := repos.Orders.Update(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		ev := domain.OrderStatusChanged{OrderID: o.ID, OrderNumber: o.Number, UserID: o.UserID, From: from, To: status, ChangedAt: now}
		if err := record(ctx, repos.Events, o.ID, domain.EventOrderStatusChanged, ev); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order status updated", "order_id", updated.ID, "status", updated.Status)
	return updated, nil
}

func (s *Service) GetOrder(ctx context.Context, requesterID, orderID int64) (domain.Order, error) {
	requester, err := s.users.FindByID(ctx, requesterID)
	if err != nil {
		return domain.Order{}, err
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !visible(o, requester) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

// ListOrders returns the requester's own orders, newest first.
func (s *Service) ListOrders(ctx context.Context, requesterID int64) ([]domain.Order, error) {
	requester, err := s.users.FindByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	return s.orders.ListByUser(ctx, requester.ID)
}

func (s *Service) ListAllOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.List(ctx)
}

func (s *Service) ListOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	return s.orders.ListByStatus(ctx, status)
}

type Stats struct {
	Total    int64
	ByStatus map[domain.OrderStatus]int64
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.orders.CountByStatus(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{ByStatus: make(map[domain.OrderStatus]int64, len(domain.Statuses))}
	for _, status := range domain.Statuses {
		st.ByStatus[status] = counts[status]
		st.Total += counts[status]
	}
	return st, nil
}

func (s *Service) CountUserOrders(ctx context.Context, requesterID int64) (int, error) {
	orders, err := s.ListOrders(ctx, requesterID)
	if err != nil {
		return 0, err
	}
	return len(orders), nil
}

func visible(o domain.Order, requester identity.User) bool {
	return o.OwnedBy(requester.ID) || requester.IsAdmin()
}

// lockProducts takes row locks in ascending id order so that concurrent
// orders over overlapping products cannot deadlock. Missing ids are left out
// of the result.
func lockProducts(ctx context.Context, ledger ProductLedger, items []ItemRequest) (map[int64]*catalog.Product, error) {
	ids := make(map[int64]int, len(items))
	for _, item := range items {
		ids[item.ProductID] += item.Quantity
	}
	locked := make(map[int64]*catalog.Product, len(ids))
	for _, id := range sortedKeys(ids) {
		p, err := ledger.GetForUpdate(ctx, id)
		if errors.Is(err, catalog.ErrProductNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock product %d: %w", id, err)
		}
		locked[id] = &p
	}
	return locked, nil
}

func record(ctx context.Context, events EventRecorder, orderID int64, eventType string, ev any) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := events.Record(ctx, strconv.FormatInt(orderID, 10), eventType, payload); err != nil {
		return fmt.Errorf("record %s: %w", eventType, err)
	}
	return nil
}

func sortedKeys(m map[int64]int) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedIDs(m map[int64]*catalog.Product) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
