// Package memory keeps products, orders and users in process memory. A unit
// of work runs against a private copy of the state under the write lock and
// the copy replaces the live state only when the work succeeds.
package memory

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	catalogapp "github.com/caprisoft/storefront/internal/catalog/application"
	catalog "github.com/caprisoft/storefront/internal/catalog/domain"
	identityapp "github.com/caprisoft/storefront/internal/identity/application"
	identity "github.com/caprisoft/storefront/internal/identity/domain"
	orderapp "github.com/caprisoft/storefront/internal/order/application"
	order "github.com/caprisoft/storefront/internal/order/domain"
)

type Event struct {
	AggregateID string
	Type        string
	Payload     []byte
	CreatedAt   time.Time
}

type state struct {
	products    map[int64]catalog.Product
	orders      map[int64]order.Order
	users       map[int64]identity.User
	resetTokens map[string]identity.ResetToken
	events      []Event
	lastProdID  int64
	lastOrdID   int64
	lastItemID  int64
	lastUserID  int64
	lastTokenID int64
}

func (st *state) clone() *state {
	c := &state{
		products:    maps.Clone(st.products),
		orders:      make(map[int64]order.Order, len(st.orders)),
		users:       maps.Clone(st.users),
		resetTokens: maps.Clone(st.resetTokens),
		events:      append([]Event(nil), st.events...),
		lastProdID:  st.lastProdID,
		lastOrdID:   st.lastOrdID,
		lastItemID:  st.lastItemID,
		lastUserID:  st.lastUserID,
		lastTokenID: st.lastTokenID,
	}
	for id, o := range st.orders {
		c.orders[id] = copyOrder(o)
	}
	return c
}

func copyOrder(o order.Order) order.Order {
	o.Items = append([]order.LineItem(nil), o.Items...)
	return o
}

type Store struct {
	mu sync.RWMutex
	st *state
}

func New() *Store {
	return &Store{st: &state{
		products:    map[int64]catalog.Product{},
		orders:      map[int64]order.Order{},
		users:       map[int64]identity.User{},
		resetTokens: map[string]identity.ResetToken{},
	}}
}

// AddUser registers a user and returns it. A zero id is replaced with a
// fresh one; explicit ids must be unique.
func (s *Store) AddUser(u identity.User) identity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.st.lastUserID + 1
	}
	s.st.lastUserID = max(s.st.lastUserID, u.ID)
	s.st.users[u.ID] = u
	return u
}

// AddProduct stores p with a fresh id and returns it.
func (s *Store) AddProduct(p catalog.Product) catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.lastProdID++
	p.ID = s.st.lastProdID
	s.st.products[p.ID] = p
	return p
}

// Product returns a product regardless of its active flag.
func (s *Store) Product(id int64) (catalog.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.st.products[id]
	return p, ok
}

func (s *Store) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.st.events...)
}

func (s *Store) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.orders)
}

func (s *Store) withinTx(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) FindByID(_ context.Context, id int64) (identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.st.users[id]
	if !ok {
		return identity.User{}, identity.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findByEmail(s.st, email)
}

func findByEmail(st *state, email string) (identity.User, error) {
	for _, u := range st.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return identity.User{}, identity.ErrUserNotFound
}

func (s *Store) CountUsers(context.Context) (identity.UserCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := identity.UserCounts{Total: int64(len(s.st.users))}
	for _, u := range s.st.users {
		if u.Active {
			c.Active++
		}
	}
	return c, nil
}

func (s *Store) FindResetToken(_ context.Context, token string) (identity.ResetToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.st.resetTokens[token]
	if !ok {
		return identity.ResetToken{}, identity.ErrResetTokenInvalid
	}
	return t, nil
}

// OrderUnitOfWork adapts the store to the order application.
func (s *Store) OrderUnitOfWork() orderapp.UnitOfWork { return orderUnit{s} }

func (s *Store) CatalogUnitOfWork() catalogapp.UnitOfWork { return catalogUnit{s} }

func (s *Store) AuthUnitOfWork() identityapp.AuthUnitOfWork { return authUnit{s} }

func (s *Store) OrderReader() orderapp.OrderReader { return orderReader{s} }

// ProductReader also serves the report and dashboard queries.
func (s *Store) ProductReader() ProductReader { return productReader{s} }

type ProductReader interface {
	catalogapp.ProductReader
	ListByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error)
	CountAll(ctx context.Context) (int64, error)
}

type orderUnit struct{ s *Store }

func (u orderUnit) WithinTx(ctx context.Context, fn func(ctx context.Context, repos orderapp.Repositories) error) error {
	return u.s.withinTx(ctx, func(st *state) error {
		return fn(ctx, orderapp.Repositories{
			Products: txProducts{st},
			Orders:   txOrders{st},
			Numbers:  txNumbers{st},
			Events:   txEvents{st},
		})
	})
}

type catalogUnit struct{ s *Store }

func (u catalogUnit) WithinTx(ctx context.Context, fn func(ctx context.Context, repo catalogapp.ProductRepository) error) error {
	return u.s.withinTx(ctx, func(st *state) error {
		return fn(ctx, txProducts{st})
	})
}

type authUnit struct{ s *Store }

func (u authUnit) WithinTx(ctx context.Context, fn func(ctx context.Context, repos identityapp.AuthRepositories) error) error {
	return u.s.withinTx(ctx, func(st *state) error {
		return fn(ctx, identityapp.AuthRepositories{Users: txAccounts{st}, Tokens: txResetTokens{st}})
	})
}

type txAccounts struct{ st *state }

func (r txAccounts) FindByEmail(_ context.Context, email string) (identity.User, error) {
	return findByEmail(r.st, email)
}

func (r txAccounts) Create(_ context.Context, u *identity.User) error {
	if _, err := findByEmail(r.st, u.Email); err == nil {
		return identity.ErrEmailTaken
	}
	r.st.lastUserID++
	u.ID = r.st.lastUserID
	r.st.users[u.ID] = *u
	return nil
}

func (r txAccounts) SetPassword(_ context.Context, userID int64, hash string) error {
	u, ok := r.st.users[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.PasswordHash = hash
	r.st.users[userID] = u
	return nil
}

type txResetTokens struct{ st *state }

func (r txResetTokens) DeleteByUser(_ context.Context, userID int64) error {
	maps.DeleteFunc(r.st.resetTokens, func(_ string, t identity.ResetToken) bool { return t.UserID == userID })
	return nil
}

func (r txResetTokens) Insert(_ context.Context, t *identity.ResetToken) error {
	r.st.lastTokenID++
	t.ID = r.st.lastTokenID
	r.st.resetTokens[t.Token] = *t
	return nil
}

func (r txResetTokens) GetForUpdate(_ context.Context, token string) (identity.ResetToken, error) {
	t, ok := r.st.resetTokens[token]
	if !ok {
		return identity.ResetToken{}, identity.ErrResetTokenInvalid
	}
	return t, nil
}

func (r txResetTokens) MarkUsed(_ context.Context, id int64) error {
	for token, t := range r.st.resetTokens {
		if t.ID == id {
			t.Used = true
			r.st.resetTokens[token] = t
			return nil
		}
	}
	return identity.ErrResetTokenInvalid
}

type txProducts struct{ st *state }

func (r txProducts) GetForUpdate(_ context.Context, id int64) (catalog.Product, error) {
	p, ok := r.st.products[id]
	if !ok {
		return catalog.Product{}, &catalog.ProductNotFoundError{ProductID: id}
	}
	return p, nil
}

func (r txProducts) Save(_ context.Context, p catalog.Product) error {
	if _, ok := r.st.products[p.ID]; !ok {
		return &catalog.ProductNotFoundError{ProductID: p.ID}
	}
	r.st.products[p.ID] = p
	return nil
}

func (r txProducts) Insert(_ context.Context, p *catalog.Product) error {
	r.st.lastProdID++
	p.ID = r.st.lastProdID
	r.st.products[p.ID] = *p
	return nil
}

type txOrders struct{ st *state }

func (r txOrders) Insert(_ context.Context, o *order.Order) error {
	r.st.lastOrdID++
	o.ID = r.st.lastOrdID
	for i := range o.Items {
		r.st.lastItemID++
		o.Items[i].ID = r.st.lastItemID
		o.Items[i].OrderID = o.ID
	}
	r.st.orders[o.ID] = copyOrder(*o)
	return nil
}

func (r txOrders) GetForUpdate(_ context.Context, id int64) (order.Order, error) {
	o, ok := r.st.orders[id]
	if !ok {
		return order.Order{}, order.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (r txOrders) Update(_ context.Context, o order.Order) error {
	if _, ok := r.st.orders[o.ID]; !ok {
		return order.ErrOrderNotFound
	}
	r.st.orders[o.ID] = copyOrder(o)
	return nil
}

type txNumbers struct{ st *state }

// NextOrderNumber follows the greatest allocated number; the caller holds the
// write lock for the whole unit of work so no other allocation can interleave.
func (r txNumbers) NextOrderNumber(context.Context) (string, error) {
	var (
		last    string
		lastSeq int64
	)
	for _, o := range r.st.orders {
		n, err := order.ParseOrderNumber(o.Number)
		if err != nil {
			return "", err
		}
		if n > lastSeq {
			last, lastSeq = o.Number, n
		}
	}
	return order.NextOrderNumber(last)
}

type txEvents struct{ st *state }

func (r txEvents) Record(_ context.Context, aggregateID, eventType string, payload []byte) error {
	r.st.events = append(r.st.events, Event{
		AggregateID: aggregateID,
		Type:        eventType,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	})
	return nil
}

type orderReader struct{ s *Store }

func (r orderReader) Get(_ context.Context, id int64) (order.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.st.orders[id]
	if !ok {
		return order.Order{}, order.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (r orderReader) ListByUser(_ context.Context, userID int64) ([]order.Order, error) {
	return r.filter(func(o order.Order) bool { return o.UserID == userID }), nil
}

func (r orderReader) List(context.Context) ([]order.Order, error) {
	return r.filter(func(order.Order) bool { return true }), nil
}

func (r orderReader) ListByStatus(_ context.Context, status order.OrderStatus) ([]order.Order, error) {
	return r.filter(func(o order.Order) bool { return o.Status == status }), nil
}

func (r orderReader) CountByStatus(context.Context) (map[order.OrderStatus]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := map[order.OrderStatus]int64{}
	for _, o := range r.s.st.orders {
		counts[o.Status]++
	}
	return counts, nil
}

func (r orderReader) ListCreatedBetween(_ context.Context, from, to time.Time) ([]order.Order, error) {
	return r.filter(func(o order.Order) bool {
		return !o.CreatedAt.Before(from) && o.CreatedAt.Before(to)
	}), nil
}

// filter returns matches newest first.
func (r orderReader) filter(keep func(order.Order) bool) []order.Order {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]order.Order, 0)
	for _, o := range r.s.st.orders {
		if keep(o) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

type productReader struct{ s *Store }

func (r productReader) GetActive(_ context.Context, id int64) (catalog.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.st.products[id]
	if !ok || !p.Active {
		return catalog.Product{}, &catalog.ProductNotFoundError{ProductID: id}
	}
	return p, nil
}

func (r productReader) ListActive(_ context.Context, f catalogapp.ProductFilter) ([]catalog.Product, error) {
	name := strings.ToLower(f.Name)
	return r.filter(func(p catalog.Product) bool {
		if f.Category != "" && p.Category != f.Category {
			return false
		}
		if f.Status != "" && p.Status != f.Status {
			return false
		}
		return name == "" || strings.Contains(strings.ToLower(p.Name), name)
	}), nil
}

func (r productReader) ListLowStock(_ context.Context, threshold int) ([]catalog.Product, error) {
	out := r.filter(func(p catalog.Product) bool { return p.Stock <= threshold })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Stock < out[j].Stock })
	return out, nil
}

func (r productReader) CountByStatus(_ context.Context, status catalog.ProductStatus) (int64, error) {
	return int64(len(r.filter(func(p catalog.Product) bool { return p.Status == status }))), nil
}

func (r productReader) ListByIDs(_ context.Context, ids []int64) ([]catalog.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.s.st.products[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r productReader) CountAll(context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.st.products)), nil
}

func (r productReader) filter(keep func(catalog.Product) bool) []catalog.Product {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]catalog.Product, 0)
	for _, p := range r.s.st.products {
		if p.Active && keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
