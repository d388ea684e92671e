package application

import (
	"context"
	"time"

	catalog "github.com/caprisoft/storefront/internal/catalog/domain"
	identity "github.com/caprisoft/storefront/internal/identity/domain"
	"github.com/caprisoft/storefront/internal/order/domain"
)

// ProductLedger is the product view available inside a unit of work.
// GetForUpdate locks the row until the unit of work ends and returns
// inactive products too.
type ProductLedger interface {
	GetForUpdate(ctx context.Context, id int64) (catalog.Product, error)
	Save(ctx context.Context, p catalog.Product) error
}

type OrderRepository interface {
	Insert(ctx context.Context, o *domain.Order) error
	GetForUpdate(ctx context.Context, id int64) (domain.Order, error)
	Update(ctx context.Context, o domain.Order) error
}

type NumberAllocator interface {
	NextOrderNumber(ctx context.Context) (string, error)
}

type EventRecorder interface {
	Record(ctx context.Context, aggregateID, eventType string, payload []byte) error
}

// Repositories are bound to a single transaction.
type Repositories struct {
	Products ProductLedger
	Orders   OrderRepository
	Numbers  NumberAllocator
	Events   EventRecorder
}

// UnitOfWork commits everything fn did through repos, or nothing when fn
// returns an error.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type OrderReader interface {
	Get(ctx context.Context, id int64) (domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
	CountByStatus(ctx context.Context) (map[domain.OrderStatus]int64, error)
	// ListCreatedBetween returns orders created in [from, to), newest first.
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error)
}

type UserRepository interface {
	FindByID(ctx context.Context, id int64) (identity.User, error)
}
