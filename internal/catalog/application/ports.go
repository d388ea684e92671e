package application

import (
	"context"

	"github.com/caprisoft/storefront/internal/catalog/domain"
)

type ProductRepository interface {
	GetForUpdate(ctx context.Context, id int64) (domain.Product, error)
	Save(ctx context.Context, p domain.Product) error
	Insert(ctx context.Context, p *domain.Product) error
}

type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo ProductRepository) error) error
}

// ProductFilter narrows active-product listings; zero fields match anything.
type ProductFilter struct {
	Category domain.Category
	Status   domain.ProductStatus
	Name     string
}

type ProductReader interface {
	GetActive(ctx context.Context, id int64) (domain.Product, error)
	ListActive(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
	ListLowStock(ctx context.Context, threshold int) ([]domain.Product, error)
	CountByStatus(ctx context.Context, status domain.ProductStatus) (int64, error)
}
