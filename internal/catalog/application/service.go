package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/caprisoft/storefront/internal/catalog/domain"
	"github.com/caprisoft/storefront/pkg/textutil"
	"github.com/caprisoft/storefront/pkg/validation"
)

// ValidationError names the request field that was rejected.
type ValidationError = validation.FieldError

type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=150"`
	Description string          `json:"description" validate:"max=2000"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Category    domain.Category `json:"category" validate:"required,enum"`
	ImageURL    string          `json:"imageUrl" validate:"omitempty,max=500"`
	Unit        string          `json:"unit" validate:"required,max=30"`
}

// ProductUpdate carries optional changes; nil fields are left untouched.
type ProductUpdate struct {
	Name        *string               `json:"name" validate:"omitnil,required,max=150"`
	Description *string               `json:"description" validate:"omitnil,max=2000"`
	Price       *decimal.Decimal      `json:"price" validate:"omitnil,gte=0"`
	Category    *domain.Category      `json:"category" validate:"omitnil,enum"`
	Status      *domain.ProductStatus `json:"status" validate:"omitnil,oneof=AVAILABLE DISCONTINUED"`
	ImageURL    *string               `json:"imageUrl" validate:"omitnil,max=500"`
	Unit        *string               `json:"unit" validate:"omitnil,required,max=30"`
}

// normalize strips markup and surrounding space from the text fields.
func (in *ProductUpdate) normalize() {
	clean := func(p **string, fn func(string) string) {
		if *p != nil {
			v := fn(**p)
			*p = &v
		}
	}
	clean(&in.Name, textutil.Clean)
	clean(&in.Description, textutil.Clean)
	clean(&in.ImageURL, strings.TrimSpace)
	clean(&in.Unit, strings.TrimSpace)
}

type Service struct {
	log    *slog.Logger
	uow    UnitOfWork
	reader ProductReader
}

func NewService(log *slog.Logger, uow UnitOfWork, reader ProductReader) *Service {
	return &Service{log: log, uow: uow, reader: reader}
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	in.Name = textutil.Clean(in.Name)
	in.Description = textutil.Clean(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.Unit = strings.TrimSpace(in.Unit)
	if err := validation.Struct(in); err != nil {
		return domain.Product{}, err
	}

	p := domain.NewProduct(in.Name, in.Price, in.Stock, in.Category, in.Unit)
	p.Description = in.Description
	p.ImageURL = in.ImageURL
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repo ProductRepository) error {
		return repo.Insert(ctx, &p)
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.log.Info("product created", "product_id", p.ID, "name", p.Name)
	return p, nil
}

// UpdateProduct edits catalog data of an active product. Existing order line
// items keep their own snapshot and are not affected.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductUpdate) (domain.Product, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return domain.Product{}, err
	}
	return s.mutateActive(ctx, id, func(p *domain.Product) error {
		if in.Name != nil {
			p.Name = *in.Name
		}
		if in.Description != nil {
			p.Description = *in.Description
		}
		if in.Price != nil {
			p.Price = *in.Price
		}
		if in.Category != nil {
			p.Category = *in.Category
		}
		if in.Status != nil {
			if *in.Status == domain.StatusDiscontinued {
				p.Discontinue()
			} else {
				p.Relist()
			}
		}
		if in.ImageURL != nil {
			p.ImageURL = *in.ImageURL
		}
		if in.Unit != nil {
			p.Unit = *in.Unit
		}
		return nil
	})
}

// DeactivateProduct is a soft delete; order history keeps referencing the row.
func (s *Service) DeactivateProduct(ctx context.Context, id int64) error {
	_, err := s.mutateActive(ctx, id, func(p *domain.Product) error {
		p.Deactivate()
		return nil
	})
	if err == nil {
		s.log.Info("product deactivated", "product_id", id)
	}
	return err
}

func (s *Service) HasStock(ctx context.Context, id int64, quantity int) (bool, error) {
	p, err := s.reader.GetActive(ctx, id)
	if err != nil {
		return false, err
	}
	return p.HasStock(quantity), nil
}

func (s *Service) DecreaseStock(ctx context.Context, id int64, quantity int) (domain.Product, error) {
	return s.mutateActive(ctx, id, func(p *domain.Product) error {
		return p.DecreaseStock(quantity)
	})
}

func (s *Service) IncreaseStock(ctx context.Context, id int64, quantity int) (domain.Product, error) {
	return s.mutateActive(ctx, id, func(p *domain.Product) error {
		return p.IncreaseStock(quantity)
	})
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	return s.reader.GetActive(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error) {
	filter.Name = strings.TrimSpace(filter.Name)
	return s.reader.ListActive(ctx, filter)
}

func (s *Service) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	if err := validation.Var("threshold", threshold, "gte=0"); err != nil {
		return nil, err
	}
	return s.reader.ListLowStock(ctx, threshold)
}

type StockCounts struct {
	Available  int64
	OutOfStock int64
}

func (s *Service) Counts(ctx context.Context) (StockCounts, error) {
	available, err := s.reader.CountByStatus(ctx, domain.StatusAvailable)
	if err != nil {
		return StockCounts{}, err
	}
	out, err := s.reader.CountByStatus(ctx, domain.StatusOutOfStock)
	if err != nil {
		return StockCounts{}, err
	}
	return StockCounts{Available: available, OutOfStock: out}, nil
}

// mutateActive locks an active product, applies fn and saves it in one unit
// of work.
func (s *Service) mutateActive(ctx context.Context, id int64, fn func(p *domain.Product) error) (domain.Product, error) {
	var out domain.Product
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repo ProductRepository) error {
		p, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !p.Active {
			return &domain.ProductNotFoundError{ProductID: id}
		}
		if err := fn(&p); err != nil {
			return err
		}
		if err := repo.Save(ctx, p); err != nil {
			return fmt.Errorf("save product %d: %w", id, err)
		}
		out = p
		return nil
	})
	return out, err
}
