package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	StatusAvailable    ProductStatus = "AVAILABLE"
	StatusOutOfStock   ProductStatus = "OUT_OF_STOCK"
	StatusDiscontinued ProductStatus = "DISCONTINUED"
)

type Category string

const (
	CategoryMilk   Category = "MILK"
	CategoryMeat   Category = "MEAT"
	CategoryCheese Category = "CHEESE"
	CategoryYogurt Category = "YOGURT"
	CategoryOther  Category = "OTHER"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// ProductNotFoundError carries the id that could not be resolved.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

// InsufficientStockError reports a stock check that failed at mutation time.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    Category
	Status      ProductStatus
	ImageURL    string
	Unit        string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewProduct builds an active product. The status is derived from the
// initial stock unless the caller discontinues it explicitly.
func NewProduct(name string, price decimal.Decimal, stock int, category Category, unit string) Product {
	now := time.Now().UTC()
	p := Product{
		Name:      name,
		Price:     price,
		Stock:     stock,
		Category:  category,
		Status:    StatusAvailable,
		Unit:      unit,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if stock == 0 {
		p.Status = StatusOutOfStock
	}
	return p
}

func (p Product) HasStock(quantity int) bool {
	return p.Stock >= quantity && p.Status == StatusAvailable
}

func (p *Product) DecreaseStock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !p.HasStock(quantity) {
		return &InsufficientStockError{ProductID: p.ID, Requested: quantity, Available: p.Stock}
	}
	p.Stock -= quantity
	if p.Stock == 0 {
		p.Status = StatusOutOfStock
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// IncreaseStock restores units. DISCONTINUED is never cleared here.
func (p *Product) IncreaseStock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.Stock += quantity
	if p.Stock > 0 && p.Status == StatusOutOfStock {
		p.Status = StatusAvailable
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Product) Discontinue() {
	p.Status = StatusDiscontinued
	p.UpdatedAt = time.Now().UTC()
}

// Relist puts a discontinued product back on sale with a status derived from
// its stock.
func (p *Product) Relist() {
	p.Status = StatusAvailable
	if p.Stock == 0 {
		p.Status = StatusOutOfStock
	}
	p.UpdatedAt = time.Now().UTC()
}

func (p *Product) Deactivate() {
	p.Active = false
	p.UpdatedAt = time.Now().UTC()
}
