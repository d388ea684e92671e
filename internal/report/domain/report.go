// Package domain aggregates orders into the sales reports shown to admins.
// Revenue only counts delivered orders.
package domain

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	catalog "github.com/caprisoft/storefront/internal/catalog/domain"
	order "github.com/caprisoft/storefront/internal/order/domain"
)

const DateLayout = time.DateOnly

var ErrInvalidPeriod = errors.New("startDate must not be after endDate")

var hundred = decimal.NewFromInt(100)

// Period is an inclusive range of UTC calendar days.
type Period struct {
	Start time.Time
	End   time.Time
}

func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: day(start), End: day(end)}
	if p.Start.After(p.End) {
		return Period{}, ErrInvalidPeriod
	}
	return p, nil
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Bounds returns the half-open instant range [from, to) covered by p.
func (p Period) Bounds() (from, to time.Time) {
	return p.Start, p.End.AddDate(0, 0, 1)
}

type OrderRow struct {
	Number        string
	CustomerName  string
	OrderDate     time.Time
	Status        string
	Total         decimal.Decimal
	ItemCount     int
	PaymentMethod string
}

type Statistics struct {
	TotalOrders       int
	DeliveredOrders   int
	TotalRevenue      decimal.Decimal
	AverageOrderValue decimal.Decimal
	Period            Period
}

type ProductSales struct {
	ProductName       string
	TotalQuantity     int
	TotalRevenue      decimal.Decimal
	OrderCount        int
	PercentageOfTotal decimal.Decimal
}

type CategorySales struct {
	Category   catalog.Category
	Revenue    decimal.Decimal
	Percentage decimal.Decimal
}

type CategoryReport struct {
	Data         []CategorySales
	TotalRevenue decimal.Decimal
}

type MonthSales struct {
	Month   string
	Revenue decimal.Decimal
}

type CustomerSales struct {
	UserID       int64
	CustomerName string
	TotalSpent   decimal.Decimal
	OrderCount   int
}

func Delivered(orders []order.Order) []order.Order {
	out := make([]order.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == order.StatusDelivered {
			out = append(out, o)
		}
	}
	return out
}

func Revenue(orders []order.Order) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range orders {
		sum = sum.Add(o.Total)
	}
	return sum
}

// percent is part*100/total rounded half up to two places, zero when total is.
func percent(part, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(total, 2)
}

// OrderRows lists every order except cancelled ones, keeping the input order.
func OrderRows(orders []order.Order, nameOf func(userID int64) string) []OrderRow {
	rows := make([]OrderRow, 0, len(orders))
	for _, o := range orders {
		if o.Status == order.StatusCancelled {
			continue
		}
		rows = append(rows, OrderRow{
			Number:        o.Number,
			CustomerName:  nameOf(o.UserID),
			OrderDate:     o.CreatedAt,
			Status:        o.Status.DisplayName(),
			Total:         o.Total,
			ItemCount:     len(o.Items),
			PaymentMethod: o.PaymentMethod.DisplayName(),
		})
	}
	return rows
}

func Summarize(p Period, orders []order.Order) Statistics {
	delivered := Delivered(orders)
	revenue := Revenue(delivered)
	avg := decimal.Zero
	if len(delivered) > 0 {
		avg = revenue.DivRound(decimal.NewFromInt(int64(len(delivered))), 2)
	}
	return Statistics{
		TotalOrders:       len(orders),
		DeliveredOrders:   len(delivered),
		TotalRevenue:      revenue,
		AverageOrderValue: avg,
		Period:            p,
	}
}

// SalesByProduct groups delivered line items by the product name captured on
// the order. OrderCount counts lines, so an order naming a product twice
// counts twice.
func SalesByProduct(orders []order.Order) []ProductSales {
	delivered := Delivered(orders)
	total := Revenue(delivered)
	byName := map[string]*ProductSales{}
	for _, o := range delivered {
		for _, it := range o.Items {
			ps, ok := byName[it.ProductName]
			if !ok {
				ps = &ProductSales{ProductName: it.ProductName, TotalRevenue: decimal.Zero}
				byName[it.ProductName] = ps
			}
			ps.TotalQuantity += it.Quantity
			ps.TotalRevenue = ps.TotalRevenue.Add(it.Subtotal)
			ps.OrderCount++
		}
	}

	out := make([]ProductSales, 0, len(byName))
	for _, ps := range byName {
		ps.PercentageOfTotal = percent(ps.TotalRevenue, total)
		out = append(out, *ps)
	}
	slices.SortFunc(out, func(a, b ProductSales) int {
		if c := b.TotalRevenue.Cmp(a.TotalRevenue); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductName, b.ProductName)
	})
	return out
}

// SalesByCategory sums delivered line subtotals per product category.
// Products categoryOf does not know fall under CategoryOther.
func SalesByCategory(orders []order.Order, categoryOf map[int64]catalog.Category) CategoryReport {
	sums := map[catalog.Category]decimal.Decimal{}
	total := decimal.Zero
	for _, o := range Delivered(orders) {
		for _, it := range o.Items {
			c, ok := categoryOf[it.ProductID]
			if !ok {
				c = catalog.CategoryOther
			}
			sums[c] = sums[c].Add(it.Subtotal)
			total = total.Add(it.Subtotal)
		}
	}

	data := make([]CategorySales, 0, len(sums))
	for c, revenue := range sums {
		data = append(data, CategorySales{Category: c, Revenue: revenue, Percentage: percent(revenue, total)})
	}
	slices.SortFunc(data, func(a, b CategorySales) int {
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return CategoryReport{Data: data, TotalRevenue: total}
}

// SalesByMonth sums delivered revenue per UTC "YYYY-MM", oldest month first.
func SalesByMonth(orders []order.Order) []MonthSales {
	sums := map[string]decimal.Decimal{}
	for _, o := range Delivered(orders) {
		key := o.CreatedAt.UTC().Format("2006-01")
		sums[key] = sums[key].Add(o.Total)
	}
	out := make([]MonthSales, 0, len(sums))
	for month, revenue := range sums {
		out = append(out, MonthSales{Month: month, Revenue: revenue})
	}
	slices.SortFunc(out, func(a, b MonthSales) int { return cmp.Compare(a.Month, b.Month) })
	return out
}

// TopCustomers ranks buyers by delivered spend and keeps the first limit.
func TopCustomers(orders []order.Order, nameOf func(userID int64) string, limit int) []CustomerSales {
	byUser := map[int64]*CustomerSales{}
	for _, o := range Delivered(orders) {
		cs, ok := byUser[o.UserID]
		if !ok {
			cs = &CustomerSales{UserID: o.UserID, CustomerName: nameOf(o.UserID), TotalSpent: decimal.Zero}
			byUser[o.UserID] = cs
		}
		cs.TotalSpent = cs.TotalSpent.Add(o.Total)
		cs.OrderCount++
	}

	out := make([]CustomerSales, 0, len(byUser))
	for _, cs := range byUser {
		out = append(out, *cs)
	}
	slices.SortFunc(out, func(a, b CustomerSales) int {
		if c := b.TotalSpent.Cmp(a.TotalSpent); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Dashboard is the admin landing page summary.
type Dashboard struct {
	TotalProducts      int64
	AvailableProducts  int64
	OutOfStockProducts int64
	LowStockProducts   int64

	TotalOrders     int64
	PendingOrders   int64
	ConfirmedOrders int64
	DeliveredOrders int64
	CancelledOrders int64

	TotalRevenue   decimal.Decimal
	MonthlyRevenue decimal.Decimal

	TotalUsers  int64
	ActiveUsers int64
}

// MonthStart is the first instant of now's UTC month.
func MonthStart(now time.Time) time.Time {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
