package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	catalogpg "github.com/caprisoft/storefront/internal/catalog/infrastructure/postgres"
	"github.com/caprisoft/storefront/internal/order/application"
	"github.com/caprisoft/storefront/internal/order/domain"
	"github.com/caprisoft/storefront/pkg/database"
	"github.com/caprisoft/storefront/pkg/tracing"
)

const orderColumns = `id, number, user_id, status, payment_method, delivery_name, delivery_phone, delivery_address, delivery_city,
	notes, total_amount, created_at, updated_at, delivered_at, cancelled_at, cancellation_reason`

type Repository struct {
	log *slog.Logger
	db  database.DBTX
}

func NewRepository(log *slog.Logger, db database.DBTX) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) Insert(ctx context.Context, o *domain.Order) error {
	err := r.db.QueryRow(ctx, `INSERT INTO orders (number, user_id, status, payment_method, delivery_name, delivery_phone,
			delivery_address, delivery_city, notes, total_amount, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		o.Number, o.UserID, o.Status, o.PaymentMethod, o.Delivery.Name, o.Delivery.Phone,
		o.Delivery.Address, o.Delivery.City, o.Delivery.Notes, o.Total, o.CreatedAt, o.UpdatedAt).
		Scan(&o.ID)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, position, product_id, product_name, unit_price, quantity, subtotal, unit)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
			o.ID, i, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity, item.Subtotal, item.Unit)
	}
	results := r.db.SendBatch(ctx, batch)
	for i := range o.Items {
		if err := results.QueryRow().Scan(&o.Items[i].ID); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
		o.Items[i].OrderID = o.ID
	}
	return results.Close()
}

func (r *Repository) GetForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id)
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
}

// Update persists status fields only; line items and totals are immutable.
func (r *Repository) Update(ctx context.Context, o domain.Order) error {
	ct, err := r.db.Exec(ctx, `UPDATE orders
		SET status=$2, updated_at=$3, delivered_at=$4, cancelled_at=$5, cancellation_reason=$6
		WHERE id=$1`,
		o.ID, o.Status, o.UpdatedAt, o.DeliveredAt, o.CancelledAt, o.CancellationReason)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *Repository) List(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
}

func (r *Repository) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE status=$1 ORDER BY created_at DESC, id DESC`, status)
}

func (r *Repository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at DESC, id DESC`, from, to)
}

func (r *Repository) CountByStatus(ctx context.Context) (map[domain.OrderStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, count(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[domain.OrderStatus]int64{}
	for rows.Next() {
		var status domain.OrderStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *Repository) get(ctx context.Context, sql string, id int64) (domain.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	items, err := r.items(ctx, []int64{o.ID})
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *Repository) list(ctx context.Context, sql string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *Repository) items(ctx context.Context, orderIDs []int64) (map[int64][]domain.LineItem, error) {
	rows, err := r.db.Query(ctx, `SELECT id, order_id, product_id, product_name, unit_price, quantity, subtotal, unit
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.LineItem, len(orderIDs))
	for rows.Next() {
		var it domain.LineItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity, &it.Subtotal, &it.Unit); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.Status, &o.PaymentMethod, &o.Delivery.Name, &o.Delivery.Phone,
		&o.Delivery.Address, &o.Delivery.City, &o.Delivery.Notes, &o.Total, &o.CreatedAt, &o.UpdatedAt,
		&o.DeliveredAt, &o.CancelledAt, &o.CancellationReason)
	if err != nil {
		return domain.Order{}, err
	}
	o.Restore()
	return o, nil
}

// Sequence allocates order numbers from order_number_seq. Values consumed by
// rolled back transactions are not reused, so numbers are unique and
// increasing but may skip.
type Sequence struct {
	db database.DBTX
}

func (s Sequence) NextOrderNumber(ctx context.Context) (string, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return domain.FormatOrderNumber(n), nil
}

// OutboxRecorder writes events to the outbox table within the caller's
// transaction, carrying the active trace context.
type OutboxRecorder struct {
	db database.DBTX
}

func (o OutboxRecorder) Record(ctx context.Context, aggregateID, eventType string, payload []byte) error {
	headers := map[string]string{"source": "order-service"}
	_, err := o.db.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"order", aggregateID, eventType, payload, headers, tracing.Traceparent(ctx))
	return err
}

// UnitOfWork binds product, order, sequence and outbox access to one
// transaction.
type UnitOfWork struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewUnitOfWork(log *slog.Logger, pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{log: log, pool: pool}
}

func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repos application.Repositories) error) error {
	return database.WithinTx(ctx, u.pool, func(tx pgx.Tx) error {
		return fn(ctx, application.Repositories{
			Products: catalogpg.NewRepository(u.log, tx),
			Orders:   NewRepository(u.log, tx),
			Numbers:  Sequence{db: tx},
			Events:   OutboxRecorder{db: tx},
		})
	})
}
