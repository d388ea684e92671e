package postgres

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caprisoft/storefront/internal/catalog/application"
	"github.com/caprisoft/storefront/internal/catalog/domain"
	"github.com/caprisoft/storefront/pkg/database"
)

const productColumns = `id, name, description, price, stock, category, status, image_url, unit, is_active, created_at, updated_at`

// Repository reads and writes product rows through db, which is either the
// pool or a transaction.
type Repository struct {
	log *slog.Logger
	db  database.DBTX
}

func NewRepository(log *slog.Logger, db database.DBTX) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) GetForUpdate(ctx context.Context, id int64) (domain.Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id)
	return scanProduct(row, id)
}

func (r *Repository) Save(ctx context.Context, p domain.Product) error {
	ct, err := r.db.Exec(ctx, `UPDATE products
		SET name=$2, description=$3, price=$4, stock=$5, category=$6, status=$7, image_url=$8, unit=$9, is_active=$10, updated_at=$11
		WHERE id=$1`,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.Status, p.ImageURL, p.Unit, p.Active, p.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &domain.ProductNotFoundError{ProductID: p.ID}
	}
	return nil
}

func (r *Repository) Insert(ctx context.Context, p *domain.Product) error {
	return r.db.QueryRow(ctx, `INSERT INTO products (name, description, price, stock, category, status, image_url, unit, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		p.Name, p.Description, p.Price, p.Stock, p.Category, p.Status, p.ImageURL, p.Unit, p.Active, p.CreatedAt, p.UpdatedAt).
		Scan(&p.ID)
}

func (r *Repository) GetActive(ctx context.Context, id int64) (domain.Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 AND is_active`, id)
	return scanProduct(row, id)
}

func (r *Repository) ListActive(ctx context.Context, f application.ProductFilter) ([]domain.Product, error) {
	var (
		where = []string{"is_active"}
		args  []any
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, "category=$"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, "status=$"+strconv.Itoa(len(args)))
	}
	if f.Name != "" {
		args = append(args, containsPattern(f.Name))
		where = append(where, "name ILIKE $"+strconv.Itoa(len(args))+` ESCAPE '\'`)
	}
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE `+strings.Join(where, " AND ")+` ORDER BY id`, args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern matches s literally anywhere in a LIKE operand.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func (r *Repository) ListLowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE is_active AND stock <= $1 ORDER BY stock, id`, threshold)
}

func (r *Repository) CountByStatus(ctx context.Context, status domain.ProductStatus) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM products WHERE is_active AND status=$1`, status).Scan(&n)
	return n, err
}

// ListByIDs returns the products with the given ids whether or not they are
// still active.
func (r *Repository) ListByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id`, ids)
}

func (r *Repository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&n)
	return n, err
}

func (r *Repository) list(ctx context.Context, sql string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows, 0)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row, id int64) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.Status, &p.ImageURL, &p.Unit, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// UnitOfWork runs catalog changes in a single pgx transaction.
type UnitOfWork struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewUnitOfWork(log *slog.Logger, pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{log: log, pool: pool}
}

func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repo application.ProductRepository) error) error {
	return database.WithinTx(ctx, u.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewRepository(u.log, tx))
	})
}
