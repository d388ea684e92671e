package postgres

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caprisoft/storefront/internal/identity/application"
	"github.com/caprisoft/storefront/internal/identity/domain"
	"github.com/caprisoft/storefront/pkg/database"
)

const userColumns = `id, email, name, phone, role, is_active, password_hash, created_at`

const uniqueViolation = "23505"

type Repository struct {
	log *slog.Logger
	db  database.DBTX
}

func NewRepository(log *slog.Logger, db database.DBTX) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) FindByID(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email)=lower($1)`, email))
}

// Ensure inserts u unless a user with the same email exists, and returns the
// stored row either way.
func (r *Repository) Ensure(ctx context.Context, u domain.User) (domain.User, error) {
	_, err := r.db.Exec(ctx, `INSERT INTO users (email, name, role, is_active) VALUES ($1,$2,$3,TRUE) ON CONFLICT (email) DO NOTHING`,
		strings.ToLower(strings.TrimSpace(u.Email)), u.Name, u.Role)
	if err != nil {
		return domain.User{}, err
	}
	return r.FindByEmail(ctx, u.Email)
}

func (r *Repository) Create(ctx context.Context, u *domain.User) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (email, name, phone, role, is_active, password_hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		u.Email, u.Name, u.Phone, u.Role, u.Active, u.PasswordHash, u.CreatedAt,
	).Scan(&u.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrEmailTaken
	}
	return err
}

func (r *Repository) SetPassword(ctx context.Context, userID int64, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash=$2 WHERE id=$1`, userID, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *Repository) CountUsers(ctx context.Context) (domain.UserCounts, error) {
	var c domain.UserCounts
	err := r.db.QueryRow(ctx, `SELECT count(*), count(*) FILTER (WHERE is_active) FROM users`).Scan(&c.Total, &c.Active)
	return c, err
}

func (r *Repository) FindResetToken(ctx context.Context, token string) (domain.ResetToken, error) {
	return NewTokenRepository(r.db).find(ctx, `SELECT `+tokenColumns+` FROM password_reset_tokens WHERE token=$1`, token)
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.Active, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

const tokenColumns = `id, token, user_id, expires_at, used`

// TokenRepository stores password reset tokens.
type TokenRepository struct {
	db database.DBTX
}

func NewTokenRepository(db database.DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM password_reset_tokens WHERE user_id=$1`, userID)
	return err
}

func (r *TokenRepository) Insert(ctx context.Context, t *domain.ResetToken) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO password_reset_tokens (token, user_id, expires_at, used)
		VALUES ($1,$2,$3,$4) RETURNING id`,
		t.Token, t.UserID, t.ExpiresAt, t.Used,
	).Scan(&t.ID)
}

func (r *TokenRepository) GetForUpdate(ctx context.Context, token string) (domain.ResetToken, error) {
	return r.find(ctx, `SELECT `+tokenColumns+` FROM password_reset_tokens WHERE token=$1 FOR UPDATE`, token)
}

func (r *TokenRepository) MarkUsed(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE password_reset_tokens SET used=TRUE WHERE id=$1`, id)
	return err
}

func (r *TokenRepository) find(ctx context.Context, sql string, token string) (domain.ResetToken, error) {
	var t domain.ResetToken
	err := r.db.QueryRow(ctx, sql, token).Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.Used)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ResetToken{}, domain.ErrResetTokenInvalid
	}
	if err != nil {
		return domain.ResetToken{}, err
	}
	return t, nil
}

// AuthUnitOfWork runs account changes in a single pgx transaction.
type AuthUnitOfWork struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewAuthUnitOfWork(log *slog.Logger, pool *pgxpool.Pool) *AuthUnitOfWork {
	return &AuthUnitOfWork{log: log, pool: pool}
}

func (u *AuthUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repos application.AuthRepositories) error) error {
	return database.WithinTx(ctx, u.pool, func(tx pgx.Tx) error {
		return fn(ctx, application.AuthRepositories{
			Users:  NewRepository(u.log, tx),
			Tokens: NewTokenRepository(tx),
		})
	})
}
