package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/caprisoft/storefront/internal/identity/domain"
)

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByID(ctx context.Context, id int64) (domain.User, error)
}

// TokenVerifier turns an opaque bearer token into the subject it was issued for.
type TokenVerifier interface {
	Subject(token string) (string, error)
}

type Resolver struct {
	users    UserRepository
	verifier TokenVerifier
}

func NewResolver(users UserRepository, verifier TokenVerifier) *Resolver {
	return &Resolver{users: users, verifier: verifier}
}

// Resolve returns the user a token was issued for. Unknown subjects are
// reported as unauthenticated so a deleted account cannot keep a session.
func (r *Resolver) Resolve(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, domain.ErrUnauthenticated
	}
	email, err := r.verifier.Subject(token)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	u, err := r.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("resolve user: %w", err)
	}
	return u, nil
}
