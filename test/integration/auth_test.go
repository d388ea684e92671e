//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	identityapp "github.com/caprisoft/storefront/internal/identity/application"
	identity "github.com/caprisoft/storefront/internal/identity/domain"
	"github.com/caprisoft/storefront/internal/identity/infrastructure/jwt"
	identitypg "github.com/caprisoft/storefront/internal/identity/infrastructure/postgres"
)

type capturedReset struct{ token string }

func (c *capturedReset) SendPasswordReset(_ context.Context, _, token string) { c.token = token }

func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	users := identitypg.NewRepository(log, pool)
	resets := &capturedReset{}
	svc := identityapp.NewAuthService(identityapp.AuthDeps{
		Log:      log,
		UoW:      identitypg.NewAuthUnitOfWork(log, pool),
		Users:    users,
		Tokens:   users,
		Issuer:   jwt.NewVerifier("it-secret", "storefront"),
		Notifier: resets,
		HashCost: bcrypt.MinCost,
	})

	in := identityapp.RegisterInput{FullName: "Ana Torres", Email: "lifecycle@example.com", Phone: "555", Password: "secret1"}
	u, err := svc.Register(ctx, in)
	require.NoError(t, err)
	_, err = svc.Register(ctx, in)
	assert.ErrorIs(t, err, identity.ErrEmailTaken)

	stored, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)
	assert.Equal(t, "555", stored.Phone)
	assert.WithinDuration(t, time.Now(), stored.CreatedAt, time.Minute)

	require.NoError(t, svc.RequestPasswordReset(ctx, "lifecycle@example.com"))
	require.NotEmpty(t, resets.token)
	require.NoError(t, svc.ResetPassword(ctx, identityapp.ResetPasswordInput{Token: resets.token, NewPassword: "changed1"}))
	err = svc.ResetPassword(ctx, identityapp.ResetPasswordInput{Token: resets.token, NewPassword: "changed2"})
	assert.ErrorIs(t, err, identity.ErrResetTokenUsed)

	_, err = svc.Login(ctx, identityapp.LoginInput{Email: "lifecycle@example.com", Password: "changed1"})
	assert.NoError(t, err)

	counts, err := users.CountUsers(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, counts.Total, int64(1))
}
