package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/caprisoft/storefront/internal/identity/domain"
	"github.com/caprisoft/storefront/pkg/textutil"
	"github.com/caprisoft/storefront/pkg/validation"
)

// ValidationError names the request field that was rejected.
type ValidationError = validation.FieldError

// AccountRepository writes accounts inside a unit of work.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	// Create stores u and sets its id; a duplicate email is ErrEmailTaken.
	Create(ctx context.Context, u *domain.User) error
	SetPassword(ctx context.Context, userID int64, hash string) error
}

type ResetTokenRepository interface {
	DeleteByUser(ctx context.Context, userID int64) error
	Insert(ctx context.Context, t *domain.ResetToken) error
	// GetForUpdate locks the token row; unknown tokens are ErrResetTokenInvalid.
	GetForUpdate(ctx context.Context, token string) (domain.ResetToken, error)
	MarkUsed(ctx context.Context, id int64) error
}

type AuthRepositories struct {
	Users  AccountRepository
	Tokens ResetTokenRepository
}

type AuthUnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos AuthRepositories) error) error
}

type ResetTokenReader interface {
	FindResetToken(ctx context.Context, token string) (domain.ResetToken, error)
}

// TokenIssuer signs session tokens whose subject is the account email.
type TokenIssuer interface {
	Issue(subject string, ttl time.Duration) (string, error)
}

// ResetNotifier delivers a reset token to the account owner.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, to, token string)
}

type RegisterInput struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordInput struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

type Session struct {
	Token string
	User  domain.User
}

type AuthDeps struct {
	Log      *slog.Logger
	UoW      AuthUnitOfWork
	Users    UserRepository
	Tokens   ResetTokenReader
	Issuer   TokenIssuer
	Notifier ResetNotifier
	// SessionTTL defaults to 24h.
	SessionTTL time.Duration
	// HashCost defaults to bcrypt.DefaultCost.
	HashCost int
}

// AuthService registers accounts, signs them in and runs the password reset
// flow.
type AuthService struct {
	log        *slog.Logger
	uow        AuthUnitOfWork
	users      UserRepository
	tokens     ResetTokenReader
	issuer     TokenIssuer
	notifier   ResetNotifier
	sessionTTL time.Duration
	hashCost   int
	now        func() time.Time
}

func NewAuthService(d AuthDeps) *AuthService {
	s := &AuthService{
		log:        d.Log,
		uow:        d.UoW,
		users:      d.Users,
		tokens:     d.Tokens,
		issuer:     d.Issuer,
		notifier:   d.Notifier,
		sessionTTL: d.SessionTTL,
		hashCost:   d.HashCost,
		now:        time.Now,
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 24 * time.Hour
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an active client account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.FullName = textutil.Clean(in.FullName)
	in.Email = normalizeEmail(in.Email)
	in.Phone = textutil.Clean(in.Phone)
	if err := validation.Struct(in); err != nil {
		return domain.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := domain.User{
		Email:        in.Email,
		Name:         in.FullName,
		Phone:        in.Phone,
		Role:         domain.RoleClient,
		Active:       true,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, repos AuthRepositories) error {
		return repos.Users.Create(ctx, &u)
	})
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info("user registered", "user_id", u.ID)
	return u, nil
}

// Login checks the password and issues a session token. Unknown emails,
// inactive accounts and wrong passwords all report ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return Session{}, err
	}
	u, err := s.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return Session{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if !u.Active || u.PasswordHash == "" {
		return Session{}, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return Session{}, domain.ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(u.Email, s.sessionTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	s.log.Info("user logged in", "user_id", u.ID)
	return Session{Token: token, User: u}, nil
}

// RequestPasswordReset replaces any earlier token of the account with a new
// one and sends it. Unknown emails are ignored without an error.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validation.Var("email", email, "required,email"); err != nil {
		return err
	}
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.log.Info("password reset for unknown email ignored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	token := domain.NewResetToken(u.ID, s.now().UTC())
	err = s.uow.WithinTx(ctx, func(ctx context.Context, repos AuthRepositories) error {
		if err := repos.Tokens.DeleteByUser(ctx, u.ID); err != nil {
			return fmt.Errorf("delete old tokens: %w", err)
		}
		return repos.Tokens.Insert(ctx, &token)
	})
	if err != nil {
		return err
	}
	s.notifier.SendPasswordReset(ctx, u.Email, token.Token)
	s.log.Info("password reset requested", "user_id", u.ID)
	return nil
}

// ResetPassword redeems token and stores the new password. The token is
// locked for the duration so it can be redeemed only once.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	in.Token = strings.TrimSpace(in.Token)
	if err := validation.Struct(in); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var userID int64
	err = s.uow.WithinTx(ctx, func(ctx context.Context, repos AuthRepositories) error {
		t, err := repos.Tokens.GetForUpdate(ctx, in.Token)
		if err != nil {
			return err
		}
		if err := t.Check(s.now().UTC()); err != nil {
			return err
		}
		if err := repos.Users.SetPassword(ctx, t.UserID, string(hash)); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		userID = t.UserID
		return repos.Tokens.MarkUsed(ctx, t.ID)
	})
	if err != nil {
		return err
	}
	s.log.Info("password reset", "user_id", userID)
	return nil
}

// ValidateResetToken reports whether token could be redeemed now.
func (s *AuthService) ValidateResetToken(ctx context.Context, token string) (bool, error) {
	t, err := s.tokens.FindResetToken(ctx, strings.TrimSpace(token))
	if errors.Is(err, domain.ErrResetTokenInvalid) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return t.Check(s.now().UTC()) == nil, nil
}
