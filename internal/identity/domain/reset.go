package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ResetTokenTTL is how long a password reset token stays usable.
const ResetTokenTTL = time.Hour

var (
	ErrResetTokenInvalid = errors.New("invalid reset token")
	ErrResetTokenExpired = errors.New("reset token has expired")
	ErrResetTokenUsed    = errors.New("reset token was already used")
)

// ResetToken authorizes one password change for UserID until ExpiresAt.
type ResetToken struct {
	ID        int64
	Token     string
	UserID    int64
	ExpiresAt time.Time
	Used      bool
}

func NewResetToken(userID int64, now time.Time) ResetToken {
	return ResetToken{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(ResetTokenTTL),
	}
}

// Check reports why the token can no longer be redeemed at now, expiry first.
func (t ResetToken) Check(now time.Time) error {
	if now.After(t.ExpiresAt) {
		return ErrResetTokenExpired
	}
	if t.Used {
		return ErrResetTokenUsed
	}
	return nil
}

// IsResetTokenError reports whether err is one of the reset token errors.
func IsResetTokenError(err error) bool {
	return errors.Is(err, ErrResetTokenInvalid) || errors.Is(err, ErrResetTokenExpired) || errors.Is(err, ErrResetTokenUsed)
}
