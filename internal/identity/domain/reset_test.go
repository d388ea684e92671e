package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResetTokenCheck(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tok := NewResetToken(7, now)

	assert.NotEmpty(t, tok.Token)
	assert.Equal(t, int64(7), tok.UserID)
	assert.Equal(t, now.Add(time.Hour), tok.ExpiresAt)

	assert.NoError(t, tok.Check(now.Add(59*time.Minute)))
	assert.NoError(t, tok.Check(tok.ExpiresAt))
	assert.ErrorIs(t, tok.Check(now.Add(61*time.Minute)), ErrResetTokenExpired)

	tok.Used = true
	assert.ErrorIs(t, tok.Check(now), ErrResetTokenUsed)
	assert.ErrorIs(t, tok.Check(now.Add(2*time.Hour)), ErrResetTokenExpired)
}

func TestResetTokensAreUnique(t *testing.T) {
	now := time.Now()
	assert.NotEqual(t, NewResetToken(1, now).Token, NewResetToken(1, now).Token)
}

func TestIsResetTokenError(t *testing.T) {
	assert.True(t, IsResetTokenError(ErrResetTokenInvalid))
	assert.True(t, IsResetTokenError(ErrResetTokenUsed))
	assert.False(t, IsResetTokenError(ErrUserNotFound))
}
