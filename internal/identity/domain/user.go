package domain

import (
	"errors"
	"time"
)

type Role string

const (
	RoleClient Role = "CLIENT"
	RoleAdmin  Role = "ADMIN"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// User is an account. PasswordHash is a bcrypt hash and is empty for
// accounts that can only authenticate with externally issued tokens.
type User struct {
	ID           int64
	Email        string
	Name         string
	Phone        string
	Role         Role
	Active       bool
	PasswordHash string
	CreatedAt    time.Time
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// UserCounts backs the dashboard.
type UserCounts struct {
	Total  int64
	Active int64
}
