// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// User represents an account that owns weight records.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is the server-side record of an issued access token. Deleting it
// revokes the token before it expires.
type Session struct {
	TokenID   string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserRepository defines the port for user persistence operations.
type UserRepository interface {
	// GetByUsername and GetByID return nil when no user matches.
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, username, passwordHash string) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Count(ctx context.Context) (int, error)
}

// SessionRepository defines the port for session persistence operations.
type SessionRepository interface {
	Create(ctx context.Context, userID int64, tokenID string, expiresAt time.Time) error
	// GetByToken returns nil when the token id is unknown.
	GetByToken(ctx context.Context, tokenID string) (*Session, error)
	Delete(ctx context.Context, tokenID string) error
	DeleteForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context) error
}
