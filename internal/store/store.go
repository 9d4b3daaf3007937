package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the requested user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrLoginTaken is returned when a login is already registered.
	ErrLoginTaken = errors.New("login already taken")
	// ErrNickTaken is returned when a nick is already used by another account.
	ErrNickTaken = errors.New("nick already taken")
)

// User represents an account in the system.
type User struct {
	ID           int64
	Login        string
	PasswordHash string
	Nick         string
	CreatedAt    time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new account with a hashed password.
	CreateUser(ctx context.Context, login, passwordHash, nick string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByLogin retrieves a user by login.
	GetUserByLogin(ctx context.Context, login string) (*User, error)

	// RenameUser changes the nick of the account currently named oldNick.
	// Returns ErrNickTaken when newNick belongs to another account and
	// ErrNotFound when no account carries oldNick.
	RenameUser(ctx context.Context, oldNick, newNick string) error

	// CountUsers returns the number of accounts.
	CountUsers(ctx context.Context) (int, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore

	// Close closes the underlying database connection.
	Close() error
}
