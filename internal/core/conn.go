package core

import (
	"context"
	"time"
)

// Conn is a duplex line-oriented connection owned by exactly one Session.
//
// ReadLine blocks until a full line is available; it is unblocked by Close.
// WriteLine must honour ctx so a stuck peer cannot hold a writer forever.
type Conn interface {
	ReadLine() (string, error)
	WriteLine(ctx context.Context, line string) error
	Close() error
	RemoteAddr() string
}

// Verifier checks credentials against the account store.
// It must be safe for concurrent use and returns ErrUnauthorized or
// an error wrapping ErrStoreUnavailable on failure.
type Verifier interface {
	Verify(ctx context.Context, login, password string) (*Identity, error)
}

// NickRenamer persists nick changes. It returns ErrRenameConflict when the nick
// is taken and an error wrapping ErrStoreUnavailable for anything else.
type NickRenamer interface {
	RenameNick(ctx context.Context, oldNick, newNick string) error
}

// Clock returns the current time. Tests substitute a controllable one.
type Clock func() time.Time
