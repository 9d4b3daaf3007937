package core

import "errors"

var (
	// ErrUnauthorized means the credentials did not match an account. Retry allowed.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrIdentityBusy means the account is already active in another session. Retry allowed.
	ErrIdentityBusy = errors.New("identity already active")
	// ErrAuthDeadlineExceeded ends a session that did not authenticate in time.
	ErrAuthDeadlineExceeded = errors.New("authentication deadline exceeded")
	// ErrActivityDeadlineExceeded ends a session that stayed idle for too long.
	ErrActivityDeadlineExceeded = errors.New("activity deadline exceeded")
	// ErrPeerDisconnected is reported when the peer closed the stream.
	ErrPeerDisconnected = errors.New("peer disconnected")
	// ErrStoreUnavailable means the backing store failed; the triggering operation may be retried.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRenameConflict means the requested nick belongs to another account.
	ErrRenameConflict = errors.New("nick already in use")
	// ErrInvalidNick means the requested nick is not 1 to 32 characters without whitespace.
	ErrInvalidNick = errors.New("invalid nick")
	// ErrNoSuchRecipient means no active session carries the requested nick.
	ErrNoSuchRecipient = errors.New("no such recipient")

	// ErrSessionClosed is returned by operations on a session that is already closed.
	ErrSessionClosed = errors.New("session closed")
	// ErrSlowConsumer is returned when a session's outbound queue is full.
	ErrSlowConsumer = errors.New("outbound queue full")
	// ErrNotRegistered is returned when a registry operation names a session that is not active.
	ErrNotRegistered = errors.New("session not registered")
	// ErrMalformedCommand is returned by Parse for a recognised command with missing arguments.
	ErrMalformedCommand = errors.New("malformed command")
)

// ReadError wraps a transport failure while reading from the peer.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return "read failure: " + e.Err.Error()
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
