package core

import "sync"

// Identity is an authenticated account as seen by the core layer.
// Two identities are the same account when their UserIDs match; the nick may change.
type Identity struct {
	UserID int64
	Login  string

	mu   sync.RWMutex
	nick string
}

// NewIdentity builds an identity for the given account.
func NewIdentity(userID int64, login, nick string) *Identity {
	return &Identity{UserID: userID, Login: login, nick: nick}
}

// Nick returns the current display name.
func (i *Identity) Nick() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.nick
}

func (i *Identity) setNick(nick string) {
	i.mu.Lock()
	i.nick = nick
	i.mu.Unlock()
}

// Equal reports whether both identities belong to the same account.
func (i *Identity) Equal(other *Identity) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.UserID == other.UserID
}
