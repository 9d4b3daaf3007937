package core

import "time"

// EventKind is a session lifecycle change reported to observers.
type EventKind int

const (
	// EventJoined reports a session that authenticated and entered the chat.
	EventJoined EventKind = iota
	// EventLeft reports an active session that closed.
	EventLeft
	// EventRenamed reports a successful nick change.
	EventRenamed
)

func (k EventKind) String() string {
	switch k {
	case EventJoined:
		return "joined"
	case EventLeft:
		return "left"
	case EventRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event describes what happened to a session.
type Event struct {
	Kind      EventKind
	SessionID string
	UserID    int64
	Login     string
	Nick      string
	OldNick   string // EventRenamed only
	Reason    error  // EventLeft only, nil for a graceful /end
	At        time.Time
}

// EventHandler receives lifecycle events. It is called outside the registry lock
// and must not block for long.
type EventHandler func(Event)
