package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/proto"
)

// Registry is the process-wide set of active sessions. Every operation runs in
// one critical section, so registry-mediated deliveries are totally ordered.
// Sessions that fail a delivery are closed after the lock is released.
type Registry struct {
	mu       sync.Mutex
	sessions map[*Session]*Identity

	onEvent EventHandler
	now     Clock
	log     *zerolog.Logger
}

type failedDelivery struct {
	session *Session
	err     error
}

// NewRegistry creates an empty registry. onEvent may be nil.
func NewRegistry(logger *zerolog.Logger, onEvent EventHandler) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Registry{
		sessions: make(map[*Session]*Identity),
		onEvent:  onEvent,
		now:      time.Now,
		log:      logger,
	}
}

// Register activates s with id, confirms the login to s and announces the join to
// everyone, all inside one critical section. It fails with ErrIdentityBusy when an
// equal identity is already registered and with ErrSessionClosed when s closed meanwhile.
func (r *Registry) Register(s *Session, id *Identity) error {
	r.mu.Lock()
	if r.isBusyLocked(id) {
		r.mu.Unlock()
		return ErrIdentityBusy
	}
	if err := s.activate(id); err != nil {
		r.mu.Unlock()
		return err
	}
	r.sessions[s] = id
	failed := r.broadcastLocked(proto.Joined(id.Nick()))
	r.mu.Unlock()

	r.closeFailed(failed)
	r.emit(Event{Kind: EventJoined, SessionID: s.ID(), UserID: id.UserID, Login: id.Login, Nick: id.Nick()})
	return nil
}

// Unregister removes s. It returns the identity s was registered with, or nil.
func (r *Registry) Unregister(s *Session) *Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked(s)
}

func (r *Registry) unregisterLocked(s *Session) *Identity {
	id, ok := r.sessions[s]
	if !ok {
		return nil
	}
	delete(r.sessions, s)
	return id
}

// Leave unregisters s and announces its departure. It is a no-op for a session
// that is not registered.
func (r *Registry) Leave(s *Session, reason error) {
	r.mu.Lock()
	id := r.unregisterLocked(s)
	if id == nil {
		r.mu.Unlock()
		return
	}
	failed := r.broadcastLocked(proto.Left(id.Nick()))
	r.mu.Unlock()

	r.closeFailed(failed)
	r.emit(Event{Kind: EventLeft, SessionID: s.ID(), UserID: id.UserID, Login: id.Login, Nick: id.Nick(), Reason: reason})
}

// IsBusy reports whether an identity equal to id is registered.
func (r *Registry) IsBusy(id *Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isBusyLocked(id)
}

func (r *Registry) isBusyLocked(id *Identity) bool {
	for _, registered := range r.sessions {
		if registered.Equal(id) {
			return true
		}
	}
	return false
}

// Broadcast delivers text to every registered session.
func (r *Registry) Broadcast(text string) {
	r.mu.Lock()
	failed := r.broadcastLocked(text)
	r.mu.Unlock()

	r.closeFailed(failed)
}

// Publish broadcasts a chat line from sender, prefixed with its current nick.
func (r *Registry) Publish(sender *Session, body string) error {
	r.mu.Lock()
	id, ok := r.sessions[sender]
	if !ok {
		r.mu.Unlock()
		return ErrNotRegistered
	}
	failed := r.broadcastLocked(proto.Chat(id.Nick(), body))
	r.mu.Unlock()

	r.closeFailed(failed)
	return nil
}

func (r *Registry) broadcastLocked(text string) []failedDelivery {
	var failed []failedDelivery
	for s := range r.sessions {
		if err := s.deliver(text); err != nil {
			failed = append(failed, failedDelivery{session: s, err: err})
		}
	}
	return failed
}

// SendPrivate delivers body to the session whose current nick is recipientNick and
// echoes it to sender. When nobody carries that nick the sender gets an error line
// and ErrNoSuchRecipient is returned.
func (r *Registry) SendPrivate(sender *Session, recipientNick, body string) error {
	r.mu.Lock()
	senderID, ok := r.sessions[sender]
	if !ok {
		r.mu.Unlock()
		return ErrNotRegistered
	}

	var (
		failed []failedDelivery
		found  bool
	)
	for s, id := range r.sessions {
		if id.Nick() != recipientNick {
			continue
		}
		found = true
		if err := s.deliver(proto.PrivateFrom(senderID.Nick(), body)); err != nil {
			failed = append(failed, failedDelivery{session: s, err: err})
		}
		if err := sender.deliver(proto.PrivateTo(recipientNick, body)); err != nil {
			failed = append(failed, failedDelivery{session: sender, err: err})
		}
		break
	}
	if !found {
		if err := sender.deliver(proto.NoSuchRecipient(recipientNick)); err != nil {
			failed = append(failed, failedDelivery{session: sender, err: err})
		}
	}
	r.mu.Unlock()

	r.closeFailed(failed)
	if !found {
		return ErrNoSuchRecipient
	}
	return nil
}

// ListOnline returns the sorted nicks of every registered session except excluding.
// excluding may be nil.
func (r *Registry) ListOnline(excluding *Session) []string {
	r.mu.Lock()
	nicks := make([]string, 0, len(r.sessions))
	for s, id := range r.sessions {
		if s == excluding {
			continue
		}
		nicks = append(nicks, id.Nick())
	}
	r.mu.Unlock()

	sort.Strings(nicks)
	return nicks
}

// Rename switches the nick of a registered session, confirms it to the session and
// announces it to everyone. The caller has already persisted the new nick.
func (r *Registry) Rename(s *Session, newNick string) error {
	r.mu.Lock()
	id, ok := r.sessions[s]
	if !ok {
		r.mu.Unlock()
		return ErrNotRegistered
	}
	oldNick := id.Nick()
	id.setNick(newNick)

	var failed []failedDelivery
	if err := s.deliver(proto.ChangeNickOK(newNick)); err != nil {
		failed = append(failed, failedDelivery{session: s, err: err})
	}
	failed = append(failed, r.broadcastLocked(proto.Renamed(oldNick, newNick))...)
	r.mu.Unlock()

	r.closeFailed(failed)
	r.emit(Event{Kind: EventRenamed, SessionID: s.ID(), UserID: id.UserID, Login: id.Login, Nick: newNick, OldNick: oldNick})
	return nil
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll closes every registered session.
func (r *Registry) CloseAll(reason error) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.closeWith(reason)
	}
}

func (r *Registry) closeFailed(failed []failedDelivery) {
	for _, f := range failed {
		r.log.Warn().Err(f.err).Str("session_id", f.session.ID()).Msg("delivery failed, closing session")
		f.session.closeWith(fmt.Errorf("deliver: %w", f.err))
	}
}

func (r *Registry) emit(ev Event) {
	if r.onEvent == nil {
		return
	}
	ev.At = r.now()
	r.onEvent(ev)
}
