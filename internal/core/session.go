package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/proto"
)

// SessionState is the lifecycle position of a Session. States are never revisited.
type SessionState int32

const (
	StateUnauthenticated SessionState = iota
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionOptions tunes timeouts and queues of every session created by a Hub.
type SessionOptions struct {
	AuthTimeout       time.Duration
	ActivityTimeout   time.Duration
	WatchdogInterval  time.Duration
	WriteTimeout      time.Duration
	OutboundBuffer    int
	MaxLinesPerMinute int
	Clock             Clock
}

// DefaultSessionOptions mirrors the defaults of the server configuration.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		AuthTimeout:      120 * time.Second,
		ActivityTimeout:  180 * time.Second,
		WatchdogInterval: 100 * time.Millisecond,
		WriteTimeout:     10 * time.Second,
		OutboundBuffer:   64,
	}
}

// Session owns one connection from accept to close.
type Session struct {
	id       string
	conn     Conn
	registry *Registry
	verifier Verifier
	renamer  NickRenamer
	opts     SessionOptions
	log      zerolog.Logger
	limiter  *rateLimiter

	state        atomic.Int32
	lastActivity atomic.Int64
	// identity is set once by activate, under the registry lock, before the state turns active.
	identity *Identity

	outMu     sync.Mutex
	outClosed bool
	outbound  chan string

	closeOnce   sync.Once
	closed      chan struct{}
	closeReason error
	writerDone  chan struct{}
}

type authAttempt struct {
	identity *Identity
	result   chan error
}

var errEndSession = errors.New("end of session requested")

func newSession(id string, conn Conn, h *Hub) *Session {
	opts := h.opts
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	s := &Session{
		id:         id,
		conn:       conn,
		registry:   h.registry,
		verifier:   h.verifier,
		renamer:    h.renamer,
		opts:       opts,
		log:        h.log.With().Str("session_id", id).Str("remote", conn.RemoteAddr()).Logger(),
		limiter:    newRateLimiter(opts.MaxLinesPerMinute, time.Minute, opts.Clock),
		outbound:   make(chan string, opts.OutboundBuffer),
		closed:     make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	s.touch()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Identity returns the authenticated identity, or nil before authentication.
func (s *Session) Identity() *Identity {
	if s.State() == StateUnauthenticated {
		return nil
	}
	return s.identity
}

// Done is closed once the session starts closing.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Run drives the session through authentication and the chat phase and
// returns the reason it ended; nil means the peer sent /end.
func (s *Session) Run(ctx context.Context) error {
	go s.writeLoop()

	stop := context.AfterFunc(ctx, func() { s.closeWith(ctx.Err()) })
	defer stop()

	err := s.authenticate(ctx)
	if err == nil {
		s.log.Info().Str("login", s.identity.Login).Str("nick", s.identity.Nick()).Msg("session authenticated")
		err = s.serve(ctx)
	}
	s.closeWith(err)
	<-s.writerDone

	return s.closeReason
}

// Close ends the session. It is idempotent and safe to call from any goroutine.
func (s *Session) Close() {
	s.closeWith(ErrSessionClosed)
}

func (s *Session) closeWith(reason error) {
	s.closeOnce.Do(func() {
		s.closeReason = reason
		prev := SessionState(s.state.Swap(int32(StateClosed)))
		close(s.closed)

		if prev == StateActive {
			s.registry.Leave(s, reason)
		}
		s.closeOutbound()

		ev := s.log.Info()
		if reason != nil && !errors.Is(reason, ErrPeerDisconnected) {
			ev = s.log.Warn().Err(reason)
		}
		ev.Str("state", prev.String()).Msg("session closed")
	})
}

// activate is called by the registry, under its lock, when registration succeeds.
func (s *Session) activate(id *Identity) error {
	s.identity = id
	if !s.state.CompareAndSwap(int32(StateUnauthenticated), int32(StateActive)) {
		return ErrSessionClosed
	}
	return s.deliver(proto.AuthOK(id.Nick(), id.Login))
}

// authenticate races the auth deadline against the credential read loop.
func (s *Session) authenticate(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	attempts := make(chan *authAttempt)
	readErr := make(chan error, 1)
	go func() {
		readErr <- s.readCredentials(ctx, attempts)
	}()

	deadline := time.NewTimer(s.opts.AuthTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-deadline.C:
			s.log.Info().Dur("timeout", s.opts.AuthTimeout).Msg("authentication deadline exceeded")
			s.send(proto.TimeoutAuth())
			return ErrAuthDeadlineExceeded

		case err := <-readErr:
			return err

		case <-s.closed:
			return ErrSessionClosed

		case a := <-attempts:
			err := s.registry.Register(s, a.identity)
			a.result <- err
			switch {
			case err == nil:
				return nil
			case errors.Is(err, ErrIdentityBusy):
				s.log.Info().Str("login", a.identity.Login).Msg("identity already active")
				s.send(proto.TextIdentityBusy)
			default:
				return err
			}
		}
	}
}

// readCredentials consumes lines until a verified identity is accepted by authenticate.
func (s *Session) readCredentials(ctx context.Context, attempts chan<- *authAttempt) error {
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			return readFailure(err)
		}
		if !s.limiter.allow() {
			s.send(proto.TextFlood)
			continue
		}

		cmd, parseErr := Parse(line)
		if cmd.Kind != CommandAuthenticate {
			s.log.Debug().Str("command", cmd.Kind.String()).Msg("ignoring line before authentication")
			continue
		}
		if parseErr != nil {
			s.send(proto.UsageAuth)
			continue
		}

		id, err := s.verifier.Verify(ctx, cmd.Login, cmd.Password)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrUnauthorized):
			s.log.Info().Str("login", cmd.Login).Msg("bad credentials")
			s.send(proto.TextBadCredentials)
			continue
		default:
			// The race stays open: the client may retry until the deadline.
			s.log.Error().Err(err).Str("login", cmd.Login).Msg("credential store unavailable")
			s.send(proto.ErrDB(proto.TextNoDatabase))
			continue
		}

		attempt := &authAttempt{identity: id, result: make(chan error, 1)}
		select {
		case attempts <- attempt:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case err := <-attempt.result:
			if err == nil || !errors.Is(err, ErrIdentityBusy) {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// serve races the idle watchdog against the command read loop.
func (s *Session) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.touch()

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.readCommands(ctx)
	}()
	go func() {
		errCh <- s.watchActivity(ctx)
	}()

	err := <-errCh
	cancel() // stop the other task

	if errors.Is(err, ErrActivityDeadlineExceeded) {
		s.log.Info().Str("nick", s.identity.Nick()).Dur("timeout", s.opts.ActivityTimeout).Msg("no activity, closing session")
		s.send(proto.TimeoutActivity())
		s.closeWith(err)
	}
	if errors.Is(err, errEndSession) {
		return nil
	}
	return err
}

func (s *Session) watchActivity(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return ErrSessionClosed
		case <-ticker.C:
			if s.idle() >= s.opts.ActivityTimeout {
				return ErrActivityDeadlineExceeded
			}
		}
	}
}

func (s *Session) readCommands(ctx context.Context) error {
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			return readFailure(err)
		}
		// A line that arrives after the watchdog fired is not dispatched.
		if err := ctx.Err(); err != nil {
			return err
		}
		s.touch()

		if !s.limiter.allow() {
			s.send(proto.TextFlood)
			continue
		}

		cmd, parseErr := Parse(line)
		if parseErr != nil {
			s.rejectMalformed(cmd.Kind)
			continue
		}
		if err := s.dispatch(ctx, cmd); err != nil {
			return err
		}
	}
}

func (s *Session) dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CommandPlainMessage:
		s.log.Debug().Str("nick", s.identity.Nick()).Str("body", cmd.Body).Msg("broadcast message")
		if err := s.registry.Publish(s, cmd.Body); err != nil {
			s.log.Debug().Err(err).Msg("publish skipped")
		}

	case CommandSendPrivate:
		if cmd.Nick == s.identity.Nick() {
			return nil
		}
		s.log.Debug().Str("nick", s.identity.Nick()).Str("to", cmd.Nick).Msg("private message")
		if err := s.registry.SendPrivate(s, cmd.Nick, cmd.Body); err != nil {
			s.log.Debug().Err(err).Str("to", cmd.Nick).Msg("private message not delivered")
		}

	case CommandListOnline:
		s.send(proto.Clients(s.registry.ListOnline(s)))

	case CommandChangeNick:
		s.changeNick(ctx, cmd.Nick)

	case CommandAuthenticate:
		s.send(proto.TextAlreadyAuthorized)

	case CommandEndSession:
		return errEndSession

	default:
		return fmt.Errorf("unhandled command kind %v", cmd.Kind)
	}
	return nil
}

func (s *Session) changeNick(ctx context.Context, newNick string) {
	oldNick := s.identity.Nick()
	err := s.renamer.RenameNick(ctx, oldNick, newNick)
	switch {
	case err == nil:
		if err := s.registry.Rename(s, newNick); err != nil {
			s.log.Warn().Err(err).Msg("rename after store update")
		}
	case errors.Is(err, ErrRenameConflict):
		s.send(proto.ErrChangeNick(proto.TextNickTaken))
	case errors.Is(err, ErrInvalidNick):
		s.send(proto.ErrChangeNick(proto.TextInvalidNick))
	default:
		s.log.Error().Err(err).Str("nick", oldNick).Str("new_nick", newNick).Msg("rename failed")
		s.send(proto.ErrChangeNick(proto.TextRenameStoreError))
	}
}

func (s *Session) rejectMalformed(kind CommandKind) {
	switch kind {
	case CommandAuthenticate:
		s.send(proto.UsageAuth)
	case CommandChangeNick:
		s.send(proto.ErrChangeNick(proto.UsageNick))
	case CommandSendPrivate:
		s.send(proto.ErrPrivate(proto.UsagePrivate))
	}
}

// send queues a line for this session; a full queue closes the session.
func (s *Session) send(line string) {
	if err := s.deliver(line); err != nil && !errors.Is(err, ErrSessionClosed) {
		s.closeWith(fmt.Errorf("deliver: %w", err))
	}
}

// deliver queues a line without blocking.
func (s *Session) deliver(line string) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	if s.outClosed {
		return ErrSessionClosed
	}
	select {
	case s.outbound <- line:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (s *Session) closeOutbound() {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	if !s.outClosed {
		s.outClosed = true
		close(s.outbound)
	}
}

// writeLoop drains the outbound queue and closes the connection once the queue is closed.
func (s *Session) writeLoop() {
	defer close(s.writerDone)

	var failed bool
	for line := range s.outbound {
		if failed {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
		err := s.conn.WriteLine(ctx, line)
		cancel()
		if err != nil {
			failed = true
			s.log.Warn().Err(err).Msg("write line")
			s.closeWith(fmt.Errorf("write: %w", err))
		}
	}

	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Debug().Err(err).Msg("close connection")
	}
}

func (s *Session) touch() {
	s.lastActivity.Store(s.opts.Clock().UnixNano())
}

func (s *Session) idle() time.Duration {
	return s.opts.Clock().Sub(time.Unix(0, s.lastActivity.Load()))
}

func readFailure(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return ErrPeerDisconnected
	}
	return &ReadError{Err: err}
}
