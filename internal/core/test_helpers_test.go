package core

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// fakeConn is an in-memory Conn. The test plays the peer through in and out.
type fakeConn struct {
	in         chan string
	out        chan string
	closed     chan struct{}
	closeOnce  sync.Once
	failWrites atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan string, 16),
		out:    make(chan string, 256),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadLine() (string, error) {
	select {
	case line, ok := <-c.in:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-c.closed:
		return "", net.ErrClosed
	}
}

func (c *fakeConn) WriteLine(ctx context.Context, line string) error {
	if c.failWrites.Load() {
		return errors.New("broken pipe")
	}
	select {
	case c.out <- line:
		return nil
	case <-c.closed:
		return net.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "pipe" }

func (c *fakeConn) send(line string) { c.in <- line }

// hangUp simulates the peer closing its side.
func (c *fakeConn) hangUp() { close(c.in) }

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// expectLine fails unless the next line the server writes equals want.
func expectLine(t *testing.T, c *fakeConn, want string) {
	t.Helper()

	select {
	case got := <-c.out:
		require.Equal(t, want, got)
	case <-time.After(waitTimeout):
		t.Fatalf("expected line %q not received", want)
	}
}

// expectEventually skips lines until want shows up.
func expectEventually(t *testing.T, c *fakeConn, want string) {
	t.Helper()

	deadline := time.After(waitTimeout)
	var seen []string
	for {
		select {
		case got := <-c.out:
			if got == want {
				return
			}
			seen = append(seen, got)
		case <-deadline:
			t.Fatalf("expected line %q not received; got %q", want, seen)
		}
	}
}

// expectNoLine fails if the server writes anything within d.
func expectNoLine(t *testing.T, c *fakeConn, d time.Duration) {
	t.Helper()

	select {
	case got := <-c.out:
		t.Fatalf("unexpected line %q", got)
	case <-time.After(d):
	}
}

func expectClosed(t *testing.T, c *fakeConn) {
	t.Helper()
	require.Eventually(t, c.isClosed, waitTimeout, 5*time.Millisecond, "connection should be closed")
}

type account struct {
	id       int64
	password string
	nick     string
}

// fakeStore is an in-memory Verifier and NickRenamer.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]*account
	failing  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: map[string]*account{
		"alice": {id: 1, password: "secret", nick: "Alice"},
		"bob":   {id: 2, password: "secret", nick: "Bob"},
		"carol": {id: 3, password: "secret", nick: "Carol"},
	}}
}

var errStoreDown = errors.New("connection refused")

func (f *fakeStore) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *fakeStore) Verify(_ context.Context, login, password string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing {
		return nil, errors.Join(ErrStoreUnavailable, errStoreDown)
	}
	acc, ok := f.accounts[login]
	if !ok || acc.password != password {
		return nil, ErrUnauthorized
	}
	return NewIdentity(acc.id, login, acc.nick), nil
}

func (f *fakeStore) RenameNick(_ context.Context, oldNick, newNick string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing {
		return errors.Join(ErrStoreUnavailable, errStoreDown)
	}
	if len([]rune(newNick)) > 32 {
		return ErrInvalidNick
	}
	var target *account
	for _, acc := range f.accounts {
		if acc.nick == newNick && acc.nick != oldNick {
			return ErrRenameConflict
		}
		if acc.nick == oldNick {
			target = acc
		}
	}
	if target == nil {
		return errors.Join(ErrStoreUnavailable, errors.New("no rows updated"))
	}
	target.nick = newNick
	return nil
}

// testEnv runs a hub with fast timeouts and records lifecycle events.
type testEnv struct {
	hub   *Hub
	store *fakeStore
	ctx   context.Context

	mu     sync.Mutex
	events []Event
}

func newTestEnv(t *testing.T, opts SessionOptions) *testEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	env := &testEnv{store: newFakeStore(), ctx: ctx}
	env.hub = NewHub(env.store, env.store, opts, nil, env.record)

	t.Cleanup(func() {
		cancel()
		env.hub.Wait()
	})
	return env
}

func testOptions() SessionOptions {
	return SessionOptions{
		AuthTimeout:      time.Minute,
		ActivityTimeout:  time.Minute,
		WatchdogInterval: 10 * time.Millisecond,
		WriteTimeout:     time.Second,
		OutboundBuffer:   64,
	}
}

func (e *testEnv) record(ev Event) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *testEnv) countEvents(kind EventKind) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, ev := range e.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// connect starts a session over a fresh fake connection.
func (e *testEnv) connect() *fakeConn {
	conn := newFakeConn()
	e.hub.Go(e.ctx, conn)
	return conn
}

// login connects and authenticates, consuming the auth confirmation and the own join notice.
func (e *testEnv) login(t *testing.T, login string) *fakeConn {
	t.Helper()

	conn := e.connect()
	conn.send("/auth " + login + " secret")
	nick := e.store.accounts[login].nick
	expectLine(t, conn, "/authok "+nick+" "+login)
	expectLine(t, conn, "/notify "+nick+" вошел в чат")
	return conn
}

// manualClock is a Clock that only moves when told to.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func fixedClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) get() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
