package http

import (
	"context"
	"database/sql"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/store/sqlite"
)

const testJWTSecret = "test-secret"

// createTestAuthService creates an auth service over an in-memory SQLite store.
func createTestAuthService(t *testing.T) *auth.Service {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(sqlite.Schema)
		return err
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(testJWTSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})
}

type testServer struct {
	*httptest.Server
	hub  *core.Hub
	auth *auth.Service
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	svc := createTestAuthService(t)
	hub := core.NewHub(svc, svc, core.SessionOptions{WatchdogInterval: 10 * time.Millisecond}, nil, nil)

	cfg := config.Default()
	cfg.HTTPAddr = ":0"
	cfg.MaxLineBytes = 1024

	ctx, cancel := context.WithCancel(context.Background())
	ts := httptest.NewUnstartedServer(NewServer(hub, svc, cfg, nil).Handler)
	ts.Config.BaseContext = func(_ net.Listener) context.Context { return ctx }
	ts.Start()

	t.Cleanup(func() {
		cancel()
		ts.Close()
		hub.Wait()
	})
	return &testServer{Server: ts, hub: hub, auth: svc}
}
