package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/store"
	"github.com/vovakirdan/linechat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/linechat-server/internal/transport/http"
	"github.com/vovakirdan/linechat-server/internal/transport/tcp"
)

// ErrShutdown is the close reason of sessions ended by a server shutdown.
var ErrShutdown = errors.New("server shutting down")

// App wires together core and transport layers.
type App struct {
	tcp             *tcp.Server
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	authService := NewAuthService(st, cfg)
	if cfg.SeedDemoUsers {
		n, err := authService.SeedDemoAccounts(ctx)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("seed demo accounts: %w", err)
		}
		if n > 0 {
			logger.Info().Int("accounts", n).Msg("demo accounts created")
		}
	}

	hub := core.NewHub(authService, authService, SessionOptions(cfg), logger, logEvents(logger))

	a := &App{
		tcp:             tcp.NewServer(cfg.Addr, hub, cfg.MaxLineBytes, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}
	if cfg.HTTPAddr != "" {
		a.server = transporthttp.NewServer(hub, authService, *cfg, logger)
	}
	return a, nil
}

// NewAuthService builds the credential service used by sessions and the HTTP API.
func NewAuthService(st store.UserStore, cfg *config.Config) *auth.Service {
	return auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	})
}

// SessionOptions maps configuration onto per-session settings.
func SessionOptions(cfg *config.Config) core.SessionOptions {
	return core.SessionOptions{
		AuthTimeout:       cfg.AuthTimeout,
		ActivityTimeout:   cfg.ActivityTimeout,
		WatchdogInterval:  cfg.WatchdogInterval,
		WriteTimeout:      cfg.WriteTimeout,
		OutboundBuffer:    cfg.OutboundBuffer,
		MaxLinesPerMinute: cfg.MaxLinesPerMinute,
	}
}

func logEvents(logger *zerolog.Logger) core.EventHandler {
	return func(ev core.Event) {
		switch ev.Kind {
		case core.EventJoined:
			logger.Info().Str("login", ev.Login).Str("nick", ev.Nick).Str("session_id", ev.SessionID).Msg("joined")
		case core.EventLeft:
			e := logger.Info()
			if ev.Reason != nil {
				e = e.AnErr("reason", ev.Reason)
			}
			e.Str("login", ev.Login).Str("nick", ev.Nick).Str("session_id", ev.SessionID).Msg("left")
		case core.EventRenamed:
			logger.Info().Str("login", ev.Login).Str("old_nick", ev.OldNick).Str("nick", ev.Nick).Msg("renamed")
		}
	}
}

// Run starts the TCP acceptor and the HTTP server and blocks until ctx is cancelled
// or one of them fails. Every session is closed and the store released before it returns.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.tcp.ListenAndServe(gctx)
	})

	if a.server != nil {
		a.server.BaseContext = func(net.Listener) context.Context { return gctx }
		g.Go(func() error {
			a.log.Info().Str("addr", a.server.Addr).Msg("http server started")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
			defer cancel()

			a.log.Info().Msg("shutting down http server")
			return a.server.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()

	a.hub.Registry().CloseAll(ErrShutdown)
	a.hub.Wait()
	return err
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
