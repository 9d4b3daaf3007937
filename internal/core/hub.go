package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/utils"
)

// Hub creates sessions for accepted connections and owns the shared Registry.
// Transports hand every new connection to Serve.
type Hub struct {
	registry *Registry
	verifier Verifier
	renamer  NickRenamer
	opts     SessionOptions
	log      *zerolog.Logger

	wg sync.WaitGroup
}

// NewHub creates a new chat hub instance. onEvent receives join/leave/rename events and may be nil.
func NewHub(verifier Verifier, renamer NickRenamer, opts SessionOptions, logger *zerolog.Logger, onEvent EventHandler) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	defaults := DefaultSessionOptions()
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = defaults.AuthTimeout
	}
	if opts.ActivityTimeout <= 0 {
		opts.ActivityTimeout = defaults.ActivityTimeout
	}
	if opts.WatchdogInterval <= 0 {
		opts.WatchdogInterval = defaults.WatchdogInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.OutboundBuffer <= 0 {
		opts.OutboundBuffer = defaults.OutboundBuffer
	}

	return &Hub{
		registry: NewRegistry(logger, onEvent),
		verifier: verifier,
		renamer:  renamer,
		opts:     opts,
		log:      logger,
	}
}

// Registry exposes the registry of active sessions.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Online returns the sorted nicks of all active sessions.
func (h *Hub) Online() []string {
	return h.registry.ListOnline(nil)
}

// Serve runs a session over conn until it closes. Cancelling ctx closes the session.
// Like Go, the session is tracked for Wait.
func (h *Hub) Serve(ctx context.Context, conn Conn) error {
	h.wg.Add(1)
	defer h.wg.Done()
	return h.NewSession(conn).Run(ctx)
}

// NewSession builds a session for conn without starting it.
func (h *Hub) NewSession(conn Conn) *Session {
	return newSession(utils.NewID(), conn, h)
}

// Go runs a session for conn in the background and tracks it for Wait.
func (h *Hub) Go(ctx context.Context, conn Conn) {
	s := h.NewSession(conn)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := s.Run(ctx); err != nil {
			h.log.Debug().Err(err).Str("session_id", s.ID()).Msg("session ended")
		}
	}()
}

// Wait blocks until every session started with Go or Serve has finished.
func (h *Hub) Wait() {
	h.wg.Wait()
}
