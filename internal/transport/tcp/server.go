// Package tcp accepts plain TCP chat connections and hands them to the core hub.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/core"
)

var _ core.Conn = (*lineConn)(nil)

const maxAcceptBackoff = time.Second

// Server is the connection acceptor for the line protocol.
type Server struct {
	addr         string
	hub          *core.Hub
	maxLineBytes int
	log          *zerolog.Logger
}

// NewServer builds an acceptor for addr. Lines longer than maxLineBytes end the session.
func NewServer(addr string, hub *core.Hub, maxLineBytes int, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{
		addr:         addr,
		hub:          hub,
		maxLineBytes: maxLineBytes,
		log:          logger,
	}
}

// ListenAndServe listens on the configured address and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled, starting one session per
// connection. Sessions share ctx, so cancelling it also closes them. Serve closes ln
// and returns nil after cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("tcp listener started")

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info().Msg("tcp listener stopped")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}

			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("accept failed")
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		backoff = 0

		s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")
		s.hub.Go(ctx, newLineConn(conn, s.maxLineBytes))
	}
}
