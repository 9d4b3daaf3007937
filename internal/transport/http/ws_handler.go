package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/core"
)

var errBinaryMessage = errors.New("binary messages are not supported")

var _ core.Conn = (*wsConn)(nil)

// WSHandler upgrades HTTP connections and runs a chat session over each of them.
type WSHandler struct {
	hub          *core.Hub
	maxLineBytes int
	log          *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, maxLineBytes int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, maxLineBytes: maxLineBytes, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.maxLineBytes > 0 {
		conn.SetReadLimit(int64(h.maxLineBytes))
	}

	// The request context follows the server's base context, so shutdown reaches the session.
	err = h.hub.Serve(r.Context(), newWSConn(conn, r.RemoteAddr))
	if err != nil && !errors.Is(err, core.ErrPeerDisconnected) {
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("ws session ended")
	}
}

// wsConn adapts a WebSocket to core.Conn: every text message carries one line.
type wsConn struct {
	conn   *websocket.Conn
	remote string
}

func newWSConn(conn *websocket.Conn, remote string) *wsConn {
	return &wsConn{conn: conn, remote: remote}
}

// ReadLine blocks until the next message. It is unblocked by Close, not by a context,
// so queued notices are still written before the socket goes away.
func (c *wsConn) ReadLine() (string, error) {
	typ, data, err := c.conn.Read(context.Background())
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return "", io.EOF
		}
		return "", err
	}
	if typ != websocket.MessageText {
		return "", errBinaryMessage
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (c *wsConn) WriteLine(ctx context.Context, line string) error {
	if err := c.conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
		return fmt.Errorf("ws write: %w", err)
	}
	return nil
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}
