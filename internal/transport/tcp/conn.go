package tcp

import (
	"bufio"
	"context"
	"io"
	"net"
)

const initialLineBuffer = 4 << 10

// lineConn frames a net.Conn as newline-terminated lines. ScanLines strips an
// optional trailing '\r'. ReadLine is called by one goroutine at a time and so is WriteLine.
type lineConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
	remote  string
}

func newLineConn(conn net.Conn, maxLineBytes int) *lineConn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(initialLineBuffer, maxLineBytes)), maxLineBytes)

	return &lineConn{
		conn:    conn,
		scanner: scanner,
		remote:  conn.RemoteAddr().String(),
	}
}

// ReadLine returns the next line without its terminator. A line longer than the
// configured maximum fails with bufio.ErrTooLong.
func (c *lineConn) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return c.scanner.Text(), nil
}

// WriteLine writes line followed by '\n', bounded by the deadline of ctx.
// A ctx without deadline clears any previous one.
func (c *lineConn) WriteLine(ctx context.Context, line string) error {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

func (c *lineConn) Close() error {
	return c.conn.Close()
}

func (c *lineConn) RemoteAddr() string {
	return c.remote
}
