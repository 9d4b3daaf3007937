package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/linechat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	login := flag.String("login", "David", "login to authenticate with")
	password := flag.String("password", "qazwsx", "password for login")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(line string) error {
		if err := conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		return nil
	}
	// expect reads lines until one starts with prefix.
	expect := func(prefix string) (string, error) {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return "", fmt.Errorf("read: %w", err)
			}
			line := string(data)
			fmt.Printf("Received: %s\n", line)
			if strings.HasPrefix(line, prefix) {
				return line, nil
			}
		}
	}

	if err := send(proto.CmdAuth + " " + *login + " " + *password); err != nil {
		return err
	}
	authLine, err := expect(proto.NoticeAuthOK)
	if err != nil {
		return err
	}
	_, rest := proto.NoticeKind(authLine)
	nick, _, _ := strings.Cut(rest, " ")

	if err := send(*text); err != nil {
		return err
	}
	if _, err := expect(proto.Chat(nick, *text)); err != nil {
		return err
	}

	if err := send(proto.CmdList); err != nil {
		return err
	}
	if _, err := expect(proto.NoticeClients); err != nil {
		return err
	}

	if err := send(proto.CmdEnd); err != nil {
		return err
	}
	_, _, err = conn.Read(ctx)
	if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("server did not close the session after %s", proto.CmdEnd)
		}
		return fmt.Errorf("unexpected close: %w", err)
	}

	fmt.Println("smoke test passed")
	return nil
}
