package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/linechat-server/internal/history"
	"github.com/vovakirdan/linechat-server/internal/log"
	"github.com/vovakirdan/linechat-server/internal/proto"
)

var (
	addr       string
	login      string
	password   string
	historyDir string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "chatcli",
	Short:         "Terminal client for the line chat",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "chatcli: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&addr, "addr", "localhost:8081", "chat server address")
	flags.StringVar(&login, "login", "", "log in right after connecting (requires --password)")
	flags.StringVar(&password, "password", "", "password for --login")
	flags.StringVar(&historyDir, "history-dir", "histories", "directory for per-login message history")
	flags.BoolVar(&verbose, "verbose", false, "log connection details")
}

func run(cmd *cobra.Command, _ []string) error {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := log.NewWithWriter(os.Stderr, level, "console")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	logger.Debug().Str("addr", addr).Msg("connected")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connected to %s. Log in with /auth <login> <password>, leave with /end.\n", addr)

	if login != "" {
		if _, err := fmt.Fprintf(conn, "%s %s %s\n", proto.CmdAuth, login, password); err != nil {
			return fmt.Errorf("send credentials: %w", err)
		}
	}

	readDone := make(chan error, 1)
	go func() {
		readDone <- readLoop(conn, out, logger)
	}()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	writeDone := make(chan error, 1)
	go func() {
		writeDone <- writeLoop(conn, cmd.InOrStdin())
	}()

	select {
	case err = <-readDone:
	case err = <-writeDone:
		if err == nil {
			// Let the server confirm /end or flush what is left.
			err = <-readDone
		}
	case <-ctx.Done():
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		fmt.Fprintln(out, "Disconnected.")
		return nil
	}
	return err
}

// readLoop prints server lines and records chat content once the login is known.
func readLoop(conn net.Conn, out io.Writer, logger *zerolog.Logger) error {
	var hist *history.File
	defer func() {
		if hist != nil {
			_ = hist.Close()
		}
	}()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		r := render(line)
		if kind, rest := proto.NoticeKind(line); kind == proto.NoticeAuthOK && hist == nil {
			_, account, _ := strings.Cut(rest, " ")
			hist, err = history.Open(historyDir, account, history.DefaultLimit)
			if err != nil {
				logger.Warn().Err(err).Msg("history unavailable")
			} else {
				for _, old := range hist.Last() {
					fmt.Fprintln(out, old)
				}
			}
		}

		fmt.Fprintln(out, r.text)
		if r.record && hist != nil {
			if err := hist.Append(line); err != nil {
				logger.Warn().Err(err).Msg("write history")
			}
		}
	}
}

// writeLoop forwards stdin lines to the server and returns after /end or end of input.
func writeLoop(conn net.Conn, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := io.WriteString(conn, line+"\n"); err != nil {
			return err
		}
		if strings.TrimSpace(line) == proto.CmdEnd {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	_, err := io.WriteString(conn, proto.CmdEnd+"\n")
	return err
}
