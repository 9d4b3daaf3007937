package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/vovakirdan/linechat-server/internal/proto"
)

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandPlainMessage is free text broadcast to everyone.
	CommandPlainMessage CommandKind = iota
	// CommandAuthenticate is a login attempt.
	CommandAuthenticate
	// CommandChangeNick renames the sender.
	CommandChangeNick
	// CommandSendPrivate delivers a message to one nick.
	CommandSendPrivate
	// CommandListOnline asks for the presence list.
	CommandListOnline
	// CommandEndSession ends the connection.
	CommandEndSession
)

func (k CommandKind) String() string {
	switch k {
	case CommandPlainMessage:
		return "plain"
	case CommandAuthenticate:
		return "auth"
	case CommandChangeNick:
		return "chnick"
	case CommandSendPrivate:
		return "private"
	case CommandListOnline:
		return "list"
	case CommandEndSession:
		return "end"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command represents an action requested by a client.
// Only the fields relevant to Kind are set.
type Command struct {
	Kind     CommandKind
	Login    string
	Password string
	Nick     string // new nick for ChangeNick, recipient for SendPrivate
	Body     string
}

// Parse turns one inbound line into a Command. It keeps no state.
// A recognised command with missing arguments yields ErrMalformedCommand
// together with a Command whose Kind names the command.
func Parse(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, proto.ServicePrefix) {
		return Command{Kind: CommandPlainMessage, Body: line}, nil
	}

	head, rest := splitHead(trimmed)
	switch head {
	case proto.CmdAuth:
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			return Command{Kind: CommandAuthenticate}, ErrMalformedCommand
		}
		return Command{Kind: CommandAuthenticate, Login: fields[0], Password: fields[1]}, nil

	case proto.CmdChangeNick:
		fields := strings.Fields(rest)
		if len(fields) != 1 {
			return Command{Kind: CommandChangeNick}, ErrMalformedCommand
		}
		return Command{Kind: CommandChangeNick, Nick: fields[0]}, nil

	case proto.CmdPrivate:
		nick, body := splitHead(rest)
		if nick == "" || strings.TrimSpace(body) == "" {
			return Command{Kind: CommandSendPrivate}, ErrMalformedCommand
		}
		return Command{Kind: CommandSendPrivate, Nick: nick, Body: body}, nil

	case proto.CmdList:
		return Command{Kind: CommandListOnline}, nil

	case proto.CmdEnd:
		return Command{Kind: CommandEndSession}, nil

	default:
		return Command{Kind: CommandPlainMessage, Body: line}, nil
	}
}

// splitHead cuts s at the first run of whitespace.
func splitHead(s string) (head, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	idx := strings.IndexFunc(s, unicode.IsSpace)
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimLeftFunc(s[idx:], unicode.IsSpace)
}
