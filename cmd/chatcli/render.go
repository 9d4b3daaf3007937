package main

import (
	"strings"

	"github.com/vovakirdan/linechat-server/internal/proto"
)

// rendered is a server line prepared for the terminal.
type rendered struct {
	text   string
	record bool // chat content goes to the history file
}

// render turns a server line into what the user sees. Notices are shown without their
// prefix; plain chat content is returned unchanged and marked for the history file.
func render(line string) rendered {
	if !proto.IsNotice(line) {
		return rendered{text: line, record: true}
	}

	kind, rest := proto.NoticeKind(line)
	switch kind {
	case proto.NoticeAuthOK:
		nick, _, _ := strings.Cut(rest, " ")
		return rendered{text: "Вы вошли в чат. Ваш ник " + nick}
	case proto.NoticeChangeNickOK:
		return rendered{text: "Вы успешно изменили ник на " + rest}
	case proto.NoticeClients:
		return rendered{text: "[Список онлайн пользователей]: " + rest}
	case proto.NoticeNotify:
		return rendered{text: rest}
	case proto.NoticeErrPrivate, proto.NoticeErrChangeNick, proto.NoticeErrDB:
		return rendered{text: "Ошибка: " + rest}
	case proto.NoticeTimeoutAuth:
		return rendered{text: "Время на авторизацию истекло"}
	case proto.NoticeTimeoutActivity:
		return rendered{text: "Соединение закрыто из-за отсутствия активности"}
	default:
		return rendered{text: line}
	}
}
