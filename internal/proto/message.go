// Package proto defines the line protocol spoken between chat clients and the server.
package proto

import "strings"

// Client → server command prefixes.
const (
	CmdAuth        = "/auth"
	CmdChangeNick  = "/chnick"
	CmdEnd         = "/end"
	CmdPrivate     = "/w"
	CmdList        = "/list"
	ServicePrefix  = "/"
	commandPadding = " "
)

// Server → client notice prefixes.
const (
	NoticeAuthOK          = "/authok"
	NoticeTimeoutAuth     = "/timeoutauth"
	NoticeTimeoutActivity = "/timeoutactivity"
	NoticeChangeNickOK    = "/chnickok"
	NoticeErrChangeNick   = "/errchnick"
	NoticeErrPrivate      = "/errorSPM"
	NoticeErrDB           = "/errdbcon"
	NoticeClients         = "/clients"
	NoticeNotify          = "/notify"
)

// Human-readable texts carried by notices.
const (
	TextBadCredentials    = "Неправильный логин или пароль"
	TextIdentityBusy      = "Пользователь с данным логином и паролем уже в чате"
	TextNoDatabase        = "Соединение с базой данных отсутствует"
	TextNickTaken         = "Пользователь с данным ником уже существует"
	TextRenameStoreError  = "Проблемы с базой данных при попытке смены ника"
	TextInvalidNick       = "Ник должен быть от 1 до 32 символов без пробелов"
	TextAlreadyAuthorized = "Вы уже авторизованы"
	TextFlood             = "Слишком много сообщений, подождите минуту"

	UsageAuth    = "Использование: /auth <логин> <пароль>"
	UsagePrivate = "Использование: /w <ник> <сообщение>"
	UsageNick    = "Использование: /chnick <новый ник>"
)

func notice(prefix string, fields ...string) string {
	if len(fields) == 0 {
		return prefix
	}
	return prefix + commandPadding + strings.Join(fields, commandPadding)
}

// AuthOK confirms a successful login.
func AuthOK(nick, login string) string { return notice(NoticeAuthOK, nick, login) }

// TimeoutAuth tells the peer it failed to authenticate in time.
func TimeoutAuth() string { return NoticeTimeoutAuth }

// TimeoutActivity tells the peer it was idle for too long.
func TimeoutActivity() string { return NoticeTimeoutActivity }

// ChangeNickOK confirms a rename to the requester.
func ChangeNickOK(newNick string) string { return notice(NoticeChangeNickOK, newNick) }

// ErrChangeNick reports a failed rename.
func ErrChangeNick(reason string) string { return notice(NoticeErrChangeNick, reason) }

// ErrPrivate reports a failed private message.
func ErrPrivate(reason string) string { return notice(NoticeErrPrivate, reason) }

// NoSuchRecipient is the ErrPrivate text for an unknown nick.
func NoSuchRecipient(nick string) string {
	return ErrPrivate("Пользователя " + nick + " нет в чате")
}

// ErrDB reports that the credential store is unreachable.
func ErrDB(reason string) string { return notice(NoticeErrDB, reason) }

// Clients lists online nicks. The trailing separator is kept even for an empty list.
func Clients(nicks []string) string {
	return NoticeClients + commandPadding + strings.Join(nicks, commandPadding)
}

// Notify is a join/leave/rename notice.
func Notify(text string) string { return notice(NoticeNotify, text) }

// Joined announces a new participant.
func Joined(nick string) string { return Notify(nick + " вошел в чат") }

// Left announces a departed participant.
func Left(nick string) string { return Notify(nick + " покинул чат") }

// Renamed announces a nick change.
func Renamed(oldNick, newNick string) string {
	return Notify("[" + oldNick + " сменил ник на " + newNick + "]")
}

// Chat formats a broadcast chat line.
func Chat(nick, body string) string { return "[" + nick + "]: " + body }

// PrivateFrom is the line the recipient of a private message sees.
func PrivateFrom(sender, body string) string {
	return "[Личное сообщение от " + sender + "]: " + body
}

// PrivateTo is the echo the sender of a private message sees.
func PrivateTo(recipient, body string) string {
	return "[Личное сообщение к " + recipient + "]: " + body
}

// IsNotice reports whether a server line is a notice rather than chat content.
func IsNotice(line string) bool {
	return strings.HasPrefix(line, ServicePrefix)
}

// NoticeKind returns the prefix of a notice line and the rest of it.
func NoticeKind(line string) (kind, rest string) {
	kind, rest, _ = strings.Cut(line, commandPadding)
	return kind, rest
}
