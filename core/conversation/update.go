// Package conversation drives multi-step dialogues for chat bots.
//
// A Flow is an immutable table of states and routes. The Router keeps one
// session per (user, flow), serializes updates per user and performs the
// side effects requested by handlers through a Sender.
package conversation

import (
	"strings"
)

// Kind classifies an inbound update.
type Kind string

const (
	KindText     Kind = "text"
	KindCommand  Kind = "command"
	KindCallback Kind = "callback"
)

// Update is the transport-neutral view of a single inbound chat update.
type Update struct {
	ID        int
	UserID    int64
	ChatID    int64
	UserName  string
	FirstName string

	Text    string
	Command string
	Args    []string

	Callback     string
	CallbackData string
}

// Kind reports how the update should be matched.
func (u Update) Kind() Kind {
	switch {
	case u.Callback != "":
		return KindCallback
	case u.Command != "":
		return KindCommand
	default:
		return KindText
	}
}

// DisplayName returns the name used to greet the user.
func (u Update) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.UserName
}

// IsCommand reports whether the update is the given slash command.
func (u Update) IsCommand(name string) bool {
	return u.Command != "" && u.Command == NormalizeCommand(name)
}

// NewTextUpdate builds an update from a raw message text, splitting out the
// command and its arguments when the text starts with a slash.
func NewTextUpdate(userID, chatID int64, text string) Update {
	u := Update{UserID: userID, ChatID: chatID, Text: text}
	if cmd, args, ok := ParseCommand(text); ok {
		u.Command = cmd
		u.Args = args
	}
	return u
}

// ParseCommand splits "/name@bot arg1 arg2" into "/name" and its arguments.
func ParseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name := fields[0]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if len(name) < 2 {
		return "", nil, false
	}
	var args []string
	if len(fields) > 1 {
		args = append(args, fields[1:]...)
	}
	return strings.ToLower(name), args, true
}

// NormalizeCommand lowercases a command name and ensures the slash prefix.
func NormalizeCommand(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return name
}
