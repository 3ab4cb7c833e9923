package conversation

import (
	"context"
)

// Button is a single inline keyboard button.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Audio describes a local audio file to upload.
type Audio struct {
	Path     string
	Title    string
	Duration int
	Caption  string
	// Remove deletes the file once the upload attempt finished.
	Remove bool
}

// Message is an outgoing reply produced by a handler.
type Message struct {
	Text     string
	Markdown bool
	Buttons  [][]Button
	Audio    *Audio
	// ReplaceStatus edits the interim status message instead of sending a new one.
	ReplaceStatus bool
}

// Handle identifies a delivered message so it can be edited or deleted.
type Handle struct {
	ChatID    int64
	MessageID int
}

// Sender delivers messages on behalf of the Router.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg Message) (Handle, error)
	Edit(ctx context.Context, h Handle, text string) error
	Delete(ctx context.Context, h Handle) error
}

// Reply is a shorthand for a plain text message.
func Reply(text string) Message {
	return Message{Text: text}
}

// ReplyMD is a shorthand for a Markdown message.
func ReplyMD(text string, buttons ...[]Button) Message {
	return Message{Text: text, Markdown: true, Buttons: buttons}
}
