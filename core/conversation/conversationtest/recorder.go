// Package conversationtest provides a recording Sender and helpers for
// driving conversations in tests.
package conversationtest

import (
	"context"
	"sync"

	"github.com/m3rciful/bookingbot/core/conversation"
)

// Sent is a message captured by Recorder.
type Sent struct {
	ChatID int64
	Handle conversation.Handle
	Msg    conversation.Message
}

// Edit is an edit captured by Recorder.
type Edit struct {
	Handle conversation.Handle
	Text   string
}

// Recorder is an in-memory conversation.Sender.
type Recorder struct {
	mu      sync.Mutex
	next    int
	sent    []Sent
	edits   []Edit
	deleted []conversation.Handle

	// SendErr, when set, fails every Send.
	SendErr error
}

var _ conversation.Sender = (*Recorder)(nil)

func (r *Recorder) Send(_ context.Context, chatID int64, msg conversation.Message) (conversation.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SendErr != nil {
		return conversation.Handle{}, r.SendErr
	}
	r.next++
	h := conversation.Handle{ChatID: chatID, MessageID: r.next}
	r.sent = append(r.sent, Sent{ChatID: chatID, Handle: h, Msg: msg})
	return h, nil
}

func (r *Recorder) Edit(_ context.Context, h conversation.Handle, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, Edit{Handle: h, Text: text})
	return nil
}

func (r *Recorder) Delete(_ context.Context, h conversation.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, h)
	return nil
}

// Sent returns a copy of the delivered messages.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Texts returns the text of every delivered message.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, s := range r.sent {
		out = append(out, s.Msg.Text)
	}
	return out
}

// Last returns the most recent message, or the zero value.
func (r *Recorder) Last() conversation.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return conversation.Message{}
	}
	return r.sent[len(r.sent)-1].Msg
}

// Edits returns a copy of the recorded edits.
func (r *Recorder) Edits() []Edit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Edit(nil), r.edits...)
}

// Deleted returns a copy of the deleted handles.
func (r *Recorder) Deleted() []conversation.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]conversation.Handle(nil), r.deleted...)
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent, r.edits, r.deleted = nil, nil, nil
}

// Text builds a message update for user, using the user id as chat id.
func Text(user int64, text string) conversation.Update {
	return conversation.NewTextUpdate(user, user, text)
}

// Press builds a callback update for user.
func Press(user int64, unique, data string) conversation.Update {
	return conversation.Update{UserID: user, ChatID: user, Callback: unique, CallbackData: data}
}
