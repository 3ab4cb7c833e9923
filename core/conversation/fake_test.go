package conversation

import (
	"context"
	"errors"
	"sync"
)

type sentMessage struct {
	ChatID int64
	Msg    Message
}

type fakeSender struct {
	mu      sync.Mutex
	next    int
	sent    []sentMessage
	edits   []string
	deleted []Handle
	failOn  string
}

var errSendFailed = errors.New("send failed")

func (f *fakeSender) Send(_ context.Context, chatID int64, msg Message) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && msg.Text == f.failOn {
		return Handle{}, errSendFailed
	}
	f.next++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Msg: msg})
	return Handle{ChatID: chatID, MessageID: f.next}, nil
}

func (f *fakeSender) Edit(_ context.Context, _ Handle, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeSender) Delete(_ context.Context, h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, h)
	return nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Msg.Text)
	}
	return out
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.edits = nil
	f.deleted = nil
}

type commandMap map[string]CommandFunc

func (m commandMap) Command(name string) (CommandFunc, bool) {
	h, ok := m[name]
	return h, ok
}
