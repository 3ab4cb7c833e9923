package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/m3rciful/bookingbot/core/conversation"
	"github.com/m3rciful/bookingbot/core/logger"
	"github.com/m3rciful/bookingbot/core/telegram/keyboard"
	"github.com/m3rciful/bookingbot/core/telegram/middleware"
	tgsender "github.com/m3rciful/bookingbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// BotAPI is the subset of *tele.Bot used to deliver conversation messages.
type BotAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Transport implements conversation.Sender on top of telebot. Calls go through
// the dispatcher so they are retried and stay ordered per chat.
type Transport struct {
	bot        BotAPI
	dispatcher *tgsender.Dispatcher
}

var _ conversation.Sender = (*Transport)(nil)

// NewTransport builds a Transport. A nil dispatcher sends inline.
func NewTransport(bot BotAPI, dispatcher *tgsender.Dispatcher) *Transport {
	return &Transport{bot: bot, dispatcher: dispatcher}
}

func (t *Transport) do(ctx context.Context, action, endpoint string, chatID int64, run func() error) error {
	if t.dispatcher == nil {
		return run()
	}
	return t.dispatcher.Do(ctx, action, endpoint, chatID, run)
}

// Send delivers a text or audio message.
func (t *Transport) Send(ctx context.Context, chatID int64, msg conversation.Message) (conversation.Handle, error) {
	if t.bot == nil {
		return conversation.Handle{}, errors.New("telegram: transport without bot")
	}
	opts := &tele.SendOptions{ReplyMarkup: keyboard.InlineButtonsRows(msg.Buttons...)}
	if msg.Markdown {
		opts.ParseMode = tele.ModeMarkdown
	}

	var (
		what     interface{} = msg.Text
		action               = "send.text"
		endpoint             = "sendMessage"
	)
	if msg.Audio != nil {
		what = &tele.Audio{
			File:     tele.FromDisk(msg.Audio.Path),
			Title:    msg.Audio.Title,
			Duration: msg.Audio.Duration,
			Caption:  msg.Audio.Caption,
		}
		action, endpoint = "send.audio", "sendAudio"
		if msg.Audio.Remove {
			defer removeFile(ctx, msg.Audio.Path)
		}
	}

	var sent *tele.Message
	err := t.do(ctx, action, endpoint, chatID, func() error {
		m, err := t.bot.Send(tele.ChatID(chatID), what, opts)
		if err != nil {
			return err
		}
		sent = m
		return nil
	})
	if err != nil {
		return conversation.Handle{}, fmt.Errorf("telegram: %s: %w", action, err)
	}
	middleware.CountMessage(ctx, opts.ReplyMarkup != nil)

	h := conversation.Handle{ChatID: chatID}
	if sent != nil {
		h.MessageID = sent.ID
	}
	return h, nil
}

// Edit replaces the text of a delivered message.
func (t *Transport) Edit(ctx context.Context, h conversation.Handle, text string) error {
	err := t.do(ctx, "edit.text", "editMessageText", h.ChatID, func() error {
		_, err := t.bot.Edit(stored(h), text)
		return err
	})
	if err != nil {
		return fmt.Errorf("telegram: edit: %w", err)
	}
	middleware.CountMessage(ctx, false)
	return nil
}

// Delete removes a delivered message.
func (t *Transport) Delete(ctx context.Context, h conversation.Handle) error {
	err := t.do(ctx, "delete", "deleteMessage", h.ChatID, func() error {
		return t.bot.Delete(stored(h))
	})
	if err != nil {
		return fmt.Errorf("telegram: delete: %w", err)
	}
	return nil
}

func stored(h conversation.Handle) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(h.MessageID), ChatID: h.ChatID}
}

func removeFile(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn(ctx, "tg", "file.remove_failed",
			slog.String("path", path),
			slog.String("err", err.Error()),
		)
	}
}
