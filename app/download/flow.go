// Package download implements the /download dialogue that turns a video
// link into an audio message.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/bookingbot/app/media"
	"github.com/m3rciful/bookingbot/core/conversation"
	"github.com/m3rciful/bookingbot/core/logger"
	"github.com/m3rciful/bookingbot/core/telegram/format"
)

// FlowName identifies download sessions.
const FlowName = "download"

// StateAwaitingLink waits for the video URL.
const StateAwaitingLink conversation.State = "awaiting_link"

const component = "download"

const (
	msgAskLink = "🎵 Please send me a YouTube link to download the music.\n" +
		"Make sure it's a valid YouTube URL."
	msgProcessing    = "⏳ Processing your request... Please wait."
	msgCancelled     = "❌ Download cancelled. Send /download to start a new download."
	msgAgeRestricted = "❌ Sorry, this video is age-restricted and cannot be downloaded."
	msgPrivate       = "❌ Sorry, this video is private and cannot be accessed."
	msgCopyright     = "❌ Sorry, this video is not available due to copyright restrictions."
	msgInvalidURL    = "❌ An error occurred while processing your request.\n" +
		"Please make sure you've sent a valid YouTube URL."
	msgFailed = "❌ Sorry, there was an error downloading this video. " +
		"Please try another URL."
)

// Options configures the download flow.
type Options struct {
	Fetcher media.Fetcher
	// MaxFileMB is only used in the size error text.
	MaxFileMB int
}

type flow struct {
	fetcher media.Fetcher
	maxMB   int
}

// NewFlow builds the /download conversation.
func NewFlow(opts Options) (*conversation.Flow, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("download: nil fetcher")
	}
	f := &flow{fetcher: opts.Fetcher, maxMB: opts.MaxFileMB}
	if f.maxMB <= 0 {
		f.maxMB = media.DefaultMaxFileMB
	}
	return conversation.New(conversation.Definition{
		Name:        FlowName,
		Entry:       "/download",
		Description: "Download music from YouTube",
		OnEntry: func(context.Context, conversation.Input) conversation.Result {
			return conversation.Stay(StateAwaitingLink, conversation.Reply(msgAskLink))
		},
		States: map[conversation.State][]conversation.Route{
			StateAwaitingLink: {conversation.On(conversation.Text(), f.onLink)},
		},
		Fallbacks: []conversation.Route{
			conversation.On(conversation.CommandNoArgs("cancel"), func(context.Context, conversation.Input) conversation.Result {
				return conversation.Finish(conversation.Reply(msgCancelled))
			}),
		},
	})
}

func (f *flow) onLink(ctx context.Context, in conversation.Input) conversation.Result {
	link := strings.TrimSpace(in.Update.Text)
	in.Status.Update(msgProcessing)

	md, err := f.fetcher.Probe(ctx, link)
	if err != nil {
		return f.fail(ctx, link, err)
	}
	in.Status.Update(fmt.Sprintf("📥 Downloading: %s\nPlease wait...", md.Title))

	file, err := f.fetcher.Download(ctx, link, strconv.FormatInt(in.Update.ChatID, 10))
	if err != nil {
		return f.fail(ctx, link, err)
	}
	if file.Title == "" {
		file.Title = md.Title
	}
	if file.Duration == 0 {
		file.Duration = md.Duration
	}

	logger.Info(ctx, component, "download.ready",
		slog.String("url", link),
		slog.String("title", file.Title),
		slog.Float64("size_mb", float64(file.Size)/(1<<20)),
	)
	return conversation.Finish(conversation.Message{
		Markdown: true,
		Audio: &conversation.Audio{
			Path:     file.Path,
			Title:    file.Title,
			Duration: file.Duration,
			Caption:  "🎵 " + format.Markdown(file.Title),
			Remove:   true,
		},
	})
}

func (f *flow) fail(ctx context.Context, link string, err error) conversation.Result {
	logger.Warn(ctx, component, "download.failed",
		slog.String("url", link),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.String("err_code", media.Code(err)),
	)
	return conversation.Finish(conversation.Message{Text: f.failureText(err), ReplaceStatus: true})
}

func (f *flow) failureText(err error) string {
	switch media.Kind(err) {
	case media.ErrTooLarge:
		return fmt.Sprintf("❌ Sorry, the audio file is too large (>%dMB). Please try a shorter video.", f.maxMB)
	case media.ErrAgeRestricted:
		return msgAgeRestricted
	case media.ErrPrivate:
		return msgPrivate
	case media.ErrCopyright:
		return msgCopyright
	case media.ErrInvalidURL:
		return msgInvalidURL
	default:
		return msgFailed
	}
}
