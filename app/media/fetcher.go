// Package media fetches audio tracks from video pages.
package media

import (
	"context"
	"errors"
)

// Failure kinds. Fetcher errors wrap exactly one of them.
var (
	ErrAgeRestricted = errors.New("media: age restricted")
	ErrPrivate       = errors.New("media: private video")
	ErrCopyright     = errors.New("media: blocked by copyright")
	ErrTooLarge      = errors.New("media: file too large")
	ErrInvalidURL    = errors.New("media: invalid url")
	ErrFetchFailed   = errors.New("media: fetch failed")
)

// DefaultMaxFileMB is the Telegram upload ceiling for bots.
const DefaultMaxFileMB = 50

// Metadata describes a remote track.
type Metadata struct {
	Title string
	// Duration in whole seconds.
	Duration int
}

// File is a downloaded track on local disk. The caller owns Path.
type File struct {
	Path string
	Size int64
	Metadata
}

// Fetcher resolves and downloads audio.
type Fetcher interface {
	Probe(ctx context.Context, url string) (Metadata, error)
	// Download stores the audio as mp3; prefix keeps files of different
	// chats apart.
	Download(ctx context.Context, url, prefix string) (File, error)
}

// Kind returns the failure kind wrapped by err, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrAgeRestricted, ErrPrivate, ErrCopyright, ErrTooLarge, ErrInvalidURL, ErrFetchFailed} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Code is a stable identifier of the failure kind for logs.
func Code(err error) string {
	switch Kind(err) {
	case ErrAgeRestricted:
		return "AGE_RESTRICTED"
	case ErrPrivate:
		return "PRIVATE"
	case ErrCopyright:
		return "COPYRIGHT"
	case ErrTooLarge:
		return "TOO_LARGE"
	case ErrInvalidURL:
		return "INVALID_URL"
	case ErrFetchFailed:
		return "FETCH_FAILED"
	}
	return ""
}
