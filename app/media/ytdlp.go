package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/bookingbot/core/logger"
)

// DefaultTimeout bounds a single yt-dlp invocation.
const DefaultTimeout = 5 * time.Minute

// Runner executes a command and returns its stdout and stderr.
type Runner func(ctx context.Context, name string, args ...string) (stdout []byte, stderr string, err error)

// YtDlpOptions configures YtDlp.
type YtDlpOptions struct {
	// Binary defaults to "yt-dlp" on PATH.
	Binary string
	// Dir receives downloads; defaults to "downloads".
	Dir       string
	MaxFileMB int
	Timeout   time.Duration
	Run       Runner
}

// YtDlp implements Fetcher by shelling out to yt-dlp.
type YtDlp struct {
	bin      string
	dir      string
	maxBytes int64
	timeout  time.Duration
	run      Runner
}

var _ Fetcher = (*YtDlp)(nil)

// NewYtDlp applies defaults to opts.
func NewYtDlp(opts YtDlpOptions) *YtDlp {
	y := &YtDlp{
		bin:     opts.Binary,
		dir:     opts.Dir,
		timeout: opts.Timeout,
		run:     opts.Run,
	}
	if y.bin == "" {
		y.bin = "yt-dlp"
	}
	if y.dir == "" {
		y.dir = "downloads"
	}
	maxMB := opts.MaxFileMB
	if maxMB <= 0 {
		maxMB = DefaultMaxFileMB
	}
	y.maxBytes = int64(maxMB) << 20
	if y.timeout <= 0 {
		y.timeout = DefaultTimeout
	}
	if y.run == nil {
		y.run = execRunner
	}
	return y
}

type probeInfo struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// Probe reads the track metadata without downloading.
func (y *YtDlp) Probe(ctx context.Context, rawURL string) (Metadata, error) {
	target, err := checkURL(rawURL)
	if err != nil {
		return Metadata{}, err
	}

	out, err := y.exec(ctx, "--dump-json", "--skip-download", "--no-playlist", "--no-warnings", target)
	if err != nil {
		return Metadata{}, err
	}
	var info probeInfo
	if err := json.Unmarshal(lastLine(out), &info); err != nil {
		return Metadata{}, fmt.Errorf("%w: decode metadata: %v", ErrFetchFailed, err)
	}
	return Metadata{Title: info.Title, Duration: int(info.Duration)}, nil
}

// Download extracts the audio track as mp3 and enforces the size ceiling.
// Oversized files are removed before ErrTooLarge is returned.
func (y *YtDlp) Download(ctx context.Context, rawURL, prefix string) (File, error) {
	target, err := checkURL(rawURL)
	if err != nil {
		return File{}, err
	}
	if err := os.MkdirAll(y.dir, 0o755); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	tmpl := filepath.Join(y.dir, sanitizePrefix(prefix)+"_%(id)s.%(ext)s")
	out, err := y.exec(ctx,
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--no-playlist",
		"--no-warnings",
		"--output", tmpl,
		"--print", "after_move:filepath",
		"--print", "after_move:duration",
		"--print", "after_move:title",
		target,
	)
	if err != nil {
		return File{}, err
	}

	lines := nonEmptyLines(out)
	if len(lines) < 3 {
		return File{}, fmt.Errorf("%w: unexpected yt-dlp output", ErrFetchFailed)
	}
	lines = lines[len(lines)-3:]
	f := File{Path: lines[0]}
	f.Title = lines[2]
	if d, err := strconv.ParseFloat(lines[1], 64); err == nil {
		f.Duration = int(d)
	}

	st, err := os.Stat(f.Path)
	if err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	f.Size = st.Size()
	if f.Size > y.maxBytes {
		if rmErr := os.Remove(f.Path); rmErr != nil {
			logger.SVCMedia.Warn("cleanup failed",
				slog.String("event", "media.download"),
				slog.String("path", f.Path),
				slog.String("err", rmErr.Error()),
			)
		}
		logger.SVCMedia.Info("file too large",
			slog.String("event", "media.download"),
			slog.String("status", "skip"),
			slog.String("title", f.Title),
			slog.Float64("size_mb", float64(f.Size)/(1<<20)),
		)
		return File{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, f.Size)
	}

	logger.SVCMedia.Info("downloaded",
		slog.String("event", "media.download"),
		slog.String("status", "ok"),
		slog.String("title", f.Title),
		slog.Float64("size_mb", float64(f.Size)/(1<<20)),
	)
	return f, nil
}

func (y *YtDlp) exec(ctx context.Context, args ...string) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}

	start := time.Now()
	out, stderr, err := y.run(ctx, y.bin, args...)
	if err == nil {
		return out, nil
	}

	kind := classify(stderr)
	if ctxErr := ctx.Err(); ctxErr != nil {
		kind = ErrFetchFailed
		stderr = ctxErr.Error()
	}
	logger.SVCMedia.Warn("yt-dlp failed",
		slog.String("event", "media.exec"),
		slog.String("err", logger.SanitizeLimit(firstLine(stderr, err), 256)),
		slog.String("err_code", Code(kind)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil, fmt.Errorf("%w: %s", kind, firstLine(stderr, err))
}

func classify(stderr string) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "private video"):
		return ErrPrivate
	case strings.Contains(msg, "sign in"),
		strings.Contains(msg, "confirm your age"),
		strings.Contains(msg, "age-restricted"):
		return ErrAgeRestricted
	case strings.Contains(msg, "copyright"):
		return ErrCopyright
	case strings.Contains(msg, "unsupported url"),
		strings.Contains(msg, "is not a valid url"):
		return ErrInvalidURL
	default:
		return ErrFetchFailed
	}
}

func checkURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u.String(), nil
}

func sanitizePrefix(prefix string) string {
	prefix = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, prefix)
	if prefix == "" {
		return "audio"
	}
	return prefix
}

func nonEmptyLines(out []byte) []string {
	var lines []string
	for _, l := range strings.Split(string(out), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func lastLine(out []byte) []byte {
	lines := nonEmptyLines(out)
	if len(lines) == 0 {
		return nil
	}
	return []byte(lines[len(lines)-1])
}

func firstLine(stderr string, err error) string {
	for _, l := range strings.Split(stderr, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	if err != nil {
		return err.Error()
	}
	return "unknown error"
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), stderr.String(), fmt.Errorf("%s exited with code %d", name, exitErr.ExitCode())
		}
		return stdout.Bytes(), stderr.String(), fmt.Errorf("run %s: %w", name, err)
	}
	return stdout.Bytes(), stderr.String(), nil
}
