package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureLine writes one event through a fresh handler and returns the line.
func captureLine(t *testing.T, format logFormat, ctx context.Context, component, event string, attrs ...slog.Attr) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelDebug,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	LogEvent(ctx, slog.New(handler).With("component", component), slog.LevelInfo, event, attrs...)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	return line
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	line := captureLine(t, formatKV, ctx, "app", "test.event",
		slog.String("status", "ok"),
		slog.String("cause", "unit"),
	)
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	ctx := WithRID(Background(), "rid-json")
	ctx = WithUpdateMeta(ctx, 11, 22, 33)

	line := captureLine(t, formatJSON, ctx, "service.appointments", "appointment.create",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
		slog.String("err_code", "slot_taken"),
	)
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"INFO"`, `"component":"service.appointments"`, `"event":"appointment.create"`, `"status":"fail"`, `"rid":"rid-json"`, `"err":"boom"`, `"err_code":"slot_taken"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	rawRID := "123:456:789"
	ctx := WithRID(Background(), rawRID)

	kv := captureLine(t, formatKV, ctx, "app", "rid.test")
	if !strings.Contains(kv, "rid=3f.co.lx") {
		t.Fatalf("expected compact rid, got %s", kv)
	}
	if strings.Contains(kv, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", kv)
	}

	js := captureLine(t, formatJSON, ctx, "app", "rid.test")
	if !strings.Contains(js, `"rid":"3f.co.lx"`) || !strings.Contains(js, `"rid_full":"`+rawRID+`"`) {
		t.Fatalf("expected compact rid and rid_full in JSON, got %s", js)
	}
	if !strings.Contains(js, `"ts_unix_nano"`) {
		t.Fatalf("expected ts_unix_nano in JSON output, got %s", js)
	}
}

func TestStructuredHandlerFlowFromContext(t *testing.T) {
	ctx := WithFlow(Background(), "booking", "date")
	line := captureLine(t, formatKV, ctx, "conversation", "fsm.transition",
		slog.String("to", "time"),
	)
	for _, want := range []string{"flow=booking", "state=date", "to=time"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
	if strings.Index(line, "flow=") > strings.Index(line, "to=") {
		t.Fatalf("flow should precede to in %s", line)
	}

	// explicit attrs win over context
	line = captureLine(t, formatKV, ctx, "conversation", "session.restart",
		slog.String("flow", "download"),
	)
	if !strings.Contains(line, "flow=download") || strings.Contains(line, "flow=booking") {
		t.Fatalf("explicit flow should override context, got %s", line)
	}
}

func TestStructuredHandlerDurationKeys(t *testing.T) {
	line := captureLine(t, formatKV, Background(), "service.media", "download.done",
		slog.Duration("duration", 1500*time.Microsecond),
		slog.Duration("idle", 2*time.Second),
		slog.Any("backoff_ms", 250*time.Millisecond),
	)
	for _, want := range []string{"duration_ms=2", "idle_ms=2000", "backoff_ms=250"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
}

func TestStructuredHandlerDropsUnknownOutcome(t *testing.T) {
	line := captureLine(t, formatKV, Background(), "conversation", "dispatch",
		slog.String("outcome", "Cancelled"),
		slog.String("cache", "bogus"),
	)
	if !strings.Contains(line, "outcome=cancelled") {
		t.Fatalf("expected normalized outcome in %s", line)
	}
	if strings.Contains(line, "cache=") {
		t.Fatalf("invalid cache value should be dropped: %s", line)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("ab\x00c\u200bd\te\x7f", 10); got != "abcd\te" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
	if got := SanitizeLimit("приветствие", 6); got != "привет" {
		t.Fatalf("SanitizeLimit runes = %q", got)
	}
	if got := SanitizeLimit("x", 0); got != "" {
		t.Fatalf("SanitizeLimit zero = %q", got)
	}
}

func TestCompactRIDPassthrough(t *testing.T) {
	for _, rid := range []string{"", "abc", "1:2", "1:x:3"} {
		if got := CompactRID(rid); got != rid {
			t.Fatalf("CompactRID(%q) = %q", rid, got)
		}
	}
	if got := CompactRID("-36:0:35"); got != "-10.0.z" {
		t.Fatalf("CompactRID negative = %q", got)
	}
}

func TestAsyncWriterRejectsWritesAfterClose(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 16)
	if err := aw.Write([]byte("one\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := aw.Write([]byte("two\n")); err != errWriterClosed {
		t.Fatalf("write after close = %v, want errWriterClosed", err)
	}
	if err := aw.Flush(); err != errWriterClosed {
		t.Fatalf("flush after close = %v, want errWriterClosed", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if buf.String() != "one\n" {
		t.Fatalf("unexpected sink content %q", buf.String())
	}
}

func TestParseRatioSpec(t *testing.T) {
	cases := map[string][2]int{
		"":     {0, 0},
		"1/10": {1, 10},
		"20":   {1, 20},
		"0":    {0, 0},
		"x/y":  {0, 0},
	}
	for spec, want := range cases {
		num, den := parseRatioSpec(spec)
		if num != want[0] || den != want[1] {
			t.Fatalf("parseRatioSpec(%q) = %d/%d, want %d/%d", spec, num, den, want[0], want[1])
		}
	}
}

func TestRatioSamplerAllowsNumeratorPerWindow(t *testing.T) {
	s := newRatioSampler(2, 5)
	allowed := 0
	for i := 0; i < 10; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 4 {
		t.Fatalf("allowed %d of 10, want 4", allowed)
	}
	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("disabled sampler should allow everything")
	}
}
