package logx

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{" warn ", zerolog.WarnLevel},
		{"Warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in, zerolog.InfoLevel); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	// must not panic
	l.Info("hello", String("k", "v"))
	l.With(Int("n", 1)).Error("boom", Err(nil))

	if Nop().IsZero() {
		t.Fatal("Nop logger is configured, not zero")
	}
}

func TestRenderLine(t *testing.T) {
	t.Parallel()

	got := renderLine([]byte(`{"level":"warn","time":"2026-05-01T12:00:00Z","caller":"x.go:1","message":"send failed","chat_id":"77","attempt":2}`))
	if !strings.HasPrefix(got, "[WARN] send failed") {
		t.Fatalf("prefix wrong: %q", got)
	}
	if !strings.Contains(got, "chat_id=77") || !strings.Contains(got, "attempt=2") {
		t.Fatalf("fields missing: %q", got)
	}
	if strings.Contains(got, "caller=") || strings.Contains(got, "time=") {
		t.Fatalf("noise fields should be skipped: %q", got)
	}

	// non-JSON input falls back to the raw line
	if got := renderLine([]byte("  plain text\n")); got != "plain text" {
		t.Fatalf("raw fallback = %q", got)
	}
}

func TestRenderLineFieldOrderIsStable(t *testing.T) {
	t.Parallel()
	line := []byte(`{"level":"error","message":"m","zeta":"1","alpha":"2","mid":"3"}`)

	want := "[ERROR] m\n- alpha=2\n- mid=3\n- zeta=1"
	if got := renderLine(line); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	// same input must render identically every time
	for i := 0; i < 10; i++ {
		if got := renderLine(line); got != want {
			t.Fatalf("render %d diverged: %q", i, got)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate("short", 100); got != "short" {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("a", 50)
	got := truncate(long, 20)
	if len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Fatalf("got %q (len %d)", got, len(got))
	}
	if got := truncate("abcdefgh", 4); got != "abcd" {
		t.Fatalf("tiny limit = %q", got)
	}
}

func TestOpsSinkFiltersBelowMinLevel(t *testing.T) {
	t.Parallel()
	o := newOpsSink(nil)
	o.setSender(opsFunc(func(chatID, text string) {}))
	o.mu.Lock()
	o.chatID = "99"
	o.mu.Unlock()

	if _, err := o.WriteLevel(zerolog.InfoLevel, []byte(`{"level":"info","message":"m"}`)); err != nil {
		t.Fatalf("WriteLevel error: %v", err)
	}
	select {
	case it := <-o.queue:
		t.Fatalf("info line should not be queued, got %+v", it)
	default:
	}

	if _, err := o.WriteLevel(zerolog.ErrorLevel, []byte(`{"level":"error","message":"down"}`)); err != nil {
		t.Fatalf("WriteLevel error: %v", err)
	}
	it := <-o.queue
	if it.chatID != "99" || !strings.Contains(it.text, "down") {
		t.Fatalf("queued %+v", it)
	}
}

type opsFunc func(chatID, text string)

func (f opsFunc) SendOps(_ context.Context, chatID, text string) error {
	f(chatID, text)
	return nil
}
