package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	l := slog.New(h)
	return NewSlogLogger(l), &buf
}

func TestSlogLogger_Levels_WriteExpectedOutput(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "sector", 1)
	log.Info(ctx, "inf", "sector", 2)
	log.Warn(ctx, "wrn", "sector", 3)
	log.Error(ctx, "err", "sector", 4)

	out := buf.String()

	tests := []struct {
		level string
		msg   string
		val   string
	}{
		{"DEBUG", "dbg", "1"},
		{"INFO", "inf", "2"},
		{"WARN", "wrn", "3"},
		{"ERROR", "err", "4"},
	}

	for _, tc := range tests {
		if !strings.Contains(out, "level="+tc.level) {
			t.Fatalf("expected line with level=%s in output:\n%s", tc.level, out)
		}
		if !strings.Contains(out, "msg="+tc.msg) {
			t.Fatalf("expected line with msg=%q in output:\n%s", tc.msg, out)
		}
		if !strings.Contains(out, "sector="+tc.val) {
			t.Fatalf("expected attribute sector=%s in output:\n%s", tc.val, out)
		}
	}
}

func TestSlogLogger_With_AddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("run_id", "abc", "target", 25155310).Info(context.Background(), "hello", "k", "v")

	out := buf.String()
	for _, s := range []string{"level=INFO", "msg=hello", "run_id=abc", "target=25155310", "k=v"} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected %q in output, got:\n%s", s, out)
		}
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "json", "info")
	require.NoError(t, err)

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "shown", "sector", 5)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, "shown", rec["msg"])
	require.Equal(t, float64(5), rec["sector"])
}

func TestNew_AutoFallsBackToJSONForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "auto", "debug")
	require.NoError(t, err)

	log.Info(context.Background(), "x")
	require.True(t, strings.HasPrefix(buf.String(), "{"), "expected JSON output, got %q", buf.String())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "xml", "info")
	require.Error(t, err)

	_, err = New(&bytes.Buffer{}, "text", "loud")
	require.Error(t, err)
}

func TestDiscard_DoesNotPanic(t *testing.T) {
	log := Discard()
	ctx := context.TODO()
	log.Info(ctx, "ctx-ok")
	log.With("a", 1).Warn(ctx, "ctx-ok")
}

var _ Logger = (*SlogLogger)(nil)

func TestSlogLogger_WithChainsThroughInterface(t *testing.T) {
	base, buf := newTestLogger(t)

	var log Logger = base
	log = log.With("run_id", "r1").With("target", 7)
	log.Warn(context.Background(), "sector skipped", "sector", 3)

	out := buf.String()
	for _, s := range []string{"level=WARN", `msg="sector skipped"`, "run_id=r1", "target=7", "sector=3"} {
		require.Contains(t, out, s)
	}
}
