package logging_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/myrjola/ironbrain/internal/logging"
)

func TestWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, slog.LevelInfo)

	ctx := logging.WithAttrs(t.Context(), slog.String("command", "generate"))
	first := logging.WithAttrs(ctx, slog.Int("week", 1))
	second := logging.WithAttrs(ctx, slog.Int("week", 2))

	logger.LogAttrs(first, slog.LevelInfo, "first")
	logger.LogAttrs(second, slog.LevelInfo, "second")
	logger.LogAttrs(first, slog.LevelDebug, "filtered")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), buf.String())
	}
	for i, want := range []string{"command=generate week=1", "command=generate week=2"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want it to contain %q", i, lines[i], want)
		}
	}
}

func TestLevelVar(t *testing.T) {
	var (
		buf   bytes.Buffer
		level slog.LevelVar
	)
	logger := logging.New(&buf, &level)

	logger.LogAttrs(t.Context(), slog.LevelDebug, "hidden")
	level.Set(slog.LevelDebug)
	logger.LogAttrs(t.Context(), slog.LevelDebug, "shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
