package renderer

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/vkngwrapper/extensions/ext_debug_utils"
)

func TestDebugMessageLevel(t *testing.T) {
	cases := []struct {
		severity ext_debug_utils.MessageSeverities
		want     slog.Level
	}{
		{ext_debug_utils.SeverityError, slog.LevelError},
		{ext_debug_utils.SeverityWarning, slog.LevelWarn},
		{ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning, slog.LevelError},
		{ext_debug_utils.SeverityInfo, slog.LevelDebug},
		{0, LevelTrace},
	}

	for _, c := range cases {
		if got := debugMessageLevel(c.severity); got != c.want {
			t.Errorf("debugMessageLevel(%v) = %v, want %v", c.severity, got, c.want)
		}
	}
}

func TestLoggerDefaultsSilent(t *testing.T) {
	SetLogger(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("default logger is enabled")
	}
}

func TestLogDebugMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	SetLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: LevelTrace})))
	t.Cleanup(func() { SetLogger(nil) })

	abort := logDebugMessage(ext_debug_utils.TypeValidation, ext_debug_utils.SeverityWarning,
		&ext_debug_utils.DebugUtilsMessengerCallbackData{Message: "image layout mismatch"})
	if abort {
		t.Error("logDebugMessage asked to abort the call")
	}

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "image layout mismatch") {
		t.Errorf("log output = %q, want a WARN record with the message", out)
	}
}
