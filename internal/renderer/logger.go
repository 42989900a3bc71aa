package renderer

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/vkngwrapper/extensions/ext_debug_utils"
)

// nopHandler discards every record. Enabled reports false so callers skip formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger used by the renderer. The renderer is silent
// until a logger is set; passing nil restores that.
//
// Levels used:
//   - [slog.LevelDebug]: swapchain rebuilds, resource sizes, validation info
//   - [slog.LevelInfo]: device selection and lifecycle events
//   - [slog.LevelWarn]: rejected devices, validation warnings
//   - [slog.LevelError]: validation errors
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current renderer logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// LevelTrace is below Debug and carries verbose validation chatter.
const LevelTrace = slog.LevelDebug - 4

func debugMessageLevel(severity ext_debug_utils.MessageSeverities) slog.Level {
	switch {
	case severity&ext_debug_utils.SeverityError != 0:
		return slog.LevelError
	case severity&ext_debug_utils.SeverityWarning != 0:
		return slog.LevelWarn
	case severity&ext_debug_utils.SeverityInfo != 0:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

func logDebugMessage(msgType ext_debug_utils.MessageTypes, severity ext_debug_utils.MessageSeverities, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	Logger().Log(context.Background(), debugMessageLevel(severity), data.Message,
		slog.Any("type", msgType),
		slog.Any("severity", severity),
	)
	return false
}
