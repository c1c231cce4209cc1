package log

import (
	"io"
	"log/slog"
	"os"
)

// Options selects the level and format of the process logger.
type Options struct {
	Debug   bool
	Verbose bool
	JSON    bool
	Out     io.Writer // defaults to stderr
}

// Setup инициализирует глобальный slog.Logger и делает его логгером по-умолчанию.
// Debug wins over Verbose; without either only warnings and errors are shown.
func Setup(o Options) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelInfo
	}
	if o.Debug {
		level = slog.LevelDebug
	}
	out := o.Out
	if out == nil {
		out = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(out, hopts)
	if o.JSON {
		h = slog.NewJSONHandler(out, hopts)
	}
	l := slog.New(h)
	slog.SetDefault(l)
	return l
}
