// Package logadapter adapts zerolog to client.RequestLogger.
package logadapter

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	client "github.com/peteraglen/giftcode-client"
)

type ZeroLogger struct {
	zlog zerolog.Logger
}

var _ client.RequestLogger = (*ZeroLogger)(nil)

func New(l zerolog.Logger) *ZeroLogger {
	return &ZeroLogger{zlog: l}
}

// NewConsole builds a logger writing to stderr. Unknown levels fall back to
// info. With pretty set the output is human readable instead of JSON.
func NewConsole(level string, pretty bool) *ZeroLogger {
	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	zLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		zLevel = zerolog.InfoLevel
	}

	return New(zerolog.New(out).With().Timestamp().Logger().Level(zLevel))
}

func (l *ZeroLogger) Errorf(format string, v ...any) {
	l.zlog.Error().Msgf(format, v...)
}

func (l *ZeroLogger) Warnf(format string, v ...any) {
	l.zlog.Warn().Msgf(format, v...)
}

func (l *ZeroLogger) Debugf(format string, v ...any) {
	l.zlog.Debug().Msgf(format, v...)
}

// Zerolog returns the wrapped logger.
func (l *ZeroLogger) Zerolog() zerolog.Logger {
	return l.zlog
}
