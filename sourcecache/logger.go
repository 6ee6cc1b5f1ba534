package sourcecache

import (
	"context"

	"github.com/rs/zerolog"
)

// Logger is the minimal interface the core needs for its one ambient concern: "log
// and continue" on a failed backfill write. It deliberately exposes a single method so
// any structured logger a caller already owns can satisfy it with a one-line adapter.
type Logger interface {
	Error(ctx context.Context, msg string, fields map[string]any)
}

// NopLogger discards everything. Used as the default when a caller does not supply
// one, so the core never nil-panics on a failed backfill.
type NopLogger struct{}

func (NopLogger) Error(context.Context, string, map[string]any) {}

// ZerologLogger adapts a *zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	Underlying *zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog.Logger.
func NewZerologLogger(l *zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{Underlying: l}
}

func (z *ZerologLogger) Error(ctx context.Context, msg string, fields map[string]any) {
	if z == nil || z.Underlying == nil {
		return
	}
	evt := z.Underlying.Error()
	for k, v := range fields {
		evt = evt.Interface(k, v)
	}
	evt.Msg(msg)
}
