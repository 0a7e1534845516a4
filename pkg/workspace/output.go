package workspace

import (
	"context"

	"github.com/aidarkhanov/nanoid"
	"github.com/rs/zerolog"
)

type logKey struct{}

func log(ctx context.Context) *zerolog.Logger {
	logger := ctx.Value(logKey{})
	if logger == nil {
		panic("Logger is missing in context!")
	}

	return logger.(*zerolog.Logger)
}

// WithLogger attaches the given logger to the context. Every run gets a
// short id so interleaved task output stays attributable.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	runLogger := logger.With().Str("run", nanoid.New()).Logger()
	return context.WithValue(ctx, logKey{}, &runLogger)
}

// Log retrieves the logger attached by WithLogger.
func Log(ctx context.Context) *zerolog.Logger {
	return log(ctx)
}
