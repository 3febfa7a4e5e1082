package middleware

import (
	"context"
	"log/slog"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"google.golang.org/grpc"

	"github.com/dtroode/gophdate-session/internal/logger"
)

// Logging logs outgoing gRPC calls through the session agent logger.
type Logging struct {
	logger *logger.Logger
}

// NewLogging creates a new Logging middleware.
func NewLogging(logger *logger.Logger) *Logging {
	return &Logging{logger: logger}
}

// Logger adapts the agent logger to the interceptor logging interface.
func (l *Logging) Logger() logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.logger.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

// UnaryClientInterceptor logs method, duration and status of each call.
func (l *Logging) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return logging.UnaryClientInterceptor(l.Logger(), logging.WithLogOnEvents(logging.FinishCall))
}

// StreamClientInterceptor logs method, duration and status of each stream.
func (l *Logging) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return logging.StreamClientInterceptor(l.Logger(), logging.WithLogOnEvents(logging.FinishCall))
}
