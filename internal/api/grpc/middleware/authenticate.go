package middleware

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/gophdate-session/internal/logger"
	"github.com/dtroode/gophdate-session/internal/model"
)

// TokenSource yields the access token for outgoing calls.
type TokenSource interface {
	TokenContext(ctx context.Context) (*oauth2.Token, error)
}

// CheckNotifier is told when the backend rejects the attached token.
type CheckNotifier interface {
	CheckNow()
}

// Authenticate attaches the session bearer token to outgoing calls.
type Authenticate struct {
	tokens   TokenSource
	notifier CheckNotifier
	logger   *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(tokens TokenSource, notifier CheckNotifier, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokens: tokens, notifier: notifier, logger: logger}
}

// UnaryClientInterceptor adds the authorization header and requests an
// immediate session check when the call comes back Unauthenticated.
func (m *Authenticate) UnaryClientInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	err := invoker(m.withToken(ctx, method), method, req, reply, cc, opts...)
	m.observe(method, err)
	return err
}

// StreamClientInterceptor adds the authorization header to streams.
func (m *Authenticate) StreamClientInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	stream, err := streamer(m.withToken(ctx, method), desc, cc, method, opts...)
	m.observe(method, err)
	return stream, err
}

func (m *Authenticate) withToken(ctx context.Context, method string) context.Context {
	tok, err := m.tokens.TokenContext(ctx)
	if errors.Is(err, model.ErrNoSession) {
		return ctx
	}
	if err != nil {
		m.logger.Warn("gRPC auth: failed to get access token",
			"method", method,
			"error", err.Error())
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx, "authorization", tok.Type()+" "+tok.AccessToken)
}

func (m *Authenticate) observe(method string, err error) {
	if status.Code(err) != codes.Unauthenticated {
		return
	}
	m.logger.Info("gRPC auth: call rejected as unauthenticated, scheduling session check",
		"method", method)
	m.notifier.CheckNow()
}
