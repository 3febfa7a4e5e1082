// Package client builds the gRPC connection to the dating backend.
package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/dtroode/gophdate-session/internal/api/grpc/middleware"
	"github.com/dtroode/gophdate-session/internal/logger"
)

// Methods under these prefixes are called without a bearer token.
var publicPrefixes = []string{
	"/grpc.health.v1.Health/",
	"/dating.Auth/",
}

func requiresAuth(_ context.Context, c interceptors.CallMeta) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(c.FullMethod(), p) {
			return false
		}
	}
	return true
}

// New creates a client connection with logging and bearer token
// interceptors installed. Extra dial options are appended last.
func New(
	target string,
	creds credentials.TransportCredentials,
	authenticate *middleware.Authenticate,
	logger *logger.Logger,
	opts ...grpc.DialOption,
) (*grpc.ClientConn, error) {
	logging := middleware.NewLogging(logger)

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithChainUnaryInterceptor(
			logging.UnaryClientInterceptor(),
			selector.UnaryClientInterceptor(
				authenticate.UnaryClientInterceptor,
				selector.MatchFunc(requiresAuth),
			),
		),
		grpc.WithChainStreamInterceptor(
			logging.StreamClientInterceptor(),
			selector.StreamClientInterceptor(
				authenticate.StreamClientInterceptor,
				selector.MatchFunc(requiresAuth),
			),
		),
	}
	dialOpts = append(dialOpts, opts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	return conn, nil
}
