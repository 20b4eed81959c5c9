package grpcx

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// NewClient returns a lazily connecting plaintext client that traces calls,
// forwards request ids and logs failed calls. Pass extra options to override
// the transport credentials.
func NewClient(addr string, logger *slog.Logger, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	interceptors := []grpc.UnaryClientInterceptor{UnaryClientRequestIDInterceptor()}
	if logger != nil {
		interceptors = append(interceptors, UnaryClientLogInterceptor(logger))
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(interceptors...),
	}
	return grpc.NewClient(addr, append(opts, extra...)...)
}

// UnaryClientLogInterceptor logs calls that fail. Successful calls are only
// visible at debug level.
func UnaryClientLogInterceptor(logger *slog.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "grpc call",
			"target", cc.Target(),
			"method", method,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return err
	}
}
