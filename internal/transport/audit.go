package transport

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryAuditInterceptor logs the outcome of every unary call. The macaroon
// header is never logged. logger must not be nil.
func UnaryAuditInterceptor(logger *slog.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		logOutcome(ctx, logger, method, start, err)
		return err
	}
}

// StreamAuditInterceptor logs stream opens.
func StreamAuditInterceptor(logger *slog.Logger) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		start := time.Now()
		cs, err := streamer(ctx, desc, cc, method, opts...)
		logOutcome(ctx, logger, method, start, err, "stream", true)
		return cs, err
	}
}

func logOutcome(ctx context.Context, logger *slog.Logger, method string, start time.Time, err error, extra ...any) {
	fields := []any{
		"rpc_method", method,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	fields = append(fields, extra...)
	if err != nil {
		st, _ := status.FromError(err)
		fields = append(fields, "result", "error", "code", st.Code().String(), "reason", st.Message())
		logger.WarnContext(ctx, "rpc audit", fields...)
		return
	}
	fields = append(fields, "result", "ok", "code", codes.OK.String())
	logger.InfoContext(ctx, "rpc audit", fields...)
}
