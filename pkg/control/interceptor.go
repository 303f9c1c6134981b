package control

import (
	"context"

	"github.com/cuemby/clickcore/pkg/log"
	"github.com/cuemby/clickcore/pkg/metrics"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// requestIDKey is the context key LoggingInterceptor stashes a
// per-call correlation id under, retrievable via RequestID.
type requestIDKey struct{}

// RequestID returns the correlation id LoggingInterceptor assigned to
// the in-flight RPC, or "" outside of one.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LoggingInterceptor logs each unary RPC's method, outcome, and duration
// and records it to the control-plane metrics, following a unary
// interceptor chain shape (one interceptor per concern, chained at
// server construction) rather than one interceptor doing everything.
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		reqID := uuid.New().String()
		ctx = context.WithValue(ctx, requestIDKey{}, reqID)

		timer := metrics.NewTimer()
		resp, err = handler(ctx, req)

		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.ControlRequestsTotal.WithLabelValues(info.FullMethod, outcome).Inc()
		timer.ObserveDurationVec(metrics.ControlRequestDuration, info.FullMethod)

		log.WithComponent("control").Debug().
			Str("request_id", reqID).
			Str("method", info.FullMethod).
			Str("status", outcome).
			Dur("duration", timer.Duration()).
			Msg("control rpc")
		return resp, err
	}
}

// RecoveryInterceptor converts a panic in a handler into a gRPC Internal
// error instead of crashing the server process.
func RecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.WithComponent("control").Error().
					Str("method", info.FullMethod).
					Interface("panic", r).
					Msg("recovered from panic in control rpc handler")
				err = status.Errorf(codes.Internal, "internal error: %v", r)
			}
		}()
		return handler(ctx, req)
	}
}

// Chain composes interceptors into a single grpc.UnaryServerInterceptor,
// invoking them outermost-first.
func Chain(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			next := chained
			chained = func(ctx context.Context, req any) (any, error) {
				return interceptor(ctx, req, info, next)
			}
		}
		return chained(ctx, req)
	}
}
