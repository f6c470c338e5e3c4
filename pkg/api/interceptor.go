package api

import (
	"context"
	"strings"

	"github.com/cuemby/confsync/pkg/log"
	"github.com/cuemby/confsync/pkg/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ReadOnlyInterceptor creates a gRPC unary interceptor that only allows read-only operations.
// Sync triggers stay allowed; configuration edits are refused.
func ReadOnlyInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !isReadOnlyMethod(info.FullMethod) {
			return nil, status.Errorf(
				codes.PermissionDenied,
				"%s is not allowed: API is read-only (api.read_only)",
				methodName(info.FullMethod),
			)
		}

		return handler(ctx, req)
	}
}

// LoggingInterceptor logs every unary call at debug level and failures at warn
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		timer := metrics.NewTimer()
		resp, err := handler(ctx, req)

		logger := log.WithComponent("api")
		if err != nil {
			logger.Warn().
				Str("method", methodName(info.FullMethod)).
				Str("code", status.Code(err).String()).
				Dur("duration", timer.Duration()).
				Err(err).
				Msg("Request failed")
		} else {
			logger.Debug().
				Str("method", methodName(info.FullMethod)).
				Dur("duration", timer.Duration()).
				Msg("Request served")
		}
		return resp, err
	}
}

// StreamLoggingInterceptor logs the lifetime of streaming calls
func StreamLoggingInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		logger := log.WithComponent("api")
		logger.Debug().Str("method", methodName(info.FullMethod)).Msg("Stream opened")

		err := handler(srv, ss)

		metrics.APIRequestsTotal.WithLabelValues(methodName(info.FullMethod), status.Code(err).String()).Inc()
		logger.Debug().Str("method", methodName(info.FullMethod)).Err(err).Msg("Stream closed")
		return err
	}
}

// MetricsInterceptor counts requests by method and status code and records
// their duration
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		timer := metrics.NewTimer()
		resp, err := handler(ctx, req)

		method := methodName(info.FullMethod)
		metrics.APIRequestsTotal.WithLabelValues(method, status.Code(err).String()).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, method)
		return resp, err
	}
}

// methodName extracts "ListConfigurations" from "/confsync.v1.SyncService/ListConfigurations"
func methodName(fullMethod string) string {
	parts := strings.Split(fullMethod, "/")
	return parts[len(parts)-1]
}

// isReadOnlyMethod checks if a gRPC method is read-only
func isReadOnlyMethod(method string) bool {
	name := methodName(method)
	if name == "" {
		return false
	}

	for _, prefix := range []string{"List", "Get", "Stream"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	// Triggering a sync does not edit configurations directly
	return name == "TriggerSync"
}
