package server

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// PlayerIDMetadataKey carries the authenticated player id. It is set by the
// gateway in front of the server.
const PlayerIDMetadataKey = "x-player-id"

type playerIDKey struct{}

// PlayerIDFromContext returns the player id set by IdentityInterceptor.
func PlayerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(playerIDKey{}).(string)
	return id, ok && id != ""
}

// WithPlayerID returns an outgoing context carrying the player id.
func WithPlayerID(ctx context.Context, playerID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, PlayerIDMetadataKey, playerID)
}

// RecoveryInterceptor turns panics in handlers into Internal errors.
func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in grpc handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs every call with its duration and status code.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.String("code", status.Code(err).String()),
		}
		if playerID, ok := PlayerIDFromContext(ctx); ok {
			fields = append(fields, zap.String("player_id", playerID))
		}
		logger.Debug("grpc call", fields...)
		return resp, err
	}
}

// IdentityInterceptor requires the x-player-id metadata on DuelService calls
// and stores it in the context. Other services pass through.
func IdentityInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get(PlayerIDMetadataKey)
		if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
			return nil, status.Error(codes.Unauthenticated, "missing "+PlayerIDMetadataKey+" metadata")
		}
		return handler(context.WithValue(ctx, playerIDKey{}, strings.TrimSpace(values[0])), req)
	}
}
