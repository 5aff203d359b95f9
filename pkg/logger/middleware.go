package logger

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	RequestIDHeader = "X-Request-ID"
	// RequestIDMetadataKey carries the request id between instances over gRPC.
	RequestIDMetadataKey = "request_id"
)

// GinMiddleware tags each request with an id, taken from X-Request-ID when
// the caller sent one, and logs the completed request at a level matching
// its status class.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = GenerateRequestID()
		}
		c.Header(RequestIDHeader, id)
		ctx := WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = Error(ctx)
		case status >= 400:
			ev = Warn(ctx)
		default:
			ev = Info(ctx)
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ev.Str("method", c.Request.Method).
			Str("route", route).
			Str("ip", c.ClientIP()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}

// UnaryServerInterceptor picks the caller's request ID out of the incoming
// metadata, or generates one, and logs each call.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx = WithRequestID(ctx, requestIDFromMetadata(ctx))

		start := time.Now()
		resp, err := handler(ctx, req)

		ev := Info(ctx)
		if err != nil {
			ev = Warn(ctx).Err(err).Str("code", status.Code(err).String())
		}
		ev.Str("method", info.FullMethod).
			Dur("duration", time.Since(start)).
			Msg("rpc")
		return resp, err
	}
}

func requestIDFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 && vals[0] != "" {
			return vals[0]
		}
	}
	return GenerateRequestID()
}
