// Package base provides the shared gRPC client: a per-address connection
// cache, request id propagation and the JSON codec used between instances.
package base

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/frankieli/hot_or_not/pkg/logger"
)

// BaseClient handles gRPC connections to other instances
type BaseClient struct {
	// Connections cache (Key: "ip:port")
	conns     map[string]*grpc.ClientConn
	connsMu   sync.RWMutex
	dialGroup singleflight.Group

	dialOpts []grpc.DialOption
}

// NewBaseClient creates a client manager. Extra options are appended to the
// insecure transport default.
func NewBaseClient(opts ...grpc.DialOption) *BaseClient {
	return &BaseClient{
		conns:    make(map[string]*grpc.ClientConn),
		dialOpts: append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...),
	}
}

// GetConn gets or creates a persistent connection to a specific address.
// Concurrent first calls for one address share a single dial.
func (c *BaseClient) GetConn(addr string) (*grpc.ClientConn, error) {
	c.connsMu.RLock()
	conn, ok := c.conns[addr]
	c.connsMu.RUnlock()
	if ok {
		return conn, nil
	}

	val, err, _ := c.dialGroup.Do(addr, func() (interface{}, error) {
		// Double check
		c.connsMu.RLock()
		cached, ok := c.conns[addr]
		c.connsMu.RUnlock()
		if ok {
			return cached, nil
		}

		conn, err := grpc.NewClient(addr, c.dialOpts...)
		if err != nil {
			return nil, err
		}

		c.connsMu.Lock()
		c.conns[addr] = conn
		c.connsMu.Unlock()

		logger.DebugGlobal().Str("addr", addr).Msg("gRPC connection created")
		return conn, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial addr %s: %w", addr, err)
	}
	return val.(*grpc.ClientConn), nil
}

// Invoke calls method on addr with JSON encoded req and resp.
func (c *BaseClient) Invoke(ctx context.Context, addr, method string, req, resp interface{}) error {
	conn, err := c.GetConn(addr)
	if err != nil {
		return err
	}
	return conn.Invoke(c.withRequestID(ctx), method, req, resp, grpc.CallContentSubtype(CodecName))
}

// Close closes all connections
func (c *BaseClient) Close() error {
	c.connsMu.Lock()
	defer c.connsMu.Unlock()

	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil {
			logger.WarnGlobal().Str("addr", addr).Err(err).Msg("failed to close gRPC connection")
		}
		delete(c.conns, addr)
	}
	return nil
}

// withRequestID adds the request ID from the context to the gRPC metadata
func (c *BaseClient) withRequestID(ctx context.Context) context.Context {
	reqID := logger.GetRequestID(ctx)
	if reqID != "" {
		return metadata.AppendToOutgoingContext(ctx, logger.RequestIDMetadataKey, reqID)
	}
	return ctx
}
