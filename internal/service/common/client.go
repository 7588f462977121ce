//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/oneshot-layer/internal/config"
	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	domain "github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	"github.com/oshokin/oneshot-layer/internal/hid"
	pb "github.com/oshokin/oneshot-layer/internal/pb/v1"
)

// Client wraps the gRPC ControlService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the daemon.
	conn *grpc.ClientConn
	// api is the ControlService client interface.
	api pb.ControlServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the daemon.
// The control service is meant for localhost, so the transport is insecure.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         pb.NewControlServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetState retrieves the daemon status.
func (c *Client) GetState(ctx context.Context) (*domain.Status, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetState(callCtx, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	return pb.StatusFromProto(resp)
}

// PressKey injects a press of position.
func (c *Client) PressKey(ctx context.Context, position keyboard.Position) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.PressKey(callCtx, wrapperspb.UInt32(uint32(position))); err != nil {
		return fmt.Errorf("press key %d: %w", position, err)
	}

	return nil
}

// ReleaseKey injects a release of position.
func (c *Client) ReleaseKey(ctx context.Context, position keyboard.Position) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.ReleaseKey(callCtx, wrapperspb.UInt32(uint32(position))); err != nil {
		return fmt.Errorf("release key %d: %w", position, err)
	}

	return nil
}

// ListEmissions retrieves up to limit recent emissions. Zero means all.
func (c *Client) ListEmissions(ctx context.Context, limit uint32) ([]hid.Emission, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ListEmissions(callCtx, wrapperspb.UInt32(limit))
	if err != nil {
		return nil, fmt.Errorf("list emissions: %w", err)
	}

	return pb.EmissionsFromProto(resp)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
