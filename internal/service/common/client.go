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

	"github.com/oshokin/home-security/internal/api/grpc/control"
	"github.com/oshokin/home-security/internal/config"
	"github.com/oshokin/home-security/internal/service/status"
)

// Client wraps the control API client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the controller.
	conn *grpc.ClientConn
	// api is the control service client.
	api *control.Client

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

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errActorRequired is returned when an actor is not provided but is required for the operation.
	errActorRequired = errors.New("actor must be provided")
	// errCommandRequired is returned for an empty command line.
	errCommandRequired = errors.New("command must be provided")
)

// Dial establishes a gRPC connection to the controller.
// Note: this uses insecure transport credentials; the control API is meant
// for localhost or a trusted network.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial controller: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         control.NewClient(conn),
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

// Execute sends one command line on behalf of actor.
func (c *Client) Execute(ctx context.Context, actor, command string) (control.Reply, error) {
	if actor == "" {
		return control.Reply{}, errActorRequired
	}

	if command == "" {
		return control.Reply{}, errCommandRequired
	}

	callCtx, cancel := c.callContext(control.WithActor(ctx, actor))
	defer cancel()

	response, err := c.api.Execute(callCtx, wrapperspb.String(command))
	if err != nil {
		return control.Reply{}, fmt.Errorf("execute command: %w", err)
	}

	return control.DecodeReply(response)
}

// GetStatus retrieves the current status message.
func (c *Client) GetStatus(ctx context.Context, actor string) (status.Message, error) {
	callCtx, cancel := c.callContext(control.WithActor(ctx, actor))
	defer cancel()

	response, err := c.api.GetStatus(callCtx, new(emptypb.Empty))
	if err != nil {
		return status.Message{}, fmt.Errorf("get status: %w", err)
	}

	return status.FromStruct(response)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
