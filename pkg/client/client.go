package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cuemby/confsync/pkg/api"
	"github.com/cuemby/confsync/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const requestTimeout = 10 * time.Second

// Client wraps the confsync gRPC API for CLI usage
type Client struct {
	conn *grpc.ClientConn
}

// NewClient connects to a local daemon. The API listens on loopback by
// default and carries no credentials.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// NewClientWithConn wraps an existing connection
func NewClientWithConn(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) invoke(method string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return c.conn.Invoke(ctx, method, in, out)
}

// TriggerSync asks the daemon to sync now. It returns false when a manual
// sync was already queued.
func (c *Client) TriggerSync() (bool, error) {
	out := &wrapperspb.BoolValue{}
	if err := c.invoke(api.MethodTriggerSync, &emptypb.Empty{}, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// GetStatus returns the daemon status
func (c *Client) GetStatus() (*api.StatusView, error) {
	out := &structpb.Struct{}
	if err := c.invoke(api.MethodGetStatus, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}

	var view api.StatusView
	if err := api.FromStruct(out, &view); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &view, nil
}

// ListConfigurations lists all configurations
func (c *Client) ListConfigurations() ([]*types.Configuration, error) {
	out := &structpb.Struct{}
	if err := c.invoke(api.MethodListConfigurations, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}

	var resp struct {
		Configurations []*types.Configuration `json:"configurations"`
	}
	if err := api.FromStruct(out, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode configurations: %w", err)
	}
	return resp.Configurations, nil
}

// SaveConfiguration creates cfg when it has no ID and replaces it otherwise
func (c *Client) SaveConfiguration(cfg *types.Configuration) (*types.Configuration, error) {
	in, err := api.ToStruct(cfg)
	if err != nil {
		return nil, err
	}
	return c.configurationCall(api.MethodSaveConfiguration, in)
}

// DeleteConfiguration deletes a configuration by ID
func (c *Client) DeleteConfiguration(id string) error {
	return c.invoke(api.MethodDeleteConfiguration, wrapperspb.String(id), &emptypb.Empty{})
}

// ToggleConfiguration sets the enabled flag, or flips it when enabled is nil
func (c *Client) ToggleConfiguration(id string, enabled *bool) error {
	fields := map[string]interface{}{"id": id}
	if enabled != nil {
		fields["enabled"] = *enabled
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return err
	}
	return c.invoke(api.MethodToggleConfiguration, in, &emptypb.Empty{})
}

// PublishConfiguration hands a configuration to a connector; an empty
// connector selects the daemon's active one
func (c *Client) PublishConfiguration(id, connector string) (*types.Configuration, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"id": id, "connector": connector})
	if err != nil {
		return nil, err
	}
	return c.configurationCall(api.MethodPublishConfiguration, in)
}

func (c *Client) configurationCall(method string, in *structpb.Struct) (*types.Configuration, error) {
	out := &structpb.Struct{}
	if err := c.invoke(method, in, out); err != nil {
		return nil, err
	}

	var cfg types.Configuration
	if err := api.FromStruct(out, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return &cfg, nil
}

// Event is one event received from StreamEvents
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata"`
}

// StreamEvents calls fn for every event until ctx is done, the stream ends
// or fn returns an error
func (c *Client) StreamEvents(ctx context.Context, fn func(Event) error) error {
	desc := &api.SyncServiceDesc.Streams[0]
	cs, err := c.conn.NewStream(ctx, desc, api.MethodStreamEvents)
	if err != nil {
		return err
	}

	stream := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: cs}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var event Event
		if err := api.FromStruct(msg, &event); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}
