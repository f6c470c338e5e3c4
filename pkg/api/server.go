package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cuemby/confsync/pkg/events"
	"github.com/cuemby/confsync/pkg/log"
	"github.com/cuemby/confsync/pkg/manager"
	"github.com/cuemby/confsync/pkg/metrics"
	"github.com/cuemby/confsync/pkg/storage"
	"github.com/cuemby/confsync/pkg/types"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Syncer is the sync scheduler as seen by the API
type Syncer interface {
	TriggerNow() bool
	Status() types.SchedulerStatus
}

// ConfigStore is the state container as seen by the API
type ConfigStore interface {
	ListConfigurations() ([]*types.Configuration, error)
	SaveConfiguration(cfg *types.Configuration) (*types.Configuration, error)
	DeleteConfiguration(id string) error
	ToggleConfiguration(id string, enabled *bool) (*types.Configuration, error)
	PublishConfiguration(id, connector string) (*types.Configuration, error)
	InstanceID() string
	RaftState() string
}

// EventSource hands out event subscriptions
type EventSource interface {
	Subscribe() events.Subscriber
	Unsubscribe(sub events.Subscriber)
	Dropped(sub events.Subscriber) int
}

// Options configures the API server
type Options struct {
	// Connector is the active connector name, used as the default target
	// of PublishConfiguration
	Connector string
	ReadOnly  bool
}

// Server implements confsync.v1.SyncService
type Server struct {
	syncer    Syncer
	store     ConfigStore
	events    EventSource
	connector string
	grpc      *grpc.Server
	logger    zerolog.Logger
}

// NewServer creates a new API server
func NewServer(syncer Syncer, store ConfigStore, source EventSource, opts Options) *Server {
	unary := []grpc.UnaryServerInterceptor{
		MetricsInterceptor(),
		LoggingInterceptor(),
	}
	if opts.ReadOnly {
		unary = append(unary, ReadOnlyInterceptor())
	}

	s := &Server{
		syncer:    syncer,
		store:     store,
		events:    source,
		connector: opts.Connector,
		logger:    log.WithComponent("api"),
		grpc: grpc.NewServer(
			grpc.ChainUnaryInterceptor(unary...),
			grpc.ChainStreamInterceptor(StreamLoggingInterceptor()),
		),
	}
	RegisterSyncServiceServer(s.grpc, s)
	return s
}

// Start listens on addr and serves until Stop
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info().Str("addr", addr).Msg("gRPC API listening")
	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *Server) Serve(lis net.Listener) error {
	metrics.RegisterComponent(metrics.ComponentAPI, true, "")
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	metrics.UpdateComponent(metrics.ComponentAPI, false, "stopped")
}

// TriggerSync queues a manual sync. The response is false when the trigger
// merged into one already queued.
func (s *Server) TriggerSync(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.syncer.TriggerNow()), nil
}

// GetStatus reports the scheduler status and the state container identity
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := ToStruct(s.statusView())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode status: %v", err)
	}
	return out, nil
}

// StatusView is the status document shared by gRPC and HTTP
type StatusView struct {
	InstanceID string                `json:"instance_id"`
	RaftState  string                `json:"raft_state"`
	Connector  string                `json:"connector"`
	Scheduler  types.SchedulerStatus `json:"scheduler"`
}

func (s *Server) statusView() StatusView {
	return StatusView{
		InstanceID: s.store.InstanceID(),
		RaftState:  s.store.RaftState(),
		Connector:  s.connector,
		Scheduler:  s.syncer.Status(),
	}
}

// ListConfigurations returns {"configurations": [...]}
func (s *Server) ListConfigurations(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	cfgs, err := s.store.ListConfigurations()
	if err != nil {
		return nil, toStatus(err)
	}
	if cfgs == nil {
		cfgs = []*types.Configuration{}
	}

	out, err := ToStruct(map[string]interface{}{"configurations": cfgs})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode configurations: %v", err)
	}
	return out, nil
}

// SaveConfiguration creates a configuration when the payload has no id and
// replaces it otherwise
func (s *Server) SaveConfiguration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var cfg types.Configuration
	if err := FromStruct(req, &cfg); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid configuration: %v", err)
	}

	saved, err := s.store.SaveConfiguration(&cfg)
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := ToStruct(saved)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode configuration: %v", err)
	}
	return out, nil
}

// DeleteConfiguration removes a configuration by id
func (s *Server) DeleteConfiguration(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	if err := s.store.DeleteConfiguration(req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// ToggleConfiguration accepts {"id": ..., "enabled": bool?}; without
// enabled the flag is flipped
func (s *Server) ToggleConfiguration(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	var body struct {
		ID      string `json:"id"`
		Enabled *bool  `json:"enabled"`
	}
	if err := FromStruct(req, &body); err != nil || body.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	if _, err := s.store.ToggleConfiguration(body.ID, body.Enabled); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// PublishConfiguration accepts {"id": ..., "connector": string?} and hands
// the configuration to the connector, the active one by default
func (s *Server) PublishConfiguration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var body struct {
		ID        string `json:"id"`
		Connector string `json:"connector"`
	}
	if err := FromStruct(req, &body); err != nil || body.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	if body.Connector == "" {
		body.Connector = s.connector
	}

	published, err := s.store.PublishConfiguration(body.ID, body.Connector)
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := ToStruct(published)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode configuration: %v", err)
	}
	return out, nil
}

// StreamEvents streams events until the client goes away
func (s *Server) StreamEvents(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	sub := s.events.Subscribe()
	defer s.events.Unsubscribe(sub)

	for {
		select {
		case <-stream.Context().Done():
			if dropped := s.events.Dropped(sub); dropped > 0 {
				s.logger.Warn().Int("dropped", dropped).Msg("Event stream lagged behind")
			}
			return nil
		case event, ok := <-sub:
			if !ok {
				return nil
			}
			msg, err := eventToStruct(event)
			if err != nil {
				return status.Errorf(codes.Internal, "failed to encode event: %v", err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// toStatus maps domain errors to gRPC codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, manager.ErrDuplicateName):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, manager.ErrImmutableID), errors.Is(err, manager.ErrInvalidConfiguration):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// ToStruct converts a JSON-tagged value to a Struct
func ToStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// FromStruct decodes a Struct into a JSON-tagged value
func FromStruct(s *structpb.Struct, v interface{}) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func eventToStruct(event *events.Event) (*structpb.Struct, error) {
	metadata := make(map[string]interface{}, len(event.Metadata))
	for k, v := range event.Metadata {
		metadata[k] = v
	}
	return structpb.NewStruct(map[string]interface{}{
		"id":        event.ID,
		"type":      string(event.Type),
		"timestamp": event.Timestamp.UTC().Format(time.RFC3339Nano),
		"message":   event.Message,
		"metadata":  metadata,
	})
}
