package control

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/home-security/internal/logger"
	"github.com/oshokin/home-security/internal/service/status"
)

// Service abstracts the controller operations the transport layer depends on.
type Service interface {
	// Execute runs one command line on behalf of actor.
	Execute(ctx context.Context, actor, command string) (Reply, error)
	// Status reports the current device state.
	Status(ctx context.Context) status.Message
}

// Server implements the control gRPC API.
type Server struct {
	// service runs the commands.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Execute runs one command line.
func (s *Server) Execute(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	command := strings.TrimSpace(req.GetValue())
	if command == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "command is required")
	}

	actor := ActorFromContext(ctx)
	if actor == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "actor is required")
	}

	reply, err := s.service.Execute(ctx, actor, command)
	if err != nil {
		logger.ErrorKV(ctx, "Command execution failed", "actor", actor, "command", command, "error", err)

		return nil, executeError(err)
	}

	out, err := reply.Struct()
	if err != nil {
		return nil, grpcstatus.Error(codes.Internal, "unable to encode reply")
	}

	return out, nil
}

// executeError maps a service failure to a status code.
// Deadline and cancellation keep their codes: the command may already have run.
func executeError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Error(codes.DeadlineExceeded, "command outcome unknown: deadline exceeded")
	case errors.Is(err, context.Canceled):
		return grpcstatus.Error(codes.Canceled, "command outcome unknown: canceled")
	default:
		return grpcstatus.Error(codes.Unavailable, "unable to execute command")
	}
}

// GetStatus returns the status message.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := s.service.Status(ctx).Struct()
	if err != nil {
		return nil, grpcstatus.Error(codes.Internal, "unable to encode status")
	}

	return out, nil
}

// ActorFromContext returns the caller identity sent in the x-actor header.
func ActorFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	values := md.Get(ActorMetadataKey)
	if len(values) == 0 {
		return ""
	}

	return strings.TrimSpace(values[0])
}

// WithActor attaches the caller identity to an outgoing context.
func WithActor(ctx context.Context, actor string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, ActorMetadataKey, actor)
}
