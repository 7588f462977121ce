package control

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/oneshot-layer/internal/dispatch"
	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	domain "github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	"github.com/oshokin/oneshot-layer/internal/hid"
	"github.com/oshokin/oneshot-layer/internal/logger"
	pb "github.com/oshokin/oneshot-layer/internal/pb/v1"
)

// Service abstracts the engine operations the transport layer depends on.
type Service interface {
	Status(ctx context.Context) (*domain.Status, error)
	Press(ctx context.Context, position keyboard.Position) error
	Release(ctx context.Context, position keyboard.Position) error
	Emissions(ctx context.Context, limit int) ([]hid.Emission, error)
}

// Server implements the ControlService gRPC API.
type Server struct {
	pb.UnimplementedControlServiceServer

	// service provides the engine operations.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetState returns the current layers and behavior states.
func (s *Server) GetState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.service.Status(ctx)
	if err != nil {
		return nil, toStatusError(ctx, err)
	}

	out, err := pb.StatusToProto(st)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode status", "error", err)

		return nil, status.Error(codes.Internal, "unable to encode status")
	}

	return out, nil
}

// PressKey injects a press of the requested position.
func (s *Server) PressKey(ctx context.Context, req *wrapperspb.UInt32Value) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "position is required")
	}

	if err := s.service.Press(ctx, keyboard.Position(req.GetValue())); err != nil {
		return nil, toStatusError(ctx, err)
	}

	logger.DebugKV(ctx, "Injected key press", "position", req.GetValue())

	return &emptypb.Empty{}, nil
}

// ReleaseKey injects a release of the requested position.
func (s *Server) ReleaseKey(ctx context.Context, req *wrapperspb.UInt32Value) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "position is required")
	}

	if err := s.service.Release(ctx, keyboard.Position(req.GetValue())); err != nil {
		return nil, toStatusError(ctx, err)
	}

	logger.DebugKV(ctx, "Injected key release", "position", req.GetValue())

	return &emptypb.Empty{}, nil
}

// ListEmissions returns the most recent emissions, oldest first.
func (s *Server) ListEmissions(ctx context.Context, req *wrapperspb.UInt32Value) (*structpb.ListValue, error) {
	emissions, err := s.service.Emissions(ctx, int(req.GetValue()))
	if err != nil {
		return nil, toStatusError(ctx, err)
	}

	out, err := pb.EmissionsToProto(emissions)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode emissions", "error", err)

		return nil, status.Error(codes.Internal, "unable to encode emissions")
	}

	return out, nil
}

// toStatusError maps engine errors to gRPC status codes.
func toStatusError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, dispatch.ErrStopped):
		return status.Error(codes.Unavailable, "engine is stopped")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		logger.ErrorKV(ctx, "Engine call failed", "error", err)

		return status.Error(codes.Internal, "engine call failed")
	}
}
