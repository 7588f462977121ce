package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/oneshot-layer/internal/dispatch"
	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	domain "github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	"github.com/oshokin/oneshot-layer/internal/hid"
	pb "github.com/oshokin/oneshot-layer/internal/pb/v1"
)

var errBroken = errors.New("broken")

// fakeService implements the control Service interface for unit testing the transport.
type fakeService struct {
	// status is returned by Status.
	status *domain.Status
	// emissions is returned by Emissions, trimmed to the limit.
	emissions []hid.Emission
	// calls records injected presses and releases.
	calls []keyboard.PositionChanged
	// err is returned by every call when set.
	err error
}

func (f *fakeService) Status(context.Context) (*domain.Status, error) {
	return f.status, f.err
}

func (f *fakeService) Press(_ context.Context, position keyboard.Position) error {
	f.calls = append(f.calls, keyboard.PositionChanged{Position: position, Pressed: true})

	return f.err
}

func (f *fakeService) Release(_ context.Context, position keyboard.Position) error {
	f.calls = append(f.calls, keyboard.PositionChanged{Position: position})

	return f.err
}

func (f *fakeService) Emissions(_ context.Context, limit int) ([]hid.Emission, error) {
	if limit > 0 && len(f.emissions) > limit {
		return f.emissions[len(f.emissions)-limit:], f.err
	}

	return f.emissions, f.err
}

// TestServer_Validation ensures nil requests return InvalidArgument errors.
func TestServer_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(new(fakeService))

	_, err := s.PressKey(context.Background(), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.ReleaseKey(context.Background(), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_PressRelease checks that positions reach the service.
func TestServer_PressRelease(t *testing.T) {
	t.Parallel()

	svc := new(fakeService)
	s := NewServer(svc)

	_, err := s.PressKey(context.Background(), wrapperspb.UInt32(5))
	require.NoError(t, err)

	_, err = s.ReleaseKey(context.Background(), wrapperspb.UInt32(5))
	require.NoError(t, err)

	require.Equal(t, []keyboard.PositionChanged{{Position: 5, Pressed: true}, {Position: 5}}, svc.calls)
}

// TestServer_GetState checks the status payload.
func TestServer_GetState(t *testing.T) {
	t.Parallel()

	want := &domain.Status{
		Timestamp:    time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		ActiveLayers: []keyboard.LayerID{0, 1},
		LayerNames:   []string{"base", "nav"},
		Behaviors:    []domain.State{{Name: "osl", Policy: domain.PolicyOnFirstTranslatedKeyPress, Active: true, TargetLayer: 1}},
	}

	s := NewServer(&fakeService{status: want})

	resp, err := s.GetState(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)

	got, err := pb.StatusFromProto(resp)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// TestServer_ListEmissions checks the limit and the payload.
func TestServer_ListEmissions(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeService{emissions: []hid.Emission{
		{Keycode: 30, Pressed: true},
		{Keycode: 30},
		{Keycode: 48, Pressed: true, Layer: 2},
	}})

	resp, err := s.ListEmissions(context.Background(), wrapperspb.UInt32(1))
	require.NoError(t, err)

	got, err := pb.EmissionsFromProto(resp)
	require.NoError(t, err)
	require.Equal(t, []hid.Emission{{Keycode: 48, Pressed: true, Layer: 2}}, got)

	resp, err = s.ListEmissions(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, resp.GetValues(), 3)
}

// TestServer_ErrorCodes checks the mapping of engine errors.
func TestServer_ErrorCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		code codes.Code
	}{
		{err: dispatch.ErrStopped, code: codes.Unavailable},
		{err: context.DeadlineExceeded, code: codes.DeadlineExceeded},
		{err: context.Canceled, code: codes.Canceled},
		{err: errBroken, code: codes.Internal},
	}

	for _, tt := range tests {
		s := NewServer(&fakeService{err: tt.err})

		_, err := s.GetState(context.Background(), &emptypb.Empty{})
		require.Equal(t, tt.code, status.Code(err), tt.err)

		_, err = s.PressKey(context.Background(), wrapperspb.UInt32(1))
		require.Equal(t, tt.code, status.Code(err), tt.err)

		_, err = s.ListEmissions(context.Background(), wrapperspb.UInt32(0))
		require.Equal(t, tt.code, status.Code(err), tt.err)
	}
}
