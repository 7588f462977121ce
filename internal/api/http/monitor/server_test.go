package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	domain "github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	"github.com/oshokin/oneshot-layer/internal/hid"
)

var errStopped = errors.New("stopped")

type fakeService struct {
	// err is returned by every call when set.
	err error
	// limit records the last emission limit.
	limit int
}

func (f *fakeService) Status(context.Context) (*domain.Status, error) {
	if f.err != nil {
		return nil, f.err
	}

	return &domain.Status{
		ActiveLayers: []keyboard.LayerID{0, 2},
		LayerNames:   []string{"base", "nav", "sym"},
		Behaviors:    []domain.State{{Name: "osl", Active: true, TargetLayer: 2}},
	}, nil
}

func (f *fakeService) Emissions(_ context.Context, limit int) ([]hid.Emission, error) {
	f.limit = limit

	return []hid.Emission{{Keycode: 30, Pressed: true, Layer: 2}}, f.err
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	return rec
}

// TestLiveness reports uptime from the injected clock.
func TestLiveness(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	s := NewServer(new(fakeService), clock)
	clock.Advance(3 * time.Second)

	rec := get(t, s, "/health/live")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","uptime":3}`, rec.Body.String())
}

// TestStatus renders the status document.
func TestStatus(t *testing.T) {
	t.Parallel()

	rec := get(t, NewServer(new(fakeService), nil), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"active_layers":[0,2]`)
	require.Contains(t, rec.Body.String(), `"name":"osl"`)

	rec = get(t, NewServer(&fakeService{err: errStopped}, nil), "/status")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// TestEmissions checks limit parsing.
func TestEmissions(t *testing.T) {
	t.Parallel()

	svc := new(fakeService)
	s := NewServer(svc, nil)

	rec := get(t, s, "/emissions?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, svc.limit)
	require.Contains(t, rec.Body.String(), `"key":"KEY_A"`)

	rec = get(t, s, "/emissions?limit=-1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestMetrics exposes the Prometheus registry.
func TestMetrics(t *testing.T) {
	t.Parallel()

	rec := get(t, NewServer(new(fakeService), nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
