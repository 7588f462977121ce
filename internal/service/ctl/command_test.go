package ctl

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	domain "github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	"github.com/oshokin/oneshot-layer/internal/hid"
)

var errUnavailable = errors.New("unavailable")

type fakeClient struct {
	mu        sync.Mutex
	calls     []string
	statuses  []*domain.Status
	emissions []hid.Emission
	limit     uint32
	err       error
}

func (f *fakeClient) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)
}

func (f *fakeClient) GetState(context.Context) (*domain.Status, error) {
	f.record("state")

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	status := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}

	return status, nil
}

func (f *fakeClient) PressKey(_ context.Context, position keyboard.Position) error {
	f.record("press " + strconv.FormatUint(uint64(position), 10))

	return f.err
}

func (f *fakeClient) ReleaseKey(_ context.Context, position keyboard.Position) error {
	f.record("release " + strconv.FormatUint(uint64(position), 10))

	return f.err
}

func (f *fakeClient) ListEmissions(_ context.Context, limit uint32) ([]hid.Emission, error) {
	f.record("emissions")

	f.limit = limit

	return f.emissions, f.err
}

func armedStatus() *domain.Status {
	return &domain.Status{
		ActiveLayers: []keyboard.LayerID{0, 2},
		LayerNames:   []string{"base", "nav", "sym"},
		Behaviors: []domain.State{
			{
				Name:           "osl",
				Policy:         domain.PolicyOnFirstTranslatedKeyPress,
				Timeout:        time.Second,
				Active:         true,
				TargetLayer:    2,
				SourcePosition: 5,
			},
			{Name: "sticky", Policy: domain.PolicyOnAnyOtherPhysicalPress},
		},
		HeldKeys: []keyboard.Keycode{30},
	}
}

// TestPerform_State renders layers and behaviors.
func TestPerform_State(t *testing.T) {
	t.Parallel()

	client := &fakeClient{statuses: []*domain.Status{armedStatus()}}

	var out bytes.Buffer

	require.NoError(t, perform(t.Context(), client, &Options{Action: ActionState, Output: &out}))

	text := out.String()
	require.Contains(t, text, "layers: base sym\n")
	require.Contains(t, text, "held: KEY_A\n")
	require.Contains(t, text, "osl (on-first-translated-key-press, timeout 1s): armed sym from position 5\n")
	require.Contains(t, text, "sticky (on-any-other-physical-press, timeout none): idle\n")
}

// TestPerform_PressRelease forwards positions to the client.
func TestPerform_PressRelease(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}

	require.NoError(t, perform(t.Context(), client, &Options{Action: ActionPress, Position: 7}))
	require.NoError(t, perform(t.Context(), client, &Options{Action: ActionRelease, Position: 7}))
	require.Equal(t, []string{"press 7", "release 7"}, client.calls)
}

// TestPerform_Tap presses and releases after the hold duration.
func TestPerform_Tap(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		client := &fakeClient{}
		start := time.Now()

		require.NoError(t, perform(t.Context(), client, &Options{Action: ActionTap, Position: 3, Hold: 40 * time.Millisecond}))
		require.Equal(t, []string{"press 3", "release 3"}, client.calls)
		require.Equal(t, 40*time.Millisecond, time.Since(start))
	})
}

// TestPerform_TapPressFails skips the release when the press fails.
func TestPerform_TapPressFails(t *testing.T) {
	t.Parallel()

	client := &fakeClient{err: errUnavailable}

	err := perform(t.Context(), client, &Options{Action: ActionTap, Position: 3})
	require.ErrorIs(t, err, errUnavailable)
	require.Equal(t, []string{"press 3"}, client.calls)
}

// TestPerform_Emissions prints one line per emission and passes the limit.
func TestPerform_Emissions(t *testing.T) {
	t.Parallel()

	client := &fakeClient{emissions: []hid.Emission{
		{Keycode: 30, Pressed: true, Position: 9, Layer: 0},
		{Keycode: 30, Pressed: false, Position: 9, Layer: 0},
	}}

	var out bytes.Buffer

	require.NoError(t, perform(t.Context(), client, &Options{Action: ActionEmissions, Limit: 2, Output: &out}))
	require.Equal(t, uint32(2), client.limit)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "down KEY_A")
	require.Contains(t, lines[1], "up   KEY_A")
}

// TestPerform_Watch prints only layer changes until the context ends.
func TestPerform_Watch(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		base := &domain.Status{ActiveLayers: []keyboard.LayerID{0}, LayerNames: []string{"base", "nav"}}
		nav := &domain.Status{ActiveLayers: []keyboard.LayerID{0, 1}, LayerNames: []string{"base", "nav"}}

		client := &fakeClient{statuses: []*domain.Status{base, base, nav, nav, base}}

		ctx, cancel := context.WithTimeout(t.Context(), 550*time.Millisecond)
		defer cancel()

		var out bytes.Buffer

		require.NoError(t, perform(ctx, client, &Options{Action: ActionWatch, PollInterval: 100 * time.Millisecond, Output: &out}))
		require.Equal(t, "base\nbase nav\nbase\n", out.String())
	})
}

// TestPerform_UnknownAction rejects unsupported actions.
func TestPerform_UnknownAction(t *testing.T) {
	t.Parallel()

	err := perform(t.Context(), &fakeClient{}, &Options{Action: "reboot"})
	require.ErrorIs(t, err, errUnknownAction)
}

// TestFormatStatus_Deadline shows the expiry of a pending timer.
func TestFormatStatus_Deadline(t *testing.T) {
	t.Parallel()

	status := armedStatus()
	status.Behaviors[0].TimerPending = true
	status.Behaviors[0].Deadline = time.Date(2026, 1, 2, 3, 4, 5, 600_000_000, time.Local)

	require.Contains(t, FormatStatus(status), ", expires 03:04:05.600\n")
}

// TestLayerName falls back to the index for unnamed layers.
func TestLayerName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "nav", layerName([]string{"base", "nav"}, 1))
	require.Equal(t, "#4", layerName([]string{"base", "nav"}, 4))
}
