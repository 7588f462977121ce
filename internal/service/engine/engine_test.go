package engine

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/oneshot-layer/internal/config"
	"github.com/oshokin/oneshot-layer/internal/dispatch"
	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	domain "github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	"github.com/oshokin/oneshot-layer/internal/hid"
	"github.com/oshokin/oneshot-layer/internal/metrics"
)

const (
	keyA    keyboard.Keycode = 30
	keyB    keyboard.Keycode = 48
	keyLeft keyboard.Keycode = 105
)

// recordingSink collects emissions forwarded by the report.
type recordingSink struct {
	// emissions holds every forwarded emission.
	emissions []hid.Emission
}

func (s *recordingSink) Emit(e hid.Emission) error {
	s.emissions = append(s.emissions, e)

	return nil
}

// startEngine runs e until the returned stop function is called.
func startEngine(t *testing.T, e *Engine) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		_ = e.Run(ctx) //nolint:errcheck // Run only returns nil.
	}()

	return func() {
		cancel()
		<-e.Done()
	}
}

// newEngine builds an engine over a ten-position keymap. The trigger of
// behavior name sits at position 5 and targets layer target. Position 9 is
// KEY_A on the base layer and KEY_LEFT on every other layer. Position 8 is
// KEY_B everywhere.
func newEngine(t *testing.T, name string, cfg domain.Config, target string) *Engine {
	t.Helper()

	settings := &config.Config{
		Behaviors: []config.Behavior{{Name: name, Config: cfg}},
		Layers:    testLayers("&" + name + " " + target),
	}

	e, err := New(context.Background(), settings)
	require.NoError(t, err)

	return e
}

func testLayers(trigger string) []config.Layer {
	base := make([]string, 10)
	base[5] = trigger
	base[8] = "&kp KEY_B"
	base[9] = "&kp KEY_A"

	upper := func(name string) config.Layer {
		bindings := make([]string, 10)
		bindings[9] = "&kp KEY_LEFT"

		return config.Layer{Name: name, Bindings: bindings}
	}

	return []config.Layer{{Name: "base", Bindings: base}, upper("l1"), upper("l2"), upper("l3")}
}

func tap(t *testing.T, e *Engine, position keyboard.Position) {
	t.Helper()

	require.NoError(t, e.Press(context.Background(), position))
	require.NoError(t, e.Release(context.Background(), position))
}

func activeLayers(t *testing.T, e *Engine) []keyboard.LayerID {
	t.Helper()

	status, err := e.Status(context.Background())
	require.NoError(t, err)

	return status.ActiveLayers
}

func pressed(t *testing.T, e *Engine) []hid.Emission {
	t.Helper()

	emissions, err := e.Emissions(context.Background(), 0)
	require.NoError(t, err)

	var out []hid.Emission

	for _, em := range emissions {
		if em.Pressed {
			out = append(out, em)
		}
	}

	return out
}

// TestEngine_TimeoutDisarmsExactlyAtDeadline arms layer 3 with an 800ms
// timeout and no cancel policy, and checks the layer is on at 799ms and off at 800ms.
func TestEngine_TimeoutDisarmsExactlyAtDeadline(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		e := newEngine(t, "s1osl", domain.Config{Timeout: 800 * time.Millisecond}, "l3")
		stop := startEngine(t, e)
		defer stop()

		start := time.Now()

		tap(t, e, 5)
		require.Equal(t, []keyboard.LayerID{0, 3}, activeLayers(t, e))

		status, err := e.Status(context.Background())
		require.NoError(t, err)
		require.True(t, status.Behaviors[0].TimerPending)
		require.Equal(t, start.Add(800*time.Millisecond), status.Behaviors[0].Deadline)

		time.Sleep(799 * time.Millisecond)
		synctest.Wait()
		require.Equal(t, []keyboard.LayerID{0, 3}, activeLayers(t, e))

		time.Sleep(time.Millisecond)
		synctest.Wait()
		require.Equal(t, []keyboard.LayerID{0}, activeLayers(t, e))
		require.InDelta(t, 1, testutil.ToFloat64(metrics.DisarmsTotal.WithLabelValues("s1osl", "timeout")), 0)
		require.Empty(t, pressed(t, e))
	})
}

// TestEngine_FirstTranslatedPressCancelsTimer presses a key 50ms after
// arming and checks it is produced on the one-shot layer, the layer drops
// at 50ms and the timer never fires.
func TestEngine_FirstTranslatedPressCancelsTimer(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		e := newEngine(t, "s2osl", domain.Config{
			Timeout: time.Second,
			Policy:  domain.PolicyOnFirstTranslatedKeyPress,
		}, "l1")
		stop := startEngine(t, e)
		defer stop()

		require.NoError(t, e.Press(context.Background(), 5))
		require.Equal(t, []keyboard.LayerID{0, 1}, activeLayers(t, e))

		time.Sleep(50 * time.Millisecond)
		tap(t, e, 9)
		require.Equal(t, []keyboard.LayerID{0}, activeLayers(t, e))

		emissions := pressed(t, e)
		require.Len(t, emissions, 1)
		require.Equal(t, keyLeft, emissions[0].Keycode)
		require.Equal(t, keyboard.LayerID(1), emissions[0].Layer)

		time.Sleep(2 * time.Second)
		synctest.Wait()

		require.Zero(t, testutil.ToFloat64(metrics.DisarmsTotal.WithLabelValues("s2osl", "timeout")))
		require.InDelta(t, 1, testutil.ToFloat64(metrics.DisarmsTotal.WithLabelValues("s2osl", "translated_press")), 0)

		require.NoError(t, e.Release(context.Background(), 5))
		require.Equal(t, []keyboard.LayerID{0}, activeLayers(t, e))
	})
}

// TestEngine_ForeignPressIsProducedOnBaseLayer checks that with the
// physical-press policy the interrupting key is translated after the disarm.
func TestEngine_ForeignPressIsProducedOnBaseLayer(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		e := newEngine(t, "p4osl", domain.Config{Policy: domain.PolicyOnAnyOtherPhysicalPress}, "l2")
		stop := startEngine(t, e)
		defer stop()

		tap(t, e, 5)
		require.Equal(t, []keyboard.LayerID{0, 2}, activeLayers(t, e))

		require.NoError(t, e.Press(context.Background(), 9))
		require.Equal(t, []keyboard.LayerID{0}, activeLayers(t, e))
		require.NoError(t, e.Release(context.Background(), 9))

		emissions := pressed(t, e)
		require.Len(t, emissions, 1)
		require.Equal(t, keyA, emissions[0].Keycode)
		require.Equal(t, keyboard.LayerID(0), emissions[0].Layer)
	})
}

// TestEngine_UseOnce checks that exactly one key is produced on the one-shot
// layer for both use-once policies.
func TestEngine_UseOnce(t *testing.T) {
	t.Parallel()

	policies := map[string]domain.Policy{
		"p5osl":  domain.PolicyOnFirstTranslatedKeyPress,
		"p5aosl": domain.PolicyOnFirstTranslatedKeyPressAfterEmission,
	}

	for name, policy := range policies {
		t.Run(policy.String(), func(t *testing.T) {
			t.Parallel()

			synctest.Test(t, func(t *testing.T) {
				e := newEngine(t, name, domain.Config{Policy: policy}, "l2")
				stop := startEngine(t, e)
				defer stop()

				tap(t, e, 5)
				require.Equal(t, []keyboard.LayerID{0, 2}, activeLayers(t, e))

				tap(t, e, 9)
				require.Equal(t, []keyboard.LayerID{0}, activeLayers(t, e))

				tap(t, e, 9)
				tap(t, e, 8)

				emissions := pressed(t, e)
				require.Len(t, emissions, 3)
				require.Equal(t, hid.Emission{Keycode: keyLeft, Pressed: true, Position: 9, Layer: 2, Timestamp: emissions[0].Timestamp}, emissions[0])
				require.Equal(t, keyA, emissions[1].Keycode)
				require.Equal(t, keyboard.LayerID(0), emissions[1].Layer)
				require.Equal(t, keyB, emissions[2].Keycode)
			})
		})
	}
}

// TestEngine_HeldKeyReleasesPressedKeycode checks that a key pressed on the
// one-shot layer releases the same keycode after the layer dropped.
func TestEngine_HeldKeyReleasesPressedKeycode(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		e := newEngine(t, "heldosl", domain.Config{Policy: domain.PolicyOnFirstTranslatedKeyPress}, "l1")
		stop := startEngine(t, e)
		defer stop()

		tap(t, e, 5)
		require.NoError(t, e.Press(context.Background(), 9))

		status, err := e.Status(context.Background())
		require.NoError(t, err)
		require.Equal(t, []keyboard.Keycode{keyLeft}, status.HeldKeys)

		require.NoError(t, e.Release(context.Background(), 9))

		status, err = e.Status(context.Background())
		require.NoError(t, err)
		require.Empty(t, status.HeldKeys)

		emissions, err := e.Emissions(context.Background(), 0)
		require.NoError(t, err)
		require.Len(t, emissions, 2)
		require.Equal(t, keyLeft, emissions[1].Keycode)
		require.False(t, emissions[1].Pressed)
	})
}

// TestEngine_RearmSwitchesLayer checks that a second trigger moves the arming
// to the new layer without leaving the first one on.
func TestEngine_RearmSwitchesLayer(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		settings := &config.Config{
			Behaviors: []config.Behavior{{Name: "rearmosl", Config: domain.Config{Timeout: time.Second}}},
			Layers:    testLayers("&rearmosl l1"),
		}
		settings.Layers[0].Bindings[6] = "&rearmosl l3"

		e, err := New(context.Background(), settings)
		require.NoError(t, err)

		stop := startEngine(t, e)
		defer stop()

		tap(t, e, 5)
		time.Sleep(600 * time.Millisecond)
		tap(t, e, 6)
		require.Equal(t, []keyboard.LayerID{0, 3}, activeLayers(t, e))

		// The first timer would have fired at 1s.
		time.Sleep(500 * time.Millisecond)
		synctest.Wait()
		require.Equal(t, []keyboard.LayerID{0, 3}, activeLayers(t, e))

		time.Sleep(500 * time.Millisecond)
		synctest.Wait()
		require.Equal(t, []keyboard.LayerID{0}, activeLayers(t, e))
		require.InDelta(t, 1, testutil.ToFloat64(metrics.DisarmsTotal.WithLabelValues("rearmosl", "rearm")), 0)
	})
}

// TestEngine_Reload checks that reloading disarms the old pipeline and that
// an invalid configuration is rejected without side effects.
func TestEngine_Reload(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		e := newEngine(t, "reloadosl", domain.Config{Policy: domain.PolicyOnAnyOtherPhysicalPress}, "l1")
		stop := startEngine(t, e)
		defer stop()

		tap(t, e, 5)
		require.Equal(t, []keyboard.LayerID{0, 1}, activeLayers(t, e))

		invalid := &config.Config{
			Behaviors: []config.Behavior{{Name: "reloadosl"}},
			Layers:    testLayers("&reloadosl l2"),
		}
		require.ErrorIs(t, e.Reload(context.Background(), invalid), domain.ErrPermanentArming)
		require.Equal(t, []keyboard.LayerID{0, 1}, activeLayers(t, e))

		valid := &config.Config{
			Behaviors: []config.Behavior{{Name: "reloadosl2", Config: domain.Config{Timeout: time.Second}}},
			Layers:    testLayers("&reloadosl2 l2"),
		}
		require.NoError(t, e.Reload(context.Background(), valid))
		require.Equal(t, []keyboard.LayerID{0}, activeLayers(t, e))
		require.InDelta(t, 1, testutil.ToFloat64(metrics.DisarmsTotal.WithLabelValues("reloadosl", "reset")), 0)

		tap(t, e, 5)
		require.Equal(t, []keyboard.LayerID{0, 2}, activeLayers(t, e))

		status, err := e.Status(context.Background())
		require.NoError(t, err)
		require.Len(t, status.Behaviors, 1)
		require.Equal(t, "reloadosl2", status.Behaviors[0].Name)
	})
}

// TestEngine_UpdatesAndEmissionLimit checks status publishing and emission paging.
func TestEngine_UpdatesAndEmissionLimit(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		e := newEngine(t, "updosl", domain.Config{Timeout: time.Second}, "l1")
		stop := startEngine(t, e)
		defer stop()

		require.NoError(t, e.Press(context.Background(), 5))

		update := <-e.Updates()
		require.Equal(t, []keyboard.LayerID{0, 1}, update.ActiveLayers)
		require.Len(t, update.Armed(), 1)

		tap(t, e, 8)
		tap(t, e, 8)

		emissions, err := e.Emissions(context.Background(), 3)
		require.NoError(t, err)
		require.Len(t, emissions, 3)
		require.False(t, emissions[0].Pressed)
		require.False(t, emissions[2].Pressed)

		// Only the latest status is kept.
		update = <-e.Updates()
		require.Equal(t, []keyboard.LayerID{0, 1}, update.ActiveLayers)

		time.Sleep(time.Second)
		synctest.Wait()

		update = <-e.Updates()
		require.Equal(t, []keyboard.LayerID{0}, update.ActiveLayers)
	})
}

// TestEngine_Submit checks asynchronous submission and the stopped engine.
func TestEngine_Submit(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		e := newEngine(t, "submitosl", domain.Config{Timeout: time.Second}, "l1")
		stop := startEngine(t, e)

		require.True(t, e.Submit(keyboard.PositionChanged{Position: 5, Pressed: true}))
		synctest.Wait()
		require.Equal(t, []keyboard.LayerID{0, 1}, activeLayers(t, e))

		stop()

		require.False(t, e.Submit(keyboard.PositionChanged{Position: 5}))
		require.ErrorIs(t, e.Press(context.Background(), 9), dispatch.ErrStopped)
	})
}

// TestNew_Errors checks construction failures.
func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), nil)
	require.ErrorIs(t, err, errConfigRequired)

	_, err = New(context.Background(), &config.Config{
		Layers: []config.Layer{{Name: "base", Bindings: []string{"&osl 1"}}},
	})
	require.Error(t, err)
}

// TestEngine_ReloadReleasesHeldKeys checks that a key held across a reload is
// released on the sink and that its later physical release is ignored.
func TestEngine_ReloadReleasesHeldKeys(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		sink := &recordingSink{}
		settings := &config.Config{Layers: testLayers("&none")}

		e, err := New(context.Background(), settings, WithSink(sink))
		require.NoError(t, err)

		stop := startEngine(t, e)
		defer stop()

		require.NoError(t, e.Press(context.Background(), 9))
		require.NoError(t, e.Reload(context.Background(), &config.Config{Layers: testLayers("&none")}))
		require.NoError(t, e.Release(context.Background(), 9))

		require.Len(t, sink.emissions, 2)
		require.Equal(t, keyA, sink.emissions[0].Keycode)
		require.True(t, sink.emissions[0].Pressed)
		require.Equal(t, keyA, sink.emissions[1].Keycode)
		require.False(t, sink.emissions[1].Pressed)

		status, err := e.Status(context.Background())
		require.NoError(t, err)
		require.Empty(t, status.HeldKeys)
	})
}
