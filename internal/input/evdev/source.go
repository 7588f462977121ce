package evdev

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"go.uber.org/zap"

	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	"github.com/oshokin/oneshot-layer/internal/logger"
)

// Key event values reported by the kernel.
const (
	valueRelease int32 = 0
	valuePress   int32 = 1
	valueRepeat  int32 = 2
)

// errSubmitterStopped is returned when the engine stopped accepting events.
var errSubmitterStopped = errors.New("event submitter stopped")

// Device is the part of an evdev input device the source reads from.
type Device interface {
	ReadOne() (*evdev.InputEvent, error)
	Close() error
}

// Submitter accepts physical position events.
type Submitter interface {
	Submit(ev keyboard.PositionChanged) bool
}

// Open opens the input device at path, optionally grabbing it exclusively
// so its keys no longer reach other readers.
func Open(ctx context.Context, path string, grab bool) (*evdev.InputDevice, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input device %s: %w", path, err)
	}

	name, err := dev.Name()
	if err != nil {
		name = path
	}

	if grab {
		if err := dev.Grab(); err != nil {
			_ = dev.Close() //nolint:errcheck // Already failing.

			return nil, fmt.Errorf("grab input device %s: %w", path, err)
		}
	}

	logger.InfoKV(ctx, "Input device opened", "path", path, "name", name, "grab", grab)

	return dev, nil
}

// Source turns key events of one device into position events.
type Source struct {
	// dev is the device being read.
	dev Device
	// positions maps keycodes to positions; nil means the keycode is the position.
	positions map[keyboard.Keycode]keyboard.Position
	// submitter receives translated events.
	submitter Submitter
	// log is the source logger.
	log *zap.SugaredLogger
}

// NewSource creates a source reading dev.
func NewSource(
	ctx context.Context,
	dev Device,
	positions map[keyboard.Keycode]keyboard.Position,
	submitter Submitter,
) *Source {
	return &Source{
		dev:       dev,
		positions: positions,
		submitter: submitter,
		log:       logger.FromContext(ctx).Named("evdev"),
	}
}

// Run reads events until ctx is canceled or the device fails.
// The device is closed when Run returns.
func (s *Source) Run(ctx context.Context) error {
	var (
		closeOnce sync.Once
		closeDev  = func() {
			closeOnce.Do(func() {
				if err := s.dev.Close(); err != nil {
					s.log.Debugw("Closing input device failed", "error", err)
				}
			})
		}
		stopped = make(chan struct{})
	)

	defer close(stopped)
	defer closeDev()

	// Closing the device unblocks ReadOne.
	go func() {
		select {
		case <-ctx.Done():
			closeDev()
		case <-stopped:
		}
	}()

	for {
		ev, err := s.dev.ReadOne()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("read input event: %w", err)
		}

		position, ok := s.translate(ev)
		if !ok {
			continue
		}

		if !s.submitter.Submit(position) {
			return errSubmitterStopped
		}
	}
}

// translate converts a kernel event into a position event.
// Non-key events, auto-repeat and unmapped keys are dropped.
func (s *Source) translate(ev *evdev.InputEvent) (keyboard.PositionChanged, bool) {
	if ev == nil || ev.Type != evdev.EV_KEY {
		return keyboard.PositionChanged{}, false
	}

	var pressed bool

	switch ev.Value {
	case valuePress:
		pressed = true
	case valueRelease:
	case valueRepeat:
		return keyboard.PositionChanged{}, false
	default:
		return keyboard.PositionChanged{}, false
	}

	code := keyboard.Keycode(ev.Code)
	position := keyboard.Position(code)

	if s.positions != nil {
		mapped, ok := s.positions[code]
		if !ok {
			s.log.Debugw("Ignoring unmapped key", "key", code.String())

			return keyboard.PositionChanged{}, false
		}

		position = mapped
	}

	var timestamp time.Time
	if sec, nsec := ev.Time.Unix(); sec != 0 || nsec != 0 {
		timestamp = time.Unix(sec, nsec)
	}

	return keyboard.PositionChanged{
		Position:  position,
		Pressed:   pressed,
		Timestamp: timestamp,
	}, true
}
