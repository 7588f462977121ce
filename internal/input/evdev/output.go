package evdev

import (
	"context"
	"errors"
	"fmt"
	"slices"

	evdev "github.com/holoplot/go-evdev"

	"github.com/oshokin/oneshot-layer/internal/hid"
	"github.com/oshokin/oneshot-layer/internal/logger"
)

// DefaultOutputName is the name of the virtual keyboard.
const DefaultOutputName = "oneshot-layer virtual keyboard"

// Writer is the part of a uinput device the output writes to.
type Writer interface {
	WriteOne(ev *evdev.InputEvent) error
	Close() error
}

// Output replays emissions on a virtual keyboard. It is the way keys reach
// the host while the physical device is grabbed.
type Output struct {
	// dev is the virtual device.
	dev Writer
	// destroy removes the virtual device from the system.
	destroy func() error
}

// CreateOutput registers a uinput keyboard able to send every known keycode.
func CreateOutput(ctx context.Context, name string) (*Output, error) {
	if name == "" {
		name = DefaultOutputName
	}

	codes := make([]evdev.EvCode, 0, len(evdev.KEYToString))
	for code := range evdev.KEYToString {
		codes = append(codes, code)
	}

	slices.Sort(codes)

	dev, err := evdev.CreateDevice(name, evdev.InputID{BusType: evdev.BUS_USB, Vendor: 0x1, Product: 0x1, Version: 1},
		map[evdev.EvType][]evdev.EvCode{evdev.EV_KEY: codes})
	if err != nil {
		return nil, fmt.Errorf("create virtual keyboard: %w", err)
	}

	logger.InfoKV(ctx, "Virtual keyboard created", "name", name, "keys", len(codes))

	return &Output{
		dev:     dev,
		destroy: func() error { return evdev.DestroyDevice(dev) },
	}, nil
}

// NewOutput wraps an already created device.
func NewOutput(dev Writer) *Output {
	return &Output{dev: dev}
}

// Emit writes the key event followed by a sync report.
func (o *Output) Emit(e hid.Emission) error {
	value := valueRelease
	if e.Pressed {
		value = valuePress
	}

	if err := o.dev.WriteOne(&evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.EvCode(e.Keycode), Value: value}); err != nil {
		return fmt.Errorf("write key event: %w", err)
	}

	if err := o.dev.WriteOne(&evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT}); err != nil {
		return fmt.Errorf("write sync event: %w", err)
	}

	return nil
}

// Close removes the virtual keyboard.
func (o *Output) Close() error {
	var destroyErr error
	if o.destroy != nil {
		destroyErr = o.destroy()
	}

	return errors.Join(destroyErr, o.dev.Close())
}
