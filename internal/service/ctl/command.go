package ctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oshokin/oneshot-layer/internal/config"
	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	"github.com/oshokin/oneshot-layer/internal/logger"
	"github.com/oshokin/oneshot-layer/internal/service/common"
)

// Action selects what oneshotctl does.
type Action string

// Supported actions.
const (
	ActionState     Action = "state"
	ActionPress     Action = "press"
	ActionRelease   Action = "release"
	ActionTap       Action = "tap"
	ActionEmissions Action = "emissions"
	ActionWatch     Action = "watch"
)

const (
	// DefaultTapHold is how long tap keeps the key down.
	DefaultTapHold = 20 * time.Millisecond
	// DefaultPollInterval is the watch polling interval.
	DefaultPollInterval = 250 * time.Millisecond
)

// errUnknownAction is returned for unsupported actions.
var errUnknownAction = errors.New("unknown action")

// Options configures a oneshotctl invocation.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides the control address from config when specified.
	ServerAddress string
	// Action is the operation to perform.
	Action Action
	// Position is the key position for press, release and tap.
	Position keyboard.Position
	// Hold is how long tap keeps the key down.
	Hold time.Duration
	// Limit caps the number of emissions listed. Zero lists all.
	Limit uint32
	// PollInterval is the watch polling interval.
	PollInterval time.Duration
	// Output receives the rendered results. Defaults to stdout.
	Output io.Writer
}

// controlClient is the part of common.Client the actions use.
type controlClient interface {
	stateReader
	PressKey(ctx context.Context, position keyboard.Position) error
	ReleaseKey(ctx context.Context, position keyboard.Position) error
	emissionLister
}

// Run connects to the daemon and performs opts.Action.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "oneshotctl")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := settings.ControlAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(settings.Timeout))
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Connected to daemon", "server_address", serverAddress, "action", opts.Action)

	return perform(ctx, client, opts)
}

// perform runs the action against client.
func perform(ctx context.Context, client controlClient, opts *Options) error {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	switch opts.Action {
	case ActionState:
		return printState(ctx, client, out)
	case ActionPress:
		return client.PressKey(ctx, opts.Position)
	case ActionRelease:
		return client.ReleaseKey(ctx, opts.Position)
	case ActionTap:
		return tap(ctx, client, opts.Position, opts.Hold)
	case ActionEmissions:
		return printEmissions(ctx, client, opts.Limit, out)
	case ActionWatch:
		return watch(ctx, client, opts.PollInterval, out)
	default:
		return fmt.Errorf("%w: %q", errUnknownAction, opts.Action)
	}
}

// tap presses position, holds it and releases it.
func tap(ctx context.Context, client controlClient, position keyboard.Position, hold time.Duration) error {
	if hold <= 0 {
		hold = DefaultTapHold
	}

	if err := client.PressKey(ctx, position); err != nil {
		return err
	}

	timer := time.NewTimer(hold)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	// Release even when canceled so the key is not left down.
	return client.ReleaseKey(context.WithoutCancel(ctx), position)
}
