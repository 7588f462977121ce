package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"

	grpcapi "github.com/oshokin/oneshot-layer/internal/api/grpc/control"
	"github.com/oshokin/oneshot-layer/internal/api/http/monitor"
	"github.com/oshokin/oneshot-layer/internal/config"
	"github.com/oshokin/oneshot-layer/internal/input/evdev"
	"github.com/oshokin/oneshot-layer/internal/logger"
	pb "github.com/oshokin/oneshot-layer/internal/pb/v1"
	repository "github.com/oshokin/oneshot-layer/internal/repository/status"
	"github.com/oshokin/oneshot-layer/internal/service/common"
	"github.com/oshokin/oneshot-layer/internal/service/engine"
	"github.com/oshokin/oneshot-layer/internal/version"
)

// Options controls the oneshotd process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the control address from settings.
	ListenAddress string
	// StatusFile overrides the status file from settings.
	StatusFile string
	// Device overrides the input device from settings.
	Device string
	// LogLevel overrides the log level from settings.
	LogLevel string
	// Watch reloads the settings when the file changes.
	Watch bool
	// AllowMultiple skips the check for another running daemon.
	AllowMultiple bool
}

// ErrAlreadyRunning indicates another daemon process was found.
var ErrAlreadyRunning = errors.New("another oneshotd instance is running")

// Run starts the daemon and blocks until ctx is canceled or a component fails.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "oneshotd")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyOverrides(settings, opts)

	if err := logger.SetLevelFromString(settings.LogLevel); err != nil {
		return fmt.Errorf("set log level: %w", err)
	}

	if !opts.AllowMultiple {
		pid, err := common.OtherInstance()
		if err != nil {
			logger.WarnKV(ctx, "Unable to check for other instances", "error", err)
		} else if pid != 0 {
			return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}
	}

	engineOpts, output, err := engineOptions(ctx, settings, evdev.CreateOutput)
	if err != nil {
		return err
	}

	if output != nil {
		defer func() {
			if err := output.Close(); err != nil {
				logger.WarnKV(ctx, "Failed to remove virtual keyboard", "error", err)
			}
		}()
	}

	eng, err := engine.New(ctx, settings, engineOpts...)
	if err != nil {
		return fmt.Errorf("initialise engine: %w", err)
	}

	// Bind listeners before starting anything so address errors fail fast.
	lc := net.ListenConfig{}

	controlListener, err := lc.Listen(ctx, "tcp", settings.ControlAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.ControlAddress, err)
	}

	var monitorListener net.Listener

	if settings.MetricsAddress != "" {
		monitorListener, err = lc.Listen(ctx, "tcp", settings.MetricsAddress)
		if err != nil {
			_ = controlListener.Close() //nolint:errcheck // Already failing.

			return fmt.Errorf("listen on %s: %w", settings.MetricsAddress, err)
		}
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup

	// run starts a component; the first failure stops the daemon.
	run := func(name string, fn func(context.Context) error) {
		wg.Go(func() {
			if err := fn(ctx); err != nil {
				logger.ErrorKV(ctx, "Component failed", "component", name, "error", err)
				cancel(fmt.Errorf("%s: %w", name, err))
			}
		})
	}

	run("engine", eng.Run)
	run("control", func(ctx context.Context) error { return serveControl(ctx, controlListener, eng) })

	if monitorListener != nil {
		run("monitor", func(ctx context.Context) error {
			return monitor.NewServer(eng, nil).Serve(ctx, monitorListener)
		})
	}

	if settings.StatusFile != "" {
		writer := newStatusWriter(repository.NewFileRepository(settings.StatusFile), eng)
		run("status-file", writer.Run)
	}

	if settings.Device != "" {
		if err := startInput(ctx, settings, eng, run); err != nil {
			cancel(err)
		}
	}

	if opts.Watch {
		watcher, err := config.NewWatcher(opts.ConfigPath, func(updated *config.Config) {
			applyOverrides(updated, opts)

			if err := eng.Reload(ctx, updated); err != nil {
				logger.WarnKV(ctx, "Reload rejected", "error", err)
			}
		})
		if err != nil {
			cancel(err)
		} else {
			run("watcher", watcher.Run)
		}
	}

	logger.InfoKV(ctx, "Daemon started",
		"version", version.Short(),
		"control_address", settings.ControlAddress,
		"metrics_address", settings.MetricsAddress,
		"device", settings.Device,
		"status_file", settings.StatusFile,
	)

	<-ctx.Done()
	wg.Wait()

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}

	logger.Info(ctx, "Daemon stopped")

	return nil
}

// applyOverrides replaces settings with command line values.
func applyOverrides(settings *config.Config, opts *Options) {
	if opts.ListenAddress != "" {
		settings.ControlAddress = opts.ListenAddress
	}

	if opts.StatusFile != "" {
		settings.StatusFile = opts.StatusFile
	}

	if opts.Device != "" {
		settings.Device = opts.Device
	}

	if opts.LogLevel != "" {
		settings.LogLevel = opts.LogLevel
	}
}

// outputFactory creates the virtual keyboard.
type outputFactory func(ctx context.Context, name string) (*evdev.Output, error)

// engineOptions routes emissions to a virtual keyboard when the input device
// is grabbed, since the host no longer sees its keys directly.
func engineOptions(
	ctx context.Context,
	settings *config.Config,
	create outputFactory,
) ([]engine.Option, *evdev.Output, error) {
	if settings.Device == "" || !settings.Grab {
		return nil, nil, nil
	}

	output, err := create(ctx, evdev.DefaultOutputName)
	if err != nil {
		return nil, nil, err
	}

	return []engine.Option{engine.WithSink(output)}, output, nil
}

// startInput opens the device and starts reading it.
func startInput(
	ctx context.Context,
	settings *config.Config,
	eng *engine.Engine,
	run func(string, func(context.Context) error),
) error {
	positions, err := settings.PositionMap()
	if err != nil {
		return fmt.Errorf("position map: %w", err)
	}

	dev, err := evdev.Open(ctx, settings.Device, settings.Grab)
	if err != nil {
		return err
	}

	run("input", evdev.NewSource(ctx, dev, positions, eng).Run)

	return nil
}

// serveControl runs the gRPC control service until ctx is canceled.
func serveControl(ctx context.Context, lis net.Listener, svc grpcapi.Service) error {
	grpcServer := grpc.NewServer()
	pb.RegisterControlServiceServer(grpcServer, grpcapi.NewServer(svc))

	logger.InfoKV(ctx, "Control service listening", "listen_address", lis.Addr().String())

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}
