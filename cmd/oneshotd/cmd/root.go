package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/oneshot-layer/internal/config"
	"github.com/oshokin/oneshot-layer/internal/service/daemon"
	"github.com/oshokin/oneshot-layer/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// statusFile path where the controller status is persisted.
	statusFile string
	// device is the evdev node to read key events from.
	device string
	// logLevel overrides the level from settings.
	logLevel string
	// watch enables settings hot reload.
	watch bool
	// allowMultiple skips the running instance check.
	allowMultiple bool

	// rootCmd represents the base command for running the daemon.
	rootCmd = &cobra.Command{
		Use:   "oneshotd [listen-address]",
		Short: "Run the one-shot layer daemon.",
		Long: `Starts the key pipeline with its one-shot layer behaviors.

Key events are read from an evdev device when one is configured and can also be
injected through the gRPC control service. Listen address can be provided as
argument to override config (e.g., 127.0.0.1:50061).
The current status is written to a JSON file whenever the active layers change.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return daemon.Run(ctx, &daemon.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StatusFile:    statusFile,
				Device:        device,
				LogLevel:      logLevel,
				Watch:         watch,
				AllowMultiple: allowMultiple,
			})
		},
	}
)

// Execute runs the oneshotd CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&statusFile, "status-file", "s", "", "path to persist controller status")
	flags.StringVarP(&device, "device", "d", "", "evdev device to read key events from")
	flags.StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")
	flags.BoolVarP(&watch, "watch", "w", false, "reload settings when the file changes")

	// Hidden flag for tests and side-by-side runs.
	flags.BoolVar(&allowMultiple, "allow-multiple", false, "skip the running instance check")

	err := flags.MarkHidden("allow-multiple")
	if err != nil {
		panic(err)
	}
}
