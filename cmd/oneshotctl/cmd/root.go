package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/oneshot-layer/internal/config"
	"github.com/oshokin/oneshot-layer/internal/domain/keyboard"
	"github.com/oshokin/oneshot-layer/internal/service/ctl"
	"github.com/oshokin/oneshot-layer/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the control address from config.
	serverAddress string
	// options is shared by all subcommands.
	options ctl.Options

	// rootCmd represents the base command for the control client.
	rootCmd = &cobra.Command{
		Use:   "oneshotctl",
		Short: "Inspect and drive a running oneshotd.",
		Long: `Talks to oneshotd over its gRPC control service.

Server address is loaded from configuration file unless --server is given.`,
	}

	stateCmd = &cobra.Command{
		Use:   "state",
		Short: "Print active layers and behavior state.",
		Args:  cobra.NoArgs,
		RunE:  actionRunner(ctl.ActionState),
	}

	pressCmd = &cobra.Command{
		Use:   "press <position>",
		Short: "Press the key at position.",
		Args:  cobra.ExactArgs(1),
		RunE:  actionRunner(ctl.ActionPress),
	}

	releaseCmd = &cobra.Command{
		Use:   "release <position>",
		Short: "Release the key at position.",
		Args:  cobra.ExactArgs(1),
		RunE:  actionRunner(ctl.ActionRelease),
	}

	tapCmd = &cobra.Command{
		Use:   "tap <position>",
		Short: "Press and release the key at position.",
		Args:  cobra.ExactArgs(1),
		RunE:  actionRunner(ctl.ActionTap),
	}

	emissionsCmd = &cobra.Command{
		Use:   "emissions",
		Short: "List recent keycode emissions.",
		Args:  cobra.NoArgs,
		RunE:  actionRunner(ctl.ActionEmissions),
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Print active layers whenever they change.",
		Args:  cobra.NoArgs,
		RunE:  actionRunner(ctl.ActionWatch),
	}
)

// actionRunner builds a RunE that performs action.
func actionRunner(action ctl.Action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		opts := options
		opts.ConfigPath = cfgPath
		opts.ServerAddress = serverAddress
		opts.Action = action
		opts.Output = cmd.OutOrStdout()

		if len(args) > 0 {
			position, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid position %q: %w", args[0], err)
			}

			opts.Position = keyboard.Position(position)
		}

		return ctl.Run(ctx, &opts)
	}
}

// Execute runs the oneshotctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&serverAddress, "server", "s", "", "control service address")

	tapCmd.Flags().DurationVar(&options.Hold, "hold", ctl.DefaultTapHold, "how long to hold the key")
	emissionsCmd.Flags().Uint32VarP(&options.Limit, "limit", "n", 0, "number of most recent emissions, 0 for all")
	watchCmd.Flags().DurationVarP(&options.PollInterval, "interval", "i", ctl.DefaultPollInterval, "polling interval")

	rootCmd.AddCommand(stateCmd, pressCmd, releaseCmd, tapCmd, emissionsCmd, watchCmd)
}
