// Package commands implements the ctap2diag CLI commands.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/goctap/ctap2"
	"github.com/dantte-lp/goctap/device"
	"github.com/dantte-lp/goctap/internal/simulator"
)

var (
	// sess and dispatcher are the open session/dispatcher pair every
	// subcommand but version operates on, built in PersistentPreRunE.
	sess       *device.Session
	dispatcher *ctap2.Dispatcher

	logLevel string
	withPIN  string
)

var rootCmd = &cobra.Command{
	Use:   "ctap2diag",
	Short: "Interop smoke-test CLI for FIDO2/CTAP2 authenticators",
	Long: "ctap2diag opens a CTAP2 device session and runs individual " +
		"protocol operations against it, for interop testing without a " +
		"full WebAuthn relying party.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: levelFromString(logLevel),
		}))

		var opts []simulator.Option
		if withPIN != "" {
			opts = append(opts, simulator.WithPIN(withPIN))
		}
		dev := simulator.New(logger, opts...)

		sess = device.New(dev, logger)
		if err := sess.Open("simulator0"); err != nil {
			return fmt.Errorf("open device: %w", err)
		}

		dispatcher = ctap2.New(sess, logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if sess == nil {
			return nil
		}
		return sess.Close()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func levelFromString(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&withPIN, "with-pin", "", "pre-provision the simulated device with this PIN before running the command")

	rootCmd.AddCommand(infoCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(selectionCmd())
	rootCmd.AddCommand(setPINCmd())
	rootCmd.AddCommand(makeCredentialCmd())
	rootCmd.AddCommand(getAssertionCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
