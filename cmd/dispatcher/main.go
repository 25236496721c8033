// cmd/dispatcher/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "aci-dispatcher",
		Short: "Provision a container instance for every message on a queue",
		Long: `aci-dispatcher polls a queue and, for each message it takes, creates an
Azure container group running the worker image with the message text in
the MESSAGE environment variable.

Running without a subcommand is the same as "run".`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatcher(cmd.Context(), configFile)
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: ./configs/config.yaml or ./config.yaml)")

	root.AddCommand(
		newRunCmd(&configFile),
		newSendCmd(&configFile),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "aci-dispatcher version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", commit)
		},
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// setupGracefulShutdown cancels the root context on SIGINT or SIGTERM. The
// returned func unregisters the handler.
func setupGracefulShutdown(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return func() { signal.Stop(sigChan) }
}
