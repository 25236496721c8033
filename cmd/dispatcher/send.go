// cmd/dispatcher/send.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"aci-dispatcher/internal/config"

	"github.com/spf13/cobra"
)

func newSendCmd(configFile *string) *cobra.Command {
	var queueName string

	cmd := &cobra.Command{
		Use:   "send <payload>",
		Short: "Put one message on the configured queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if queueName == "" {
				queueName = cfg.QueueName
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			queue, err := openQueue(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := queue.Close(context.Background()); err != nil {
					logger.Error("failed to close queue", "error", err)
				}
			}()

			if err := queue.Send(cmd.Context(), queueName, []byte(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d bytes to %s\n", len(args[0]), queueName)
			return nil
		},
	}
	cmd.Flags().StringVar(&queueName, "queue", "", "Queue to send to (default: queue_name from config)")
	return cmd
}
