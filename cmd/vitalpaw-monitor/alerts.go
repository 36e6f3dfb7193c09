package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	rediscommon "vitalpaw-monitor/common/redis"
	"vitalpaw-monitor/internal/sink"
)

func alertsCmd() *cobra.Command {
	var (
		group    string
		consumer string
	)

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Follow the alert event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			client := rediscommon.NewRedisClient(&cfg.Redis)
			defer rediscommon.Close(client)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			reader, err := sink.NewStreamReader(ctx, client, cfg.Sink.Stream, group, consumer, logger)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			for {
				events, err := reader.Read(ctx, 50, 5*time.Second)
				if err != nil {
					if errors.Is(ctx.Err(), context.Canceled) {
						return nil
					}
					return fmt.Errorf("alert stream: %w", err)
				}
				for _, e := range events {
					if err := enc.Encode(e); err != nil {
						return err
					}
				}
			}
		},
	}

	hostname, _ := os.Hostname()
	cmd.Flags().StringVar(&group, "group", "vitalpaw-cli", "Consumer group")
	cmd.Flags().StringVar(&consumer, "consumer", hostname, "Consumer name within the group")
	return cmd
}
