package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vitalpaw-monitor/internal/service"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			logger.Info("Starting vitalpaw-monitor",
				zap.String("mqtt_broker", cfg.MQTT.Broker),
				zap.Strings("topics", cfg.MQTT.Topics),
			)

			monitor, err := service.NewMonitorService(cfg, logger)
			if err != nil {
				logger.Error("Failed to create monitor service", zap.Error(err))
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := monitor.Start(ctx); err != nil {
				logger.Error("Failed to start monitor service", zap.Error(err))
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			sig := <-sigChan
			logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Monitor.DrainGrace+5*time.Second)
			defer shutdownCancel()
			if err := monitor.Stop(shutdownCtx); err != nil {
				logger.Error("Error during shutdown", zap.Error(err))
			}

			logger.Info("Service stopped")
			return nil
		},
	}
}
