package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vitalpaw-monitor/common/logger"
	"vitalpaw-monitor/internal/config"
)

const serviceName = "vitalpaw-monitor"

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "VitalPaw Monitor - pet vitals anomaly detection",
		Long: `Consumes collar telemetry over MQTT, detects fever, heart rate anomalies,
falls and immobility, stores alerts in PostgreSQL and notifies owners.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(alertsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, log, nil
}
