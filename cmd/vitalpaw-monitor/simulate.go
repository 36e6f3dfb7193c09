package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mqttcommon "vitalpaw-monitor/common/mqtt"
	"vitalpaw-monitor/internal/simulator"
)

func simulateCmd() *cobra.Command {
	var (
		scenario    string
		count       int
		interval    time.Duration
		topicPrefix string
		seed        int64
	)

	cmd := &cobra.Command{
		Use:   "simulate <device-id>",
		Short: "Publish synthetic collar telemetry to the broker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			mqttCfg := cfg.MQTT.MQTTConfig
			mqttCfg.ClientID = cfg.MQTT.ClientID + "-simulator"
			client, err := mqttcommon.NewClient(&mqttCfg, logger)
			if err != nil {
				return err
			}
			defer client.Disconnect()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			sim := simulator.New(client, topicPrefix, cfg.MQTT.QoS, seed, logger)
			sent, err := sim.Run(ctx, args[0], scenario, count, interval)
			fmt.Printf("Published %d samples for %s (%s)\n", sent, args[0], scenario)
			return err
		},
	}

	cmd.Flags().StringVarP(&scenario, "scenario", "s", simulator.Normal,
		"One of: "+strings.Join(simulator.Scenarios, ", "))
	cmd.Flags().IntVarP(&count, "count", "n", 100, "Number of samples")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "Delay between samples")
	cmd.Flags().StringVar(&topicPrefix, "topic-prefix", "pet/biometric", "Topic prefix; the device id is appended")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "Random seed")
	return cmd
}
