// Package simulator publishes synthetic collar telemetry for local testing.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Scenarios.
const (
	Normal      = "normal"
	Fever       = "fever"
	Tachycardia = "tachycardia"
	Fall        = "fall"
	Immobile    = "immobile"
)

// Scenarios lists the supported scenario names.
var Scenarios = []string{Normal, Fever, Tachycardia, Fall, Immobile}

// fallEvery is the sample period of the spike in the fall scenario.
const fallEvery = 10

// Publisher sends one MQTT message.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Payload is one telemetry message in the collar wire format.
type Payload struct {
	DeviceID      string  `json:"deviceId"`
	HeartRate     int     `json:"heartRate"`
	Temperature   float64 `json:"temperature"`
	Accelerometer float64 `json:"accelerometer"`
	Timestamp     int64   `json:"timestamp"`
}

// Simulator generates readings for one device.
type Simulator struct {
	pub         Publisher
	topicPrefix string
	qos         byte
	rnd         *rand.Rand
	logger      *zap.Logger
}

// New creates a simulator publishing to <topicPrefix>/<deviceId>.
func New(pub Publisher, topicPrefix string, qos byte, seed int64, logger *zap.Logger) *Simulator {
	return &Simulator{
		pub:         pub,
		topicPrefix: topicPrefix,
		qos:         qos,
		rnd:         rand.New(rand.NewSource(seed)),
		logger:      logger,
	}
}

// Next builds sample seq of scenario for deviceID.
func (s *Simulator) Next(deviceID, scenario string, seq int, at time.Time) (Payload, error) {
	p := Payload{
		DeviceID:      deviceID,
		HeartRate:     70 + s.rnd.Intn(40),
		Temperature:   round1(38.0 + s.rnd.Float64()),
		Accelerometer: round1(1.5 + s.rnd.Float64()*2),
		Timestamp:     at.UnixMilli(),
	}

	switch scenario {
	case Normal:
	case Fever:
		p.Temperature = round1(40.0 + s.rnd.Float64())
	case Tachycardia:
		p.HeartRate = 140 + s.rnd.Intn(30)
	case Fall:
		p.Accelerometer = 0.2
		if seq%fallEvery == fallEvery-1 {
			p.Accelerometer = 25.0
		}
	case Immobile:
		p.Accelerometer = 0.1
	default:
		return Payload{}, fmt.Errorf("unknown scenario %q", scenario)
	}
	return p, nil
}

// Run publishes count samples spaced by interval, stopping early when ctx is
// cancelled.
func (s *Simulator) Run(ctx context.Context, deviceID, scenario string, count int, interval time.Duration) (int, error) {
	topic := s.topicPrefix + "/" + deviceID
	start := time.Now()

	sent := 0
	for seq := 0; seq < count; seq++ {
		p, err := s.Next(deviceID, scenario, seq, start.Add(time.Duration(seq)*interval))
		if err != nil {
			return sent, err
		}
		body, err := json.Marshal(p)
		if err != nil {
			return sent, err
		}
		if err := s.pub.Publish(topic, s.qos, false, body); err != nil {
			return sent, fmt.Errorf("failed to publish sample %d: %w", seq, err)
		}
		sent++

		if interval > 0 {
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-time.After(interval):
			}
		} else if ctx.Err() != nil {
			return sent, ctx.Err()
		}
	}

	s.logger.Info("Simulation finished",
		zap.String("device_id", deviceID),
		zap.String("scenario", scenario),
		zap.Int("samples", sent))
	return sent, nil
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
