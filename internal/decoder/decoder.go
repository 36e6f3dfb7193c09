// Package decoder turns raw collar telemetry into VitalReadings.
//
// Payloads are small JSON objects:
//
//	{"deviceId":"collar-7","heartRate":92,"temperature":38.4,"accelerometer":0.3}
//	{"sensorId":"collar-7","pulse":92,"temperature":38.4,"accelX":0.1,"accelY":0.2,"accelZ":9.7,"timestamp":1718000000000}
//
// Anything unexpected is rejected with a DecodeError naming the field.
package decoder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"vitalpaw-monitor/internal/models"
)

// Physical upper bounds; values above them are sensor faults.
const (
	MaxHeartRate   = 600
	MaxTemperature = 60.0
)

// DecodeError reports the field that made a payload unusable.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return "decode telemetry: " + e.Reason
	}
	return fmt.Sprintf("decode telemetry field %q: %s", e.Field, e.Reason)
}

var knownFields = map[string]struct{}{
	"deviceId":      {},
	"sensorId":      {},
	"petId":         {},
	"heartRate":     {},
	"pulse":         {},
	"temperature":   {},
	"accelerometer": {},
	"accelX":        {},
	"accelY":        {},
	"accelZ":        {},
	"timestamp":     {},
}

// Decode parses payload received on topic. now is used when the payload has
// no timestamp.
func Decode(topic string, payload []byte, now time.Time) (models.VitalReading, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return models.VitalReading{}, &DecodeError{Reason: "payload is not a JSON object: " + err.Error()}
	}
	for name, raw := range fields {
		if _, ok := knownFields[name]; !ok {
			return models.VitalReading{}, &DecodeError{Field: name, Reason: "unknown field"}
		}
		if isNull(raw) {
			delete(fields, name)
		}
	}

	reading := models.VitalReading{Topic: topic}
	var err error

	if reading.DeviceID, err = deviceID(topic, fields); err != nil {
		return models.VitalReading{}, err
	}
	if raw, ok := fields["petId"]; ok {
		if reading.PetID, err = stringField("petId", raw); err != nil {
			return models.VitalReading{}, err
		}
	}
	if reading.HeartRate, err = heartRate(fields); err != nil {
		return models.VitalReading{}, err
	}
	if reading.TemperatureC, err = temperature(fields); err != nil {
		return models.VitalReading{}, err
	}
	if reading.Accel, err = accel(fields); err != nil {
		return models.VitalReading{}, err
	}
	if reading.ObservedAt, err = timestamp(fields, now); err != nil {
		return models.VitalReading{}, err
	}

	return reading, nil
}

// TopicDeviceID returns the last segment of topic, e.g. "collar-7" for
// "pet/biometric/collar-7".
func TopicDeviceID(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		topic = topic[i+1:]
	}
	if topic == "+" || topic == "#" {
		return ""
	}
	return strings.TrimSpace(topic)
}

func deviceID(topic string, fields map[string]json.RawMessage) (string, error) {
	field, raw, err := alias(fields, "deviceId", "sensorId")
	if err != nil {
		return "", err
	}

	fromTopic := TopicDeviceID(topic)
	if raw == nil {
		if fromTopic == "" {
			return "", &DecodeError{Field: "deviceId", Reason: "missing"}
		}
		return fromTopic, nil
	}

	id, err := stringField(field, raw)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", &DecodeError{Field: field, Reason: "empty"}
	}
	if fromTopic != "" && fromTopic != id {
		return "", &DecodeError{Field: field, Reason: fmt.Sprintf("%q does not match topic device %q", id, fromTopic)}
	}
	return id, nil
}

func heartRate(fields map[string]json.RawMessage) (int, error) {
	field, raw, err := alias(fields, "heartRate", "pulse")
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, &DecodeError{Field: "heartRate", Reason: "missing"}
	}
	v, err := numberField(field, raw)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, &DecodeError{Field: field, Reason: "must be a whole number"}
	}
	if v < 0 || v > MaxHeartRate {
		return 0, &DecodeError{Field: field, Reason: fmt.Sprintf("out of range: %v", v)}
	}
	return int(v), nil
}

func temperature(fields map[string]json.RawMessage) (float64, error) {
	raw, ok := fields["temperature"]
	if !ok {
		return 0, &DecodeError{Field: "temperature", Reason: "missing"}
	}
	v, err := numberField("temperature", raw)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > MaxTemperature {
		return 0, &DecodeError{Field: "temperature", Reason: fmt.Sprintf("out of range: %v", v)}
	}
	return v, nil
}

func accel(fields map[string]json.RawMessage) (models.Accel, error) {
	mag, hasMag := fields["accelerometer"]
	axes := [3]string{"accelX", "accelY", "accelZ"}
	present := 0
	for _, name := range axes {
		if _, ok := fields[name]; ok {
			present++
		}
	}

	switch {
	case hasMag && present > 0:
		return models.Accel{}, &DecodeError{Field: "accelerometer", Reason: "magnitude and axes are mutually exclusive"}
	case hasMag:
		m, err := numberField("accelerometer", mag)
		if err != nil {
			return models.Accel{}, err
		}
		if m < 0 {
			return models.Accel{}, &DecodeError{Field: "accelerometer", Reason: "magnitude must not be negative"}
		}
		return models.Accel{X: m}, nil
	case present == 0:
		return models.Accel{}, &DecodeError{Field: "accelerometer", Reason: "missing"}
	}

	var values [3]float64
	for i, name := range axes {
		raw, ok := fields[name]
		if !ok {
			return models.Accel{}, &DecodeError{Field: name, Reason: "missing"}
		}
		v, err := numberField(name, raw)
		if err != nil {
			return models.Accel{}, err
		}
		values[i] = v
	}
	return models.Accel{X: values[0], Y: values[1], Z: values[2]}, nil
}

func timestamp(fields map[string]json.RawMessage, now time.Time) (time.Time, error) {
	raw, ok := fields["timestamp"]
	if !ok {
		return now, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, &DecodeError{Field: "timestamp", Reason: "not RFC3339"}
		}
		return t, nil
	}

	ms, err := numberField("timestamp", raw)
	if err != nil {
		return time.Time{}, err
	}
	if ms <= 0 {
		return time.Time{}, &DecodeError{Field: "timestamp", Reason: "must be positive epoch milliseconds"}
	}
	return time.UnixMilli(int64(ms)), nil
}

// alias returns whichever of primary or secondary is present. Both present
// with different values is an error.
func alias(fields map[string]json.RawMessage, primary, secondary string) (string, json.RawMessage, error) {
	p, hasP := fields[primary]
	s, hasS := fields[secondary]
	switch {
	case hasP && hasS:
		if !bytes.Equal(bytes.TrimSpace(p), bytes.TrimSpace(s)) {
			return "", nil, &DecodeError{Field: secondary, Reason: "conflicts with " + primary}
		}
		return primary, p, nil
	case hasP:
		return primary, p, nil
	case hasS:
		return secondary, s, nil
	}
	return primary, nil, nil
}

func stringField(name string, raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &DecodeError{Field: name, Reason: "must be a string"}
	}
	return strings.TrimSpace(s), nil
}

func numberField(name string, raw json.RawMessage) (float64, error) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, &DecodeError{Field: name, Reason: "must be a number"}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &DecodeError{Field: name, Reason: "must be finite"}
	}
	return v, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
