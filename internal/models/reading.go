package models

import (
	"math"
	"time"
)

// Accel is one accelerometer sample.
type Accel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude returns the Euclidean norm of the three axes.
func (a Accel) Magnitude() float64 {
	return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
}

// VitalReading is a decoded telemetry sample. PetID is empty until resolved.
type VitalReading struct {
	DeviceID     string    `json:"device_id"`
	PetID        string    `json:"pet_id,omitempty"`
	HeartRate    int       `json:"heart_rate"`
	TemperatureC float64   `json:"temperature_c"`
	Accel        Accel     `json:"accel"`
	ObservedAt   time.Time `json:"observed_at"`
	Topic        string    `json:"topic,omitempty"`
}

// WithPetID returns a copy of r attributed to petID.
func (r VitalReading) WithPetID(petID string) VitalReading {
	r.PetID = petID
	return r
}

// PetProfile is what the registry knows about the pet wearing a device.
type PetProfile struct {
	PetID string
	Name  string
	Breed string
}
