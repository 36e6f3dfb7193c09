package models

import (
	"fmt"
	"math"
)

// Thresholds is the normal physiological range for a breed.
type Thresholds struct {
	Breed          string  `json:"breed"`
	MinHeartRate   int     `json:"minHeartRate"`
	MaxHeartRate   int     `json:"maxHeartRate"`
	MinTemperature float64 `json:"minTemperature"`
	MaxTemperature float64 `json:"maxTemperature"`
}

// Validate checks that both ranges are ordered and finite.
func (t Thresholds) Validate() error {
	if t.MinHeartRate < 0 || t.MinHeartRate > t.MaxHeartRate {
		return fmt.Errorf("invalid heart rate range [%d, %d]", t.MinHeartRate, t.MaxHeartRate)
	}
	if math.IsNaN(t.MinTemperature) || math.IsInf(t.MinTemperature, 0) ||
		math.IsNaN(t.MaxTemperature) || math.IsInf(t.MaxTemperature, 0) {
		return fmt.Errorf("non-finite temperature range")
	}
	if t.MinTemperature > t.MaxTemperature {
		return fmt.Errorf("invalid temperature range [%.1f, %.1f]", t.MinTemperature, t.MaxTemperature)
	}
	return nil
}
