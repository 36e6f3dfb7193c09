package models

// MotionClass is the tracker's verdict for one sample.
type MotionClass int

const (
	MotionNormal MotionClass = iota
	MotionFall
	MotionImmobile
)

// String returns the label shown to live viewers.
func (c MotionClass) String() string {
	switch c {
	case MotionFall:
		return "Fall"
	case MotionImmobile:
		return "Immobile"
	default:
		return "Normal"
	}
}

// LiveUpdate is broadcast to viewers of a pet for every processed reading.
type LiveUpdate struct {
	DeviceID    string  `json:"deviceId"`
	PetID       string  `json:"petId"`
	Temperature float64 `json:"temperature"`
	Pulse       int     `json:"pulse"`
	Status      string  `json:"status"`
	ObservedAt  int64   `json:"observedAt,omitempty"`
}
