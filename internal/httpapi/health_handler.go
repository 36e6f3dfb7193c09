package httpapi

import (
	"net/http"
)

// Health is the body of /healthz.
type Health struct {
	Status        string           `json:"status"`
	MQTTConnected bool             `json:"mqtt_connected"`
	Counters      map[string]int64 `json:"counters"`
}

// HealthFunc reports the current pipeline health.
type HealthFunc func() Health

type HealthHandler struct {
	report HealthFunc
}

func NewHealthHandler(report HealthFunc) *HealthHandler {
	return &HealthHandler{report: report}
}

// Health answers 200 while the telemetry subscription is connected and 503
// otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.report()
	status := http.StatusOK
	if !health.MQTTConnected {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
