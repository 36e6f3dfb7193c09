// Package broadcast pushes live pet updates to websocket viewers.
package broadcast

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"vitalpaw-monitor/internal/models"
)

// DefaultSessionBuffer is the per-session outbound queue length.
const DefaultSessionBuffer = 32

// Stats are cumulative hub counters.
type Stats struct {
	Sessions  int
	Delivered int64
	Dropped   int64
}

// Hub tracks live sessions by pet id. Publish never blocks: a session whose
// buffer is full is disconnected.
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]map[*session]struct{}
	buffer int
	logger *zap.Logger

	delivered atomic.Int64
	dropped   atomic.Int64
}

// NewHub creates a hub. buffer <= 0 uses DefaultSessionBuffer.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSessionBuffer
	}
	return &Hub{
		rooms:  make(map[string]map[*session]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// AlertMessage is the frame sent to viewers when an alert is raised.
type AlertMessage struct {
	Alert models.Alert `json:"alert"`
}

// Publish sends update to every session watching update.PetID.
func (h *Hub) Publish(update models.LiveUpdate) {
	h.send(update.PetID, update)
}

// PublishAlert sends alert to every session watching alert.PetID.
func (h *Hub) PublishAlert(alert models.Alert) {
	h.send(alert.PetID, AlertMessage{Alert: alert})
}

func (h *Hub) send(petID string, v any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[petID]
	if len(room) == 0 {
		return
	}

	msg, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal live message", zap.String("pet_id", petID), zap.Error(err))
		return
	}

	for s := range room {
		select {
		case s.send <- msg:
			h.delivered.Add(1)
		default:
			h.dropped.Add(1)
			h.removeLocked(s)
			h.logger.Warn("Slow live viewer disconnected",
				zap.String("pet_id", s.petID),
				zap.String("remote_addr", s.remoteAddr))
		}
	}
}

// Sessions returns the number of sessions watching petID.
func (h *Hub) Sessions(petID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[petID])
}

// Stats returns the counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	h.mu.Unlock()
	return Stats{
		Sessions:  n,
		Delivered: h.delivered.Load(),
		Dropped:   h.dropped.Load(),
	}
}

// Close disconnects all sessions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		for s := range room {
			h.removeLocked(s)
		}
	}
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[s.petID]
	if !ok {
		room = make(map[*session]struct{})
		h.rooms[s.petID] = room
	}
	room[s] = struct{}{}
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

// removeLocked closes s.send at most once.
func (h *Hub) removeLocked(s *session) {
	room, ok := h.rooms[s.petID]
	if !ok {
		return
	}
	if _, ok := room[s]; !ok {
		return
	}
	delete(room, s)
	close(s.send)
	if len(room) == 0 {
		delete(h.rooms, s.petID)
	}
}
