package broadcast

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vitalpaw-monitor/internal/models"
)

func TestHub_PublishOnlyReachesWatchersOfThePet(t *testing.T) {
	h := NewHub(4, zap.NewNop())
	a := &session{petID: "pet-1", send: make(chan []byte, 4)}
	b := &session{petID: "pet-2", send: make(chan []byte, 4)}
	h.register(a)
	h.register(b)

	h.Publish(models.LiveUpdate{PetID: "pet-1", DeviceID: "collar-1", Pulse: 80, Temperature: 38.2, Status: "Normal"})

	require.Len(t, a.send, 1)
	assert.Len(t, b.send, 0)

	var got models.LiveUpdate
	require.NoError(t, json.Unmarshal(<-a.send, &got))
	assert.Equal(t, 80, got.Pulse)
	assert.Equal(t, "Normal", got.Status)
}

func TestHub_SlowSessionIsDropped(t *testing.T) {
	h := NewHub(1, zap.NewNop())
	slow := &session{petID: "pet-1", send: make(chan []byte, 1)}
	fast := &session{petID: "pet-1", send: make(chan []byte, 8)}
	h.register(slow)
	h.register(fast)

	h.Publish(models.LiveUpdate{PetID: "pet-1", Pulse: 80})
	h.Publish(models.LiveUpdate{PetID: "pet-1", Pulse: 81})

	assert.Equal(t, 1, h.Sessions("pet-1"))
	assert.Len(t, fast.send, 2)

	_, ok := <-slow.send
	assert.True(t, ok, "buffered update is still readable")
	_, ok = <-slow.send
	assert.False(t, ok, "send channel closed after drop")

	stats := h.Stats()
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, int64(3), stats.Delivered)
}

func TestHub_PublishAlert(t *testing.T) {
	h := NewHub(4, zap.NewNop())
	s := &session{petID: "pet-1", send: make(chan []byte, 4)}
	h.register(s)

	h.PublishAlert(models.Alert{ID: "a-1", PetID: "pet-1", Type: models.AlertFall, Severity: models.SeverityHigh})
	h.PublishAlert(models.Alert{ID: "a-2", PetID: "pet-2", Type: models.AlertFever})

	require.Len(t, s.send, 1)
	var got AlertMessage
	require.NoError(t, json.Unmarshal(<-s.send, &got))
	assert.Equal(t, "a-1", got.Alert.ID)
	assert.Equal(t, models.AlertFall, got.Alert.Type)
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	h := NewHub(1, zap.NewNop())
	s := &session{petID: "pet-1", send: make(chan []byte, 1)}
	h.register(s)

	h.unregister(s)
	h.unregister(s)
	assert.Equal(t, 0, h.Sessions("pet-1"))

	// publishing to an empty room is a no-op
	h.Publish(models.LiveUpdate{PetID: "pet-1"})
}

func TestHub_Close(t *testing.T) {
	h := NewHub(1, zap.NewNop())
	s := &session{petID: "pet-1", send: make(chan []byte, 1)}
	h.register(s)

	h.Close()
	_, ok := <-s.send
	assert.False(t, ok)
	assert.Equal(t, 0, h.Stats().Sessions)
}

func TestServeWS_StreamsSnapshotThenUpdates(t *testing.T) {
	h := NewHub(8, zap.NewNop())
	snapshot := &models.LiveUpdate{PetID: "pet-1", DeviceID: "collar-1", Pulse: 72, Temperature: 38.0, Status: "Normal"}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, "pet-1", snapshot)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first models.LiveUpdate
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, 72, first.Pulse)

	require.Eventually(t, func() bool { return h.Sessions("pet-1") == 1 }, time.Second, 10*time.Millisecond)

	h.Publish(models.LiveUpdate{PetID: "pet-1", DeviceID: "collar-1", Pulse: 150, Temperature: 38.1, Status: "Fall"})
	var next models.LiveUpdate
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, 150, next.Pulse)
	assert.Equal(t, "Fall", next.Status)

	conn.Close()
	require.Eventually(t, func() bool { return h.Sessions("pet-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}
