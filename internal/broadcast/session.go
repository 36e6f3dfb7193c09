package broadcast

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vitalpaw-monitor/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type session struct {
	petID      string
	remoteAddr string
	conn       *websocket.Conn
	send       chan []byte
}

// ServeWS upgrades the request and streams updates for petID until the
// viewer disconnects. initial, if set, is sent before any live update.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, petID string, initial *models.LiveUpdate) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.String("pet_id", petID), zap.Error(err))
		return
	}

	s := &session{
		petID:      petID,
		remoteAddr: r.RemoteAddr,
		conn:       conn,
		send:       make(chan []byte, h.buffer),
	}
	if initial != nil {
		if msg, err := json.Marshal(initial); err == nil {
			s.send <- msg
		}
	}
	h.register(s)

	h.logger.Debug("Live viewer connected",
		zap.String("pet_id", petID),
		zap.String("remote_addr", s.remoteAddr))

	go s.writePump()
	go s.readPump(h)
}

// readPump discards inbound messages and unregisters on disconnect.
func (s *session) readPump(h *Hub) {
	defer func() {
		h.unregister(s)
		s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
