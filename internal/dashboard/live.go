package dashboard

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/neuronview/internal/logger"
	"github.com/ziadkadry99/neuronview/internal/nodeview"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// liveRequest is the incoming WebSocket message format.
type liveRequest struct {
	Type   string          `json:"type"` // "run"
	Params nodeview.Params `json:"params"`
}

// liveMessage is the outgoing WebSocket message format.
type liveMessage struct {
	Type      string             `json:"type"` // "snapshot", "started" or "error"
	SessionID string             `json:"session_id"`
	View      *nodeview.Snapshot `json:"view,omitempty"`
	RequestID uint64             `json:"request_id,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// handleWebSocket streams every view change to the client and accepts run
// requests. All writes happen on this goroutine.
func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	log := logger.Log.With("dashboard")
	log.Debug("websocket connected", "session", sessionID)

	snaps, unsubscribe := d.service.View().Subscribe()
	defer unsubscribe()

	out := make(chan liveMessage, 8)
	quit := make(chan struct{})
	defer close(quit)
	closed := make(chan struct{})
	go d.readLoop(conn, sessionID, out, quit, closed)

	for {
		var msg liveMessage
		select {
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			msg = liveMessage{Type: "snapshot", SessionID: sessionID, View: &snap}
		case msg = <-out:
		case <-closed:
			log.Debug("websocket closed", "session", sessionID)
			return
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Warn("websocket write failed", "session", sessionID, "error", err)
			return
		}
	}
}

// readLoop handles incoming messages until the connection fails, then closes
// closed. Replies go through out so that only one goroutine writes.
func (d *Dashboard) readLoop(conn *websocket.Conn, sessionID string, out chan<- liveMessage, quit <-chan struct{}, closed chan<- struct{}) {
	defer close(closed)

	send := func(m liveMessage) bool {
		m.SessionID = sessionID
		select {
		case out <- m:
			return true
		case <-quit:
			return false
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Warn("websocket read failed", "session", sessionID, "error", err)
			}
			return
		}

		var req liveRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			if !send(liveMessage{Type: "error", Error: "invalid message format"}) {
				return
			}
			continue
		}

		var reply liveMessage
		switch req.Type {
		case "run":
			if err := validateParams(req.Params); err != nil {
				reply = liveMessage{Type: "error", Error: err.Error()}
				break
			}
			id := d.service.Start(context.Background(), req.Params)
			reply = liveMessage{Type: "started", RequestID: id}
		default:
			reply = liveMessage{Type: "error", Error: "unknown message type: " + req.Type}
		}
		if !send(reply) {
			return
		}
	}
}
