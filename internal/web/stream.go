package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"requestbin/internal/bin"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Message struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

func newMessage(r *bin.Request) Message {
	return Message{Type: "request", Data: r.ToDict(), Timestamp: time.Now().Unix()}
}

// handleEvents streams captures of one bin as server-sent events. The
// stream outlives the server's WriteTimeout, so the write deadline is
// cleared for this response.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Warn("clear write deadline", "error", err)
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := s.broker.Subscribe(binFrom(r).Name)
	defer s.broker.Unsubscribe(id)

	fmt.Fprintf(w, "event: ping\ndata: ok\n\n")
	if err := rc.Flush(); err != nil {
		s.logger.Warn("stream unsupported", "error", err)
		return
	}

	for {
		select {
		case req, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(req.ToDict())
			if err != nil {
				s.logger.Error("encode event", "id", req.ID, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: request\ndata: %s\n\n", b)
			if err := rc.Flush(); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// handleWebsocket streams captures of one bin over a websocket.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	id, ch := s.broker.Subscribe(binFrom(r).Name)
	defer s.broker.Unsubscribe(id)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case req, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(newMessage(req)); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
