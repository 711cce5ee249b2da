package capture

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	captureService "github.com/mhollis/marginote/backend/internal/service/capture"
)

// WebSocketHandler is the live capture transport: the client streams
// transcript fragments and amplitude samples up, and session events
// flow back down on the same connection.
type WebSocketHandler struct {
	manager   *captureService.Manager
	broadcast *captureService.Broadcaster
	upgrader  websocket.Upgrader
}

func NewWebSocketHandler(manager *captureService.Manager, broadcast *captureService.Broadcaster) *WebSocketHandler {
	return &WebSocketHandler{
		manager:   manager,
		broadcast: broadcast,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/capture/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TranscriptMessage carries one recognized fragment from the client's
// speech recognizer.
type TranscriptMessage struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// ActivityMessage carries a voice-amplitude sample for the silence
// monitor.
type ActivityMessage struct {
	Level float64 `json:"level"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// conn serializes writes: events, errors, and pings come from
// different goroutines.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	c := &conn{ws: ws}
	log.Printf("[websocket] capture connection from %s", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go h.pingLoop(ctx, c)
	go h.relayEvents(ctx, c)

	h.sendInfo(c, map[string]any{
		"type":  "connected",
		"state": h.manager.State(),
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg inboundMessage
			if err := ws.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[websocket] read error: %v", err)
				}
				return
			}

			ws.SetReadDeadline(time.Now().Add(60 * time.Second))
			h.handleMessage(c, &msg)
		}
	}
}

func (h *WebSocketHandler) handleMessage(c *conn, msg *inboundMessage) {
	switch msg.Type {
	case "transcript":
		h.handleTranscriptMessage(c, msg.Data)
	case "activity":
		h.handleActivityMessage(c, msg.Data)
	case "stop":
		if err := h.manager.Stop(); err != nil {
			h.sendError(c, err.Error())
		}
	case "extend":
		h.manager.Extend()
	default:
		h.sendError(c, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleTranscriptMessage(c *conn, raw json.RawMessage) {
	var t TranscriptMessage
	if err := json.Unmarshal(raw, &t); err != nil {
		h.sendError(c, "invalid transcript payload")
		return
	}
	if t.Text == "" {
		return
	}
	h.manager.HandleTranscript(t.Text)
}

func (h *WebSocketHandler) handleActivityMessage(c *conn, raw json.RawMessage) {
	var a ActivityMessage
	if err := json.Unmarshal(raw, &a); err != nil {
		h.sendError(c, "invalid activity payload")
		return
	}
	h.manager.HandleActivity(a.Level)
}

// relayEvents forwards the live session feed to this connection.
func (h *WebSocketHandler) relayEvents(ctx context.Context, c *conn) {
	events, cancel := h.broadcast.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg := outgoingMessage{
				Type:      "event",
				Data:      ev,
				Timestamp: time.Now().Unix(),
			}
			if err := c.writeJSON(msg); err != nil {
				log.Printf("[websocket] write event failed: %v", err)
				return
			}
		}
	}
}

func (h *WebSocketHandler) sendInfo(c *conn, data map[string]any) {
	msg := outgoingMessage{
		Type:      "info",
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := c.writeJSON(msg); err != nil {
		log.Printf("[websocket] write info failed: %v", err)
	}
}

func (h *WebSocketHandler) sendError(c *conn, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := c.writeJSON(msg); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
