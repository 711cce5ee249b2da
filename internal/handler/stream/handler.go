package stream

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	captureService "github.com/mhollis/marginote/backend/internal/service/capture"
	"github.com/mhollis/marginote/backend/pkg/utils"
)

// Handler streams live session events over Server-Sent Events, for
// clients that cannot hold a websocket open.
type Handler struct {
	broadcast *captureService.Broadcaster
}

func New(broadcast *captureService.Broadcaster) *Handler {
	return &Handler{broadcast: broadcast}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/capture/events", h.handleEvents)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	ctx := r.Context()
	events, cancel := h.broadcast.Subscribe()
	defer cancel()

	log.Printf("[sse] opening capture event stream for %s", r.RemoteAddr)

	ticker := time.NewTicker(8 * time.Second)
	defer ticker.Stop()

	utils.SendSSEChunk(w, flusher, map[string]any{
		"event":   "status",
		"message": "stream established",
	})

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] closing capture event stream for %s", r.RemoteAddr)
			return
		case ev, open := <-events:
			if !open {
				return
			}
			utils.SendSSEEvent(w, flusher, string(ev.Type), ev)
		case t := <-ticker.C:
			utils.SendSSEChunk(w, flusher, map[string]any{
				"event": "heartbeat",
				"time":  t.UTC().Format(time.RFC3339),
			})
		}
	}
}
