package thread

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	threadModel "github.com/mhollis/marginote/backend/internal/model/thread"
	threadService "github.com/mhollis/marginote/backend/internal/service/thread"
	"github.com/mhollis/marginote/backend/pkg/utils"
)

// MessageSource reads back the stored conversation for a book. Both
// the in-memory and SQLite thread stores satisfy it.
type MessageSource interface {
	MessagesForBook(ctx context.Context, bookID string) ([]threadModel.Message, error)
}

// Handler serves read-back of captured session artifacts per book.
type Handler struct {
	source MessageSource
}

func New(source MessageSource) *Handler {
	return &Handler{source: source}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/threads/{bookID}/messages", h.handleMessages)
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")

	messages, err := h.source.MessagesForBook(r.Context(), bookID)
	if err != nil {
		if errors.Is(err, threadService.ErrThreadNotFound) {
			utils.RespondError(w, http.StatusNotFound, "no thread for book")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, messages)
}
