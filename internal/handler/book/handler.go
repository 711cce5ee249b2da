package book

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	bookModel "github.com/mhollis/marginote/backend/internal/model/book"
	"github.com/mhollis/marginote/backend/pkg/utils"
)

// Handler serves the book shelf used to bind capture sessions.
type Handler struct {
	store bookModel.Store
}

func New(store bookModel.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/books", h.handleList)
	r.Get("/books/{bookID}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.List())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "bookID")
	ref, ok := h.store.FindByID(id)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "book not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, ref)
}
