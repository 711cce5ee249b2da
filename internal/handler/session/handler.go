package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	bookModel "github.com/mhollis/marginote/backend/internal/model/book"
	captureService "github.com/mhollis/marginote/backend/internal/service/capture"
	"github.com/mhollis/marginote/backend/pkg/utils"
)

// Handler exposes the session lifecycle over REST. The websocket
// surface handles the live transcript; everything here is a discrete
// command or query against the single managed session.
type Handler struct {
	manager *captureService.Manager
	books   bookModel.Store
}

func New(manager *captureService.Manager, books bookModel.Store) *Handler {
	return &Handler{manager: manager, books: books}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/capture/session", h.handleStart)
	r.Get("/capture/session", h.handleState)
	r.Post("/capture/session/stop", h.handleStop)
	r.Post("/capture/session/cancel", h.handleCancel)
	r.Post("/capture/session/extend", h.handleExtend)
	r.Post("/capture/session/book", h.handleSwitchBook)
	r.Get("/capture/session/result", h.handleResult)
}

// resolveBook turns an optional bookId into a reference. A missing id
// starts an unbound session; an unknown id is an error.
func (h *Handler) resolveBook(bookID string) (*bookModel.Ref, bool) {
	if bookID == "" {
		return nil, true
	}
	ref, ok := h.books.FindByID(bookID)
	if !ok {
		return nil, false
	}
	return &ref, true
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		BookID string `json:"bookId"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	ref, ok := h.resolveBook(payload.BookID)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "book not found")
		return
	}

	sess, err := h.manager.Start(ref)
	if err != nil {
		if errors.Is(err, captureService.ErrSessionActive) {
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"state": h.manager.State()}
	if sess, ok := h.manager.Session(); ok {
		resp["session"] = sess
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Stop(); err != nil {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]any{"state": h.manager.State()})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Cancel(); err != nil {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"state": h.manager.State()})
}

func (h *Handler) handleExtend(w http.ResponseWriter, r *http.Request) {
	h.manager.Extend()
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "extended"})
}

func (h *Handler) handleSwitchBook(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		BookID string `json:"bookId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.BookID == "" {
		utils.RespondError(w, http.StatusBadRequest, "bookId is required")
		return
	}

	ref, ok := h.resolveBook(payload.BookID)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "book not found")
		return
	}

	if err := h.manager.SwitchBook(ref); err != nil {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}

	sess, _ := h.manager.Session()
	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	result, ok := h.manager.Result()
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "no completed session")
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}
