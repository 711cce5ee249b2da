package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	bookHandler "github.com/mhollis/marginote/backend/internal/handler/book"
	captureHandler "github.com/mhollis/marginote/backend/internal/handler/capture"
	sessionHandler "github.com/mhollis/marginote/backend/internal/handler/session"
	streamHandler "github.com/mhollis/marginote/backend/internal/handler/stream"
	threadHandler "github.com/mhollis/marginote/backend/internal/handler/thread"
	middlewarePkg "github.com/mhollis/marginote/backend/internal/middleware"
	bookModel "github.com/mhollis/marginote/backend/internal/model/book"
	captureService "github.com/mhollis/marginote/backend/internal/service/capture"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(books bookModel.Store, manager *captureService.Manager, broadcast *captureService.Broadcaster, messages threadHandler.MessageSource) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	bh := bookHandler.New(books)
	sh := sessionHandler.New(manager, books)
	wsh := captureHandler.NewWebSocketHandler(manager, broadcast)
	evh := streamHandler.New(broadcast)
	th := threadHandler.New(messages)

	r.Route("/api", func(api chi.Router) {
		bh.RegisterRoutes(api)
		sh.RegisterRoutes(api)
		wsh.RegisterWebSocketRoutes(api)
		evh.RegisterRoutes(api)
		th.RegisterRoutes(api)
	})

	return r
}
