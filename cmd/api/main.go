package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mhollis/marginote/backend/internal/config"
	"github.com/mhollis/marginote/backend/internal/handler"
	threadHandler "github.com/mhollis/marginote/backend/internal/handler/thread"
	"github.com/mhollis/marginote/backend/internal/model/book"
	"github.com/mhollis/marginote/backend/internal/service/ai"
	captureService "github.com/mhollis/marginote/backend/internal/service/capture"
	threadService "github.com/mhollis/marginote/backend/internal/service/thread"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	bookStore := book.NewMemoryStore(book.Seed())

	// Thread storage: SQLite when a path is configured, in-memory otherwise.
	var threads captureService.ThreadStore
	var messages threadHandler.MessageSource
	if cfg.Threads.DBPath != "" {
		store, err := threadService.OpenSQLite(cfg.Threads.DBPath)
		if err != nil {
			log.Fatalf("failed to open thread database: %v", err)
		}
		defer store.Close()
		threads = store
		messages = store
		log.Printf("thread store: sqlite at %s", cfg.Threads.DBPath)
	} else {
		store := threadService.NewService()
		threads = store
		messages = store
		log.Println("thread store: in-memory")
	}

	// Completion service for realtime question answering.
	var answerer captureService.Answerer
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without realtime answers, questions still captured")
		} else {
			answerer = aiService
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark credentials not configured, realtime answering disabled")
	}

	broadcast := captureService.NewBroadcaster()
	manager := captureService.NewManager(captureService.Config{
		SilenceDeadline:    cfg.Capture.SilenceDeadline,
		MaxDuration:        cfg.Capture.MaxDuration,
		WarningWindow:      cfg.Capture.WarningWindow,
		ExtendIncrement:    cfg.Capture.ExtendIncrement,
		ResetDelay:         cfg.Capture.ResetDelay,
		Debounce:           cfg.Capture.Debounce,
		AmplitudeThreshold: cfg.Capture.AmplitudeThreshold,
	}, nil, answerer, threads, broadcast.Publish)

	router := handler.NewRouter(bookStore, manager, broadcast, messages)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Marginote backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
