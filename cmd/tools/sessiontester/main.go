package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mhollis/marginote/backend/internal/config"
	"github.com/mhollis/marginote/backend/internal/model/book"
	"github.com/mhollis/marginote/backend/internal/model/capture"
	"github.com/mhollis/marginote/backend/internal/service/ai"
	captureService "github.com/mhollis/marginote/backend/internal/service/capture"
	threadService "github.com/mhollis/marginote/backend/internal/service/thread"
)

// sessiontester pushes a scripted transcript through a real capture
// pipeline and prints the aggregated result. Fragments come from a
// file (one per line) or from the built-in sample script.
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] no .env file, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	scriptPath := flag.String("script", "", "transcript file, one fragment per line")
	bookID := flag.String("book", "dune", "book id from the seed shelf, empty for unbound")
	gap := flag.Duration("gap", 200*time.Millisecond, "pause between fragments")
	useAI := flag.Bool("ai", false, "answer questions with the configured Ark model")
	flag.Parse()

	fragments := sampleScript()
	if *scriptPath != "" {
		fragments, err = readScript(*scriptPath)
		if err != nil {
			log.Fatalf("failed to read script: %v", err)
		}
	}

	books := book.NewMemoryStore(book.Seed())
	var ref *book.Ref
	if *bookID != "" {
		found, ok := books.FindByID(*bookID)
		if !ok {
			log.Fatalf("unknown book %q", *bookID)
		}
		ref = &found
	}

	var answerer captureService.Answerer
	if *useAI {
		if !cfg.AI.Enabled() {
			log.Fatal("AI answering requested but Ark credentials are not configured")
		}
		svc, err := ai.NewService(context.Background(), cfg.AI)
		if err != nil {
			log.Fatalf("failed to initialize AI service: %v", err)
		}
		answerer = svc
	}

	threads := threadService.NewService()
	manager := captureService.NewManager(captureService.Config{
		Debounce: 200 * time.Millisecond,
	}, nil, answerer, threads, printEvent)

	sess, err := manager.Start(ref)
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	log.Printf("session %s started book=%q", sess.ID, sess.BookTitle())

	for _, fragment := range fragments {
		log.Printf("  >> %s", fragment)
		manager.HandleTranscript(fragment)
		time.Sleep(*gap)
	}

	if err := manager.Stop(); err != nil {
		log.Fatalf("failed to stop session: %v", err)
	}

	awaitCompletion(manager)

	result, ok := manager.Result()
	if !ok {
		log.Fatal("session finished without a result")
	}
	printResult(result)
}

func awaitCompletion(manager *captureService.Manager) {
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		if manager.State() == captureService.StateCompleted {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	log.Fatal("timed out waiting for aggregation")
}

func printEvent(ev capture.Event) {
	switch ev.Type {
	case capture.EventPattern:
		log.Printf("  [event] patterns %v", ev.Patterns)
	case capture.EventAnswer:
		log.Printf("  [event] answer to %q: %s", ev.Text, ev.Answer)
	case capture.EventState:
		log.Printf("  [event] state -> %s", ev.State)
	case capture.EventWarning:
		log.Printf("  [event] auto-stop warning (%s)", ev.Reason)
	}
}

func printResult(result *capture.SessionResult) {
	fmt.Println()
	fmt.Println(result.Summary)
	fmt.Printf("duration: %s\n", result.Duration)

	for _, q := range result.Quotes {
		fmt.Printf("  quote: %q\n", q.Text)
	}
	for _, n := range result.Notes {
		fmt.Printf("  note (%s): %s\n", n.Kind, n.Text)
	}
	for _, q := range result.Questions {
		fmt.Printf("  question: %s\n", q.Text)
	}
	for p, count := range result.Patterns {
		fmt.Printf("  pattern %s: %d\n", p, count)
	}
}

func readScript(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var fragments []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			fragments = append(fragments, line)
		}
	}
	return fragments, scanner.Err()
}

func sampleScript() []string {
	return []string{
		`"fear is the mind-killer"`,
		"what does this mean for Paul",
		"I think this connects to the Bene Gesserit training",
		"note: the epigraphs frame every chapter as history",
		"why does Herbert reveal the outcome in advance",
	}
}
