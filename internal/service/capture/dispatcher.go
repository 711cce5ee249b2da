package capture

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mhollis/marginote/backend/internal/model/book"
)

// FallbackAnswer is persisted when the completion service fails or is
// not configured. Failures never surface to the capture path.
const FallbackAnswer = "I couldn't find an answer to that just now, but your question is saved with your notes."

// Dispatcher runs one fire-and-forget answering job per distinct
// question detected during a live session. The dedup set is exact-text
// and per-session; Reset clears it when a new session starts.
type Dispatcher struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	answerer Answerer
	threads  ThreadStore
	wg       sync.WaitGroup
}

// NewDispatcher wires the dispatcher to its collaborators. Either may
// be nil; jobs degrade accordingly.
func NewDispatcher(answerer Answerer, threads ThreadStore) *Dispatcher {
	return &Dispatcher{
		seen:     make(map[string]struct{}),
		answerer: answerer,
		threads:  threads,
	}
}

// Reset clears the per-session dedup set.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	d.seen = make(map[string]struct{})
	d.mu.Unlock()
}

// Dispatch enqueues an answering job for a newly detected question
// unless its exact text was already dispatched this session. It never
// blocks: the completion call, the thread writes, and any failure
// handling all happen on the job goroutine. onAnswer, when set, is
// invoked with the final text (answer or fallback) for live UI relay.
func (d *Dispatcher) Dispatch(ctx context.Context, question string, ref *book.Ref, threadID string, onAnswer func(question, answer string)) {
	d.mu.Lock()
	if _, dup := d.seen[question]; dup {
		d.mu.Unlock()
		return
	}
	d.seen[question] = struct{}{}
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx, question, ref, threadID, onAnswer)
	}()
}

// Wait blocks until all in-flight jobs finish. Used by the CLI harness
// and tests; the manager never awaits jobs.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, question string, ref *book.Ref, threadID string, onAnswer func(question, answer string)) {
	answer := FallbackAnswer
	if d.answerer == nil {
		log.Printf("[dispatcher] no completion service configured, using fallback")
	} else if text, err := d.answerer.Answer(ctx, question, ref); err != nil {
		log.Printf("[dispatcher] answer failed for question %q: %v", question, err)
	} else {
		answer = text
	}

	// A cancelled session discards the result; the call was allowed to
	// finish but nothing is persisted or relayed.
	if ctx.Err() != nil {
		log.Printf("[dispatcher] session gone, discarding answer for %q", question)
		return
	}

	if onAnswer != nil {
		onAnswer(question, answer)
	}

	if d.threads == nil || threadID == "" {
		return
	}

	now := time.Now().UTC()
	if err := d.threads.AppendMessage(ctx, threadID, question, true, now); err != nil {
		log.Printf("[dispatcher] append question failed: %v", err)
	}
	if err := d.threads.AppendMessage(ctx, threadID, answer, false, now); err != nil {
		log.Printf("[dispatcher] append answer failed: %v", err)
	}
	if err := d.threads.Save(ctx); err != nil {
		log.Printf("[dispatcher] save failed: %v", err)
	}
}
