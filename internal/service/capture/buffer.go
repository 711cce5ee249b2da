package capture

import "sync"

// TranscriptBuffer is the ordered, append-only store of raw fragments
// for one session. It is mutated only by the capture-ingest path and
// read by the aggregator once processing begins; its snapshot is the
// single authoritative input to final aggregation.
type TranscriptBuffer struct {
	mu        sync.Mutex
	fragments []string
}

// NewTranscriptBuffer returns an empty buffer.
func NewTranscriptBuffer() *TranscriptBuffer {
	return &TranscriptBuffer{}
}

// Append records one fragment in arrival order.
func (b *TranscriptBuffer) Append(fragment string) {
	b.mu.Lock()
	b.fragments = append(b.fragments, fragment)
	b.mu.Unlock()
}

// Snapshot returns a copy of the fragments in arrival order.
func (b *TranscriptBuffer) Snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := make([]string, len(b.fragments))
	copy(copied, b.fragments)
	return copied
}

// Len reports how many fragments have been captured.
func (b *TranscriptBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.fragments)
}
