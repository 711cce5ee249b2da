package book

// Ref is the opaque book identity carried through a capture session.
// The pipeline only ever reads the ID and Title.
type Ref struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
}

// Store exposes book lookup for HTTP handlers and session start.
type Store interface {
	List() []Ref
	FindByID(id string) (Ref, bool)
}

// MemoryStore implements Store with an in-memory slice, suitable for MVP.
type MemoryStore struct {
	items []Ref
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied books.
func NewMemoryStore(items []Ref) *MemoryStore {
	return &MemoryStore{items: append([]Ref(nil), items...)}
}

// List returns the known book list.
func (s *MemoryStore) List() []Ref {
	return append([]Ref(nil), s.items...)
}

// FindByID looks up a book by identifier.
func (s *MemoryStore) FindByID(id string) (Ref, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Ref{}, false
}

// Seed provides the default shelf used until a real library source is wired.
func Seed() []Ref {
	return []Ref{
		{ID: "dune", Title: "Dune", Author: "Frank Herbert"},
		{ID: "frankenstein", Title: "Frankenstein", Author: "Mary Shelley"},
		{ID: "meditations", Title: "Meditations", Author: "Marcus Aurelius"},
		{ID: "middlemarch", Title: "Middlemarch", Author: "George Eliot"},
	}
}
