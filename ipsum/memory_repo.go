package ipsum

import (
	"context"
	"slices"
	"sync"
)

// InMemoryCorpus is a CorpusStore backed by slices, for tests and demos.
type InMemoryCorpus struct {
	mu         sync.RWMutex
	categories []Category
	words      []Word
}

func NewInMemoryCorpus() *InMemoryCorpus {
	return &InMemoryCorpus{}
}

func (r *InMemoryCorpus) PutCategory(c Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories = append(r.categories, c)
}

func (r *InMemoryCorpus) PutWords(typeID int, texts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range texts {
		r.words = append(r.words, Word{Text: t, TypeID: typeID})
	}
}

func (r *InMemoryCorpus) Categories(ctx context.Context) ([]Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.categories), nil
}

func (r *InMemoryCorpus) Words(ctx context.Context, typeIDs []int) ([]Word, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Word
	for _, w := range r.words {
		if slices.Contains(typeIDs, w.TypeID) {
			out = append(out, w)
		}
	}
	return out, nil
}
