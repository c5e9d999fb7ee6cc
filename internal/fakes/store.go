package fakes

import (
	"context"
	"slices"
	"sync"

	ipsum "github.com/grasp-labs/ds-spicyipsum-go/ipsum"
)

// CorpusStore is a test double for ipsum.CorpusStore that counts calls.
type CorpusStore struct {
	mu sync.Mutex

	Types    []ipsum.Category
	WordRows []ipsum.Word
	Err      error

	CategoryCalls int
	WordCalls     int
	LastTypeIDs   []int
}

func (f *CorpusStore) Categories(ctx context.Context) ([]ipsum.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CategoryCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	return slices.Clone(f.Types), nil
}

func (f *CorpusStore) Words(ctx context.Context, typeIDs []int) ([]ipsum.Word, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.WordCalls++
	f.LastTypeIDs = slices.Clone(typeIDs)
	if f.Err != nil {
		return nil, f.Err
	}
	var out []ipsum.Word
	for _, w := range f.WordRows {
		if slices.Contains(typeIDs, w.TypeID) {
			out = append(out, w)
		}
	}
	return out, nil
}

// Calls returns CategoryCalls and WordCalls under the lock.
func (f *CorpusStore) Calls() (categories, words int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CategoryCalls, f.WordCalls
}
