package ipsum_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasp-labs/ds-spicyipsum-go/internal/fakes"
	ipsum "github.com/grasp-labs/ds-spicyipsum-go/ipsum"
)

func seededStore() *fakes.CorpusStore {
	return &fakes.CorpusStore{
		Types: []ipsum.Category{
			{TypeID: 1, Name: ipsum.CategorySpice},
			{TypeID: 2, Name: ipsum.CategoryWyrd},
		},
		WordRows: []ipsum.Word{
			{Text: "habanero", TypeID: 1},
			{Text: "jalapeno", TypeID: 1},
			{Text: "cumin", TypeID: 1},
			{Text: "eldritch", TypeID: 2},
		},
	}
}

func newCorpus(store ipsum.CorpusStore) (*ipsum.CorpusCache, *fakes.Cache) {
	cache := fakes.NewCache()
	return ipsum.NewCorpusCache(cache, store, ipsum.WithCorpusLogger(log.New(io.Discard))), cache
}

func TestCorpusCache_CategoryMap_ReadThrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := seededStore()
	corpus, cache := newCorpus(store)

	rows, byName, err := corpus.CategoryMap(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, map[string]int{"spice": 1, "wyrd": 2}, byName)
	require.Equal(t, 1, store.CategoryCalls)

	_, ok := cache.Get(ipsum.CategoryRowsKey)
	require.True(t, ok)
	_, ok = cache.Get(ipsum.CategoryMapKey)
	require.True(t, ok)

	rows2, byName2, err := corpus.CategoryMap(ctx)
	require.NoError(t, err)
	require.Equal(t, rows, rows2)
	require.Equal(t, byName, byName2)
	require.Equal(t, 1, store.CategoryCalls, "second call is served from cache")
}

func TestCorpusCache_CategoryMap_RebuildsMissingNameMap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := seededStore()
	corpus, cache := newCorpus(store)

	_, _, err := corpus.CategoryMap(ctx)
	require.NoError(t, err)
	cache.Take(ipsum.CategoryMapKey)

	_, byName, err := corpus.CategoryMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, byName["wyrd"])
	assert.Equal(t, 1, store.CategoryCalls)
	_, ok := cache.Get(ipsum.CategoryMapKey)
	assert.True(t, ok)
}

func TestCorpusCache_Words_CanonicalKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := seededStore()
	corpus, cache := newCorpus(store)

	one, err := corpus.Words(ctx, []int{1})
	require.NoError(t, err)
	require.Len(t, one, 3)

	both, err := corpus.Words(ctx, []int{1, 2})
	require.NoError(t, err)
	require.Len(t, both, 4)
	require.Equal(t, 2, store.WordCalls, "{1} and {1,2} are distinct entries")
	require.Equal(t, []int{1, 2}, store.LastTypeIDs)

	swapped, err := corpus.Words(ctx, []int{2, 1, 2})
	require.NoError(t, err)
	require.Equal(t, both, swapped)
	require.Equal(t, 2, store.WordCalls, "{2,1} hits the {1,2} entry")

	_, ok := cache.Get("words_select_text_type_id_in_1")
	assert.True(t, ok)
	_, ok = cache.Get("words_select_text_type_id_in_1_2")
	assert.True(t, ok)
}

func TestCorpusCache_EmptyResultsAreNotCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("catalog", func(t *testing.T) {
		store := &fakes.CorpusStore{}
		corpus, cache := newCorpus(store)

		_, _, err := corpus.CategoryMap(ctx)
		require.ErrorIs(t, err, ipsum.ErrEmptyCatalog)
		_, _, err = corpus.CategoryMap(ctx)
		require.ErrorIs(t, err, ipsum.ErrEmptyCatalog)

		assert.Equal(t, 2, store.CategoryCalls)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("corpus", func(t *testing.T) {
		store := seededStore()
		corpus, cache := newCorpus(store)

		_, err := corpus.Words(ctx, []int{99})
		require.ErrorIs(t, err, ipsum.ErrEmptyCorpus)
		_, err = corpus.Words(ctx, []int{99})
		require.ErrorIs(t, err, ipsum.ErrEmptyCorpus)

		assert.Equal(t, 2, store.WordCalls)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("no ids", func(t *testing.T) {
		store := seededStore()
		corpus, _ := newCorpus(store)

		_, err := corpus.Words(ctx, nil)
		require.ErrorIs(t, err, ipsum.ErrEmptyCorpus)
		assert.Equal(t, 0, store.WordCalls)
	})
}

func TestCorpusCache_StoreErrorsPropagate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("db down")
	store := seededStore()
	store.Err = boom
	corpus, cache := newCorpus(store)

	_, _, err := corpus.CategoryMap(ctx)
	require.ErrorIs(t, err, boom)
	_, err = corpus.Words(ctx, []int{1})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Len())
}

func TestCorpusCache_WriteFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := seededStore()
	corpus, cache := newCorpus(store)
	cache.Fail(true, "")

	_, byName, err := corpus.CategoryMap(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, byName["spice"])

	words, err := corpus.Words(ctx, []int{1})
	require.NoError(t, err)
	require.Len(t, words, 3)

	_, _, err = corpus.CategoryMap(ctx)
	require.NoError(t, err)
	_, err = corpus.Words(ctx, []int{1})
	require.NoError(t, err)

	assert.Equal(t, 2, store.CategoryCalls, "uncached data is fetched again")
	assert.Equal(t, 2, store.WordCalls)
}

func TestCorpusCache_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	corpus, _ := newCorpus(seededStore())

	words, err := corpus.Words(ctx, []int{1})
	require.NoError(t, err)
	words[0].Text = "mutated"

	_, byName, err := corpus.CategoryMap(ctx)
	require.NoError(t, err)
	byName["spice"] = 42

	again, err := corpus.Words(ctx, []int{1})
	require.NoError(t, err)
	assert.Equal(t, "habanero", again[0].Text)

	_, byName, err = corpus.CategoryMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, byName["spice"])
}

func TestCorpusCache_ConcurrentMisses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := seededStore()
	corpus, _ := newCorpus(store)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			words, err := corpus.Words(ctx, []int{2, 1})
			if err != nil {
				t.Error(err)
				return
			}
			if len(words) != 4 {
				t.Errorf("got %d words, want 4", len(words))
			}
		}()
	}
	wg.Wait()

	_, wordCalls := store.Calls()
	assert.GreaterOrEqual(t, wordCalls, 1)
	assert.LessOrEqual(t, wordCalls, 32)
}

// slowStore blocks Categories until release is closed or the query ctx ends.
type slowStore struct {
	*fakes.CorpusStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *slowStore) Categories(ctx context.Context) ([]ipsum.Category, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.CorpusStore.Categories(ctx)
}

func TestCorpusCache_CanceledCallerDoesNotFailOthers(t *testing.T) {
	t.Parallel()
	store := &slowStore{
		CorpusStore: seededStore(),
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	corpus, _ := newCorpus(store)

	type result struct {
		byName map[string]int
		err    error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)

	ctxA, cancelA := context.WithCancel(context.Background())
	go func() {
		_, byName, err := corpus.CategoryMap(ctxA)
		first <- result{byName, err}
	}()
	<-store.started

	go func() {
		_, byName, err := corpus.CategoryMap(context.Background())
		second <- result{byName, err}
	}()

	cancelA()
	select {
	case r := <-first:
		require.ErrorIs(t, r.err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("canceled caller did not return")
	}

	close(store.release)
	select {
	case r := <-second:
		require.NoError(t, r.err)
		assert.Equal(t, 1, r.byName[ipsum.CategorySpice])
	case <-time.After(5 * time.Second):
		t.Fatal("live caller did not return")
	}

	categoryCalls, _ := store.Calls()
	assert.Equal(t, 1, categoryCalls)

	_, byName, err := corpus.CategoryMap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, byName[ipsum.CategoryWyrd])
}
