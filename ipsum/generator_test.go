package ipsum_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ipsum "github.com/grasp-labs/ds-spicyipsum-go/ipsum"
)

func newGenerator(t *testing.T, opts ...ipsum.GeneratorOption) *ipsum.Generator {
	t.Helper()
	store := ipsum.NewInMemoryCorpus()
	store.PutCategory(ipsum.Category{TypeID: 1, Name: ipsum.CategorySpice})
	store.PutCategory(ipsum.Category{TypeID: 2, Name: ipsum.CategoryWyrd})
	store.PutWords(1, "chili", "pepper")
	store.PutWords(2, "wyrd")
	corpus := ipsum.NewCorpusCache(ipsum.NewTTLCache[any](), store, ipsum.WithCorpusLogger(log.New(io.Discard)))
	return ipsum.NewGenerator(corpus, opts...)
}

// cycle returns an index source that walks 0, 1, 2, ... modulo n.
func cycle() func(int) int {
	i := 0
	return func(n int) int {
		v := i % n
		i++
		return v
	}
}

func TestGenerator_Defaults(t *testing.T) {
	g := newGenerator(t, ipsum.WithIntn(func(int) int { return 0 }))

	out, err := g.Generate(context.Background(), ipsum.Params{})
	require.NoError(t, err)
	require.Len(t, out, 1)

	sentence := "Chili chili chili chili chili chili chili chili chili chili."
	assert.Equal(t, strings.TrimSpace(strings.Repeat(sentence+" ", 5)), out[0])
}

func TestGenerator_ShapeAndLorem(t *testing.T) {
	g := newGenerator(t, ipsum.WithIntn(cycle()))

	out, err := g.Generate(context.Background(), ipsum.Params{Paragraphs: 3, Sentences: 2, Lorem: 1})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.True(t, strings.HasPrefix(out[0], "Spicy ipsum dolor amet chili pepper "), out[0])
	assert.False(t, strings.HasPrefix(out[1], "Spicy"), "only the first sentence gets the lorem prefix")

	for _, p := range out {
		sentences := strings.SplitAfter(p, ". ")
		require.Len(t, sentences, 2)
		for _, s := range sentences {
			s = strings.TrimSuffix(strings.TrimSpace(s), ".")
			assert.Len(t, strings.Fields(s), 10)
		}
	}
}

func TestGenerator_WyrdAddsCategory(t *testing.T) {
	g := newGenerator(t, ipsum.WithIntn(func(n int) int { return n - 1 }))

	out, err := g.Generate(context.Background(), ipsum.Params{Sentences: 1, Wyrd: 1})
	require.NoError(t, err)
	assert.Equal(t, "Wyrd wyrd wyrd wyrd wyrd wyrd wyrd wyrd wyrd wyrd.", out[0])

	out, err = g.Generate(context.Background(), ipsum.Params{Sentences: 1})
	require.NoError(t, err)
	assert.NotContains(t, out[0], "yrd")
}

func TestGenerator_MultiWordEntriesCountByWord(t *testing.T) {
	store := ipsum.NewInMemoryCorpus()
	store.PutCategory(ipsum.Category{TypeID: 1, Name: ipsum.CategorySpice})
	store.PutWords(1, "ghost pepper", "   ")
	corpus := ipsum.NewCorpusCache(ipsum.NewTTLCache[any](), store, ipsum.WithCorpusLogger(log.New(io.Discard)))
	g := ipsum.NewGenerator(corpus, ipsum.WithIntn(func(int) int { return 0 }))

	out, err := g.Generate(context.Background(), ipsum.Params{Sentences: 1})
	require.NoError(t, err)
	assert.Len(t, strings.Fields(strings.TrimSuffix(out[0], ".")), 10)
}

func TestGenerator_InvalidParams(t *testing.T) {
	g := newGenerator(t)
	cases := []struct {
		params ipsum.Params
		msg    string
	}{
		{ipsum.Params{Paragraphs: -1}, "The paragraphs parameter must be a positive integer"},
		{ipsum.Params{Sentences: 11}, "The sentences parameter must be between 1 and 10"},
		{ipsum.Params{Lorem: 2}, "The lorem parameter must be either 0 or 1"},
		{ipsum.Params{Wyrd: -1}, "The wyrd parameter must be either 0 or 1"},
	}
	for _, tc := range cases {
		_, err := g.Generate(context.Background(), tc.params)
		require.ErrorIs(t, err, ipsum.ErrInvalidParams)
		assert.EqualError(t, err, tc.msg)
	}
}

func TestGenerator_MissingCategory(t *testing.T) {
	store := ipsum.NewInMemoryCorpus()
	store.PutCategory(ipsum.Category{TypeID: 5, Name: "mild"})
	store.PutWords(5, "milk")
	corpus := ipsum.NewCorpusCache(ipsum.NewTTLCache[any](), store, ipsum.WithCorpusLogger(log.New(io.Discard)))
	g := ipsum.NewGenerator(corpus)

	_, err := g.Generate(context.Background(), ipsum.Params{})
	require.ErrorIs(t, err, ipsum.ErrUnknownCategory)
}

func TestGenerator_EmptyStore(t *testing.T) {
	corpus := ipsum.NewCorpusCache(ipsum.NewTTLCache[any](), ipsum.NewInMemoryCorpus(), ipsum.WithCorpusLogger(log.New(io.Discard)))
	g := ipsum.NewGenerator(corpus)

	_, err := g.Generate(context.Background(), ipsum.Params{})
	require.ErrorIs(t, err, ipsum.ErrEmptyCatalog)
}
