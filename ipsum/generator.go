package ipsum

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrInvalidParams is matched by every *ParamError.
	ErrInvalidParams = errors.New("invalid generation parameters")
	// ErrUnknownCategory means a category the generator needs is missing from the catalog.
	ErrUnknownCategory = errors.New("unknown category")
)

const (
	wordsPerSentence  = 10
	defaultParagraphs = 1
	defaultSentences  = 5
	maxCount          = 10
	loremPrefix       = "Spicy ipsum dolor amet"
)

// ParamError reports a user-supplied parameter that is out of range.
// Its message is safe to return to the client.
type ParamError struct {
	Param string
	Msg   string
}

func (e *ParamError) Error() string { return e.Msg }

func (e *ParamError) Is(target error) bool { return target == ErrInvalidParams }

// NewParamError formats the message used for a non-integer parameter.
func NewParamError(param string) *ParamError {
	return &ParamError{Param: param, Msg: fmt.Sprintf("The %s parameter must be a positive integer", param)}
}

// Params controls the generated text. Zero values select the defaults.
type Params struct {
	Paragraphs int `json:"paragraphs"`
	Sentences  int `json:"sentences"`
	Lorem      int `json:"lorem"`
	Wyrd       int `json:"wyrd"`
}

// Validate checks ranges: counts in 1..10 when set, flags 0 or 1.
func (p Params) Validate() error {
	for _, c := range []struct {
		name string
		v    int
	}{{"paragraphs", p.Paragraphs}, {"sentences", p.Sentences}} {
		if c.v < 0 {
			return NewParamError(c.name)
		}
		if c.v > maxCount {
			return &ParamError{Param: c.name, Msg: fmt.Sprintf("The %s parameter must be between 1 and %d", c.name, maxCount)}
		}
	}
	for _, c := range []struct {
		name string
		v    int
	}{{"lorem", p.Lorem}, {"wyrd", p.Wyrd}} {
		if c.v != 0 && c.v != 1 {
			return &ParamError{Param: c.name, Msg: fmt.Sprintf("The %s parameter must be either 0 or 1", c.name)}
		}
	}
	return nil
}

// Generator builds paragraphs of placeholder text from the cached corpus.
type Generator struct {
	corpus *CorpusCache
	intn   func(n int) int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithIntn replaces the random index source (rand.IntN by default).
func WithIntn(f func(n int) int) GeneratorOption {
	return func(g *Generator) { g.intn = f }
}

func NewGenerator(corpus *CorpusCache, opts ...GeneratorOption) *Generator {
	if corpus == nil {
		panic("generator requires a corpus cache")
	}
	g := &Generator{corpus: corpus, intn: rand.IntN}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns p.Paragraphs paragraphs of p.Sentences sentences, each
// sentence ten words drawn from the spice category (plus wyrd when asked).
func (g *Generator) Generate(ctx context.Context, p Params) ([]string, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	_, byName, err := g.corpus.CategoryMap(ctx)
	if err != nil {
		return nil, err
	}
	spice, ok := byName[CategorySpice]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, CategorySpice)
	}
	ids := []int{spice}
	if p.Wyrd == 1 {
		wyrd, ok := byName[CategoryWyrd]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, CategoryWyrd)
		}
		ids = append(ids, wyrd)
	}
	rows, err := g.corpus.Words(ctx, ids)
	if err != nil {
		return nil, err
	}
	words := make([][]string, 0, len(rows))
	for _, w := range rows {
		if f := strings.Fields(w.Text); len(f) > 0 {
			words = append(words, f)
		}
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: only blank words for type ids %v", ErrEmptyCorpus, ids)
	}

	paragraphs := p.Paragraphs
	if paragraphs == 0 {
		paragraphs = defaultParagraphs
	}
	sentences := p.Sentences
	if sentences == 0 {
		sentences = defaultSentences
	}

	out := make([]string, 0, paragraphs)
	first := true
	for range paragraphs {
		ss := make([]string, 0, sentences)
		for range sentences {
			var fields []string
			if first && p.Lorem == 1 {
				fields = strings.Fields(loremPrefix)
			}
			first = false
			for len(fields) < wordsPerSentence {
				fields = append(fields, words[g.intn(len(words))]...)
			}
			ss = append(ss, capitalize(strings.Join(fields, " "))+".")
		}
		out = append(out, strings.Join(ss, " "))
	}
	return out, nil
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
