// internal/embedder/lexical.go
package embedder

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Dimensions is the width of every lexical vector. Storage schemas size their
// vector columns with it.
const Dimensions = 256

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {},
	"the": {}, "to": {}, "with": {},
}

// Lexical implements Embedder with hashed bag-of-words vectors. Two texts
// score high when they share words, nothing more.
type Lexical struct {
	dims int
}

// NewLexical creates a lexical embedder producing Dimensions-wide vectors
func NewLexical() *Lexical {
	return &Lexical{dims: Dimensions}
}

var _ Embedder = (*Lexical)(nil)

func (l *Lexical) EmbedForStorage(text string) ([]float32, error) {
	return l.Vector(text), nil
}

func (l *Lexical) EmbedForSearch(query string) ([]float32, error) {
	return l.Vector(query), nil
}

// Vector returns the unit-length term vector of text, or all zeros when text
// has no indexable words
func (l *Lexical) Vector(text string) []float32 {
	vec := make([]float32, l.dims)
	for _, tok := range Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(l.dims)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// Tokenize lowercases text, splits it on anything that is not a letter or
// digit, drops stopwords and folds simple plurals
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if _, skip := stopwords[f]; skip {
			continue
		}
		if len(f) > 3 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			f = strings.TrimSuffix(f, "s")
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// IsZero reports whether vec has no weight, meaning it cannot be compared
func IsZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// Cosine returns the cosine similarity of a and b, or 0 when either is empty
// or zero
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
