// Package ranking scores candidate edits against the file they target and
// learns from the outcome of applied edits.
package ranking

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const vocabularySize = 1000

var (
	lineCommentRe  = regexp.MustCompile(`(?m)//.*$`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	stringRe       = regexp.MustCompile("['\"`].*?['\"`]")
	identRe        = regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]*\b`)
	callRe         = regexp.MustCompile(`(\w+)\s*\(`)
	propertyRe     = regexp.MustCompile(`\.(\w+)`)
	importFromRe   = regexp.MustCompile(`from\s+['"]([^'"]+)['"]`)
)

// Tokenize splits code into lower-cased identifier, call, property and
// import-source tokens. Comments are dropped and string literals collapsed.
func Tokenize(code string) []string {
	// Import sources are read before string literals are collapsed.
	sources := importFromRe.FindAllStringSubmatch(code, -1)

	code = lineCommentRe.ReplaceAllString(code, "")
	code = blockCommentRe.ReplaceAllString(code, "")
	code = stringRe.ReplaceAllString(code, "STRING")

	tokens := identRe.FindAllString(code, -1)

	for _, sub := range callRe.FindAllStringSubmatch(code, -1) {
		tokens = append(tokens, sub[1])
	}

	for _, sub := range propertyRe.FindAllStringSubmatch(code, -1) {
		tokens = append(tokens, sub[1])
	}

	for _, sub := range sources {
		tokens = append(tokens, sub[1])
	}

	out := tokens[:0]
	for _, tok := range tokens {
		if len(tok) > 1 {
			out = append(out, strings.ToLower(tok))
		}
	}

	return out
}

// Embeddings is a TF-IDF table over code tokens. Fit it once, then share it
// read-only between goroutines.
type Embeddings struct {
	vocabulary map[string]int
	idf        map[string]float64
}

// NewEmbeddings returns an unfitted table. Encoding with it yields empty vectors.
func NewEmbeddings() *Embeddings {
	return &Embeddings{}
}

// Fitted reports whether Fit was called with at least one sample.
func (e *Embeddings) Fitted() bool {
	return len(e.vocabulary) > 0
}

// Fit builds the vocabulary from the most common tokens of samples and their
// inverse document frequencies.
func (e *Embeddings) Fit(samples []string) {
	counts := make(map[string]int)
	docs := make([]map[string]bool, 0, len(samples))

	for _, code := range samples {
		seen := make(map[string]bool)
		for _, tok := range Tokenize(code) {
			counts[tok]++
			seen[tok] = true
		}

		docs = append(docs, seen)
	}

	tokens := make([]string, 0, len(counts))
	for tok := range counts {
		tokens = append(tokens, tok)
	}

	sort.Slice(tokens, func(i, j int) bool {
		if counts[tokens[i]] != counts[tokens[j]] {
			return counts[tokens[i]] > counts[tokens[j]]
		}

		return tokens[i] < tokens[j]
	})

	if len(tokens) > vocabularySize {
		tokens = tokens[:vocabularySize]
	}

	e.vocabulary = make(map[string]int, len(tokens))
	e.idf = make(map[string]float64, len(tokens))

	for i, tok := range tokens {
		df := 0
		for _, doc := range docs {
			if doc[tok] {
				df++
			}
		}

		e.vocabulary[tok] = i
		e.idf[tok] = math.Log(float64(len(docs)) / float64(df+1))
	}
}

// Encode returns the L2-normalised TF-IDF vector of code keyed by token.
func (e *Embeddings) Encode(code string) map[string]float64 {
	vec := make(map[string]float64)
	if !e.Fitted() {
		return vec
	}

	tokens := Tokenize(code)
	if len(tokens) == 0 {
		return vec
	}

	counts := make(map[string]int)
	for _, tok := range tokens {
		counts[tok]++
	}

	var norm float64

	for tok, n := range counts {
		if _, ok := e.vocabulary[tok]; !ok {
			continue
		}

		w := float64(n) / float64(len(tokens)) * e.idf[tok]
		if w == 0 {
			continue
		}

		vec[tok] = w
		norm += w * w
	}

	if norm > 0 {
		norm = math.Sqrt(norm)
		for tok := range vec {
			vec[tok] /= norm
		}
	}

	return vec
}

// Similarity is the cosine similarity of the encodings of a and b.
func (e *Embeddings) Similarity(a, b string) float64 {
	va, vb := e.Encode(a), e.Encode(b)
	if len(vb) < len(va) {
		va, vb = vb, va
	}

	var dot float64
	for tok, w := range va {
		dot += w * vb[tok]
	}

	return dot
}
