package ranking

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	code := "import { render } from '@testing-library/react';\n// comment here\n/* block\nnote */\nrender(<App />);\nscreen.getByText('x');"

	tokens := Tokenize(code)

	assert.Contains(t, tokens, "@testing-library/react")
	assert.Contains(t, tokens, "render")
	assert.Contains(t, tokens, "getbytext")
	assert.Contains(t, tokens, "string")
	assert.NotContains(t, tokens, "comment")
	assert.NotContains(t, tokens, "note")

	for _, tok := range tokens {
		assert.Greater(t, len(tok), 1, tok)
		assert.Equal(t, strings.ToLower(tok), tok)
	}
}

func TestEmbeddings_Similarity(t *testing.T) {
	e := NewEmbeddings()
	assert.False(t, e.Fitted())
	assert.Zero(t, e.Similarity("expect(value).toBe(1)", "expect(value).toBe(1)"))

	e.Fit([]string{
		"expect(value).toBe(1)",
		"render(<Button />)",
		"jest.fn()",
	})
	require.True(t, e.Fitted())

	assert.InDelta(t, 1.0, e.Similarity("expect(value).toBe(2)", "expect(value).toBe(1)"), 1e-9)
	assert.InDelta(t, 0.0, e.Similarity("expect(value).toBe(1)", "render(<Button />)"), 1e-9)
	assert.Zero(t, e.Similarity("", "expect(value)"))
}

func TestEmbeddings_EncodeIsNormalised(t *testing.T) {
	e := NewEmbeddings()
	e.Fit([]string{"alpha beta beta", "gamma delta", "epsilon"})

	vec := e.Encode("alpha beta beta gamma")
	require.NotEmpty(t, vec)

	var norm float64
	for _, w := range vec {
		norm += w * w
	}

	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestEmbeddings_VocabularyIsCapped(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 1200; i++ {
		fmt.Fprintf(&b, "tok%d ", i)
	}

	e := NewEmbeddings()
	e.Fit([]string{b.String(), "other sample"})

	assert.Len(t, e.vocabulary, vocabularySize)
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("expect(a).toBe(1);")
	assert.Len(t, fp, 16)

	assert.Equal(t, fp, Fingerprint("expect(bb).toEqual(42);"))
	assert.Equal(t, Fingerprint("a  =   1"), Fingerprint("a = 1"))
	assert.Equal(t, Fingerprint("log('hello world')"), Fingerprint("log('x')"))
	assert.NotEqual(t, fp, Fingerprint("expect(a.toBe(1);"))
}
