package ranking

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mender.dev/pkg/mender/internal/adapter"
	"mender.dev/pkg/mender/internal/metrics"
	m "mender.dev/pkg/mender/internal/model"
)

func newTestEngine(t *testing.T) (Engine, adapter.LearnedStore) {
	t.Helper()

	store := adapter.NewLearnedStore("")

	return NewEngine(store, Options{Metrics: metrics.New()}), store
}

func TestEngine_PredictFixTypeHeuristics(t *testing.T) {
	e, _ := newTestEngine(t)

	tests := []struct {
		code       string
		fixType    m.FixType
		confidence float64
	}{
		{"expect(a).toBe(1);", m.FixAssertion, 0.7},
		{"import x from 'y'", m.FixImport, 0.8},
		{"await load();", m.FixAsync, 0.75},
		{"const fn = jest.fn(); fn.MockClear", m.FixMock, 0.8},
		{"foo(bar", m.FixSyntax, 0.9},
		{"const a = 1;", m.FixGeneral, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ft, conf := e.PredictFixType(tt.code)
			assert.Equal(t, tt.fixType, ft)
			assert.InDelta(t, tt.confidence, conf, 1e-9)
		})
	}
}

func TestEngine_PredictFixTypeFromFingerprint(t *testing.T) {
	e, _ := newTestEngine(t)
	code := "setSystemTime(new Date(2023, 0, 1;"

	require.NoError(t, e.Learn(code, CodeContext{}, m.FixCallCompletion, true))
	require.NoError(t, e.Learn(code, CodeContext{}, m.FixCallCompletion, true))
	require.NoError(t, e.Learn(code, CodeContext{}, m.FixParentheses, false))

	ft, conf := e.PredictFixType("advanceTimersByTime(new Date(99, 1, 7;")
	assert.Equal(t, m.FixCallCompletion, ft)
	assert.InDelta(t, 2.0/3.0, conf, 1e-9)
}

func TestEngine_PredictFixTypeTieIsLexicographic(t *testing.T) {
	e, _ := newTestEngine(t)

	require.NoError(t, e.Learn("a.b", CodeContext{}, m.FixSemicolon, true))
	require.NoError(t, e.Learn("a.b", CodeContext{}, m.FixCallCompletion, true))

	ft, _ := e.PredictFixType("c.d")
	assert.Equal(t, m.FixCallCompletion, ft)
}

func TestEngine_Score(t *testing.T) {
	e, _ := newTestEngine(t)
	edit := m.Edit{OldText: "const x = 1", NewText: "const x = 1;", FixType: m.FixSemicolon, Confidence: 0.7}

	// general_fix 0.5, mismatched.
	assert.InDelta(t, 0.5*0.7, e.Score(edit, CodeContext{}), 1e-9)

	require.NoError(t, e.Learn("zzz", CodeContext{}, m.FixSemicolon, true))
	assert.InDelta(t, 0.5*0.7+0.3, e.Score(edit, CodeContext{}), 1e-9)

	require.NoError(t, e.Learn("yyy", CodeContext{}, m.FixSemicolon, false))
	require.NoError(t, e.Learn("xxx", CodeContext{}, m.FixSemicolon, false))
	require.NoError(t, e.Learn("www", CodeContext{}, m.FixSemicolon, false))
	assert.InDelta(t, 0.5*0.7-0.15, e.Score(edit, CodeContext{}), 1e-9)
}

func TestEngine_ScoreIgnoresEditConfidence(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Learn("other(", CodeContext{}, m.FixCallCompletion, true))

	var scores []float64
	for _, confidence := range []float64{0.95, 0.5, 0.1} {
		edit := m.Edit{OldText: "foo(bar", NewText: "foo(bar)", FixType: m.FixCallCompletion, Confidence: confidence}
		scores = append(scores, e.Score(edit, CodeContext{}))
	}

	// syntax_fix 0.9 mismatched, plus the full success-rate adjustment.
	assert.InDelta(t, 0.9*0.7+0.3, scores[0], 1e-9)
	assert.InDelta(t, scores[0], scores[1], 1e-9)
	assert.InDelta(t, scores[0], scores[2], 1e-9)
}

func TestEngine_ScoreIsClamped(t *testing.T) {
	e, _ := newTestEngine(t)
	code := "foo(bar"

	require.NoError(t, e.Learn(code, CodeContext{}, m.FixParentheses, true))

	edit := m.Edit{OldText: code, NewText: "foo(bar)", FixType: m.FixParentheses, Confidence: 1}
	assert.InDelta(t, 1.0, e.Score(edit, CodeContext{}), 1e-9)

	low := "const a = 1;"
	for i := 0; i < 20; i++ {
		require.NoError(t, e.Learn(low, CodeContext{}, m.FixTypeAnnotation, false))
	}

	assert.InDelta(t, 0.0, e.Score(m.Edit{OldText: low, FixType: m.FixTypeAnnotation, Confidence: 0.1}, CodeContext{}), 1e-9)
}

func TestEngine_ContextMatch(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := AnalyzeContext(reactTest, "src/Button.test.tsx")

	edit := m.Edit{NewText: "    expect(screen.getByText('hi')).toBeInTheDocument();"}
	assert.InDelta(t, 0.3, e.ContextMatch(edit, ctx), 1e-9)

	render := m.Edit{NewText: "    render(<Button />);"}
	// Same test classification plus full pattern overlap.
	assert.InDelta(t, 0.2+0.3, e.ContextMatch(render, ctx), 1e-9)

	imp := m.Edit{NewText: "import { waitFor } from '@testing-library/react';\nimport React from 'react';"}
	match := e.ContextMatch(imp, ctx)
	assert.GreaterOrEqual(t, match, 0.5)
	assert.LessOrEqual(t, match, 1.0)
}

func TestEngine_Rank(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := AnalyzeContext(reactTest, "src/Button.test.tsx")

	edits := []m.Edit{
		{Line: 1, OldText: "const a = 1", NewText: "const a = 1;", FixType: m.FixSemicolon, Confidence: 0.7, Order: 0},
		{Line: 2, OldText: "foo(bar", NewText: "foo(bar)", FixType: m.FixSyntax, Confidence: 0.9, Order: 1},
		{Line: 3, OldText: "const b = 2", NewText: "const b = 2;", FixType: m.FixSemicolon, Confidence: 0.7, Order: 2},
	}

	ranked := e.Rank(edits, ctx, 0)
	require.Len(t, ranked, 3)

	assert.Equal(t, 2, ranked[0].Line)
	assert.Equal(t, 1, ranked[1].Line, "ties keep discovery order")
	assert.Equal(t, 3, ranked[2].Line)

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Combined, ranked[i].Combined)
	}

	assert.Contains(t, ranked[0].Reasoning, "Detected react framework")
	assert.Contains(t, ranked[0].Reasoning, "Identified as component test")

	assert.Len(t, e.Rank(edits, ctx, 0.5), 1)
	assert.Empty(t, e.Rank(edits, ctx, 0.99))
}

func TestEngine_LearnFlushesPeriodically(t *testing.T) {
	dir := t.TempDir()
	store := adapter.NewLearnedStore(dir)
	e := NewEngine(store, Options{FlushEvery: 2})

	require.NoError(t, e.Learn("a(", CodeContext{Framework: FrameworkJest, TestType: TestUnit}, m.FixParentheses, true))
	assert.NoFileExists(t, filepath.Join(dir, adapter.PatternsFileName))

	require.NoError(t, e.Learn("b(", CodeContext{}, m.FixParentheses, false))
	assert.FileExists(t, filepath.Join(dir, adapter.PatternsFileName))
	assert.FileExists(t, filepath.Join(dir, adapter.FixTypesFileName))

	reloaded := adapter.NewLearnedStore(dir)
	require.NoError(t, reloaded.Load())

	stats, ok := reloaded.FixTypeStats(m.FixParentheses)
	require.True(t, ok)
	assert.Equal(t, 2, stats.Attempts)
	assert.Equal(t, 1, stats.Successes)
	assert.Contains(t, stats.Contexts, "jest/unit")
}

func TestEngine_FlushError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	e := NewEngine(adapter.NewLearnedStore(file), Options{FlushEvery: 1})
	require.Error(t, e.Learn("a", CodeContext{}, m.FixGeneral, true))
}

func TestEngine_SimilarPatterns(t *testing.T) {
	e, _ := newTestEngine(t)

	first := "expect(screen.getByRole('button')).toBeVisible("
	second := "render(<Modal open />"

	require.NoError(t, e.Learn(first, CodeContext{}, m.FixParentheses, true))
	require.NoError(t, e.Learn(second, CodeContext{}, m.FixParentheses, true))
	require.NoError(t, e.Learn("x = y", CodeContext{}, m.FixParentheses, false))
	require.NoError(t, e.Learn("q(", CodeContext{}, m.FixSemicolon, true))

	// Without a fitted model the most recent successes come first.
	assert.Equal(t, []string{Fingerprint(second), Fingerprint(first)}, e.SimilarPatterns("anything", m.FixParentheses))

	e.Fit([]string{first, second, "describe('x', () => {})"})
	assert.Equal(t, []string{Fingerprint(first), Fingerprint(second)},
		e.SimilarPatterns("expect(screen.getByRole('link')).toBeVisible(", m.FixParentheses))

	assert.Empty(t, e.SimilarPatterns("anything", m.FixImport))
}
