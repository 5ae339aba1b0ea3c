package ranking

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"mender.dev/pkg/mender/internal/adapter"
	"mender.dev/pkg/mender/internal/metrics"
	m "mender.dev/pkg/mender/internal/model"
)

const (
	// DefaultFlushEvery is how many learn events pass between saves of the store.
	DefaultFlushEvery = 10

	mismatchPenalty   = 0.7
	successRateWeight = 0.6
	recentHistory     = 50
	maxSimilar        = 5
	maxExampleLength  = 200
	highComplexity    = 5
)

// Weights are the coefficients of the ranking formula.
type Weights struct {
	Confidence float64 `yaml:"confidence_weight"`
	Context    float64 `yaml:"context_weight"`
	Framework  float64 `yaml:"framework_weight"`
	TestType   float64 `yaml:"test_type_weight"`
	Pattern    float64 `yaml:"pattern_weight"`
	Import     float64 `yaml:"import_weight"`
}

// DefaultWeights returns the stock ranking coefficients.
func DefaultWeights() Weights {
	return Weights{
		Confidence: 0.7,
		Context:    0.3,
		Framework:  0.3,
		TestType:   0.2,
		Pattern:    0.3,
		Import:     0.2,
	}
}

// Options configures an Engine.
type Options struct {
	Weights    Weights
	FlushEvery int
	Metrics    *metrics.Recorder
}

// RankedEdit is an edit with the scores that placed it.
type RankedEdit struct {
	m.Edit
	Score           float64
	ContextMatch    float64
	Combined        float64
	SimilarPatterns []string
	Reasoning       string
}

// Engine predicts, scores and ranks candidate edits and learns from their outcome.
type Engine interface {
	// Fit trains the similarity model. Call it before sharing the engine.
	Fit(samples []string)
	PredictFixType(code string) (m.FixType, float64)
	Score(edit m.Edit, ctx CodeContext) float64
	ContextMatch(edit m.Edit, ctx CodeContext) float64
	Rank(edits []m.Edit, ctx CodeContext, minScore float64) []RankedEdit
	Learn(code string, ctx CodeContext, fixType m.FixType, success bool) error
	SimilarPatterns(code string, fixType m.FixType) []string
	Flush() error
}

type engine struct {
	store      adapter.LearnedStore
	embeddings *Embeddings
	weights    Weights
	flushEvery int
	metrics    *metrics.Recorder

	mu     sync.Mutex
	events int
}

// NewEngine returns an Engine backed by store. Zero options take the defaults.
func NewEngine(store adapter.LearnedStore, opts Options) Engine {
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}

	if opts.FlushEvery <= 0 {
		opts.FlushEvery = DefaultFlushEvery
	}

	return &engine{
		store:      store,
		embeddings: NewEmbeddings(),
		weights:    opts.Weights,
		flushEvery: opts.FlushEvery,
		metrics:    opts.Metrics,
	}
}

func (e *engine) Fit(samples []string) {
	e.embeddings.Fit(samples)
	slog.Debug("ranking model fitted", "samples", len(samples), "vocabulary", len(e.embeddings.vocabulary))
}

// PredictFixType returns the fix type most often applied to code's fingerprint,
// falling back to keyword heuristics for unseen shapes.
func (e *engine) PredictFixType(code string) (m.FixType, float64) {
	if stats, ok := e.store.Pattern(Fingerprint(code)); ok && stats.Attempts > 0 {
		return mostFrequent(stats.FixTypes), stats.SuccessRate()
	}

	return heuristicPrediction(code)
}

func mostFrequent(counts map[m.FixType]int) m.FixType {
	var (
		best  m.FixType
		count = -1
	)

	for ft, n := range counts {
		if n > count || (n == count && ft < best) {
			best, count = ft, n
		}
	}

	if count < 0 {
		return m.FixGeneral
	}

	return best
}

func heuristicPrediction(code string) (m.FixType, float64) {
	switch {
	case strings.Contains(code, "expect("):
		return m.FixAssertion, 0.7
	case strings.Contains(code, "import"):
		return m.FixImport, 0.8
	case strings.Contains(code, "async") || strings.Contains(code, "await"):
		return m.FixAsync, 0.75
	case strings.Contains(strings.ToLower(code), "mock"):
		return m.FixMock, 0.8
	case strings.Contains(code, "(") && !strings.Contains(code, ")"):
		return m.FixSyntax, 0.9
	default:
		return m.FixGeneral, 0.5
	}
}

// Score is the predicted confidence for the line the edit replaces, reduced
// when the prediction names another fix type, shifted by up to 0.3 either way
// by the recorded success rate of the edit's fix type.
func (e *engine) Score(edit m.Edit, _ CodeContext) float64 {
	predicted, score := e.PredictFixType(edit.OldText)
	if predicted != edit.FixType {
		score *= mismatchPenalty
	}

	if stats, ok := e.store.FixTypeStats(edit.FixType); ok && stats.Attempts > 0 {
		score += (stats.SuccessRate() - 0.5) * successRateWeight
	}

	return clamp(score)
}

// ContextMatch rates how well the replacement line fits the file.
func (e *engine) ContextMatch(edit m.Edit, ctx CodeContext) float64 {
	w := e.weights
	line := edit.NewText

	var match float64

	if detectFramework(line) == ctx.Framework {
		match += w.Framework
	}

	if classifyTestType(line, ctx.Path) == ctx.TestType {
		match += w.TestType
	}

	if patterns := extractPatterns(line); len(patterns) > 0 {
		match += w.Pattern * overlap(patterns, ctx.Patterns)
	}

	if imports := extractImports(line); len(imports) > 0 {
		match += w.Import * overlap(imports, ctx.Imports)
	}

	return clamp(match)
}

// Rank orders edits by descending combined score. Ties keep discovery order.
// A positive minScore drops edits scoring below it.
func (e *engine) Rank(edits []m.Edit, ctx CodeContext, minScore float64) []RankedEdit {
	ranked := make([]RankedEdit, 0, len(edits))

	for _, edit := range edits {
		score := e.Score(edit, ctx)
		match := e.ContextMatch(edit, ctx)
		combined := e.weights.Confidence*score + e.weights.Context*match

		if minScore > 0 && combined < minScore {
			slog.Debug("edit below minimum score", "edit", edit.String(), "score", combined, "min", minScore)
			continue
		}

		similar := e.SimilarPatterns(edit.OldText, edit.FixType)

		ranked = append(ranked, RankedEdit{
			Edit:            edit,
			Score:           score,
			ContextMatch:    match,
			Combined:        combined,
			SimilarPatterns: similar,
			Reasoning:       reasoning(ctx, similar),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Combined > ranked[j].Combined
	})

	return ranked
}

// Learn records one outcome and saves the store every flushEvery events.
func (e *engine) Learn(code string, ctx CodeContext, fixType m.FixType, success bool) error {
	example := code
	if len(example) > maxExampleLength {
		example = example[:maxExampleLength]
	}

	e.store.Record(m.FixOutcome{
		Fingerprint: Fingerprint(code),
		FixType:     fixType,
		Success:     success,
		Framework:   ctx.Framework,
		TestType:    ctx.TestType,
		Example:     example,
	})
	e.metrics.Learned(success)

	e.mu.Lock()
	e.events++
	flush := e.events%e.flushEvery == 0
	e.mu.Unlock()

	if !flush {
		return nil
	}

	return e.Flush()
}

func (e *engine) Flush() error {
	if err := e.store.Save(); err != nil {
		slog.Error("failed to save learned state", "error", err)
		return fmt.Errorf("save learned state: %w", err)
	}

	return nil
}

// SimilarPatterns returns up to five fingerprints of recent successful fixes of
// fixType, the ones whose stored examples resemble code first.
func (e *engine) SimilarPatterns(code string, fixType m.FixType) []string {
	history := e.store.History()
	if len(history) > recentHistory {
		history = history[len(history)-recentHistory:]
	}

	type candidate struct {
		fingerprint string
		similarity  float64
	}

	var candidates []candidate

	seen := make(map[string]bool)

	// Most recent first.
	for i := len(history) - 1; i >= 0; i-- {
		h := history[i]
		if h.FixType != fixType || !h.Success || seen[h.Fingerprint] {
			continue
		}

		seen[h.Fingerprint] = true
		candidates = append(candidates, candidate{fingerprint: h.Fingerprint, similarity: e.bestSimilarity(code, h.Fingerprint)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})

	if len(candidates) > maxSimilar {
		candidates = candidates[:maxSimilar]
	}

	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.fingerprint)
	}

	return out
}

func (e *engine) bestSimilarity(code, fingerprint string) float64 {
	if !e.embeddings.Fitted() {
		return 0
	}

	stats, ok := e.store.Pattern(fingerprint)
	if !ok {
		return 0
	}

	var best float64
	for _, example := range stats.Examples {
		if s := e.embeddings.Similarity(code, example); s > best {
			best = s
		}
	}

	return best
}

func reasoning(ctx CodeContext, similar []string) string {
	var reasons []string

	if ctx.Framework != "" {
		reasons = append(reasons, fmt.Sprintf("Detected %s framework", ctx.Framework))
	}

	if ctx.TestType != "" {
		reasons = append(reasons, fmt.Sprintf("Identified as %s test", ctx.TestType))
	}

	if len(similar) > 0 {
		reasons = append(reasons, fmt.Sprintf("Found %d similar successful patterns", len(similar)))
	}

	if ctx.Complexity > highComplexity {
		reasons = append(reasons, "High complexity code may benefit from this fix")
	}

	if len(reasons) == 0 {
		return "General fix recommendation"
	}

	return strings.Join(reasons, "; ")
}

func overlap(have, want []string) float64 {
	if len(have) == 0 {
		return 0
	}

	set := make(map[string]bool, len(want))
	for _, w := range want {
		set[w] = true
	}

	n := 0
	for _, h := range have {
		if set[h] {
			n++
		}
	}

	return float64(n) / float64(len(have))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
