package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"mender.dev/pkg/mender/internal/adapter"
	"mender.dev/pkg/mender/internal/domain/fixers"
	"mender.dev/pkg/mender/internal/domain/ranking"
	"mender.dev/pkg/mender/internal/metrics"
	m "mender.dev/pkg/mender/internal/model"
)

// DefaultMaxIterations bounds the ANALYZE/GENERATE/APPLY loop of one file.
const DefaultMaxIterations = 3

// Aggregate confidence terms.
const (
	baseConfidence        = 0.9
	reviewPenalty         = 0.2
	remainingCodePenalty  = 0.1
	manyEditsPenalty      = 0.05
	tooManyEditsPenalty   = 0.1
	validBonus            = 0.1
	manyEditsThreshold    = 5
	tooManyEditsThreshold = 10
)

// Orchestrator drives the repair state machine of a single file.
type Orchestrator interface {
	Repair(ctx context.Context, unit m.SourceUnit) m.FileResult
}

// Options configures an Orchestrator.
type Options struct {
	MaxIterations int
	TypeCheck     bool
	MinScore      float64
	Metrics       *metrics.Recorder
}

type orchestrator struct {
	parser     adapter.ParserAdapter
	ranker     ranking.Engine
	generators []fixers.Generator
	opts       Options
}

// NewOrchestrator constructs an Orchestrator. Without generators the syntax,
// type and pattern engines are used. ranker may be nil, which disables
// ranking and learning.
func NewOrchestrator(parser adapter.ParserAdapter, ranker ranking.Engine, opts Options, generators ...fixers.Generator) Orchestrator {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}

	if len(generators) == 0 {
		generators = DefaultGenerators()
	}

	ordered := append([]fixers.Generator(nil), generators...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Engine().Priority() > ordered[j].Engine().Priority()
	})

	return &orchestrator{
		parser:     parser,
		ranker:     ranker,
		generators: ordered,
		opts:       opts,
	}
}

// DefaultGenerators returns the stock fix engines.
func DefaultGenerators() []fixers.Generator {
	return []fixers.Generator{
		fixers.NewSyntaxFixGenerator(),
		fixers.NewTypeFixGenerator(),
		fixers.NewPatternFixGenerator(),
	}
}

func (o *orchestrator) Repair(ctx context.Context, unit m.SourceUnit) m.FileResult {
	result := m.FileResult{
		Path:     unit.Path,
		Original: unit,
		Final:    unit,
		State:    m.StateInit,
	}

	current := unit

	var final m.Analysis

	converged := false

	for i := 1; i <= o.opts.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return o.failed(result, current, err)
		}

		enter(&result, m.StateAnalyze)
		analysis := o.parser.Analyze(ctx, current, o.opts.TypeCheck)
		if err := ctx.Err(); err != nil {
			return o.failed(result, current, err)
		}

		enter(&result, m.StateGenerate)
		candidates := o.generate(analysis.Diagnostics, current)
		iteration := m.IterationResult{
			Iteration:    i,
			Input:        current,
			Output:       current,
			Diagnostics:  analysis.Diagnostics,
			EngineCounts: engineCounts(candidates),
			Applied:      m.PatchSet{Version: current.Version},
		}

		if len(candidates) == 0 {
			result.Iterations = append(result.Iterations, iteration)
			final = analysis
			converged = true

			break
		}

		enter(&result, m.StateApply)
		outcome := ApplyPatchSet(current, o.rank(candidates, current))
		o.recordPatch(outcome)

		iteration.Output = outcome.Unit
		iteration.Applied = outcome.Applied
		iteration.Stale = len(outcome.Stale)
		iteration.Discarded = droppedEdits(outcome.Discarded)
		iteration.Confidence = meanConfidence(outcome.Applied.Edits)
		result.Iterations = append(result.Iterations, iteration)
		result.TotalEdits += outcome.Applied.Len()

		slog.Debug("iteration done", "path", current.Path, "iteration", i, "diagnostics", len(analysis.Diagnostics),
			"candidates", len(candidates), "applied", outcome.Applied.Len(), "stale", len(outcome.Stale), "discarded", len(outcome.Discarded))

		if outcome.Applied.Len() == 0 {
			final = analysis
			converged = true

			break
		}

		current = outcome.Unit
	}

	if !converged {
		enter(&result, m.StateAnalyze)
		final = o.parser.Analyze(ctx, current, o.opts.TypeCheck)
		if err := ctx.Err(); err != nil {
			return o.failed(result, current, err)
		}

		converged = len(o.generate(final.Diagnostics, current)) == 0
	}

	if converged {
		enter(&result, m.StateConverged)
	} else {
		enter(&result, m.StateAborted)
	}

	result.Final = current
	result.Remaining = final.Diagnostics
	result.Valid = final.Valid
	result.ReviewNotes = o.reviewNotes(result, final)
	result.ManualReviewNeeded = len(result.ReviewNotes) > 0
	result.Confidence = aggregateConfidence(result)
	result.Diff = unifiedDiff(result.Original, result.Final)

	o.learn(result, final)

	return result
}

// enter moves result to the next state. A terminal state is never left.
func enter(result *m.FileResult, next m.PipelineState) {
	if result.State.Terminal() {
		slog.Warn("transition out of terminal state ignored", "path", result.Path, "from", result.State, "to", next)
		return
	}

	slog.Debug("state transition", "path", result.Path, "from", result.State, "to", next)

	result.State = next
	result.Transitions = append(result.Transitions, next)
}

func (o *orchestrator) failed(result m.FileResult, current m.SourceUnit, err error) m.FileResult {
	slog.Error("repair interrupted", "path", current.Path, "iterations", len(result.Iterations), "error", err)

	enter(&result, m.StateFailed)
	result.Final = current
	result.Err = fmt.Sprintf("repair interrupted: %v", err)
	result.Diff = unifiedDiff(result.Original, result.Final)

	return result
}

// generate runs every engine in priority order and numbers the combined
// candidates in discovery order.
func (o *orchestrator) generate(diags []m.Diagnostic, unit m.SourceUnit) []m.Edit {
	candidates := make([]m.Edit, 0)

	for _, g := range o.generators {
		edits := o.runGenerator(g, diags, unit)
		o.opts.Metrics.EditsGenerated(g.Engine().String(), len(edits))
		candidates = append(candidates, edits...)
	}

	for i := range candidates {
		candidates[i].Order = i
	}

	return candidates
}

func (o *orchestrator) runGenerator(g fixers.Generator, diags []m.Diagnostic, unit m.SourceUnit) (edits []m.Edit) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("fix engine panicked", "engine", g.Engine(), "path", unit.Path, "version", unit.Version, "panic", r)

			edits = nil
		}
	}()

	return g.Generate(append([]m.Diagnostic(nil), diags...), unit)
}

// rank scores the candidates for reporting and, with a positive minimum
// score, drops the weak ones.
func (o *orchestrator) rank(candidates []m.Edit, unit m.SourceUnit) []m.Edit {
	if o.ranker == nil {
		return candidates
	}

	ranked := o.ranker.Rank(candidates, ranking.AnalyzeContext(unit.Text, unit.Path), o.opts.MinScore)
	edits := make([]m.Edit, 0, len(ranked))

	for _, r := range ranked {
		slog.Debug("ranked edit", "path", unit.Path, "edit", r.Edit.String(), "score", r.Combined, "reasoning", r.Reasoning)
		edits = append(edits, r.Edit)
	}

	return edits
}

func (o *orchestrator) recordPatch(outcome PatchOutcome) {
	for _, edit := range outcome.Applied.Edits {
		o.opts.Metrics.EditApplied(edit.Origin.String())
	}

	o.opts.Metrics.EditsDropped(len(outcome.Stale), len(outcome.Discarded))
}

func (o *orchestrator) reviewNotes(result m.FileResult, final m.Analysis) []string {
	notes := make([]string, 0)

	for _, finding := range fixers.DetectSemanticIssues(result.Final.Text) {
		notes = append(notes, finding.String())
	}

	for _, d := range final.Diagnostics {
		if d.Code == m.CodeParseFailed {
			err := fmt.Errorf("%w: %s", ErrParseFailure, d.Message)
			slog.Warn("final analysis incomplete", "path", result.Path, "error", err)
			notes = append(notes, err.Error())

			break
		}
	}

	if result.State == m.StateAborted {
		notes = append(notes, fmt.Sprintf("still reporting %d diagnostics %v after %d iterations", len(final.Diagnostics), final.Codes(), len(result.Iterations)))
	}

	return notes
}

// learn feeds every applied edit back to the ranker. An edit succeeded when
// the lines it produced carry no diagnostic in the final analysis.
func (o *orchestrator) learn(result m.FileResult, final m.Analysis) {
	if o.ranker == nil {
		return
	}

	ctx := ranking.AnalyzeContext(result.Final.Text, result.Path)

	for k, it := range result.Iterations {
		for _, edit := range it.Applied.Edits {
			start := finalLine(result.Iterations, k, edit)
			success := !spanHasDiagnostic(final, start, start+addedLines(edit))

			if err := o.ranker.Learn(edit.OldText, ctx, edit.FixType, success); err != nil {
				slog.Error("failed to persist learned state", "path", result.Path, "error", err)
			}
		}
	}
}

// finalLine follows the first line of an edit applied in iteration k through
// the lines inserted above it by the same and every later iteration.
func finalLine(iterations []m.IterationResult, k int, edit m.Edit) int {
	line := edit.Line

	for _, other := range iterations[k].Applied.Edits {
		if other.Line < edit.Line {
			line += addedLines(other)
		}
	}

	for _, it := range iterations[k+1:] {
		shift := 0

		for _, other := range it.Applied.Edits {
			if other.Line <= line {
				shift += addedLines(other)
			}
		}

		line += shift
	}

	return line
}

// addedLines is how many lines applying edit inserts.
func addedLines(edit m.Edit) int {
	return strings.Count(edit.NewText, "\n") - strings.Count(edit.OldText, "\n")
}

func spanHasDiagnostic(a m.Analysis, from, to int) bool {
	for line := from; line <= to; line++ {
		if a.HasLine(line) {
			return true
		}
	}

	return false
}

func aggregateConfidence(result m.FileResult) float64 {
	if result.TotalEdits == 0 && result.Valid && !result.ManualReviewNeeded {
		return 1
	}

	confidence := baseConfidence

	if result.ManualReviewNeeded {
		confidence -= reviewPenalty
	}

	codes := make(map[m.Code]bool, len(result.Remaining))
	for _, d := range result.Remaining {
		codes[d.Code] = true
	}

	confidence -= remainingCodePenalty * float64(len(codes))

	if result.TotalEdits > manyEditsThreshold {
		confidence -= manyEditsPenalty
	}

	if result.TotalEdits > tooManyEditsThreshold {
		confidence -= tooManyEditsPenalty
	}

	if result.Valid {
		confidence += validBonus
	}

	return min(max(confidence, 0), 1)
}

func engineCounts(edits []m.Edit) map[m.Engine]int {
	counts := make(map[m.Engine]int)
	for _, e := range edits {
		counts[e.Origin]++
	}

	return counts
}

func droppedEdits(dropped []DroppedEdit) []m.Edit {
	if len(dropped) == 0 {
		return nil
	}

	edits := make([]m.Edit, 0, len(dropped))
	for _, d := range dropped {
		edits = append(edits, d.Edit)
	}

	return edits
}

func meanConfidence(edits []m.Edit) float64 {
	if len(edits) == 0 {
		return 0
	}

	var sum float64
	for _, e := range edits {
		sum += e.Confidence
	}

	return sum / float64(len(edits))
}

func unifiedDiff(original, final m.SourceUnit) string {
	if original.Hash == final.Hash {
		return ""
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original.Text),
		B:        difflib.SplitLines(final.Text),
		FromFile: "a/" + string(original.Path),
		ToFile:   "b/" + string(final.Path),
		Context:  3,
	})
	if err != nil {
		slog.Warn("failed to render diff", "path", original.Path, "error", err)
		return ""
	}

	return diff
}
