// Package domain holds the repair pipeline: the patch applier, the per-file
// orchestrator and the batch workflow.
package domain

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mender.dev/pkg/mender/internal/adapter"
	"mender.dev/pkg/mender/internal/controller"
	"mender.dev/pkg/mender/internal/domain/ranking"
	"mender.dev/pkg/mender/internal/metrics"
	m "mender.dev/pkg/mender/internal/model"
	"mender.dev/pkg/mender/pkg"
)

// DefaultFileTimeout bounds the repair of a single file within a batch.
const DefaultFileTimeout = 5 * time.Minute

const defaultFilePerm os.FileMode = 0o644

// DirectoryArgs describes one batch run.
type DirectoryArgs struct {
	Root        m.Path
	Patterns    []string
	Exclude     []string
	DryRun      bool
	Threads     int
	FileTimeout time.Duration
	// SpillDir holds the temporary per-file summaries; empty means the system temp dir.
	SpillDir string
}

// Workflow repairs single files and whole directories.
type Workflow interface {
	ProcessFile(ctx context.Context, path m.Path, dryRun bool) m.FileResult
	ProcessDirectory(ctx context.Context, args DirectoryArgs) (m.BatchReport, error)
}

type workflow struct {
	adapter.SourceFSAdapter
	controller.UI
	Orchestrator

	ranker  ranking.Engine
	metrics *metrics.Recorder
}

// NewWorkflow creates a Workflow. ranker may be nil.
func NewWorkflow(
	fsAdapter adapter.SourceFSAdapter,
	ui controller.UI,
	orchestrator Orchestrator,
	ranker ranking.Engine,
	recorder *metrics.Recorder,
) Workflow {
	return &workflow{
		SourceFSAdapter: fsAdapter,
		UI:              ui,
		Orchestrator:    orchestrator,
		ranker:          ranker,
		metrics:         recorder,
	}
}

// ProcessFile repairs one file. The file is written back only outside dry-run
// mode and only when its text changed; the returned result is the same in both modes.
func (w *workflow) ProcessFile(ctx context.Context, path m.Path, dryRun bool) m.FileResult {
	start := time.Now()

	result := w.processFile(ctx, path, dryRun)
	result.Duration = time.Since(start)
	result.DryRun = dryRun

	w.metrics.FileDone(string(result.State), len(result.Iterations), result.Duration.Seconds())
	slog.Info("file processed", "path", path, "state", result.State, "edits", result.TotalEdits,
		"confidence", result.Confidence, "duration", result.Duration, "dryRun", dryRun)

	return result
}

func (w *workflow) processFile(ctx context.Context, path m.Path, dryRun bool) m.FileResult {
	content, err := w.ReadFile(path)
	if err != nil {
		ioErr := &CriticalIOError{Path: path, Op: "read", Err: err}
		slog.Error("failed to read test file", "path", path, "error", err)

		return m.FileResult{Path: path, State: m.StateFailed, Err: ioErr.Error()}
	}

	result := w.Repair(ctx, m.NewSourceUnit(path, string(content)))
	if dryRun || result.State == m.StateFailed || !result.Changed() {
		return result
	}

	if err := w.writeBack(path, result.Final.Text); err != nil {
		result.State = m.StateFailed
		result.Err = err.Error()
	}

	return result
}

func (w *workflow) writeBack(path m.Path, text string) error {
	perm := defaultFilePerm
	if info, err := w.FileInfo(path); err == nil && info != nil {
		perm = info.Mode().Perm()
	}

	if err := w.WriteFile(path, []byte(text), perm); err != nil {
		slog.Error("failed to write repaired file", "path", path, "error", err)
		return &CriticalIOError{Path: path, Op: "write", Err: err}
	}

	return nil
}

// ProcessDirectory repairs every test file under args.Root with a bounded
// worker pool. A file that fails is listed in the report and never stops the
// others; the only error returned is an unreadable root.
func (w *workflow) ProcessDirectory(ctx context.Context, args DirectoryArgs) (m.BatchReport, error) {
	report := m.BatchReport{RunID: uuid.NewString(), DryRun: args.DryRun}

	files, err := w.collectFiles(args)
	if err != nil {
		return report, err
	}

	threads := max(args.Threads, 1)
	timeout := args.FileTimeout
	if timeout <= 0 {
		timeout = DefaultFileTimeout
	}

	report.TotalFiles = len(files)
	w.fitRanker(files)
	w.DisplayBatchStart(ctx, len(files), threads)

	sink := newSummarySink(args.SpillDir)
	defer sink.close()

	var (
		mu     sync.Mutex
		totals batchTotals
	)

	group := errgroup.Group{}
	group.SetLimit(threads)

	for _, path := range files {
		group.Go(func() error {
			fileCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			result := w.ProcessFile(fileCtx, path, args.DryRun)
			w.DisplayFileResult(ctx, result)

			mu.Lock()
			defer mu.Unlock()

			if result.State == m.StateFailed {
				report.Failed = append(report.Failed, m.FailedFile{Path: path, Error: result.Err})
				return nil
			}

			summary := result.Summary()
			totals.add(summary)
			sink.add(summary)

			return nil
		})
	}

	// Workers never return an error.
	_ = group.Wait()

	if w.ranker != nil {
		if err := w.ranker.Flush(); err != nil {
			slog.Error("failed to save learned state", "error", err)
		}
	}

	totals.fill(&report)
	report.Results = sink.summaries()

	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Path < report.Failed[j].Path })

	w.DisplayBatchReport(ctx, report)
	slog.Info("batch done", "runID", report.RunID, "files", report.TotalFiles, "processed", report.FilesProcessed,
		"fixed", report.FilesFixed, "failed", report.FilesFailed)

	return report, nil
}

func (w *workflow) collectFiles(args DirectoryArgs) ([]m.Path, error) {
	info, err := w.FileInfo(args.Root)
	if err != nil {
		slog.Error("failed to read root", "path", args.Root, "error", err)
		return nil, &CriticalIOError{Path: args.Root, Op: "stat", Err: err}
	}

	if !info.IsDir() {
		return []m.Path{args.Root}, nil
	}

	files, err := w.FindTestFiles(args.Root, args.Patterns, args.Exclude)
	if err != nil {
		slog.Error("failed to list test files", "path", args.Root, "error", err)
		return nil, &CriticalIOError{Path: args.Root, Op: "walk", Err: err}
	}

	return files, nil
}

// fitRanker fits the similarity model once, before any worker reads it.
func (w *workflow) fitRanker(files []m.Path) {
	if w.ranker == nil {
		return
	}

	samples := make([]string, 0, len(files))

	for _, path := range files {
		content, err := w.ReadFile(path)
		if err != nil {
			slog.Debug("skipping unreadable file for similarity model", "path", path, "error", err)
			continue
		}

		samples = append(samples, string(content))
	}

	w.ranker.Fit(samples)
}

// batchTotals accumulates order-independent counts and sums.
type batchTotals struct {
	processed  int
	fixed      int
	edits      int
	confidence float64
	duration   time.Duration
	review     []m.Path
}

func (t *batchTotals) add(summary m.FileSummary) {
	t.processed++
	t.edits += summary.Edits
	t.confidence += summary.Confidence
	t.duration += summary.Duration

	if summary.State == m.StateConverged && summary.Valid {
		t.fixed++
	}

	if summary.ManualReview {
		t.review = append(t.review, summary.Path)
	}
}

func (t *batchTotals) fill(report *m.BatchReport) {
	report.FilesProcessed = t.processed
	report.FilesFixed = t.fixed
	report.FilesFailed = len(report.Failed)
	report.TotalEdits = t.edits

	sort.Slice(t.review, func(i, j int) bool { return t.review[i] < t.review[j] })
	report.ManualReview = t.review

	if t.processed == 0 {
		return
	}

	report.SuccessRate = float64(t.fixed) / float64(t.processed)
	report.AverageConfidence = t.confidence / float64(t.processed)
	report.AverageDuration = t.duration / time.Duration(t.processed)
}

// summarySink keeps per-file summaries on disk while a batch runs and falls
// back to memory when no spill file can be created.
type summarySink struct {
	spill  pkg.Spill[m.FileSummary]
	memory []m.FileSummary
}

func newSummarySink(dir string) *summarySink {
	spill, err := pkg.NewSpill[m.FileSummary](dir)
	if err != nil {
		slog.Warn("keeping file summaries in memory", "error", err)
		return &summarySink{}
	}

	return &summarySink{spill: spill}
}

func (s *summarySink) add(summary m.FileSummary) {
	if s.spill != nil {
		if err := s.spill.Append(summary); err == nil {
			return
		}
	}

	s.memory = append(s.memory, summary)
}

// summaries returns every collected summary sorted by path.
func (s *summarySink) summaries() []m.FileSummary {
	out := append([]m.FileSummary(nil), s.memory...)

	if s.spill != nil {
		err := s.spill.Range(func(_ uint64, summary m.FileSummary) error {
			out = append(out, summary)
			return nil
		})
		if err != nil {
			slog.Error("failed to read file summaries", "path", s.spill.Path(), "error", err)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	return out
}

func (s *summarySink) close() {
	if s.spill == nil {
		return
	}

	if err := s.spill.Close(); err != nil {
		slog.Warn("failed to remove summary spill", "path", s.spill.Path(), "error", err)
	}
}
