package model

import "time"

// PipelineState is a state of the per-file repair state machine.
type PipelineState string

// Pipeline states.
const (
	StateInit      PipelineState = "INIT"
	StateAnalyze   PipelineState = "ANALYZE"
	StateGenerate  PipelineState = "GENERATE"
	StateApply     PipelineState = "APPLY"
	StateConverged PipelineState = "CONVERGED"
	StateAborted   PipelineState = "ABORTED"
	StateFailed    PipelineState = "FAILED"
)

// Terminal reports whether no further transition leaves s.
func (s PipelineState) Terminal() bool {
	return s == StateConverged || s == StateAborted || s == StateFailed
}

// IterationResult records one ANALYZE/GENERATE/APPLY round.
type IterationResult struct {
	Iteration    int
	Input        SourceUnit
	Output       SourceUnit
	Diagnostics  []Diagnostic
	Applied      PatchSet
	EngineCounts map[Engine]int
	Stale        int
	Discarded    []Edit
	// Confidence is the mean confidence of the applied edits.
	Confidence float64
}

// FileResult is the outcome of repairing one file.
type FileResult struct {
	Path               Path
	Original           SourceUnit
	Final              SourceUnit
	State              PipelineState
	Iterations         []IterationResult
	TotalEdits         int
	Confidence         float64
	ManualReviewNeeded bool
	ReviewNotes        []string
	Remaining          []Diagnostic
	Valid              bool
	Diff               string
	Duration           time.Duration
	DryRun             bool
	Err                string

	// Transitions lists every state entered after INIT, in order.
	Transitions []PipelineState
}

// Changed reports whether the final text differs from the original.
func (r FileResult) Changed() bool {
	return r.Final.Hash != r.Original.Hash
}

// FailedFile is a file that could not be processed at all.
type FailedFile struct {
	Path  Path   `yaml:"path"`
	Error string `yaml:"error"`
}

// BatchReport summarises a batch run. Statistics are computed from the
// successfully processed files only; failed files are listed separately.
type BatchReport struct {
	RunID             string        `yaml:"run_id"`
	TotalFiles        int           `yaml:"total_files"`
	FilesProcessed    int           `yaml:"files_processed"`
	FilesFixed        int           `yaml:"files_fixed"`
	FilesFailed       int           `yaml:"files_failed"`
	SuccessRate       float64       `yaml:"success_rate"`
	AverageConfidence float64       `yaml:"average_confidence"`
	AverageDuration   time.Duration `yaml:"average_duration"`
	TotalEdits        int           `yaml:"total_edits"`
	DryRun            bool          `yaml:"dry_run"`
	ManualReview      []Path        `yaml:"manual_review,omitempty"`
	Failed            []FailedFile  `yaml:"failed,omitempty"`
	Results           []FileSummary `yaml:"results,omitempty"`
}

// FileSummary is the per-file line of a BatchReport.
type FileSummary struct {
	Path         Path          `yaml:"path"`
	State        PipelineState `yaml:"state"`
	Iterations   int           `yaml:"iterations"`
	Edits        int           `yaml:"edits"`
	Confidence   float64       `yaml:"confidence"`
	Valid        bool          `yaml:"valid"`
	ManualReview bool          `yaml:"manual_review"`
	Remaining    int           `yaml:"remaining"`
	Duration     time.Duration `yaml:"duration"`
}

// Summary condenses r for reporting.
func (r FileResult) Summary() FileSummary {
	return FileSummary{
		Path:         r.Path,
		State:        r.State,
		Iterations:   len(r.Iterations),
		Edits:        r.TotalEdits,
		Confidence:   r.Confidence,
		Valid:        r.Valid,
		ManualReview: r.ManualReviewNeeded,
		Remaining:    len(r.Remaining),
		Duration:     r.Duration,
	}
}
