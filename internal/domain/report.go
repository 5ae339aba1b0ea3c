package domain

import (
	"sort"

	"github.com/google/uuid"

	m "mender.dev/pkg/mender/internal/model"
)

// MergeReports combines batch reports into one. Statistics are recomputed
// from the per-file summaries; a path seen in several reports keeps its last
// entry. The merged report is a dry run only if every input was.
func MergeReports(reports ...m.BatchReport) m.BatchReport {
	merged := m.BatchReport{RunID: uuid.NewString(), DryRun: len(reports) > 0}

	summaries := make(map[m.Path]m.FileSummary)
	failed := make(map[m.Path]m.FailedFile)

	for _, report := range reports {
		merged.DryRun = merged.DryRun && report.DryRun

		for _, summary := range report.Results {
			delete(failed, summary.Path)
			summaries[summary.Path] = summary
		}

		for _, f := range report.Failed {
			delete(summaries, f.Path)
			failed[f.Path] = f
		}
	}

	var totals batchTotals

	for _, summary := range summaries {
		totals.add(summary)
		merged.Results = append(merged.Results, summary)
	}

	for _, f := range failed {
		merged.Failed = append(merged.Failed, f)
	}

	sort.Slice(merged.Results, func(i, j int) bool { return merged.Results[i].Path < merged.Results[j].Path })
	sort.Slice(merged.Failed, func(i, j int) bool { return merged.Failed[i].Path < merged.Failed[j].Path })

	totals.fill(&merged)
	merged.TotalFiles = merged.FilesProcessed + merged.FilesFailed

	return merged
}
