package controller

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "mender.dev/pkg/mender/internal/model"
)

var (
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("#2CD7C7"))
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4D03F"))
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
	styleMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
	styleHeader = lipgloss.NewStyle().Bold(true)
)

// SimpleUI implements UI using the cobra command's output stream.
type SimpleUI struct {
	cmd    *cobra.Command
	mu     sync.Mutex
	config StartConfig
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, opt := range options {
		opt(&s.config)
	}

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// DisplayBatchStart announces how many files are about to be repaired.
func (s *SimpleUI) DisplayBatchStart(ctx context.Context, files int, threads int) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mode := ""
	if s.config.dryRun {
		mode = styleMuted.Render(" (dry run)")
	}

	s.printf("Repairing %d file(s) with %d worker(s)%s\n", files, threads, mode)
}

// DisplayFileResult prints one line per finished file, plus its review notes
// and, when enabled, its diff.
func (s *SimpleUI) DisplayFileResult(ctx context.Context, result m.FileResult) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.printf("%s %s  iterations=%d edits=%d confidence=%.2f\n",
		formatState(result.State), result.Path, len(result.Iterations), result.TotalEdits, result.Confidence)

	if result.Err != "" {
		s.printf("  %s\n", styleError.Render(result.Err))
	}

	for _, note := range result.ReviewNotes {
		s.printf("  %s %s\n", styleWarn.Render("review:"), note)
	}

	if s.config.showDiff && result.Diff != "" {
		s.printf("%s\n", strings.TrimRight(result.Diff, "\n"))
	}
}

// DisplayBatchReport prints the per-file table and the batch totals.
func (s *SimpleUI) DisplayBatchReport(ctx context.Context, report m.BatchReport) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.printf("\n%s", renderReportTable(report))

	for _, failed := range report.Failed {
		s.printf("%s %s: %s\n", formatState(m.StateFailed), failed.Path, failed.Error)
	}

	s.printf("%s processed=%d fixed=%d failed=%d success=%.1f%% avg_confidence=%.2f avg_duration=%s\n",
		styleHeader.Render("Summary:"), report.FilesProcessed, report.FilesFixed, report.FilesFailed,
		report.SuccessRate*100, report.AverageConfidence, report.AverageDuration)

	if len(report.ManualReview) > 0 {
		s.printf("%s %d file(s) need manual review\n", styleWarn.Render("Review:"), len(report.ManualReview))
	}
}

// DisplayLearnedModel prints the learned fix-type statistics.
func (s *SimpleUI) DisplayLearnedModel(ctx context.Context, stats map[m.FixType]m.FixTypeStats) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(stats) == 0 {
		s.printf("No learned fixes yet\n")
		return
	}

	s.printf("%s", renderModelTable(stats))
}

func renderReportTable(report m.BatchReport) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Path", "State", "Iterations", "Edits", "Confidence", "Remaining"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER,
	})

	for _, r := range report.Results {
		table.Append([]string{
			string(r.Path),
			string(r.State),
			fmt.Sprintf("%d", r.Iterations),
			fmt.Sprintf("%d", r.Edits),
			fmt.Sprintf("%.2f", r.Confidence),
			fmt.Sprintf("%d", r.Remaining),
		})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", report.TotalFiles),
		"",
		"",
		fmt.Sprintf("%d", report.TotalEdits),
		fmt.Sprintf("%.2f", report.AverageConfidence),
		"",
	})

	table.Render()

	return tableBuffer.String()
}

func renderModelTable(stats map[m.FixType]m.FixTypeStats) string {
	types := make([]m.FixType, 0, len(stats))
	for ft := range stats {
		types = append(types, ft)
	}

	sort.Slice(types, func(i, j int) bool {
		return types[i] < types[j]
	})

	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Fix Type", "Attempts", "Successes", "Rate", "Contexts"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT,
	})

	for _, ft := range types {
		st := stats[ft]
		table.Append([]string{
			string(ft),
			fmt.Sprintf("%d", st.Attempts),
			fmt.Sprintf("%d", st.Successes),
			fmt.Sprintf("%.0f%%", st.SuccessRate()*100),
			strings.Join(st.Contexts, ", "),
		})
	}

	table.Render()

	return tableBuffer.String()
}

func formatState(state m.PipelineState) string {
	label := fmt.Sprintf("%-9s", state)

	switch state {
	case m.StateConverged:
		return styleOK.Render(label)
	case m.StateAborted:
		return styleWarn.Render(label)
	case m.StateFailed:
		return styleError.Render(label)
	default:
		return styleMuted.Render(label)
	}
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
