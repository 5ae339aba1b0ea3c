package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mender.dev/pkg/mender/internal/domain"
	m "mender.dev/pkg/mender/internal/model"
)

// mergeCmd represents the merge command.
var mergeCmd = newMergeCmd()

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <output.yaml> <report.yaml>...",
		Short: "Merge saved batch reports into one",
		Long: `Merge batch reports written by separate fix runs (for example one per package)
into a single report. Statistics are recomputed over all files.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports := make([]m.BatchReport, 0, len(args)-1)

			for _, path := range args[1:] {
				report, err := reportStore.LoadReport(m.Path(path))
				if err != nil {
					return fmt.Errorf("failed to load report %s: %w", path, err)
				}

				reports = append(reports, report)
			}

			merged := domain.MergeReports(reports...)
			if err := reportStore.SaveReport(m.Path(args[0]), merged); err != nil {
				return fmt.Errorf("failed to save report: %w", err)
			}

			cmd.Printf("Merged %d report(s) into %s: %d file(s), %d fixed\n", len(reports), args[0], merged.TotalFiles, merged.FilesFixed)

			return nil
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
