package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mender.dev/pkg/mender/internal/controller"
	m "mender.dev/pkg/mender/internal/model"
)

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <report.yaml>",
		Short: "View a saved batch report",
		Long:  "Print a batch report previously written with fix --report.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := reportStore.LoadReport(m.Path(args[0]))
			if err != nil {
				return fmt.Errorf("failed to load report: %w", err)
			}

			ui := controller.NewSimpleUI(cmd)
			if err := ui.Start(cmd.Context()); err != nil {
				return err
			}
			defer ui.Close(cmd.Context())

			ui.DisplayBatchReport(cmd.Context(), report)

			return nil
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
