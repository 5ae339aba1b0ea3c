package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mender.dev/pkg/mender/internal/controller"
	"mender.dev/pkg/mender/internal/domain"
	m "mender.dev/pkg/mender/internal/model"
)

var fixParallelFlag int
var fixMaxIterationsFlag int
var fixMinScoreFlag float64
var fixTypeCheckFlag bool
var fixPatternFlag []string
var fixDryRunFlag bool
var fixReportFlag string
var fixMetricsFileFlag string
var fixDiffFlag bool

// fixCmd represents the fix command.
var fixCmd = newFixCmd()

func newFixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix [paths...]",
		Short: "Repair broken test files",
		Long:  fixLongDescription,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFix(cmd, args)
		},
	}

	configureFixFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(fixCmd)
}

func configureFixFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&fixParallelFlag, runParallelFlagName, "p", viper.GetInt(runParallelConfigKey), "number of files repaired in parallel")
	bindFlagToConfig(cmd.Flags().Lookup(runParallelFlagName), runParallelConfigKey)

	cmd.Flags().IntVar(&fixMaxIterationsFlag, maxIterationsFlagName, viper.GetInt(maxIterationsConfigKey), "maximum repair iterations per file")
	bindFlagToConfig(cmd.Flags().Lookup(maxIterationsFlagName), maxIterationsConfigKey)

	cmd.Flags().Float64Var(&fixMinScoreFlag, minScoreFlagName, viper.GetFloat64(minScoreConfigKey), "drop fixes ranked below this score")
	bindFlagToConfig(cmd.Flags().Lookup(minScoreFlagName), minScoreConfigKey)

	cmd.Flags().BoolVar(&fixTypeCheckFlag, typeCheckFlagName, viper.GetBool(typeCheckConfigKey), "run the TypeScript compiler for type diagnostics")
	bindFlagToConfig(cmd.Flags().Lookup(typeCheckFlagName), typeCheckConfigKey)

	cmd.Flags().StringArrayVarP(&fixPatternFlag, patternFlagName, "P", viper.GetStringSlice(patternsConfigKey), "test file name pattern (can be repeated)")
	bindFlagToConfig(cmd.Flags().Lookup(patternFlagName), patternsConfigKey)

	cmd.Flags().BoolVar(&fixDryRunFlag, dryRunFlagName, false, "report fixes without writing files")
	cmd.Flags().BoolVar(&fixDiffFlag, diffFlagName, false, "print a unified diff per changed file")
	cmd.Flags().StringVar(&fixReportFlag, reportFlagName, "", "write the batch report to this YAML file")

	cmd.Flags().StringVar(&fixMetricsFileFlag, metricsFileFlagName, viper.GetString(metricsFileConfigKey), "write Prometheus metrics to this textfile")
	bindFlagToConfig(cmd.Flags().Lookup(metricsFileFlagName), metricsFileConfigKey)
}

func runFix(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dryRun, _ := cmd.Flags().GetBool(dryRunFlagName)
	showDiff, _ := cmd.Flags().GetBool(diffFlagName)
	reportPath, _ := cmd.Flags().GetString(reportFlagName)

	options := []controller.StartOption{}
	if dryRun {
		options = append(options, controller.WithDryRun())
	}

	if showDiff {
		options = append(options, controller.WithDiff())
	}

	ui := controller.NewSimpleUI(cmd)
	if err := ui.Start(ctx, options...); err != nil {
		return err
	}
	defer ui.Close(ctx)

	p, err := newPipeline(ui)
	if err != nil {
		return err
	}

	paths := parsePaths(args)
	if len(paths) == 0 {
		paths = []m.Path{"."}
	}

	reports := make([]m.BatchReport, 0, len(paths))

	for _, path := range paths {
		report, err := p.workflow.ProcessDirectory(ctx, domain.DirectoryArgs{
			Root:        path,
			Patterns:    viper.GetStringSlice(patternsConfigKey),
			Exclude:     viper.GetStringSlice(excludeConfigKey),
			DryRun:      dryRun,
			Threads:     viper.GetInt(runParallelConfigKey),
			FileTimeout: secondsKey(fileTimeoutConfigKey),
			SpillDir:    viper.GetString(stateDirConfigKey),
		})
		if err != nil {
			return fmt.Errorf("failed to repair %s: %w", path, err)
		}

		reports = append(reports, report)
	}

	report := reports[0]
	if len(reports) > 1 {
		report = domain.MergeReports(reports...)
		ui.DisplayBatchReport(ctx, report)
	}

	if reportPath != "" {
		if err := reportStore.SaveReport(m.Path(reportPath), report); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
	}

	if metricsFile := viper.GetString(metricsFileConfigKey); metricsFile != "" {
		if err := p.metrics.WriteTextfile(metricsFile); err != nil {
			slog.Error("failed to write metrics", "path", metricsFile, "error", err)
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	return nil
}
