// Package cmd provides the root command and CLI setup for mender.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"mender.dev/pkg/mender/internal/adapter"
	"mender.dev/pkg/mender/internal/controller"
	"mender.dev/pkg/mender/internal/domain"
	"mender.dev/pkg/mender/internal/domain/ranking"
	"mender.dev/pkg/mender/internal/metrics"
	m "mender.dev/pkg/mender/internal/model"
)

var fsAdapter adapter.SourceFSAdapter
var reportStore adapter.ReportStore
var commandRunner adapter.CommandRunner

// excludePatterns is a root-level flag that filters files for applicable commands.
var excludePatterns []string

// stateDirFlag is where learned fix statistics are kept.
var stateDirFlag string

var verboseFlag bool

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	reportStore = adapter.NewReportStore()
	commandRunner = adapter.NewLocalCommandRunner()
}

const pathPatternsHelp = `Paths may be test files or directories. Directories are scanned
recursively for files matching the test patterns (default *.test.ts,
*.test.tsx, *.spec.ts, *.spec.tsx), skipping node_modules and build output.`

const rootLongDescription = `Mender repairs broken TypeScript and JavaScript test files. It parses
each file, generates single-line fixes for syntax and type errors, ranks them
with statistics learned from earlier runs, and applies them until the file
stops changing.

` + pathPatternsHelp

const fixLongDescription = `Repair the test files under the given paths (default: current directory).

` + pathPatternsHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mender",
		Short: "Iterative repair of broken test files",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger("", viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude files matching regex (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)

	cmd.PersistentFlags().StringVar(&stateDirFlag, stateDirFlagName, viper.GetString(stateDirConfigKey), "directory holding learned fix statistics")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(stateDirFlagName), stateDirConfigKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}

// pipeline bundles the collaborators of one command invocation.
type pipeline struct {
	store    adapter.LearnedStore
	ranker   ranking.Engine
	metrics  *metrics.Recorder
	workflow domain.Workflow
}

// newPipeline builds the repair pipeline from the current configuration.
func newPipeline(ui controller.UI) (*pipeline, error) {
	recorder := metrics.New()

	store := adapter.NewLearnedStore(viper.GetString(stateDirConfigKey))
	if err := store.Load(); err != nil {
		slog.Warn("learned state partially loaded", "dir", viper.GetString(stateDirConfigKey), "error", err)
	}

	structural, err := structuralParser()
	if err != nil {
		return nil, err
	}

	var types adapter.TypeChecker
	if viper.GetBool(typeCheckConfigKey) {
		types = adapter.NewTSCTypeChecker(commandRunner, viper.GetString(parserTSCCommandKey), nil)
	}

	parser := adapter.NewParserAdapter(structural, types, fsAdapter, adapter.ParserOptions{
		StructuralTimeout: secondsKey(parserStructuralTimeoutKey),
		TypeTimeout:       secondsKey(parserTypeTimeoutKey),
		Metrics:           recorder,
	})

	ranker := ranking.NewEngine(store, ranking.Options{
		Weights:    rankingWeights(),
		FlushEvery: viper.GetInt(flushEveryConfigKey),
		Metrics:    recorder,
	})

	orchestrator := domain.NewOrchestrator(parser, ranker, domain.Options{
		MaxIterations: viper.GetInt(maxIterationsConfigKey),
		TypeCheck:     types != nil,
		MinScore:      viper.GetFloat64(minScoreConfigKey),
		Metrics:       recorder,
	})

	return &pipeline{
		store:    store,
		ranker:   ranker,
		metrics:  recorder,
		workflow: domain.NewWorkflow(fsAdapter, ui, orchestrator, ranker, recorder),
	}, nil
}

func structuralParser() (adapter.StructuralParser, error) {
	mode := strings.ToLower(strings.TrimSpace(viper.GetString(parserModeKey)))

	switch mode {
	case "", parserModeTreeSitter:
		return adapter.NewTreeSitterParser(), nil
	case parserModeNode:
		script := viper.GetString(parserNodeScriptKey)
		if script == "" {
			return nil, fmt.Errorf("%s=%s requires %s", parserModeKey, parserModeNode, parserNodeScriptKey)
		}

		return adapter.NewExecParser(commandRunner, viper.GetString(parserNodeKey), script), nil
	default:
		return nil, fmt.Errorf("unknown %s %q", parserModeKey, mode)
	}
}
