package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mender.dev/pkg/mender/internal/adapter"
	"mender.dev/pkg/mender/internal/controller"
	"mender.dev/pkg/mender/internal/domain/ranking"
)

var modelPredictFlag string

// modelCmd represents the model command.
var modelCmd = newModelCmd()

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Show learned fix statistics",
		Long: `Print the per fix type attempt and success counts learned from earlier runs.
With --predict, also print the fix type the learned patterns suggest for a snippet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ui := controller.NewSimpleUI(cmd)
			if err := ui.Start(cmd.Context()); err != nil {
				return err
			}
			defer ui.Close(cmd.Context())

			store := adapter.NewLearnedStore(viper.GetString(stateDirConfigKey))
			if err := store.Load(); err != nil {
				return fmt.Errorf("failed to load learned state: %w", err)
			}

			ui.DisplayLearnedModel(cmd.Context(), store.FixTypes())

			if strings.TrimSpace(modelPredictFlag) == "" {
				return nil
			}

			engine := ranking.NewEngine(store, ranking.Options{Weights: rankingWeights()})
			fixType, confidence := engine.PredictFixType(modelPredictFlag)
			cmd.Printf("Predicted fix: %s (confidence %.2f)\n", fixType, confidence)

			for _, fingerprint := range engine.SimilarPatterns(modelPredictFlag, fixType) {
				cmd.Printf("  similar: %s\n", fingerprint)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&modelPredictFlag, "predict", "", "code snippet to predict a fix type for")

	return cmd
}

func init() {
	rootCmd.AddCommand(modelCmd)
}
