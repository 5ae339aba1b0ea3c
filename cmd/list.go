package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	m "mender.dev/pkg/mender/internal/model"
)

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "List the test files a fix run would process",
		Long: `List the test files under the given paths (default: current directory).

` + pathPatternsHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := parsePaths(args)
			if len(paths) == 0 {
				paths = []m.Path{"."}
			}

			for _, root := range paths {
				files, err := fsAdapter.FindTestFiles(root, viper.GetStringSlice(patternsConfigKey), viper.GetStringSlice(excludeConfigKey))
				if err != nil {
					return fmt.Errorf("failed to list %s: %w", root, err)
				}

				for _, file := range files {
					cmd.Println(file)
				}
			}

			return nil
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}
