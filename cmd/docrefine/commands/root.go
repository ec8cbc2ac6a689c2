// Package commands implements the docrefine CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/corpusforge/docrefine/cmd/docrefine/ui"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "docrefine",
	Short: "Document cleaning and refinement pipeline",
	Long: `docrefine turns noisy extracted documents (PDF, DOCX, Markdown, plain
text) into clean, coherent narrative text through four stages: rule-based
cleaning, sentence segmentation, boundary pruning, and chunk-level repair.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.InitUI(noColor, verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
