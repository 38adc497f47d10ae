// ABOUTME: Root command, global flags, and command tree for the attune CLI
// ABOUTME: Execute is the single entry point used by main
package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	dbPath       string
)

const banner = `
 █████  ████████ ████████ ██    ██ ███    ██ ███████
██   ██    ██       ██    ██    ██ ████   ██ ██
███████    ██       ██    ██    ██ ██ ██  ██ █████
██   ██    ██       ██    ██    ██ ██  ██ ██ ██
██   ██    ██       ██     ██████  ██   ████ ███████
`

// NewRootCmd builds the full command tree
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attune",
		Short: "Personal habit learning, prediction, and context engine",
		Long: banner + `
Attune learns habits from your interaction history, predicts the tasks
you are likely to want next, keeps short-term conversation context,
estimates mood from text and voice, and recognizes enrolled voices.

Data is stored locally in SQLite (or in Charm cloud with ATTUNE_STORAGE=charm).
Run 'attune mcp' to expose every operation to an LLM agent over stdio.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch outputFormat {
			case "auto", "json", "table":
				return nil
			}
			return errInvalidFormat(outputFormat)
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results and errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, json, or table")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides ATTUNE_DB_PATH)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(NewVersionCmd())
	cmd.AddCommand(NewProfileCmd())
	cmd.AddCommand(NewEventCmd())
	cmd.AddCommand(NewLearnCmd())
	cmd.AddCommand(NewHabitsCmd())
	cmd.AddCommand(NewInsightsCmd())
	cmd.AddCommand(NewPredictCmd())
	cmd.AddCommand(NewFeedbackCmd())
	cmd.AddCommand(NewAccuracyCmd())
	cmd.AddCommand(NewContextCmd())
	cmd.AddCommand(NewMoodCmd())
	cmd.AddCommand(NewVoiceCmd())
	cmd.AddCommand(NewSuggestCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewMCPCmd())
	cmd.AddCommand(NewSyncCmd())
	cmd.AddCommand(NewInstallSkillCmd())

	return cmd
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}
