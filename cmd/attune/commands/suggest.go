// ABOUTME: CLI command for the combined suggestion list
// ABOUTME: Merges predictions, context follow-ups, command habits, and mood advice
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewSuggestCmd creates the suggest command
func NewSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <user_id> [message]",
		Short: "Show ranked suggestions for a user",
		Long: `Show ranked suggestions for a user.

When a message is given, references in it are resolved against the
recent context and command habits sharing its keywords rank higher.

Examples:
  attune suggest alice
  attune suggest alice "back it up now"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSuggest,
	}
}

func runSuggest(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	suggestions, err := a.engine.Suggestions.Suggest(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, suggestions)
	}
	if len(suggestions) == 0 {
		note(cmd, "No suggestions right now")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TYPE\tSUGGESTION\tCONFIDENCE\tREASON\n")
	fmt.Fprintf(w, "----\t----------\t----------\t------\n")
	for _, s := range suggestions {
		text := s.Text
		if len(s.Items) > 0 {
			text = fmt.Sprintf("%s at %s: %s", text, s.PreferredTime, strings.Join(s.Items, ", "))
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n",
			s.Type,
			truncate(text, 50),
			s.Confidence,
			truncate(s.Reason, 50))
	}
	return w.Flush()
}
