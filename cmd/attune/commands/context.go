// ABOUTME: CLI commands for short-term conversation context
// ABOUTME: Save exchanges, inspect the window, resolve references, and summarize
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/attune/internal/models"
)

var (
	ctxResponse  string
	ctxIntent    string
	ctxEntities  []string
	ctxLanguage  string
	ctxChannel   string
	ctxTimestamp string
	ctxLimit     int
	ctxDays      int
	ctxOlderThan time.Duration
)

// NewContextCmd creates the context command group
func NewContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage short-term conversation context",
		Long: `Manage short-term conversation context.

Exchanges saved within the context timeout of each other share a
session window. References like "it" or "that" in a new message are
resolved against entities from the recent window.`,
	}

	saveCmd := &cobra.Command{
		Use:   "save <user_id> <message>",
		Short: "Save one exchange",
		Long: `Save one exchange.

Examples:
  attune context save alice "Create a task to call the dentist" --intent create_task --entity task="call the dentist"
  attune context save alice "Remind me about it tomorrow" --response "Reminder set"`,
		Args: cobra.MinimumNArgs(2),
		RunE: runContextSave,
	}
	saveCmd.Flags().StringVar(&ctxResponse, "response", "", "Assistant response")
	saveCmd.Flags().StringVar(&ctxIntent, "intent", "", "Intent of the message")
	saveCmd.Flags().StringArrayVar(&ctxEntities, "entity", nil, "Entity as type=value (can be repeated)")
	saveCmd.Flags().StringVar(&ctxLanguage, "language", "", "Language code")
	saveCmd.Flags().StringVar(&ctxChannel, "channel", "", "Channel the message arrived on")
	saveCmd.Flags().StringVar(&ctxTimestamp, "at", "", "Exchange time in RFC 3339 (default now)")

	windowCmd := &cobra.Command{
		Use:   "window <user_id>",
		Short: "Show the most recent exchanges",
		Args:  cobra.ExactArgs(1),
		RunE:  runContextWindow,
	}
	windowCmd.Flags().IntVar(&ctxLimit, "limit", 0, "Number of exchanges (default from config)")

	resolveCmd := &cobra.Command{
		Use:   "resolve <user_id> <message>",
		Short: "Resolve references in a message against recent context",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runContextResolve,
	}

	summaryCmd := &cobra.Command{
		Use:   "summary <user_id>",
		Short: "Summarize conversation activity",
		Args:  cobra.ExactArgs(1),
		RunE:  runContextSummary,
	}
	summaryCmd.Flags().IntVar(&ctxDays, "days", 7, "Days to cover")

	pruneCmd := &cobra.Command{
		Use:   "prune <user_id>",
		Short: "Delete old context entries",
		Args:  cobra.ExactArgs(1),
		RunE:  runContextPrune,
	}
	pruneCmd.Flags().DurationVar(&ctxOlderThan, "older-than", 30*24*time.Hour, "Delete entries older than this")

	cmd.AddCommand(saveCmd, windowCmd, resolveCmd, summaryCmd, pruneCmd)
	return cmd
}

func runContextSave(cmd *cobra.Command, args []string) error {
	entities, err := parsePairs(ctxEntities)
	if err != nil {
		return err
	}
	ts, err := parseTimestamp(ctxTimestamp)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	e, err := a.engine.Context.Save(cmd.Context(), &models.ContextEntry{
		UserID:            args[0],
		UserMessage:       strings.Join(args[1:], " "),
		AssistantResponse: ctxResponse,
		Intent:            ctxIntent,
		Entities:          entities,
		Language:          ctxLanguage,
		Channel:           ctxChannel,
		Timestamp:         ts,
	})
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, e)
	}
	note(cmd, "✓ Saved %s in session %s", e.EntryID, e.SessionWindowID)
	return nil
}

func runContextWindow(cmd *cobra.Command, args []string) error {
	if ctxLimit < 0 {
		return validatePositiveInt(ctxLimit, "--limit")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	entries, err := a.engine.Context.Window(cmd.Context(), args[0], ctxLimit)
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, entries)
	}
	if len(entries) == 0 {
		note(cmd, "No recent context")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TIME\tINTENT\tMESSAGE\tSESSION\n")
	fmt.Fprintf(w, "----\t------\t-------\t-------\n")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			formatTime(e.Timestamp),
			orDash(e.Intent),
			truncate(e.UserMessage, 50),
			e.SessionWindowID)
	}
	return w.Flush()
}

func runContextResolve(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := a.engine.Context.ResolveReference(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, res)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", res.ResolvedMessage)
	if !res.ContextUsed {
		note(cmd, "(no context used)")
		return nil
	}
	for _, r := range res.References {
		fmt.Fprintf(out, "  %q -> %s (%s)\n", r.Marker, r.Value, r.EntityType)
	}
	if res.ContextualIntent != "" {
		fmt.Fprintf(out, "Intent: %s\n", res.ContextualIntent)
	}
	if len(res.SuggestedActions) > 0 {
		fmt.Fprintf(out, "Suggested: %s\n", strings.Join(res.SuggestedActions, ", "))
	}
	return nil
}

func runContextSummary(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(ctxDays, "--days"); err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	sum, err := a.engine.Context.Summary(cmd.Context(), args[0], ctxDays)
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, sum)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Last %d day(s): %d exchange(s) in %d session(s), %.1f per day\n",
		sum.Days, sum.TotalExchanges, sum.Sessions, sum.AveragePerDay)
	if sum.MostCommonIntent != "" {
		fmt.Fprintf(out, "Most common intent: %s\n", sum.MostCommonIntent)
	}
	if len(sum.ByLanguage) > 0 {
		fmt.Fprintf(out, "Languages: %s\n", formatCounts(sum.ByLanguage))
	}
	if len(sum.ByChannel) > 0 {
		fmt.Fprintf(out, "Channels: %s\n", formatCounts(sum.ByChannel))
	}
	return nil
}

func runContextPrune(cmd *cobra.Command, args []string) error {
	if ctxOlderThan <= 0 {
		return fmt.Errorf("--older-than must be positive, got %s", ctxOlderThan)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	n, err := a.engine.Context.Prune(cmd.Context(), args[0], ctxOlderThan)
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, map[string]int{"deleted": n})
	}
	note(cmd, "✓ Deleted %d context entries", n)
	return nil
}
