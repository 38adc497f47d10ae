// ABOUTME: CLI commands to record and list interaction events
// ABOUTME: Events are the raw input habit learning mines for patterns
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/attune/internal/models"
)

var (
	eventKind      string
	eventPayload   []string
	eventLanguage  string
	eventChannel   string
	eventTimestamp string
	eventLimit     int
)

// NewEventCmd creates the event command group
func NewEventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Record and inspect interaction events",
	}

	addCmd := &cobra.Command{
		Use:   "add <user_id>",
		Short: "Append an event to a user's log",
		Long: `Append an event to a user's log.

Examples:
  attune event add alice --kind task_created --payload title="buy groceries"
  attune event add alice --kind command_run --payload command=backup --channel cli
  attune event add alice --kind message --payload text="hello" --at 2026-03-02T09:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: runEventAdd,
	}
	addCmd.Flags().StringVar(&eventKind, "kind", "", "task_created, command_run, message, or voice_capture")
	addCmd.Flags().StringArrayVar(&eventPayload, "payload", nil, "Payload field as key=value (can be repeated)")
	addCmd.Flags().StringVar(&eventLanguage, "language", "", "Language code")
	addCmd.Flags().StringVar(&eventChannel, "channel", "", "Channel the event arrived on")
	addCmd.Flags().StringVar(&eventTimestamp, "at", "", "Event time in RFC 3339 (default now)")
	_ = addCmd.MarkFlagRequired("kind")

	listCmd := &cobra.Command{
		Use:   "list <user_id>",
		Short: "List a user's events, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE:  runEventList,
	}
	listCmd.Flags().IntVar(&eventLimit, "limit", 50, "Maximum events to show")

	cmd.AddCommand(addCmd, listCmd)
	return cmd
}

func runEventAdd(cmd *cobra.Command, args []string) error {
	pairs, err := parsePairs(eventPayload)
	if err != nil {
		return err
	}
	ts, err := parseTimestamp(eventTimestamp)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	payload := make(map[string]interface{}, len(pairs))
	for k, v := range pairs {
		payload[k] = v
	}

	e, err := a.engine.Events.Append(cmd.Context(), &models.Event{
		UserID:    args[0],
		Kind:      models.EventKind(eventKind),
		Payload:   payload,
		Language:  eventLanguage,
		Channel:   eventChannel,
		Timestamp: ts,
	})
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, e)
	}
	note(cmd, "✓ Recorded %s %s", e.Kind, e.EventID)
	return nil
}

func runEventList(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(eventLimit, "--limit"); err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	events, err := a.engine.Events.ListEvents(cmd.Context(), args[0], models.EventCursor{}, eventLimit)
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, events)
	}
	if len(events) == 0 {
		note(cmd, "No events found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TIME\tKIND\tDETAIL\tCHANNEL\n")
	fmt.Fprintf(w, "----\t----\t------\t-------\n")
	for _, e := range events {
		detail := e.Title()
		if detail == "" {
			detail = e.Command()
		}
		if detail == "" {
			detail = e.PayloadString("text")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Format("2006-01-02 15:04"),
			e.Kind,
			truncate(detail, 40),
			orDash(e.Channel))
	}
	return w.Flush()
}
