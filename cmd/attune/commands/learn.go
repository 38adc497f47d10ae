// ABOUTME: CLI commands to run habit learning and inspect learned habits
// ABOUTME: Covers learn, habits, and insights for a single user
package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/attune/internal/models"
)

var (
	habitsType  string
	insightsTop int
)

// NewLearnCmd creates the learn command
func NewLearnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learn <user_id>",
		Short: "Mine a user's events for habits",
		Long: `Scan a user's event log and create or update habits.

Learning is idempotent: running it twice over the same events
yields the same habits and confidences.`,
		Args: cobra.ExactArgs(1),
		RunE: runLearn,
	}
}

// NewHabitsCmd creates the habits command
func NewHabitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "habits <user_id>",
		Short: "List a user's learned habits",
		Args:  cobra.ExactArgs(1),
		RunE:  runHabits,
	}
	cmd.Flags().StringVar(&habitsType, "type", "", "Only show one habit type (recurring_task, time_based, command_usage, ...)")
	return cmd
}

// NewInsightsCmd creates the insights command
func NewInsightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insights <user_id>",
		Short: "Summarize a user's habits",
		Args:  cobra.ExactArgs(1),
		RunE:  runInsights,
	}
	cmd.Flags().IntVar(&insightsTop, "top", 5, "Number of top habits to include")
	return cmd
}

func runLearn(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := a.engine.Habits.Learn(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, res)
	}
	note(cmd, "✓ Scanned %d event(s): %d habit(s) created, %d updated", res.EventsScanned, res.Created, res.Updated)
	if len(res.Habits) > 0 {
		return printHabits(cmd, res.Habits)
	}
	return nil
}

func runHabits(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	habits, err := a.engine.Habits.Habits(cmd.Context(), args[0], models.HabitType(habitsType))
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, habits)
	}
	if len(habits) == 0 {
		note(cmd, "No habits learned yet. Run: attune learn %s", args[0])
		return nil
	}
	return printHabits(cmd, habits)
}

func runInsights(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(insightsTop, "--top"); err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ins, err := a.engine.Habits.Insights(cmd.Context(), args[0], insightsTop)
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, ins)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Habits: %d (%d low confidence)\n", ins.TotalHabits, ins.LowConfidence)
	for _, t := range models.HabitTypes {
		if n := ins.ByType[t]; n > 0 {
			fmt.Fprintf(out, "  %-16s %d\n", t, n)
		}
	}
	if ins.LastLearnRun != nil {
		fmt.Fprintf(out, "Last learned: %s (%d events)\n", formatTime(*ins.LastLearnRun), ins.EventsScanned)
	}
	if len(ins.TimeOfDay) > 0 {
		fmt.Fprintf(out, "Time of day: %s\n", formatCounts(ins.TimeOfDay))
	}
	if len(ins.TopHabits) > 0 {
		fmt.Fprintln(out)
		return printHabits(cmd, ins.TopHabits)
	}
	return nil
}

func printHabits(cmd *cobra.Command, habits []*models.Habit) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TYPE\tPATTERN\tCONFIDENCE\tSEEN\tLAST SEEN\tHABIT ID\n")
	fmt.Fprintf(w, "----\t-------\t----------\t----\t---------\t--------\n")
	for _, h := range habits {
		conf := fmt.Sprintf("%.2f", h.Confidence)
		if h.LowConfidence {
			conf += " (low)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			h.HabitType,
			truncate(h.PatternKey, 40),
			conf,
			h.OccurrenceCount,
			formatTime(h.LastSeen),
			h.HabitID)
	}
	return w.Flush()
}

// formatCounts renders a count map as "key=n" pairs in descending order
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%d", k, counts[k])
	}
	return out
}
