// ABOUTME: CLI command to run one habit-learning sweep over every user
// ABOUTME: The same sweep runs on a cron schedule inside 'attune mcp'
package commands

import (
	"time"

	"github.com/spf13/cobra"
)

var sweepConcurrency int

// NewSweepCmd creates the sweep command
func NewSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Learn habits for every user once",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	cmd.Flags().IntVar(&sweepConcurrency, "concurrency", 0, "Users learned in parallel (default from config)")
	return cmd
}

func runSweep(cmd *cobra.Command, args []string) error {
	if sweepConcurrency < 0 {
		return validatePositiveInt(sweepConcurrency, "--concurrency")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	concurrency := sweepConcurrency
	if concurrency == 0 {
		concurrency = a.cfg.SweepConcurrency
	}
	report, err := a.engine.NewSweeper(a.cfg.SweepSchedule, concurrency).RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, report)
	}
	note(cmd, "✓ Swept %d user(s): %d ok, %d failed, %d event(s) scanned, %d habit(s) created in %s",
		report.Users, report.Succeeded, report.Failed, report.EventsScanned, report.HabitsCreated, report.Duration.Round(time.Millisecond))
	return nil
}
