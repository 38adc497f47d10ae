// ABOUTME: CLI commands for mood detection and trend analysis
// ABOUTME: Text comes from arguments or stdin, voice features from flags
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/attune/internal/core"
	"github.com/harper/attune/internal/models"
)

var (
	moodPitch  float64
	moodEnergy float64
	moodRate   float64
	moodDays   int
)

// NewMoodCmd creates the mood command group
func NewMoodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mood",
		Short: "Detect mood and analyze mood trends",
	}

	detectCmd := &cobra.Command{
		Use:   "detect <user_id> [text]",
		Short: "Detect mood from text and/or voice features",
		Long: `Detect mood from text and/or voice features.

Examples:
  attune mood detect alice "I'm so excited about the launch!"
  attune mood detect alice --pitch 240 --energy 0.8 --speaking-rate 4.2
  echo "bohat pareshan hoon" | attune mood detect alice`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMoodDetect,
	}
	detectCmd.Flags().Float64Var(&moodPitch, "pitch", 0, "Mean pitch in Hz")
	detectCmd.Flags().Float64Var(&moodEnergy, "energy", 0, "Normalized energy 0-1")
	detectCmd.Flags().Float64Var(&moodRate, "speaking-rate", 0, "Syllables per second")

	trendCmd := &cobra.Command{
		Use:   "trend <user_id>",
		Short: "Analyze the mood trend over recent days",
		Args:  cobra.ExactArgs(1),
		RunE:  runMoodTrend,
	}
	trendCmd.Flags().IntVar(&moodDays, "days", 7, "Days to analyze")

	historyCmd := &cobra.Command{
		Use:   "history <user_id>",
		Short: "List recent mood samples",
		Args:  cobra.ExactArgs(1),
		RunE:  runMoodHistory,
	}
	historyCmd.Flags().IntVar(&moodDays, "days", 7, "Days to list")

	cmd.AddCommand(detectCmd, trendCmd, historyCmd)
	return cmd
}

func runMoodDetect(cmd *cobra.Command, args []string) error {
	var voice *core.VoiceFeatures
	if moodPitch > 0 || moodEnergy > 0 || moodRate > 0 {
		voice = &core.VoiceFeatures{Pitch: moodPitch, Energy: moodEnergy, SpeakingRate: moodRate}
	}

	var text string
	if len(args) > 1 {
		text = args[1]
	} else if voice == nil {
		var err error
		if text, err = readText(cmd, nil); err != nil {
			return err
		}
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := a.engine.Mood.Detect(cmd.Context(), args[0], text, voice)
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, res)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Mood: %s (%.0f%%)\n", res.MoodLabel, res.Confidence*100)
	if res.TextMood != nil && res.VoiceMood != nil {
		fmt.Fprintf(out, "  text:  %s (%.2f)\n", res.TextMood.Label, res.TextMood.Confidence)
		fmt.Fprintf(out, "  voice: %s (%.2f)\n", res.VoiceMood.Label, res.VoiceMood.Confidence)
	}
	if res.Recommendation != "" {
		fmt.Fprintf(out, "%s\n", res.Recommendation)
	}
	return nil
}

func runMoodTrend(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(moodDays, "--days"); err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	trend, err := a.engine.Mood.AnalyzeTrend(cmd.Context(), args[0], moodDays)
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, trend)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Trend:     %s\n", trend.Trend)
	fmt.Fprintf(out, "Dominant:  %s\n", trend.DominantMood)
	fmt.Fprintf(out, "Stability: %.2f\n", trend.MoodStability)
	fmt.Fprintf(out, "Samples:   %d over %d day(s)\n", trend.TotalSamples, trend.Days)
	for _, label := range models.MoodLabels {
		if n := trend.MoodDistribution[label]; n > 0 {
			fmt.Fprintf(out, "  %-10s %d\n", label, n)
		}
	}
	return nil
}

func runMoodHistory(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(moodDays, "--days"); err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	samples, err := a.engine.Mood.History(cmd.Context(), args[0], moodDays)
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, samples)
	}
	if len(samples) == 0 {
		note(cmd, "No mood samples in the last %d day(s)", moodDays)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TIME\tMOOD\tCONFIDENCE\tSOURCE\tTEXT\n")
	fmt.Fprintf(w, "----\t----\t----------\t------\t----\n")
	for _, s := range samples {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
			s.Timestamp.Format("2006-01-02 15:04"),
			s.MoodLabel,
			s.Confidence,
			s.Source,
			truncate(s.Text, 40))
	}
	return w.Flush()
}
