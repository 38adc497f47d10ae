// ABOUTME: CLI commands for task predictions and the feedback loop
// ABOUTME: Covers predict, feedback, and accuracy
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/attune/internal/models"
)

var (
	predictLimit   int
	predictHistory bool
	feedbackReject bool
)

// NewPredictCmd creates the predict command
func NewPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict <user_id>",
		Short: "Predict the tasks a user is likely to want now",
		Long: `Predict the tasks a user is likely to want now.

Predictions come from learned habits whose typical weekday and time
fall near the current moment. Each prediction stays pending until
feedback is given or it expires.

Examples:
  attune predict alice
  attune predict alice --limit 3
  attune predict alice --history`,
		Args: cobra.ExactArgs(1),
		RunE: runPredict,
	}
	cmd.Flags().IntVar(&predictLimit, "limit", 0, "Maximum predictions (default from config)")
	cmd.Flags().BoolVar(&predictHistory, "history", false, "List stored predictions instead of predicting")
	return cmd
}

// NewFeedbackCmd creates the feedback command
func NewFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <user_id> <prediction_id>",
		Short: "Accept or dismiss a prediction",
		Long: `Accept or dismiss a pending prediction.

Accepting reinforces the habit behind the prediction, dismissing
weakens it.

Examples:
  attune feedback alice pred_1234
  attune feedback alice pred_1234 --reject`,
		Args: cobra.ExactArgs(2),
		RunE: runFeedback,
	}
	cmd.Flags().BoolVar(&feedbackReject, "reject", false, "Dismiss instead of accept")
	return cmd
}

// NewAccuracyCmd creates the accuracy command
func NewAccuracyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accuracy <user_id>",
		Short: "Show prediction accuracy",
		Args:  cobra.ExactArgs(1),
		RunE:  runAccuracy,
	}
}

func runPredict(cmd *cobra.Command, args []string) error {
	if predictLimit < 0 {
		return validatePositiveInt(predictLimit, "--limit")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var preds []*models.Prediction
	if predictHistory {
		preds, err = a.engine.Predictor.Predictions(cmd.Context(), args[0], true)
	} else {
		preds, err = a.engine.Predictor.Predict(cmd.Context(), args[0], predictLimit)
	}
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, preds)
	}
	if len(preds) == 0 {
		note(cmd, "No predictions right now")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ACTION\tCONFIDENCE\tSTATUS\tREASON\tPREDICTION ID\n")
	fmt.Fprintf(w, "------\t----------\t------\t------\t-------------\n")
	for _, p := range preds {
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\t%s\n",
			truncate(p.PredictedAction, 30),
			p.Confidence,
			p.Status,
			truncate(p.Reason, 50),
			p.PredictionID)
	}
	return w.Flush()
}

func runFeedback(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	p, err := a.engine.Predictor.Feedback(cmd.Context(), args[0], args[1], !feedbackReject)
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, p)
	}
	note(cmd, "✓ Prediction %s %s", p.PredictionID, p.Status)
	return nil
}

func runAccuracy(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	acc, err := a.engine.Predictor.Accuracy(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, acc)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Accuracy:  %.1f%%\n", acc.Accuracy*100)
	fmt.Fprintf(out, "Resolved:  %d\n", acc.Total)
	fmt.Fprintf(out, "Accepted:  %d\n", acc.Accepted)
	fmt.Fprintf(out, "Dismissed: %d\n", acc.Dismissed)
	fmt.Fprintf(out, "Expired:   %d\n", acc.Expired)
	return nil
}
