// ABOUTME: CLI commands for voice enrollment, training, and recognition
// ABOUTME: Audio is read from WAV files or raw 16-bit PCM with a sample rate
package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/attune/internal/core"
	"github.com/harper/attune/internal/models"
)

var (
	voiceName        string
	voiceDescription string
	voiceSampleRate  int
	voiceCandidates  []string
	voiceUser        string
)

// NewVoiceCmd creates the voice command group
func NewVoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Enroll, train, and recognize voices",
		Long: `Enroll, train, and recognize voices.

A voiceprint is enrolled empty, then trained with audio samples until
it has enough of them to take part in recognition.

Examples:
  attune voice enroll alice --name "Alice (desk mic)"
  attune voice train vp_0123456789ab one.wav two.wav three.wav
  attune voice recognize clip.wav --candidate alice --candidate bob
  attune voice list alice`,
	}

	enrollCmd := &cobra.Command{
		Use:   "enroll <user_id>",
		Short: "Create an empty voiceprint",
		Args:  cobra.ExactArgs(1),
		RunE:  runVoiceEnroll,
	}
	enrollCmd.Flags().StringVar(&voiceName, "name", "", "Profile name (default: user id)")
	enrollCmd.Flags().StringVar(&voiceDescription, "description", "", "Free-form description")

	trainCmd := &cobra.Command{
		Use:   "train <profile_id> <audio_file>...",
		Short: "Add audio samples to a voiceprint",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runVoiceTrain,
	}
	trainCmd.Flags().IntVar(&voiceSampleRate, "sample-rate", 0, "Sample rate for raw PCM files")

	recognizeCmd := &cobra.Command{
		Use:   "recognize <audio_file>",
		Short: "Identify the speaker of an audio sample",
		Args:  cobra.ExactArgs(1),
		RunE:  runVoiceRecognize,
	}
	recognizeCmd.Flags().IntVar(&voiceSampleRate, "sample-rate", 0, "Sample rate for raw PCM files")
	recognizeCmd.Flags().StringArrayVar(&voiceCandidates, "candidate", nil, "Restrict to these users (can be repeated)")

	deleteCmd := &cobra.Command{
		Use:   "delete <profile_id>",
		Short: "Delete a voiceprint",
		Args:  cobra.ExactArgs(1),
		RunE:  runVoiceDelete,
	}
	deleteCmd.Flags().StringVar(&voiceUser, "user", "", "Owner of the voiceprint")
	_ = deleteCmd.MarkFlagRequired("user")

	listCmd := &cobra.Command{
		Use:   "list <user_id>",
		Short: "List a user's voiceprints",
		Args:  cobra.ExactArgs(1),
		RunE:  runVoiceList,
	}

	primaryCmd := &cobra.Command{
		Use:   "primary <user_id> <profile_id>",
		Short: "Mark a voiceprint as the user's primary",
		Args:  cobra.ExactArgs(2),
		RunE:  runVoicePrimary,
	}

	cmd.AddCommand(enrollCmd, trainCmd, recognizeCmd, deleteCmd, listCmd, primaryCmd)
	return cmd
}

// loadAudio reads a WAV file, or raw PCM when the file is not RIFF
func loadAudio(path string, sampleRate int) (core.AudioSample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.AudioSample{}, fmt.Errorf("reading audio: %w", err)
	}
	if len(data) >= 4 && string(data[:4]) == "RIFF" {
		return core.AudioSample{WAV: data}, nil
	}
	if sampleRate <= 0 {
		return core.AudioSample{}, fmt.Errorf("%s is not a WAV file; pass --sample-rate for raw PCM", filepath.Base(path))
	}
	return core.AudioSample{PCM: data, SampleRate: sampleRate}, nil
}

func runVoiceEnroll(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	name := voiceName
	if name == "" {
		name = args[0]
	}
	vp, err := a.engine.Voice.Enroll(cmd.Context(), args[0], name, voiceDescription)
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, vp)
	}
	note(cmd, "✓ Enrolled %s for %s. Train it with at least %d samples.", vp.ProfileID, vp.UserID, a.cfg.Learning.MinVoiceSamples)
	return nil
}

func runVoiceTrain(cmd *cobra.Command, args []string) error {
	samples := make([]core.AudioSample, 0, len(args)-1)
	for _, path := range args[1:] {
		s, err := loadAudio(path, voiceSampleRate)
		if err != nil {
			return err
		}
		samples = append(samples, s)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	vp, err := a.engine.Voice.Train(cmd.Context(), args[0], samples)
	var insufficient *models.InsufficientDataError
	if err != nil && !errors.As(err, &insufficient) {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, map[string]interface{}{
			"voiceprint": vp,
			"trained":    insufficient == nil,
		})
	}
	if insufficient != nil {
		note(cmd, "Stored %d sample(s); %d more needed before recognition", vp.SampleCount, insufficient.Need-insufficient.Have)
		return nil
	}
	note(cmd, "✓ Trained %s with %d sample(s)", vp.ProfileID, vp.SampleCount)
	return nil
}

func runVoiceRecognize(cmd *cobra.Command, args []string) error {
	sample, err := loadAudio(args[0], voiceSampleRate)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	rec, err := a.engine.Voice.Recognize(cmd.Context(), sample, voiceCandidates)
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, rec)
	}

	out := cmd.OutOrStdout()
	if rec.RecognizedUserID == nil {
		fmt.Fprintf(out, "No match above %.2f (best %.2f, %d compared)\n", rec.Threshold, rec.Confidence, rec.Compared)
	} else {
		fmt.Fprintf(out, "Recognized %s via %s (%.2f)\n", *rec.RecognizedUserID, rec.ProfileName, rec.Confidence)
	}
	for _, alt := range rec.Alternatives {
		fmt.Fprintf(out, "  %s\t%s\t%.3f\n", alt.UserID, alt.ProfileID, alt.Similarity)
	}
	return nil
}

func runVoiceDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.engine.Voice.Delete(cmd.Context(), voiceUser, args[0]); err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, map[string]interface{}{"deleted": true, "profile_id": args[0]})
	}
	note(cmd, "✓ Deleted %s", args[0])
	return nil
}

func runVoiceList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	prints, err := a.engine.Voice.List(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, prints)
	}
	if len(prints) == 0 {
		note(cmd, "No voiceprints. Enroll one with: attune voice enroll %s", args[0])
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PROFILE ID\tNAME\tSAMPLES\tTRAINED\tPRIMARY\tACCURACY\n")
	fmt.Fprintf(w, "----------\t----\t-------\t-------\t-------\t--------\n")
	for _, vp := range prints {
		primary := ""
		if vp.IsPrimary {
			primary = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\t%.2f\n",
			vp.ProfileID,
			truncate(vp.ProfileName, 24),
			vp.SampleCount,
			vp.Trained(),
			primary,
			vp.RecognitionAccuracy)
	}
	return w.Flush()
}

func runVoicePrimary(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	vp, err := a.engine.Voice.SetPrimary(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, vp)
	}
	note(cmd, "✓ %s is now the primary voiceprint for %s", vp.ProfileID, vp.UserID)
	return nil
}
