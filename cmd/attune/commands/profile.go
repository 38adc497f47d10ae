// ABOUTME: CLI commands to register, view, and list user profiles
// ABOUTME: Timezone on the profile drives hour and weekday bucketing for habits
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/attune/internal/models"
)

var (
	profileName     string
	profileLanguage string
	profileTimezone string
)

// NewProfileCmd creates profile command
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile <user_id>",
		Short: "View and manage user profiles",
		Long: `View and manage user profiles.

Examples:
  attune profile alice
  attune profile set alice --name "Alice" --timezone Europe/Berlin
  attune profile list`,
		Args: cobra.ExactArgs(1),
		RunE: runProfileShow,
	}

	setCmd := &cobra.Command{
		Use:   "set <user_id>",
		Short: "Create or update a profile",
		Args:  cobra.ExactArgs(1),
		RunE:  runProfileSet,
	}
	setCmd.Flags().StringVar(&profileName, "name", "", "Display name")
	setCmd.Flags().StringVar(&profileLanguage, "language", "", "Preferred language code (en, ur, ...)")
	setCmd.Flags().StringVar(&profileTimezone, "timezone", "", "IANA timezone, e.g. Asia/Karachi")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every known profile",
		Args:  cobra.NoArgs,
		RunE:  runProfileList,
	}

	cmd.AddCommand(setCmd, listCmd)
	return cmd
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	p, err := a.engine.Events.GetProfile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printProfiles(cmd, []*models.Profile{p}, true)
}

func runProfileSet(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	p, err := a.engine.Events.RegisterProfile(cmd.Context(), &models.Profile{
		UserID:            args[0],
		DisplayName:       profileName,
		PreferredLanguage: profileLanguage,
		Timezone:          profileTimezone,
	})
	if err != nil {
		return err
	}
	if useJSON(cmd) {
		return printJSON(cmd, p)
	}
	note(cmd, "✓ Saved profile %s", p.UserID)
	return nil
}

func runProfileList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	profiles, err := a.engine.Events.ListProfiles(cmd.Context())
	if err != nil {
		return err
	}
	if len(profiles) == 0 && !useJSON(cmd) {
		note(cmd, "No profiles found. Create one with: attune profile set <user_id> --name \"Your Name\"")
		return nil
	}
	return printProfiles(cmd, profiles, false)
}

func printProfiles(cmd *cobra.Command, profiles []*models.Profile, single bool) error {
	if useJSON(cmd) {
		if single {
			return printJSON(cmd, profiles[0])
		}
		return printJSON(cmd, profiles)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "USER\tNAME\tLANGUAGE\tTIMEZONE\tUPDATED\n")
	fmt.Fprintf(w, "----\t----\t--------\t--------\t-------\n")
	for _, p := range profiles {
		name := p.DisplayName
		if p.Synthetic {
			name += " (auto)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.UserID,
			truncate(name, 30),
			orDash(p.PreferredLanguage),
			orDash(p.Timezone),
			formatTime(p.UpdatedAt))
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
