// ABOUTME: attune version reports the release, the build, and the storage schema it expects
// ABOUTME: Commit falls back to the VCS stamp Go embeds when the release did not set one
package commands

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/attune/internal/storage/sqlite"
)

// VersionInfo is what `attune version` prints
type VersionInfo struct {
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	Date          string `json:"built"`
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
	SchemaVersion int    `json:"schema_version"`
}

var versionInfo = VersionInfo{Version: "dev", Commit: "none", Date: "unknown"}

// SetVersion records the release stamps injected at link time
func SetVersion(version, commit, date string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.Date = date
}

// buildInfo completes versionInfo with runtime details
func buildInfo() VersionInfo {
	info := versionInfo
	info.GoVersion = runtime.Version()
	info.Platform = runtime.GOOS + "/" + runtime.GOARCH
	info.SchemaVersion = sqlite.SchemaVersion
	if info.Commit == "" || info.Commit == "none" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					info.Commit = s.Value
				}
			}
		}
	}
	return info
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Print the attune release, commit, build date, Go toolchain, and the SQLite schema version this binary writes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildInfo()
			if useJSON(cmd) {
				return printJSON(cmd, info)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "attune\t%s\n", info.Version)
			fmt.Fprintf(w, "commit\t%s\n", info.Commit)
			fmt.Fprintf(w, "built\t%s\n", info.Date)
			fmt.Fprintf(w, "go\t%s (%s)\n", info.GoVersion, info.Platform)
			fmt.Fprintf(w, "schema\tv%d\n", info.SchemaVersion)
			return w.Flush()
		},
	}
}
