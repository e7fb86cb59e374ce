// ABOUTME: version prints the build stamp of the companion binary
// ABOUTME: Also reports the Go runtime and where conversations are stored by default
package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/harper/companion/internal/storage/sqlite"
)

var versionInfo = VersionInfo{Version: "dev", Commit: "none", Date: "unknown"}

// VersionInfo is the build stamp injected by main via ldflags
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// versionReport is what the version command prints
type versionReport struct {
	VersionInfo
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
	Database  string `json:"database"`
}

// SetVersion records the build stamp
func SetVersion(version, commit, date string) {
	versionInfo = VersionInfo{Version: version, Commit: commit, Date: date}
}

func currentVersion() versionReport {
	return versionReport{
		VersionInfo: versionInfo,
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		Database:    sqlite.DefaultDBPath(),
	}
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the companion build and runtime details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := currentVersion()
			if jsonOutput() {
				return printJSON(cmd.OutOrStdout(), report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "companion %s (%s, built %s)\n", report.Version, report.Commit, report.Date)
			fmt.Fprintf(out, "%s %s\n", report.GoVersion, report.Platform)
			if !quiet {
				fmt.Fprintf(out, "default database: %s\n", report.Database)
			}
			return nil
		},
	}
}
