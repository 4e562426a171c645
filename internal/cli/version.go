package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if versionJSON {
			enc := json.NewEncoder(out)
			return enc.Encode(map[string]string{"version": Version, "commit": Commit, "built": BuildDate})
		}
		_, err := fmt.Fprintf(out, "nudge %s (commit: %s, built: %s)\n", Version, Commit, BuildDate)
		return err
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print as JSON")
}

// VersionString is the short form reported by /api/health.
func VersionString() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
