package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
)

// SetBuildInfo receives the ldflags-set build identifiers from main.
func SetBuildInfo(version, commit string) {
	buildVersion = version
	buildCommit = commit
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Fprintf(os.Stdout, "folderbase %s (%s, %s)\n", buildVersion, buildCommit, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
