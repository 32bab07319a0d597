// Package cmd provides Cobra CLI commands for folderbase.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/averonn/folderbase/internal/logging"
)

var (
	rootCmd = &cobra.Command{
		Use:   "folderbase",
		Short: "Inspect and watch folder databases in a markdown vault",
		Long: `Folderbase - the coordination core of a folder-as-database view over
markdown notes.

A database document is a note whose frontmatter carries the
"database-plugin" marker: its columns come from frontmatter configuration
and its rows from the notes under a source folder (or carrying a tag).

Use 'folderbase inspect' to print one database as a grid,
'folderbase watch' to follow a vault live, and 'folderbase schema'
to emit the settings JSON schema.`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cfg := logging.DefaultConfig()
			if level, err := zerolog.ParseLevel(viper.GetString("log_level")); err == nil {
				cfg.Level = level
			}
			if format := viper.GetString("log_format"); format == "json" || format == "console" {
				cfg.Format = format
			}
			cmd.SetContext(logging.WithContext(cmd.Context(), logging.New(cfg)))
		},
	}
)

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	viper.SetEnvPrefix("FOLDERBASE")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindEnv("log_level", "FOLDERBASE_LOG_LEVEL")
	_ = viper.BindEnv("log_format", "FOLDERBASE_LOG_FORMAT")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
