package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/averonn/folderbase/internal/settings"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema for the settings blob",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		data, err := settings.Schema()
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
