package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/averonn/folderbase/internal/cli"
	"github.com/averonn/folderbase/internal/hostfs"
	"github.com/averonn/folderbase/internal/logging"
	"github.com/averonn/folderbase/internal/note"
	"github.com/averonn/folderbase/internal/plugin"
	"github.com/averonn/folderbase/internal/vaultindex"
)

var watchListenDelay time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <vault>",
	Short: "Run the plugin core against a vault and stream reconciliations",
	Long: `Watch opens every database note in a vault with a printing view,
then follows external edits: each metadata change reconciles the affected
databases and re-renders their grids.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vaultDir := args[0]

		ctx := logging.WithComponent(cmd.Context(), "watch")
		log := logging.FromContext(ctx)

		ix, err := vaultindex.Open(vaultDir, indexPath(vaultDir), *log)
		if err != nil {
			return err
		}
		defer func() { _ = ix.Close() }()

		p := plugin.New(plugin.Options{
			Workspace:   cli.NewHeadlessWorkspace(),
			Index:       ix,
			Vault:       ix,
			Store:       hostfs.NewStore(filepath.Join(vaultDir, ".folderbase", "settings.json")),
			ListenDelay: watchListenDelay,
			Log:         *log,
		})
		if err := p.Load(); err != nil {
			return err
		}
		defer p.Unload()

		if err := ix.Start(ctx); err != nil {
			return err
		}

		attached, err := attachDatabases(p, ix)
		if err != nil {
			return err
		}
		if attached == 0 {
			return fmt.Errorf("no database notes found in %s", vaultDir)
		}
		log.Info().Int("databases", attached).Msg("watching")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sig:
		case <-ctx.Done():
		}
		return nil
	},
}

// attachDatabases opens a printing view for every database-marked note.
func attachDatabases(p *plugin.Plugin, ix *vaultindex.Index) (int, error) {
	notes, err := ix.AllNotes()
	if err != nil {
		return 0, err
	}
	window := p.Registry().Windows()[0]

	attached := 0
	for _, n := range notes {
		if !note.IsDatabaseFrontmatter(n.Frontmatter) {
			continue
		}
		v := cli.NewPrintView(fmt.Sprintf("view-%d", attached), n.Path, window, os.Stdout)
		if err := p.AttachView(v); err != nil {
			return attached, err
		}
		attached++
	}
	return attached, nil
}

func init() {
	watchCmd.Flags().DurationVar(&watchListenDelay, "listen-delay", plugin.DefaultListenDelay,
		"delay before subscribing to live metadata changes after index-ready")
	rootCmd.AddCommand(watchCmd)
}
