package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/averonn/folderbase/internal/cli"
	"github.com/averonn/folderbase/internal/logging"
	"github.com/averonn/folderbase/internal/note"
	"github.com/averonn/folderbase/internal/vaultindex"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <database-note>",
	Short: "Parse one database note and print its grid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vaultDir := viper.GetString("vault")
		if vaultDir == "" {
			vaultDir = filepath.Dir(args[0])
		}

		rel, err := filepath.Rel(vaultDir, args[0])
		if err != nil {
			return fmt.Errorf("resolve %s against vault %s: %w", args[0], vaultDir, err)
		}
		rel = filepath.ToSlash(rel)

		ctx := logging.WithComponent(cmd.Context(), "inspect")
		ctx = logging.WithFile(ctx, rel)

		ix, err := vaultindex.Open(vaultDir, indexPath(vaultDir), *logging.FromContext(ctx))
		if err != nil {
			return err
		}
		defer func() { _ = ix.Close() }()
		if err := ix.Start(ctx); err != nil {
			return err
		}

		content, err := ix.ReadFile(rel)
		if err != nil {
			return err
		}
		db, err := note.ParseDatabase(rel, content)
		if err != nil {
			return err
		}

		notes, err := sourceNotes(ctx, ix, db)
		if err != nil {
			return err
		}
		filtered := notes[:0]
		for _, n := range notes {
			if n.Path != db.Path {
				filtered = append(filtered, n)
			}
		}
		notes = filtered

		snap := &note.Snapshot{
			Path:        db.Path,
			Config:      db.Config,
			Local:       db.Local,
			Rows:        note.BuildRows(db.Config, notes),
			ContentHash: db.ContentHash,
			Err:         db.Err,
		}
		fmt.Fprint(os.Stdout, cli.RenderSnapshot(snap))
		return nil
	},
}

func sourceNotes(_ context.Context, ix *vaultindex.Index, db *note.Database) ([]note.SourceNote, error) {
	switch {
	case db.Config.Source.Folder != "":
		return ix.NotesIn(db.Config.Source.Folder)
	case db.Config.Source.Tag != "":
		return ix.NotesTagged(db.Config.Source.Tag)
	default:
		return ix.NotesIn(filepath.ToSlash(filepath.Dir(db.Path)))
	}
}

func indexPath(vaultDir string) string {
	return filepath.Join(vaultDir, ".folderbase", "index.db")
}

func init() {
	inspectCmd.Flags().String("vault", "", "vault root directory (default: the note's directory)")
	_ = viper.BindPFlag("vault", inspectCmd.Flags().Lookup("vault"))
	_ = viper.BindEnv("vault", "FOLDERBASE_VAULT")
	rootCmd.AddCommand(inspectCmd)
}
