package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/averonn/folderbase/internal/note"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cellStyle   = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// RenderSnapshot renders a snapshot as a bordered grid. Degraded snapshots
// render their error instead of a table.
func RenderSnapshot(snap *note.Snapshot) string {
	if snap.Err != nil {
		return errStyle.Render(fmt.Sprintf("%s: %v", snap.Path, snap.Err)) + "\n"
	}

	headers := []string{note.FileColumnKey}
	keys := []string{note.FileColumnKey}
	for _, col := range snap.Config.Columns {
		if col.Hidden {
			continue
		}
		label := col.Label
		if label == "" {
			label = col.Key
		}
		headers = append(headers, label)
		keys = append(keys, col.Key)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, row := range snap.Rows {
		cells := make([]string, len(keys))
		for i, key := range keys {
			cells[i] = row.Cells[key]
		}
		t.Row(cells...)
	}

	title := snap.Config.Name
	if title == "" {
		title = snap.Path
	}
	return fmt.Sprintf("%s (%d rows)\n%s\n", title, len(snap.Rows), t)
}
