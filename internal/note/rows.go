package note

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FileColumnKey is the implicit column holding the source note's name.
const FileColumnKey = "file"

// BuildRows derives the row set for a configuration from the source notes
// the metadata index knows about, applying the configured filters and sorts.
func BuildRows(cfg Config, notes []SourceNote) []Row {
	rows := make([]Row, 0, len(notes))
	for _, n := range notes {
		row := Row{Path: n.Path, Cells: make(map[string]string, len(cfg.Columns)+1)}
		row.Cells[FileColumnKey] = noteName(n.Path)
		for _, col := range cfg.Columns {
			row.Cells[col.Key] = formatCell(n.Frontmatter[col.Key])
		}
		if matchRow(cfg.Filters, row) {
			rows = append(rows, row)
		}
	}
	sortRows(cfg.Sorts, rows)
	return rows
}

func noteName(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = formatCell(e)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

func matchRow(fs FilterSet, row Row) bool {
	if len(fs.Conditions) == 0 {
		return true
	}
	any := false
	for _, c := range fs.Conditions {
		ok := matchCondition(c, row.Cells[c.Key])
		if ok {
			any = true
		} else if fs.Conjunction != "or" {
			return false
		}
	}
	if fs.Conjunction == "or" {
		return any
	}
	return true
}

func matchCondition(c Condition, cell string) bool {
	switch c.Op {
	case "eq", "":
		return cell == c.Value
	case "ne":
		return cell != c.Value
	case "contains":
		return strings.Contains(cell, c.Value)
	case "empty":
		return cell == ""
	case "not-empty":
		return cell != ""
	default:
		// Unknown operators never exclude rows.
		return true
	}
}

func sortRows(rules []SortRule, rows []Row) {
	if len(rules) == 0 {
		// Stable default: by path, so pushes are deterministic across
		// reconciliations.
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, r := range rules {
			a, b := rows[i].Cells[r.Key], rows[j].Cells[r.Key]
			if a == b {
				continue
			}
			less := compareCells(a, b)
			if r.Desc {
				return !less
			}
			return less
		}
		return rows[i].Path < rows[j].Path
	})
}

func compareCells(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa < fb
	}
	return a < b
}
