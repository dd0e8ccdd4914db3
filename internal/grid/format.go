package grid

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/cellgrid/internal/blocks"
	"gopkg.in/yaml.v3"
)

// ToJSON renders tables as indented JSON.
func ToJSON(tables []*Table) (string, error) {
	data, err := json.MarshalIndent(tables, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ToYAML renders tables as YAML, one document listing every table.
func ToYAML(tables []*Table) (string, error) {
	data, err := yaml.Marshal(yamlTables(tables))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ToCSV renders one table as CSV. Spanned and empty slots become empty fields.
func ToCSV(t *Table) (string, error) {
	if t == nil {
		return "", errors.New("nil table")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range t.Rows {
		record := make([]string, len(row))
		for i, pos := range row {
			if pos.Kind == Anchor {
				record[i] = strings.TrimSpace(pos.Cell.Text)
			}
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// ToPlainText renders tables as pipe-separated rows. Spanned slots print as
// "<" when covered from the left and "^" when covered from above.
func ToPlainText(tables []*Table) string {
	var b strings.Builder
	for i, t := range tables {
		rows, cols := t.Size()
		fmt.Fprintf(&b, "Table %s (%dx%d)\n", t.ID, rows, cols)
		for r, row := range t.Rows {
			fields := make([]string, len(row))
			for c, pos := range row {
				switch pos.Kind {
				case Anchor:
					fields[c] = blocks.DisplayText(strings.TrimSpace(pos.Cell.Text))
				case Spanned:
					if coveredFromLeft(t, r, c) {
						fields[c] = "<"
					} else {
						fields[c] = "^"
					}
				default:
					fields[c] = ""
				}
			}
			b.WriteString("| " + strings.Join(fields, " | ") + " |\n")
		}
		if i < len(tables)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// coveredFromLeft reports whether the spanned slot at (r, c) belongs to an
// anchor in the same row.
func coveredFromLeft(t *Table, r, c int) bool {
	for col := c - 1; col >= 0; col-- {
		pos := t.Rows[r][col]
		if pos.Kind == Anchor {
			return col+pos.Cell.ColSpan > c
		}
		if pos.Kind == Empty {
			return false
		}
	}
	return false
}

type yamlTable struct {
	ID    string     `yaml:"id"`
	Rows  int        `yaml:"rows"`
	Cols  int        `yaml:"cols"`
	Cells []yamlCell `yaml:"cells"`
}

type yamlCell struct {
	ID       string `yaml:"id"`
	Text     string `yaml:"text"`
	Row      int    `yaml:"row"`
	Col      int    `yaml:"col"`
	RowSpan  int    `yaml:"rowSpan,omitempty"`
	ColSpan  int    `yaml:"colSpan,omitempty"`
	IsHeader bool   `yaml:"isHeader,omitempty"`
	Merged   bool   `yaml:"merged,omitempty"`
}

func yamlTables(tables []*Table) []yamlTable {
	out := make([]yamlTable, 0, len(tables))
	for _, t := range tables {
		rows, cols := t.Size()
		yt := yamlTable{ID: t.ID, Rows: rows, Cols: cols}
		for _, c := range t.Anchors() {
			yc := yamlCell{
				ID:       c.ID,
				Text:     strings.TrimSpace(c.Text),
				Row:      c.Row,
				Col:      c.Col,
				IsHeader: c.IsHeader,
				Merged:   c.Merged,
			}
			if c.RowSpan > 1 {
				yc.RowSpan = c.RowSpan
			}
			if c.ColSpan > 1 {
				yc.ColSpan = c.ColSpan
			}
			yt.Cells = append(yt.Cells, yc)
		}
		out = append(out, yt)
	}
	return out
}
