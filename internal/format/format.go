// Package format renders the CLI's tabular output. It wraps
// go-pretty so commands describe content, not drawing.
package format

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Style selects the rendering target.
type Style int

const (
	Terminal Style = iota // box-drawing tables for interactive use
	Markdown              // pipe tables for pasting into reports
)

// ParseStyle maps a --format flag value to a Style.
func ParseStyle(s string) (Style, error) {
	switch s {
	case "", "table":
		return Terminal, nil
	case "markdown", "md":
		return Markdown, nil
	default:
		return Terminal, fmt.Errorf("format: unknown style %q", s)
	}
}

// Table accumulates rows and renders once via String.
type Table struct {
	writer  table.Writer
	style   Style
	columns map[int]table.ColumnConfig
}

// NewTable returns an empty table rendering in the given style.
func NewTable(style Style) *Table {
	w := table.NewWriter()
	if style == Terminal {
		w.SetStyle(table.StyleLight)
	}
	return &Table{writer: w, style: style, columns: make(map[int]table.ColumnConfig)}
}

func (t *Table) Header(cols ...string) {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	t.writer.AppendHeader(row)
}

func (t *Table) Row(vals ...any) {
	row := make(table.Row, len(vals))
	copy(row, vals)
	t.writer.AppendRow(row)
}

func (t *Table) Footer(vals ...any) {
	row := make(table.Row, len(vals))
	copy(row, vals)
	t.writer.AppendFooter(row)
}

// RightAlign right-aligns the given 1-based columns, for counts.
func (t *Table) RightAlign(cols ...int) {
	for _, c := range cols {
		cfg := t.columns[c]
		cfg.Number = c
		cfg.Align = text.AlignRight
		t.columns[c] = cfg
	}
}

// Limit caps a 1-based column's width; longer content wraps.
func (t *Table) Limit(col, width int) {
	cfg := t.columns[col]
	cfg.Number = col
	cfg.WidthMax = width
	t.columns[col] = cfg
}

func (t *Table) String() string {
	if len(t.columns) > 0 {
		cfgs := make([]table.ColumnConfig, 0, len(t.columns))
		for _, cfg := range t.columns {
			cfgs = append(cfgs, cfg)
		}
		t.writer.SetColumnConfigs(cfgs)
	}
	if t.style == Markdown {
		return t.writer.RenderMarkdown()
	}
	return t.writer.Render()
}
