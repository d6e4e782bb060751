package report

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column is one table column. A zero width is sized to its content.
type Column struct {
	Header string
	Width  int
	Align  lipgloss.Position
}

// Table renders rows of plain strings with a header line.
type Table struct {
	columns []Column
	rows    [][]string
	styles  Styles
}

func NewTable(styles Styles, columns ...Column) *Table {
	return &Table{columns: columns, styles: styles}
}

func (t *Table) AddRow(cells ...string) *Table {
	t.rows = append(t.rows, cells)
	return t
}

func (t *Table) View() string {
	if len(t.columns) == 0 {
		return ""
	}
	t.fitWidths()

	var b strings.Builder
	for i, col := range t.columns {
		b.WriteString(renderCell(col.Header, col.Width, col.Align, t.styles.Header))
		if i < len(t.columns)-1 {
			b.WriteString("│")
		}
	}
	b.WriteString("\n")
	for i, col := range t.columns {
		// Header and cell styles pad one column on each side.
		b.WriteString(strings.Repeat("─", col.Width+2))
		if i < len(t.columns)-1 {
			b.WriteString("┼")
		}
	}

	for _, row := range t.rows {
		b.WriteString("\n")
		for i, col := range t.columns {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(renderCell(cell, col.Width, col.Align, t.styles.Cell))
			if i < len(t.columns)-1 {
				b.WriteString("│")
			}
		}
	}
	return b.String()
}

func renderCell(content string, width int, align lipgloss.Position, style lipgloss.Style) string {
	if len(content) > width {
		if width > 3 {
			content = content[:width-3] + "..."
		} else {
			content = content[:width]
		}
	}
	return style.Width(width + 2).Align(align).Render(content)
}

func (t *Table) fitWidths() {
	for i := range t.columns {
		if t.columns[i].Width > 0 {
			continue
		}
		w := len(t.columns[i].Header)
		for _, row := range t.rows {
			if i < len(row) && len(row[i]) > w {
				w = len(row[i])
			}
		}
		t.columns[i].Width = w
	}
}
