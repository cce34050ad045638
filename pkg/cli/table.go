package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const columnGap = 2

// Table prints column-aligned rows. Rows are buffered until Flush so that
// columns can be fitted to the terminal; cells of a column that had to be
// narrowed are word-wrapped. A table without rows prints nothing.
type Table struct {
	out     io.Writer
	headers []string
	rows    [][]string
	prefix  string
	width   int // 0 means unlimited
}

// NewTable creates a table on stdout, fitted to the terminal when stdout
// is one.
func NewTable(headers ...string) *Table {
	t := NewTableTo(os.Stdout, headers...)
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil {
			t.width = w
		}
	}
	return t
}

// NewTableTo creates an unconstrained table writing to w.
func NewTableTo(w io.Writer, headers ...string) *Table {
	return &Table{out: w, headers: headers}
}

// WithPrefix sets a string printed before every line, for indented
// sub-tables.
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// WithWidth limits the table to width columns.
func (t *Table) WithWidth(width int) *Table {
	t.width = width
	return t
}

// Row adds a row. Missing trailing cells print empty.
func (t *Table) Row(values ...string) {
	t.rows = append(t.rows, values)
}

// Flush prints the headers, a divider and the buffered rows.
func (t *Table) Flush() {
	if len(t.rows) == 0 {
		return
	}
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visualLen(h)
	}
	for _, row := range t.rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if n := visualLen(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}
	if t.width > 0 {
		widths = capWidths(widths, t.headers, t.width, visualLen(t.prefix))
	}

	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", visualLen(h))
	}
	t.line(widths, t.headers)
	t.line(widths, dividers)
	for _, row := range t.rows {
		cells := make([][]string, len(widths))
		height := 1
		for i := range widths {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			cells[i] = wrapCell(v, widths[i])
			if len(cells[i]) > height {
				height = len(cells[i])
			}
		}
		for l := 0; l < height; l++ {
			parts := make([]string, len(widths))
			for i := range widths {
				if l < len(cells[i]) {
					parts[i] = cells[i][l]
				}
			}
			t.line(widths, parts)
		}
	}
	t.rows = nil
}

func (t *Table) line(widths []int, cells []string) {
	var b strings.Builder
	b.WriteString(t.prefix)
	for i, c := range cells {
		b.WriteString(c)
		if i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", max(widths[i]-visualLen(c), 0)+columnGap))
		}
	}
	fmt.Fprintln(t.out, strings.TrimRight(b.String(), " "))
}

// capWidths narrows the widest columns until the table fits in maxWidth.
// No column goes below the width of its header, so the result may still be
// too wide for a very narrow terminal.
func capWidths(widths []int, headers []string, maxWidth, prefixLen int) []int {
	out := append([]int(nil), widths...)
	total := prefixLen + columnGap*(len(out)-1)
	for _, w := range out {
		total += w
	}
	for total > maxWidth {
		widest := -1
		for i, w := range out {
			if w > visualLen(headers[i]) && (widest < 0 || w > out[widest]) {
				widest = i
			}
		}
		if widest < 0 {
			break
		}
		out[widest]--
		total--
	}
	return out
}

// wrapCell splits s into lines of at most width, breaking at spaces and
// hard-breaking longer words. Cells that fit are returned unchanged,
// colour codes included.
func wrapCell(s string, width int) []string {
	if width <= 0 || visualLen(s) <= width {
		return []string{s}
	}
	var lines []string
	var cur []rune
	flush := func() {
		lines = append(lines, string(cur))
		cur = cur[:0]
	}
	for _, word := range strings.Fields(ansiRE.ReplaceAllString(s, "")) {
		w := []rune(word)
		if len(cur) > 0 && len(cur)+1+len(w) <= width {
			cur = append(cur, ' ')
			cur = append(cur, w...)
			continue
		}
		if len(cur) > 0 {
			flush()
		}
		for len(w) > width {
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		cur = append(cur, w...)
	}
	if len(cur) > 0 {
		flush()
	}
	return lines
}
