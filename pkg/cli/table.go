package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Table prints rows under a header and a dash divider, columns aligned.
// Nothing is written before the first row; a table that never gets a row
// prints its placeholder instead, if one is set.
type Table struct {
	out         io.Writer
	tw          *tabwriter.Writer
	columns     []string
	indent      string
	placeholder string
	rows        int
}

// NewTableTo starts a table with the given columns on out.
func NewTableTo(out io.Writer, columns ...string) *Table {
	return &Table{
		out:     out,
		tw:      tabwriter.NewWriter(out, 0, 0, 2, ' ', 0),
		columns: columns,
	}
}

// WithPrefix indents every line of the table.
func (t *Table) WithPrefix(prefix string) *Table {
	t.indent = prefix
	return t
}

// WhenEmpty sets the line Flush prints when no row was added, e.g.
// "no devices".
func (t *Table) WhenEmpty(placeholder string) *Table {
	t.placeholder = placeholder
	return t
}

// Row adds one row.
func (t *Table) Row(values ...string) {
	if t.rows == 0 {
		t.line(t.columns)
		divider := make([]string, len(t.columns))
		for i, c := range t.columns {
			divider[i] = strings.Repeat("-", len(c))
		}
		t.line(divider)
	}
	t.rows++
	t.line(values)
}

// Rows returns how many rows were added.
func (t *Table) Rows() int {
	return t.rows
}

// Flush writes the table, or the placeholder when it has no rows.
func (t *Table) Flush() {
	if t.rows == 0 {
		if t.placeholder != "" {
			fmt.Fprintln(t.out, t.indent+t.placeholder)
		}
		return
	}
	t.tw.Flush()
}

func (t *Table) line(cells []string) {
	fmt.Fprintln(t.tw, t.indent+strings.Join(cells, "\t"))
}
