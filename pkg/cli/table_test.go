package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable_EmptyPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "ID", "NAME")
	tbl.Flush()
	if buf.Len() != 0 {
		t.Errorf("empty table wrote %q", buf.String())
	}
}

func TestTable_AlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "ID", "NAME", "STATUS")
	tbl.Row("1", "rollout-a", "pending")
	tbl.Row("22", "b", "finished")
	tbl.Flush()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "--  ----") {
		t.Errorf("divider line = %q", lines[1])
	}
	col := strings.Index(lines[0], "NAME")
	for _, l := range lines[2:] {
		if strings.Index(l, "rollout-a") != col && strings.Index(l, "b ") != col {
			t.Errorf("row %q not aligned with header column %d", l, col)
		}
	}
}

func TestTable_Prefix(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "A").WithPrefix("  ")
	tbl.Row("x")
	tbl.Flush()

	for _, l := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if !strings.HasPrefix(l, "  ") {
			t.Errorf("line %q missing prefix", l)
		}
	}
}

func TestTable_WhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTableTo(&buf, "ID").WhenEmpty("no devices").WithPrefix("  ")
	tbl.Flush()
	if got := buf.String(); got != "  no devices\n" {
		t.Errorf("placeholder = %q", got)
	}

	buf.Reset()
	tbl = NewTableTo(&buf, "ID").WhenEmpty("no devices")
	tbl.Row("d1")
	tbl.Row("d2")
	tbl.Flush()
	if tbl.Rows() != 2 {
		t.Errorf("Rows() = %d, want 2", tbl.Rows())
	}
	if strings.Contains(buf.String(), "no devices") {
		t.Errorf("placeholder printed for a filled table:\n%s", buf.String())
	}
}
