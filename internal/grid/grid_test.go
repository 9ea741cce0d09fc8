package grid

import "testing"

func TestWriteIsDeterministic(t *testing.T) {
	a := New(10, 3)
	b := New(10, 3)

	input := []byte("hello\r\nworld")
	a.Write(input)
	b.Write(input)

	ca, cb := a.Cells(), b.Cells()
	if len(ca) != len(cb) {
		t.Fatalf("row count mismatch: %d vs %d", len(ca), len(cb))
	}
	for y := range ca {
		for x := range ca[y] {
			if ca[y][x] != cb[y][x] {
				t.Fatalf("cell (%d,%d) differs: %+v vs %+v", y, x, ca[y][x], cb[y][x])
			}
		}
	}
}

func TestHyperlinkSideTable(t *testing.T) {
	g := New(20, 2)
	g.Write([]byte("\x1b]8;;https://example.com\x07link\x1b]8;;\x07"))

	cells := g.Cells()
	found := false
	for _, row := range cells {
		for _, c := range row {
			if c.HyperlinkID != "" {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected at least one cell to carry a hyperlink id")
	}
}

func TestClipboardPayload(t *testing.T) {
	g := New(20, 2)
	g.Write([]byte("\x1b]52;c;aGVsbG8=\x07"))
	if got := g.LastClipboardPayload(); got != "aGVsbG8=" {
		t.Fatalf("LastClipboardPayload() = %q, want %q", got, "aGVsbG8=")
	}
}

func TestResizeClearsHyperlinks(t *testing.T) {
	g := New(10, 2)
	g.Write([]byte("\x1b]8;;https://example.com\x07x\x1b]8;;\x07"))
	g.Resize(10, 2)
	cells := g.Cells()
	for _, row := range cells {
		for _, c := range row {
			if c.HyperlinkID != "" {
				t.Fatalf("expected hyperlink side-table to be cleared after resize")
			}
		}
	}
}
