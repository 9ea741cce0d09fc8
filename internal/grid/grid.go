// Package grid maintains one terminal emulator per live pane, turning raw
// %output bytes into a rows x cols matrix of cells.
package grid

import (
	"regexp"
	"sync"

	"github.com/hinshun/vt10x"
)

// Cell mirrors spec.md's pane cell contract plus the OSC 8/52 metadata
// vt10x's own Glyph type does not carry.
type Cell struct {
	Char       rune
	FG, BG     int
	Bold       bool
	Underline  bool
	Reverse    bool
	HyperlinkID string
}

// Grid wraps a vt10x.Terminal for one pane. vt10x owns scroll regions,
// alt-screen, SGR and 256/24-bit color and line wrap; Grid adds the OSC 8
// hyperlink / OSC 52 clipboard side-tables vt10x's cell model has no room
// for (see DESIGN.md's standard-library justification for this layer).
type Grid struct {
	mu   sync.Mutex
	term vt10x.Terminal
	cols, rows int

	hyperlinks   map[[2]int]string // (row,col) -> hyperlink id, cleared on resize
	lastOSC52    string
	oscHyperlink *regexp.Regexp
	oscClipboard *regexp.Regexp
}

// New creates a Grid sized cols x rows. Later size changes go through
// Resize, which resizes this same emulator in place.
func New(cols, rows int) *Grid {
	g := &Grid{
		cols:         cols,
		rows:         rows,
		hyperlinks:   make(map[[2]int]string),
		oscHyperlink: regexp.MustCompile(`\x1b\]8;[^;]*;([^\x07\x1b]*)(?:\x07|\x1b\\)`),
		oscClipboard: regexp.MustCompile(`\x1b\]52;[^;]*;([^\x07\x1b]*)(?:\x07|\x1b\\)`),
	}
	g.term = vt10x.New(vt10x.WithSize(cols, rows))
	return g
}

// Write feeds raw pane output (already unescaped by the Event Parser) into
// the emulator and updates the OSC side-tables from the same bytes.
func (g *Grid) Write(raw []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scanOSC(raw)
	_, _ = g.term.Write(raw)
}

// scanOSC records hyperlink ids at the emulator's current cursor position
// and the most recent clipboard payload. It runs over the same raw bytes
// vt10x consumes; both scans are independent and tolerant of unmatched
// sequences from older tmux/terminfo combinations.
func (g *Grid) scanOSC(raw []byte) {
	if m := g.oscHyperlink.FindSubmatch(raw); m != nil {
		cur := g.term.Cursor()
		g.hyperlinks[[2]int{cur.Y, cur.X}] = string(m[1])
	}
	if m := g.oscClipboard.FindSubmatch(raw); m != nil {
		g.lastOSC52 = string(m[1])
	}
}

// Resize resizes the emulator in place and discards the OSC hyperlink
// side-table (stale coordinates are worse than none).
func (g *Grid) Resize(cols, rows int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cols, g.rows = cols, rows
	g.term.Resize(cols, rows)
	g.hyperlinks = make(map[[2]int]string)
}

// Cells snapshots the full matrix. Reads vt10x's Cell() one at a time under
// Grid's own lock, matching spec.md's "rows x cols matrix of cells"
// contract.
func (g *Grid) Cells() [][]Cell {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([][]Cell, g.rows)
	for y := 0; y < g.rows; y++ {
		row := make([]Cell, g.cols)
		for x := 0; x < g.cols; x++ {
			glyph := g.term.Cell(x, y)
			row[x] = Cell{
				Char:        glyph.Char,
				FG:          int(glyph.FG),
				BG:          int(glyph.BG),
				Bold:        glyph.Mode&vt10x.AttrBold != 0,
				Underline:   glyph.Mode&vt10x.AttrUnderline != 0,
				Reverse:     glyph.Mode&vt10x.AttrReverse != 0,
				HyperlinkID: g.hyperlinks[[2]int{y, x}],
			}
		}
		out[y] = row
	}
	return out
}

// Cursor returns the emulator's cursor position and visibility.
func (g *Grid) Cursor() (row, col int, visible bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cur := g.term.Cursor()
	return cur.Y, cur.X, !g.term.CursorHidden()
}

// LastClipboardPayload returns the most recent OSC 52 payload written to
// this pane, or "" if none has been seen.
func (g *Grid) LastClipboardPayload() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastOSC52
}

// Size returns the grid's current dimensions.
func (g *Grid) Size() (cols, rows int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cols, g.rows
}
