package mirror

import "strings"

type paneRect struct {
	paneID                  string
	left, top, width, height int
}

// parseLayout decodes tmux's window_layout string (e.g.
// "a1b2,200x50,0,0{100x50,0,0,1,99x50,101,0,2}") into flat pane rects. Only
// the fields the Aggregator needs (position, size, pane id) are extracted;
// the leading checksum is ignored.
func parseLayout(layout string) []paneRect {
	// Drop the leading "checksum," prefix if present.
	if i := strings.IndexByte(layout, ','); i >= 0 && !strings.ContainsAny(layout[:i], "x{}[]") {
		layout = layout[i+1:]
	}
	var rects []paneRect
	parseLayoutNode(layout, &rects)
	return rects
}

// parseLayoutNode recursively parses one layout node: "WxH,X,Y" optionally
// followed by ",pane_id" (leaf) or "{...}"/"[...]" (split container holding
// comma-separated child nodes).
func parseLayoutNode(s string, out *[]paneRect) {
	for len(s) > 0 {
		dims, rest := cutField(s)
		w, h, ok := splitDims(dims)
		if !ok {
			return
		}
		xStr, rest := cutField(rest)
		yStr, rest := cutField(rest)
		x := atoiSafe(xStr)
		y := atoiSafe(yStr)

		if len(rest) > 0 && (rest[0] == '{' || rest[0] == '[') {
			close := matchingClose(rest)
			if close < 0 {
				return
			}
			inner := rest[1:close]
			parseLayoutNode(inner, out)
			rest = rest[close+1:]
			if len(rest) > 0 && rest[0] == ',' {
				rest = rest[1:]
			}
			s = rest
			continue
		}

		paneIDStr, nextRest := cutField(rest)
		*out = append(*out, paneRect{
			paneID: "%" + paneIDStr,
			left:   x, top: y, width: w, height: h,
		})
		s = nextRest
	}
}

func cutField(s string) (field, rest string) {
	i := strings.IndexAny(s, ",{[")
	if i < 0 {
		return s, ""
	}
	if s[i] == ',' {
		return s[:i], s[i+1:]
	}
	return s[:i], s[i:]
}

func splitDims(s string) (w, h int, ok bool) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	return atoiSafe(parts[0]), atoiSafe(parts[1]), true
}

func matchingClose(s string) int {
	open := s[0]
	close := byte('}')
	if open == '[' {
		close = ']'
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}
