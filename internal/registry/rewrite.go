package registry

import "fmt"

// Rewrite translates a gateway command envelope into the literal tmux
// control-mode command lines a Monitor submits over its Channel. It is the
// single chokepoint for command text derived from client envelopes: the
// gateway never builds a tmux command string. The Monitor builds only its
// own fixed commands (client-size resize, capture-pane, the heartbeat and
// the continue acks).
//
// new-window is rewritten to split-window;break-pane rather than issued as
// new-window directly: a bare new-window reorders existing window indices
// in a way the Pane Grid can't reconcile against a layout-change delta, so
// the safe form creates the pane as a split of the current window and then
// promotes it to its own window.
func Rewrite(cmd string, args map[string]string) ([]string, error) {
	switch cmd {
	case "new-window":
		target := args["target"]
		split := fmt.Sprintf("split-window -t %s -P -F '#{pane_id}'", quoteArg(target))
		return []string{split, "break-pane"}, nil

	case "select-window":
		id, ok := args["window_id"]
		if !ok {
			return nil, fmt.Errorf("registry: select-window requires window_id")
		}
		return []string{fmt.Sprintf("select-window -t %s", quoteArg(id))}, nil

	case "select-pane":
		id, ok := args["pane_id"]
		if !ok {
			return nil, fmt.Errorf("registry: select-pane requires pane_id")
		}
		return []string{fmt.Sprintf("select-pane -t %s", quoteArg(id))}, nil

	case "send-keys":
		id, ok := args["pane_id"]
		if !ok {
			return nil, fmt.Errorf("registry: send-keys requires pane_id")
		}
		keys, ok := args["keys"]
		if !ok {
			return nil, fmt.Errorf("registry: send-keys requires keys")
		}
		return []string{fmt.Sprintf("send-keys -t %s -l -- %s", quoteArg(id), quoteArg(keys))}, nil

	case "resize-window":
		id, ok := args["window_id"]
		if !ok {
			return nil, fmt.Errorf("registry: resize-window requires window_id")
		}
		cols, rows := args["cols"], args["rows"]
		if cols == "" || rows == "" {
			return nil, fmt.Errorf("registry: resize-window requires cols and rows")
		}
		return []string{fmt.Sprintf("resize-window -t %s -x %s -y %s", quoteArg(id), cols, rows)}, nil

	case "kill-pane":
		id, ok := args["pane_id"]
		if !ok {
			return nil, fmt.Errorf("registry: kill-pane requires pane_id")
		}
		return []string{fmt.Sprintf("kill-pane -t %s", quoteArg(id))}, nil

	default:
		return nil, fmt.Errorf("registry: unsupported command %q", cmd)
	}
}

// quoteArg wraps a tmux target/argument in single quotes, escaping any
// embedded single quote the shell-like tmux command parser would otherwise
// treat as a terminator.
func quoteArg(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\\', '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	out = append(out, '\'')
	return string(out)
}
