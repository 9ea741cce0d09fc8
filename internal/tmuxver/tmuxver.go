// Package tmuxver gates session creation on the host's tmux capabilities,
// implementing spec.md §1's non-goal of supporting multiplexer versions
// that lack pause-after flow control as an explicit, testable check instead
// of an implicit assumption.
package tmuxver

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// pauseAfterMinVersion and popupNotificationMinVersion are the earliest
// stock tmux releases known to support, respectively, the pause-after flow
// control flag and a control-mode-visible popup. Stock tmux has no popup
// notification (see DESIGN.md Open Question #4) and nothing in this
// repository polls for popups, so the popup gate has no caller.
var (
	pauseAfterMinVersion        = semver.MustParse("3.2.0")
	popupNotificationMinVersion = semver.MustParse("3.2.0")
)

// Version wraps the host's tmux semver and exposes the capability checks a
// Registry consults before accepting a Subscribe call.
type Version struct {
	raw string
	ver *semver.Version
}

// Detect runs `tmux -V` and parses its output.
func Detect(ctx context.Context, tmuxPath string) (*Version, error) {
	out, err := exec.CommandContext(ctx, tmuxPath, "-V").Output()
	if err != nil {
		return nil, fmt.Errorf("tmuxver: tmux -V failed: %w", err)
	}
	return Parse(string(out))
}

// Parse extracts a semver.Version from tmux -V's output, e.g. "tmux 3.4" or
// "tmux next-3.5" for a development snapshot (treated as the next release).
func Parse(raw string) (*Version, error) {
	raw = strings.TrimSpace(raw)
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return nil, fmt.Errorf("tmuxver: unrecognized tmux -V output: %q", raw)
	}
	numeric := strings.TrimPrefix(fields[1], "next-")
	numeric = normalizeToSemver(numeric)
	ver, err := semver.NewVersion(numeric)
	if err != nil {
		return nil, fmt.Errorf("tmuxver: could not parse version %q: %w", fields[1], err)
	}
	return &Version{raw: raw, ver: ver}, nil
}

// normalizeToSemver pads tmux's MAJOR.MINOR[LETTER] scheme (e.g. "3.2a")
// into something semver.NewVersion accepts.
func normalizeToSemver(s string) string {
	s = strings.TrimRightFunc(s, func(r rune) bool { return r >= 'a' && r <= 'z' })
	if strings.Count(s, ".") == 1 {
		s += ".0"
	}
	return s
}

// String returns the raw `tmux -V` output this Version was parsed from.
func (v *Version) String() string { return v.raw }

// SupportsPauseAfter reports whether this tmux supports the pause-after
// flow control flag (tmux >= 3.2).
func (v *Version) SupportsPauseAfter() bool {
	return !v.ver.LessThan(pauseAfterMinVersion)
}

// SupportsPopupNotification reports whether this tmux is at or above
// popupNotificationMinVersion. No code path consults it.
func (v *Version) SupportsPopupNotification() bool {
	return !v.ver.LessThan(popupNotificationMinVersion)
}

// ErrUnsupported is returned by a Registry when the host's tmux predates
// pause-after support.
var ErrUnsupported = fmt.Errorf("tmux version does not support pause-after flow control")
