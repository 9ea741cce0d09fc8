package tmuxver

import "testing"

func TestParseStandardVersion(t *testing.T) {
	v, err := Parse("tmux 3.4\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !v.SupportsPauseAfter() {
		t.Fatalf("tmux 3.4 should support pause-after")
	}
}

func TestParseLetterSuffix(t *testing.T) {
	v, err := Parse("tmux 3.2a")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !v.SupportsPauseAfter() {
		t.Fatalf("tmux 3.2a should support pause-after")
	}
}

func TestParseOldVersionLacksPauseAfter(t *testing.T) {
	v, err := Parse("tmux 2.9")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v.SupportsPauseAfter() {
		t.Fatalf("tmux 2.9 should not support pause-after")
	}
}

func TestParseNextSnapshot(t *testing.T) {
	v, err := Parse("tmux next-3.5")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !v.SupportsPauseAfter() {
		t.Fatalf("tmux next-3.5 should support pause-after")
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := Parse("not tmux output at all garbage"); err == nil {
		t.Fatalf("expected an error for malformed input")
	}
}
