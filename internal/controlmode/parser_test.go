package controlmode

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

type fixture struct {
	Name          string   `yaml:"name"`
	Lines         []string `yaml:"lines"`
	WantResponses []struct {
		Seq   int      `yaml:"seq"`
		Lines []string `yaml:"lines"`
		Err   string   `yaml:"err"`
	} `yaml:"want_responses"`
	WantEvents []struct {
		Kind         string `yaml:"kind"`
		PaneID       string `yaml:"pane_id"`
		DataOctal    string `yaml:"data_octal"`
		WindowID     string `yaml:"window_id"`
		Layout       string `yaml:"layout"`
		Visible      string `yaml:"visible"`
		WindowName   string `yaml:"window_name"`
		SessionID    string `yaml:"session_id"`
		SessionName  string `yaml:"session_name"`
		PausedPaneID string `yaml:"paused_pane_id"`
		ExitReason   string `yaml:"exit_reason"`
	} `yaml:"want_events"`
	WantWarnings []struct {
		Line string `yaml:"line"`
	} `yaml:"want_warnings"`
}

func loadFixtures(t *testing.T) []fixture {
	t.Helper()
	entries, err := os.ReadDir("testdata")
	if err != nil {
		t.Fatalf("read testdata: %v", err)
	}
	var out []fixture
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join("testdata", e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		var f fixture
		if err := yaml.Unmarshal(data, &f); err != nil {
			t.Fatalf("parse %s: %v", e.Name(), err)
		}
		out = append(out, f)
	}
	return out
}

func kindName(k Kind) string {
	switch k {
	case KindOutput:
		return "output"
	case KindExtendedOutput:
		return "extended-output"
	case KindLayoutChange:
		return "layout-change"
	case KindWindowAdd:
		return "window-add"
	case KindWindowClose:
		return "window-close"
	case KindWindowRenamed:
		return "window-renamed"
	case KindUnlinkedWindowClose:
		return "unlinked-window-close"
	case KindSessionRenamed:
		return "session-renamed"
	case KindSessionWindowChanged:
		return "session-window-changed"
	case KindPause:
		return "pause"
	case KindContinue:
		return "continue"
	case KindExit:
		return "exit"
	default:
		return "unknown"
	}
}

func TestParserFixtures(t *testing.T) {
	for _, f := range loadFixtures(t) {
		f := f
		t.Run(f.Name, func(t *testing.T) {
			p := NewParser(nil)
			var gotEvents []Event
			var gotResponses []CommandResponse
			var gotWarnings []ParseWarning

			done := make(chan struct{})
			go func() {
				defer close(done)
				for {
					select {
					case ev, ok := <-p.events:
						if !ok {
							return
						}
						gotEvents = append(gotEvents, ev)
					case resp, ok := <-p.responses:
						if !ok {
							continue
						}
						gotResponses = append(gotResponses, resp)
					case w, ok := <-p.warnings:
						if !ok {
							continue
						}
						gotWarnings = append(gotWarnings, w)
					}
				}
			}()

			for _, line := range f.Lines {
				p.Feed(line)
			}
			close(p.events)
			close(p.responses)
			close(p.warnings)
			<-done

			if len(gotEvents) != len(f.WantEvents) {
				t.Fatalf("event count = %d, want %d (%v)", len(gotEvents), len(f.WantEvents), gotEvents)
			}
			for i, want := range f.WantEvents {
				got := gotEvents[i]
				if kindName(got.Kind) != want.Kind {
					t.Errorf("event %d kind = %s, want %s", i, kindName(got.Kind), want.Kind)
				}
				if want.PaneID != "" && got.PaneID != want.PaneID {
					t.Errorf("event %d pane_id = %s, want %s", i, got.PaneID, want.PaneID)
				}
				if want.DataOctal != "" {
					wantData := unescape(want.DataOctal)
					if string(got.Data) != string(wantData) {
						t.Errorf("event %d data = %q, want %q", i, got.Data, wantData)
					}
				}
				if want.WindowID != "" && got.WindowID != want.WindowID {
					t.Errorf("event %d window_id = %s, want %s", i, got.WindowID, want.WindowID)
				}
				if want.Layout != "" && got.Layout != want.Layout {
					t.Errorf("event %d layout = %s, want %s", i, got.Layout, want.Layout)
				}
				if want.Visible != "" && got.Visible != want.Visible {
					t.Errorf("event %d visible = %s, want %s", i, got.Visible, want.Visible)
				}
				if want.WindowName != "" && got.WindowName != want.WindowName {
					t.Errorf("event %d window_name = %s, want %s", i, got.WindowName, want.WindowName)
				}
				if want.SessionID != "" && got.SessionID != want.SessionID {
					t.Errorf("event %d session_id = %s, want %s", i, got.SessionID, want.SessionID)
				}
				if want.SessionName != "" && got.SessionName != want.SessionName {
					t.Errorf("event %d session_name = %s, want %s", i, got.SessionName, want.SessionName)
				}
				if want.PausedPaneID != "" && got.PausedPaneID != want.PausedPaneID {
					t.Errorf("event %d paused_pane_id = %s, want %s", i, got.PausedPaneID, want.PausedPaneID)
				}
				if want.ExitReason != "" && got.ExitReason != want.ExitReason {
					t.Errorf("event %d exit_reason = %s, want %s", i, got.ExitReason, want.ExitReason)
				}
			}

			if len(gotResponses) != len(f.WantResponses) {
				t.Fatalf("response count = %d, want %d", len(gotResponses), len(f.WantResponses))
			}
			for i, want := range f.WantResponses {
				got := gotResponses[i]
				if got.Seq != want.Seq {
					t.Errorf("response %d seq = %d, want %d", i, got.Seq, want.Seq)
				}
				if want.Err != "" && got.Err != want.Err {
					t.Errorf("response %d err = %q, want %q", i, got.Err, want.Err)
				}
			}

			if len(gotWarnings) != len(f.WantWarnings) {
				t.Fatalf("warning count = %d, want %d", len(gotWarnings), len(f.WantWarnings))
			}
		})
	}
}

func TestUnescapeOctal(t *testing.T) {
	got := unescape(`hello\015\012`)
	want := "hello\r\n"
	if string(got) != want {
		t.Fatalf("unescape = %q, want %q", got, want)
	}
}

func TestUnescapePassthroughUnknown(t *testing.T) {
	got := unescape(`a\\b`)
	if string(got) != `a\b` {
		t.Fatalf("unescape = %q, want %q", got, `a\b`)
	}
}
