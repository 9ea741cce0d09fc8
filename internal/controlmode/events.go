package controlmode

// Kind tags the payload carried by an Event. A tag-dispatched struct is used
// instead of an interface hierarchy so callers can switch on Kind without a
// type assertion per notification.
type Kind int

const (
	KindUnknown Kind = iota
	KindBegin
	KindEnd
	KindError
	KindOutput
	KindExtendedOutput
	KindLayoutChange
	KindWindowAdd
	KindWindowClose
	KindWindowRenamed
	KindUnlinkedWindowClose
	KindSessionRenamed
	KindSessionWindowChanged
	KindPause
	KindContinue
	KindExit
	KindPopupOpen
	KindPopupClose
	KindWindowPaneChanged
	KindPaneModeChanged
)

// Event is the decoded form of one control-mode notification or command
// response line.
type Event struct {
	Kind Kind

	// %begin/%end/%error correlation.
	Seq      int // the timestamp-derived sequence tmux assigns to a command
	CmdError string

	// %output / %extended-output
	PaneID string
	Data   []byte // unescaped bytes, ready for the Pane Grid

	// %layout-change
	WindowID string
	Layout   string
	Visible  string // window_visible_layout, when present

	// %window-add / %window-renamed / %window-close / %unlinked-window-close
	WindowName string

	// %session-renamed
	SessionName string

	// %session-window-changed
	SessionID string

	// %pause / %continue
	PausedPaneID string

	// %exit
	ExitReason string

	// Popup open/close. No parser case or poller sets these, so
	// KindPopupOpen/KindPopupClose are never emitted (see DESIGN.md Open
	// Question #4).
	PopupWidth  int
	PopupHeight int
}
