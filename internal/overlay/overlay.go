// Package overlay holds the modal widgets drawn over the buffer view and
// the stack that orders them.
package overlay

import (
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/kit/internal/keys"
)

// Styles used by every widget.
type Styles struct {
	Text     tcell.Style
	Selected tcell.Style
	Disabled tcell.Style
	Border   tcell.Style
	Key      tcell.Style
}

// Widget draws itself inside a w by h area at the top-left of the screen.
type Widget interface {
	Draw(s tcell.Screen, w, h int, st Styles)
}

// Canceler stops background work feeding an overlay.
type Canceler interface {
	Cancel()
}

// ActionClose is bound to the keys that always dismiss an overlay.
const ActionClose = "close"

var closeKeys = []string{"q", "esc", "backspace"}

// Overlay is one entry of the stack.
type Overlay struct {
	Name     string
	Widget   Widget
	Bindings keys.Table
	// Task, if set, is cancelled when the overlay is popped.
	Task Canceler

	prevMode keys.Mode
	prevText string
}

// Stack of open overlays. Only the event loop touches it.
type Stack struct {
	mu    sync.Mutex
	items []*Overlay
}

func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Push opens o on top, remembering the mode and status text it replaces.
func (s *Stack) Push(o *Overlay, mode keys.Mode, status string) {
	o.prevMode = mode
	o.prevText = status
	s.mu.Lock()
	s.items = append(s.items, o)
	s.mu.Unlock()
}

// Pop closes the top overlay, cancels its task and returns the mode and
// status text that were current when it was pushed.
func (s *Stack) Pop() (*Overlay, keys.Mode, string, bool) {
	s.mu.Lock()
	if len(s.items) == 0 {
		s.mu.Unlock()
		return nil, keys.Normal, "", false
	}
	o := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	s.mu.Unlock()
	if o.Task != nil {
		o.Task.Cancel()
	}
	return o, o.prevMode, o.prevText, true
}

func (s *Stack) Top() *Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil
	}
	return s.items[len(s.items)-1]
}

// Bindings is the table for the top overlay: its own bindings plus the
// close keys, which cannot be overridden.
func (s *Stack) Bindings() keys.Table {
	top := s.Top()
	if top == nil {
		return nil
	}
	forced := keys.Table{}
	for _, k := range closeKeys {
		forced[k] = keys.Binding{Action: ActionClose, Help: "close"}
	}
	return top.Bindings.With(forced)
}

// CloseAll pops every overlay.
func (s *Stack) CloseAll() {
	for {
		if _, _, _, ok := s.Pop(); !ok {
			return
		}
	}
}

// Draw paints the overlays bottom to top.
func (s *Stack) Draw(scr tcell.Screen, w, h int, st Styles) {
	s.mu.Lock()
	items := append([]*Overlay(nil), s.items...)
	s.mu.Unlock()
	for _, o := range items {
		o.Widget.Draw(scr, w, h, st)
	}
}
