// Package keys names key events and holds the binding tables the pager
// dispatches through.
package keys

import (
	"sort"
	"strings"

	"github.com/gdamore/tcell/v2"
)

type Mode int

const (
	Normal Mode = iota
	// General is armed by one key and reverts after the next handled key.
	General
	CommandLine
)

func (m Mode) String() string {
	switch m {
	case General:
		return "general"
	case CommandLine:
		return "command"
	}
	return "normal"
}

// Name returns the key identifier used in keymaps: a single character,
// a named key ("enter", "esc", "backspace", "up", ...) or "ctrl+<letter>".
func Name(ev *tcell.EventKey) string {
	if ev.Key() == tcell.KeyRune {
		r := ev.Rune()
		if ev.Modifiers()&tcell.ModCtrl != 0 && r >= 'a' && r <= 'z' {
			return "ctrl+" + string(r)
		}
		if r == ' ' {
			return "space"
		}
		return string(r)
	}
	// Enter, Tab and Backspace share codes with ctrl+m, ctrl+i and ctrl+h.
	switch ev.Key() {
	case tcell.KeyEnter:
		return "enter"
	case tcell.KeyTab:
		return "tab"
	case tcell.KeyBacktab:
		return "shift+tab"
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return "backspace"
	case tcell.KeyEscape:
		return "esc"
	}
	if k := ev.Key(); k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ {
		return "ctrl+" + string(rune('a'+int(k-tcell.KeyCtrlA)))
	}
	switch ev.Key() {
	case tcell.KeyUp:
		return "up"
	case tcell.KeyDown:
		return "down"
	case tcell.KeyLeft:
		return "left"
	case tcell.KeyRight:
		return "right"
	case tcell.KeyPgUp:
		return "pgup"
	case tcell.KeyPgDn:
		return "pgdn"
	case tcell.KeyHome:
		return "home"
	case tcell.KeyEnd:
		return "end"
	case tcell.KeyDelete:
		return "del"
	}
	return ""
}

// Binding is what a key does in one table.
type Binding struct {
	Action string
	Help   string
}

// Table maps key names to bindings.
type Table map[string]Binding

// NewTable builds a table from a key to action keymap, attaching the
// help text known for each action.
func NewTable(keymap map[string]string) Table {
	t := make(Table, len(keymap))
	for key, action := range keymap {
		if action == "" || action == "none" {
			continue
		}
		t[key] = Binding{Action: action, Help: helpTexts[action]}
	}
	return t
}

func (t Table) Lookup(key string) (Binding, bool) {
	b, ok := t[key]
	return b, ok
}

// With returns a copy of t with extra bindings layered on top.
func (t Table) With(extra Table) Table {
	out := make(Table, len(t)+len(extra))
	for k, b := range t {
		out[k] = b
	}
	for k, b := range extra {
		out[k] = b
	}
	return out
}

// HelpLine is one row of the help overlay.
type HelpLine struct {
	Key  string
	Help string
}

// Help lists the bindings that have help text, sorted by key.
func (t Table) Help() []HelpLine {
	var out []HelpLine
	for k, b := range t {
		if b.Help == "" {
			continue
		}
		out = append(out, HelpLine{Key: k, Help: b.Help})
	}
	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Key, out[j].Key) {
			return out[i].Key < out[j].Key
		}
		return strings.ToLower(out[i].Key) < strings.ToLower(out[j].Key)
	})
	return out
}

var helpTexts = map[string]string{
	"command_prompt": "enter a command (q, <line>, syntax <lexer>|off, w <file>)",
	"search_prompt":  "search for a regular expression",
	"pipe_prompt":    "pipe the buffer through a shell command",
	"close_or_quit":  "close the menu, or quit",
	"back_or_quit":   "go back to the previous buffer, or quit",
	"print":          "quit and print the buffer",
	"toggle_syntax":  "toggle syntax highlighting",
	"edit":           "edit the buffer in $EDITOR",
	"general":        "general commands (g: top)",
	"scroll_top":     "go to the top",
	"scroll_bottom":  "go to the bottom",
	"search_next":    "next search match",
	"search_prev":    "previous search match",
	"diff_clipboard": "diff the clipboard against the buffer",
	"yank":           "copy the buffer to the clipboard",
	"help":           "show this help",
	"files":          "open a file named in the buffer",
	"urls":           "open a URL in the buffer",
	"objects":        "open a git object named in the buffer",
	"pop":            "go back to the previous buffer",
}

// Move is a navigation command.
type Move int

const (
	MoveNone Move = iota
	MoveUp
	MoveDown
	MoveLeft
	MoveRight
	MovePageUp
	MovePageDown
	MoveTop
	MoveBottom
)

var moveNames = map[string]Move{
	"cursor up":        MoveUp,
	"cursor down":      MoveDown,
	"cursor left":      MoveLeft,
	"cursor right":     MoveRight,
	"cursor page up":   MovePageUp,
	"cursor page down": MovePageDown,
	"cursor top":       MoveTop,
	"cursor bottom":    MoveBottom,
}

// ParseMove reads a navigation command name such as "cursor page down".
func ParseMove(name string) (Move, bool) {
	m, ok := moveNames[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// Movement is the navigation layer under the binding tables: the
// terminal's own keys plus the configured remaps.
type Movement map[string]Move

// NewMovement starts from arrows, paging keys and home/end and adds
// each remap whose command parses.
func NewMovement(remap map[string]string) Movement {
	m := Movement{
		"up":    MoveUp,
		"down":  MoveDown,
		"left":  MoveLeft,
		"right": MoveRight,
		"pgup":  MovePageUp,
		"pgdn":  MovePageDown,
		"space": MovePageDown,
		"home":  MoveTop,
		"end":   MoveBottom,
	}
	for key, cmd := range remap {
		if mv, ok := ParseMove(cmd); ok {
			m[key] = mv
		}
	}
	return m
}
