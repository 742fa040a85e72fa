package pager

import (
	"fmt"
	"os"

	"github.com/kobzarvs/kit/internal/keys"
	"github.com/kobzarvs/kit/internal/logger"
	"github.com/kobzarvs/kit/internal/overlay"
	"github.com/kobzarvs/kit/internal/refs"
)

// actions are the handlers keymaps can name.
var actions = map[string]func(*Viewer){
	"command_prompt": func(v *Viewer) { v.openPrompt(':') },
	"search_prompt":  func(v *Viewer) { v.openPrompt('/') },
	"pipe_prompt":    func(v *Viewer) { v.openPrompt('!') },
	"close_or_quit":  (*Viewer).closeOrQuit,
	"back_or_quit":   (*Viewer).backOrQuit,
	"print":          (*Viewer).printAndQuit,
	"toggle_syntax":  (*Viewer).toggleSyntax,
	"edit":           (*Viewer).editBuffer,
	"general":        func(v *Viewer) { v.mode = keys.General },
	"scroll_top":     func(v *Viewer) { v.Current().Active().GotoTop() },
	"scroll_bottom":  func(v *Viewer) { v.Current().Active().GotoBottom() },
	"search_next":    func(v *Viewer) { v.searchNext(false) },
	"search_prev":    func(v *Viewer) { v.searchNext(true) },
	"diff_clipboard": (*Viewer).diffClipboard,
	"yank":           (*Viewer).yank,
	"help":           (*Viewer).showHelp,
	"files":          func(v *Viewer) { v.openRefs(refs.File) },
	"urls":           func(v *Viewer) { v.openRefs(refs.URL) },
	"objects":        func(v *Viewer) { v.openRefs(refs.Object) },
	"pop":            (*Viewer).pop,
	"quit":           (*Viewer).quitNow,

	overlay.ActionClose: (*Viewer).closeOverlay,
	actionSelect:        (*Viewer).selectEntry,
	actionEditEntry:     (*Viewer).editEntry,
}

const (
	actionSelect    = "select"
	actionEditEntry = "edit_entry"
)

func (v *Viewer) quitNow() {
	v.quit = true
}

func (v *Viewer) closeOrQuit() {
	if v.overlays.Len() > 0 {
		v.closeOverlay()
		return
	}
	v.quitNow()
}

func (v *Viewer) backOrQuit() {
	switch {
	case v.overlays.Len() > 0:
		v.closeOverlay()
	case v.stack.Len() > 1:
		v.pop()
	default:
		v.quitNow()
	}
}

func (v *Viewer) printAndQuit() {
	v.print = true
	v.quitNow()
}

func (v *Viewer) pop() {
	if _, ok := v.stack.Pop(); !ok {
		v.SetStatus("no previous buffer")
	}
}

func (v *Viewer) closeOverlay() {
	_, mode, status, ok := v.overlays.Pop()
	if !ok {
		return
	}
	v.mode = mode
	if v.overlays.Len() == 0 && v.mode == keys.CommandLine {
		v.mode = keys.Normal
	}
	v.mu.Lock()
	v.status = status
	v.mu.Unlock()
}

func (v *Viewer) toggleSyntax() {
	msg, _ := v.syntax.Toggle(v.Current())
	v.SetStatus(msg)
}

// editBuffer round-trips the printable text through the editor and shows
// the result as a new buffer.
func (v *Viewer) editBuffer() {
	buf := v.Current()
	text, err := v.tools.EditText(buf.Text())
	if err != nil {
		logger.Warn("edit failed", "error", err)
		v.setError(err.Error())
		return
	}
	v.OpenText("edit of "+buf.Name(), "", text)
	v.SetStatus("displaying edited text")
}

func (v *Viewer) diffClipboard() {
	diff, empty, err := v.tools.DiffClipboard(v.Current().Text())
	switch {
	case err != nil:
		v.setError("a clipboard is required for diffing buffers: " + err.Error())
	case empty:
		v.SetStatus("no diff, to speak of")
	default:
		v.OpenText("clipboard diff", "", diff)
		v.SetStatus("displaying diff of the clipboard (before) and current buffer (after)")
	}
}

func (v *Viewer) yank() {
	if err := v.tools.Yank(v.Current().Text()); err != nil {
		v.setError("a clipboard is required to save the buffer: " + err.Error())
		return
	}
	v.SetStatus("saved buffer to clipboard")
}

// showHelp lists the table the help key was found in.
func (v *Viewer) showHelp() {
	table, title := v.normal, "Keys"
	if v.lastMode == keys.General {
		table, title = v.general, "General keys"
	}
	v.pushOverlay(&overlay.Overlay{
		Name:   "help",
		Widget: overlay.NewHelp(title, table.Help()),
	})
}

func (v *Viewer) pushOverlay(o *overlay.Overlay) {
	v.overlays.Push(o, v.mode, v.Status())
	v.mode = keys.Normal
}

// openRefs starts resolving references of one kind into a new menu.
func (v *Viewer) openRefs(kind refs.Kind) {
	buf := v.Current()
	menu := overlay.NewMenu(kind.Title())
	vw := buf.Active()
	focus := vw.SourceLine(vw.Viewport().Middle)
	h := v.resolver.Start(v.sched, kind, buf.Tokens(), focus, menu, v.resolveDly)

	bindings := keys.Table{
		"enter": {Action: actionSelect, Help: "open the selected entry"},
	}
	if kind == refs.File {
		bindings["e"] = keys.Binding{Action: actionEditEntry, Help: "open the selected file in the editor"}
	}
	v.pushOverlay(&overlay.Overlay{
		Name:     kind.String(),
		Widget:   menu,
		Bindings: bindings,
		Task:     h,
	})
}

func (v *Viewer) focusedCandidate() (refs.Candidate, bool) {
	top := v.overlays.Top()
	if top == nil {
		return refs.Candidate{}, false
	}
	menu, ok := top.Widget.(*overlay.Menu)
	if !ok {
		return refs.Candidate{}, false
	}
	return menu.Focused()
}

// selectEntry acts on the focused menu entry. Failures are reported and
// leave the menu open.
func (v *Viewer) selectEntry() {
	c, ok := v.focusedCandidate()
	if !ok {
		return
	}
	switch c.Kind {
	case refs.File:
		data, err := os.ReadFile(c.Path)
		if err != nil {
			v.setError(fmt.Sprintf("cannot open %s: %v", c.Path, err))
			return
		}
		v.closeOverlay()
		buf := v.OpenText(c.Path, c.Path, string(data))
		if c.Line > 0 {
			buf.Plain.Restore(lineViewport(c.Line - 1))
		}
	case refs.URL:
		target := refs.URLTarget(c.Value)
		if err := v.tools.OpenURL(target); err != nil {
			v.setError(err.Error())
			return
		}
		v.closeOverlay()
		v.SetStatus("opening " + target)
	case refs.Object:
		text, err := showObject(v.dir, c.Value)
		if err != nil {
			v.setError(err.Error())
			return
		}
		v.closeOverlay()
		v.OpenText(c.Value, "", text)
	}
}

// editEntry opens the focused file in the editor at its line.
func (v *Viewer) editEntry() {
	c, ok := v.focusedCandidate()
	if !ok || c.Kind != refs.File {
		return
	}
	if err := v.tools.EditFile(c.Path, c.Line); err != nil {
		v.setError(err.Error())
		return
	}
	v.closeOverlay()
}
