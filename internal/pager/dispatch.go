package pager

import (
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/kit/internal/keys"
	"github.com/kobzarvs/kit/internal/logger"
)

// HandleKey routes one key event. Exactly one binding table is consulted:
// the top overlay's when one is open, otherwise General or Normal. Keys
// no table binds fall through to navigation. Command-line input bypasses
// the tables.
func (v *Viewer) HandleKey(ev *tcell.EventKey) {
	if v.mode == keys.CommandLine {
		v.handleCommandLine(ev)
		return
	}
	name := keys.Name(ev)
	table := v.table()
	v.lastMode = v.mode
	if v.mode == keys.General {
		// reverts whether or not the key is bound
		v.mode = keys.Normal
	}
	if b, ok := table.Lookup(name); ok {
		v.dispatch(b.Action)
		return
	}
	v.navigate(name)
}

func (v *Viewer) table() keys.Table {
	if t := v.overlays.Bindings(); t != nil {
		return t
	}
	if v.mode == keys.General {
		return v.general
	}
	return v.normal
}

func (v *Viewer) dispatch(action string) {
	fn, ok := actions[action]
	if !ok {
		logger.Warn("unknown action", "action", action)
		v.setError("unknown action: " + action)
		return
	}
	fn(v)
}

// navigate applies the movement layer to the top overlay, or to the
// displayed buffer when no overlay is open.
func (v *Viewer) navigate(name string) {
	mv, ok := v.movement[name]
	if !ok {
		return
	}
	if top := v.overlays.Top(); top != nil {
		if m, ok := top.Widget.(interface{ Move(int) }); ok {
			switch mv {
			case keys.MoveUp:
				m.Move(-1)
			case keys.MoveDown:
				m.Move(1)
			case keys.MovePageUp:
				m.Move(-10)
			case keys.MovePageDown:
				m.Move(10)
			case keys.MoveTop:
				m.Move(-1 << 30)
			case keys.MoveBottom:
				m.Move(1 << 30)
			}
		}
		return
	}
	buf := v.Current()
	if buf == nil {
		return
	}
	vw := buf.Active()
	switch mv {
	case keys.MoveUp:
		vw.Scroll(-1)
	case keys.MoveDown:
		vw.Scroll(1)
	case keys.MovePageUp:
		vw.PageUp()
	case keys.MovePageDown:
		vw.PageDown()
	case keys.MoveTop:
		vw.GotoTop()
	case keys.MoveBottom:
		vw.GotoBottom()
	case keys.MoveLeft:
		vw.ScrollHorizontal(-horizontalStep)
	case keys.MoveRight:
		if vw.Left()+horizontalStep < buf.Stats().MaxWidth {
			vw.ScrollHorizontal(horizontalStep)
		}
	}
}

const horizontalStep = 8

// openPrompt enters command-line mode for one of ':', '/' or '!'.
func (v *Viewer) openPrompt(prefix rune) {
	v.mode = keys.CommandLine
	v.prompt = prefix
	v.cmd = v.cmd[:0]
	v.cmdCursor = 0
}

func (v *Viewer) closePrompt() string {
	text := string(v.cmd)
	v.mode = keys.Normal
	v.cmd = v.cmd[:0]
	v.cmdCursor = 0
	return text
}

// handleCommandLine edits the prompt with readline keys. Enter runs the
// line and always leaves command-line mode.
func (v *Viewer) handleCommandLine(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		v.closePrompt()
	case tcell.KeyEnter:
		prefix := v.prompt
		text := v.closePrompt()
		v.runPrompt(prefix, text)
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(v.cmd) == 0 {
			v.closePrompt()
			return
		}
		if v.cmdCursor > 0 {
			v.cmd = append(v.cmd[:v.cmdCursor-1], v.cmd[v.cmdCursor:]...)
			v.cmdCursor--
		}
	case tcell.KeyDelete:
		if v.cmdCursor < len(v.cmd) {
			v.cmd = append(v.cmd[:v.cmdCursor], v.cmd[v.cmdCursor+1:]...)
		}
	case tcell.KeyLeft, tcell.KeyCtrlB:
		if v.cmdCursor > 0 {
			v.cmdCursor--
		}
	case tcell.KeyRight, tcell.KeyCtrlF:
		if v.cmdCursor < len(v.cmd) {
			v.cmdCursor++
		}
	case tcell.KeyHome, tcell.KeyCtrlA:
		v.cmdCursor = 0
	case tcell.KeyEnd, tcell.KeyCtrlE:
		v.cmdCursor = len(v.cmd)
	case tcell.KeyCtrlU:
		v.cmd = v.cmd[:0]
		v.cmdCursor = 0
	case tcell.KeyCtrlK:
		v.cmd = v.cmd[:v.cmdCursor]
	case tcell.KeyCtrlW:
		i := v.cmdCursor
		for i > 0 && v.cmd[i-1] == ' ' {
			i--
		}
		for i > 0 && v.cmd[i-1] != ' ' {
			i--
		}
		v.cmd = append(v.cmd[:i], v.cmd[v.cmdCursor:]...)
		v.cmdCursor = i
	case tcell.KeyRune:
		r := ev.Rune()
		v.cmd = append(v.cmd[:v.cmdCursor], append([]rune{r}, v.cmd[v.cmdCursor:]...)...)
		v.cmdCursor++
	}
}

func (v *Viewer) runPrompt(prefix rune, text string) {
	switch prefix {
	case '/':
		v.startSearch(text)
	case '!':
		v.pipe(strings.TrimSpace(text))
	case ':':
		v.execCommand(strings.TrimSpace(text))
	}
}
