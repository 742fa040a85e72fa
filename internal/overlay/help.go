package overlay

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/kobzarvs/kit/internal/keys"
	"github.com/kobzarvs/kit/internal/render"
)

// Help lists key bindings with their descriptions.
type Help struct {
	title  string
	lines  []keys.HelpLine
	offset int
}

func NewHelp(title string, lines []keys.HelpLine) *Help {
	return &Help{title: title, lines: lines}
}

func (h *Help) Lines() []keys.HelpLine { return h.lines }

func (h *Help) Move(delta int) {
	h.offset += delta
	if h.offset > len(h.lines)-1 {
		h.offset = len(h.lines) - 1
	}
	if h.offset < 0 {
		h.offset = 0
	}
}

func (h *Help) Draw(s tcell.Screen, w, hh int, st Styles) {
	keyWidth := 0
	for _, l := range h.lines {
		if kw := runewidth.StringWidth(l.Key); kw > keyWidth {
			keyWidth = kw
		}
	}
	inner := runewidth.StringWidth(h.title) + 2
	for _, l := range h.lines {
		if lw := keyWidth + 2 + runewidth.StringWidth(l.Help) + 2; lw > inner {
			inner = lw
		}
	}
	x0, y0, bw, bh := box(s, w, hh, inner, len(h.lines), h.title, st)
	if bw == 0 {
		return
	}
	for row := 0; row < bh-2 && h.offset+row < len(h.lines); row++ {
		l := h.lines[h.offset+row]
		y := y0 + 1 + row
		render.DrawString(s, x0+2, y, bw-4, l.Key, st.Key)
		if rest := bw - 4 - keyWidth - 2; rest > 0 {
			render.DrawString(s, x0+2+keyWidth+2, y, rest, l.Help, st.Text)
		}
	}
}
