// Package escape cleans terminal control sequences out of piped text and
// turns SGR color codes into styled runs.
package escape

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/kit/internal/render"
)

// Final bytes of CSI sequences that move the cursor or erase.
const cursorFinals = "ABCDEFGHJKSTfhlnsu"

const maxParams = 32

// Clean removes overstrike pairs (char + backspace) and cursor movement
// sequences. Color sequences are preserved.
func Clean(line string) string {
	if strings.IndexByte(line, '\b') >= 0 {
		line = removeBackspaces(line)
	}
	if !hasEscapes(line) {
		return line
	}
	var out strings.Builder
	out.Grow(len(line))
	var p *ansi.Parser
	for rest := line; rest != ""; {
		seq, n := next(rest)
		rest = rest[n:]
		if ansi.HasCsiPrefix(seq) {
			if p == nil {
				p = newParser()
			}
			if cmd, ok := csi(p, seq); ok && cmd.Intermediate() == 0 && strings.IndexByte(cursorFinals, cmd.Final()) >= 0 {
				continue
			}
		}
		out.WriteString(seq)
	}
	return out.String()
}

func removeBackspaces(line string) string {
	out := make([]rune, 0, len(line))
	for _, r := range line {
		if r == '\b' {
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// Strip returns the printable text of line with every escape sequence removed.
func Strip(line string) string {
	line = Clean(line)
	if !hasEscapes(line) {
		return line
	}
	return ansi.Strip(line)
}

// Width reports the display width of line once escapes are removed.
func Width(line string) int {
	return ansi.StringWidth(Clean(line))
}

// Render converts a raw line into styled spans. SGR sequences change the
// current style; every other escape sequence is swallowed.
func Render(line string, base tcell.Style) render.Line {
	line = strings.TrimRight(Clean(line), "\r\n")
	if !hasEscapes(line) {
		return render.Line{Spans: []render.Span{{Style: base, Text: line}}}
	}

	var out render.Line
	style := base
	var text strings.Builder
	flush := func() {
		if text.Len() == 0 {
			return
		}
		out.Spans = append(out.Spans, render.Span{Style: style, Text: text.String()})
		text.Reset()
	}

	p := newParser()
	for rest := line; rest != ""; {
		seq, n := next(rest)
		rest = rest[n:]
		if !isSequence(seq) {
			text.WriteString(seq)
			continue
		}
		if !ansi.HasCsiPrefix(seq) {
			continue
		}
		cmd, ok := csi(p, seq)
		if !ok || cmd.Final() != 'm' || cmd.Prefix() != 0 || cmd.Intermediate() != 0 {
			continue
		}
		flush()
		style = applySGR(sgrParams(p.Params()), style, base)
	}
	flush()
	return out
}

// Lines renders every raw line.
func Lines(lines []string, base tcell.Style) []render.Line {
	out := make([]render.Line, len(lines))
	for i, l := range lines {
		out[i] = Render(l, base)
	}
	return out
}

func hasEscapes(line string) bool {
	return strings.IndexByte(line, ansi.ESC) >= 0
}

// next splits the first grapheme, control byte or escape sequence off s.
// An unterminated sequence runs to the end of s.
func next(s string) (string, int) {
	seq, _, n, _ := ansi.DecodeSequence(s, ansi.NormalState, nil)
	if n <= 0 {
		return s[:1], 1
	}
	return seq, n
}

func isSequence(seq string) bool {
	return ansi.HasEscPrefix(seq) || ansi.HasCsiPrefix(seq) || ansi.HasOscPrefix(seq) ||
		ansi.HasDcsPrefix(seq) || ansi.HasApcPrefix(seq)
}

func newParser() *ansi.Parser {
	p := new(ansi.Parser)
	p.SetParamsSize(maxParams)
	return p
}

// csi decodes a complete CSI sequence into p. Sequences with more
// parameters than p holds are reported as not ok.
func csi(p *ansi.Parser, seq string) (ansi.Cmd, bool) {
	if strings.Count(seq, ";")+strings.Count(seq, ":") >= maxParams-1 {
		return 0, false
	}
	_, _, n, state := ansi.DecodeSequence(seq, ansi.NormalState, p)
	if n != len(seq) || state != ansi.NormalState {
		return 0, false
	}
	return ansi.Cmd(p.Command()), true
}

// sgrParams flattens parameters, sub-parameters included; a missing
// parameter reads as 0.
func sgrParams(params ansi.Params) []int {
	out := make([]int, len(params))
	for i, param := range params {
		out[i] = param.Param(0)
	}
	return out
}

func applySGR(params []int, style, base tcell.Style) tcell.Style {
	if len(params) == 0 {
		return base
	}
	baseFg, baseBg, _ := base.Decompose()
	for i := 0; i < len(params); i++ {
		code := params[i]
		switch {
		case code == 0:
			style = base
		case code == 1:
			style = style.Bold(true)
		case code == 2:
			style = style.Dim(true)
		case code == 3:
			style = style.Italic(true)
		case code == 4:
			style = style.Underline(true)
		case code == 5:
			style = style.Blink(true)
		case code == 7:
			style = style.Reverse(true)
		case code == 9:
			style = style.StrikeThrough(true)
		case code == 22:
			style = style.Bold(false).Dim(false)
		case code == 23:
			style = style.Italic(false)
		case code == 24:
			style = style.Underline(false)
		case code == 27:
			style = style.Reverse(false)
		case code == 29:
			style = style.StrikeThrough(false)
		case code >= 30 && code <= 37:
			style = style.Foreground(tcell.PaletteColor(code - 30))
		case code == 39:
			style = style.Foreground(baseFg)
		case code >= 40 && code <= 47:
			style = style.Background(tcell.PaletteColor(code - 40))
		case code == 49:
			style = style.Background(baseBg)
		case code >= 90 && code <= 97:
			style = style.Foreground(tcell.PaletteColor(code - 90 + 8))
		case code >= 100 && code <= 107:
			style = style.Background(tcell.PaletteColor(code - 100 + 8))
		case code == 38 || code == 48:
			c, n := extendedColor(params[i+1:])
			i += n
			if c == tcell.ColorDefault {
				continue
			}
			if code == 38 {
				style = style.Foreground(c)
			} else {
				style = style.Background(c)
			}
		}
	}
	return style
}

// extendedColor parses the arguments after 38/48 ("5;n" or "2;r;g;b") and
// reports how many it consumed.
func extendedColor(params []int) (tcell.Color, int) {
	if len(params) == 0 {
		return tcell.ColorDefault, 0
	}
	switch params[0] {
	case 5:
		if len(params) < 2 {
			return tcell.ColorDefault, len(params)
		}
		n := params[1]
		if n < 0 || n > 255 {
			return tcell.ColorDefault, 2
		}
		return tcell.PaletteColor(n), 2
	case 2:
		if len(params) < 4 {
			return tcell.ColorDefault, len(params)
		}
		var rgb [3]int32
		for k := 0; k < 3; k++ {
			v := params[1+k]
			if v < 0 || v > 255 {
				return tcell.ColorDefault, 4
			}
			rgb[k] = int32(v)
		}
		return tcell.NewRGBColor(rgb[0], rgb[1], rgb[2]), 4
	}
	return tcell.ColorDefault, 1
}
