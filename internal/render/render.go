// Package render holds styled line runs and draws them onto a tcell screen.
package render

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// Tags with a fixed meaning in the palette.
const (
	TagDiffAdd   = "diff_add"
	TagDiffDel   = "diff_del"
	TagHighlight = "highlight"
	TagBanner    = "banner"
)

// Span is a run of text drawn with one style. When Tag names a palette
// entry the palette style is used instead of Style.
type Span struct {
	Tag   string
	Style tcell.Style
	Text  string
}

// Line is one visual line.
type Line struct {
	Spans []Span
	// Spacer rows have no source line behind them.
	Spacer bool
}

// Palette resolves tags to styles at draw time.
type Palette map[string]tcell.Style

func Plain(text string) Line {
	if text == "" {
		return Line{}
	}
	return Line{Spans: []Span{{Style: tcell.StyleDefault, Text: text}}}
}

func Tagged(tag, text string) Line {
	return Line{Spans: []Span{{Tag: tag, Style: tcell.StyleDefault, Text: text}}}
}

// Text returns the unstyled content of the line.
func (l Line) Text() string {
	if len(l.Spans) == 1 {
		return l.Spans[0].Text
	}
	var b strings.Builder
	for _, sp := range l.Spans {
		b.WriteString(sp.Text)
	}
	return b.String()
}

func (l Line) Width() int {
	return runewidth.StringWidth(l.Text())
}

// SplitLines turns a flat span stream into visual lines. Spans are
// accumulated until one contains a newline; the span is cut at every
// newline so multi-line tokens keep their style on each line they cover.
// A trailing newline does not produce an extra empty line.
func SplitLines(spans []Span) []Line {
	var out []Line
	var cur []Span
	for _, sp := range spans {
		text := sp.Text
		for {
			i := strings.IndexByte(text, '\n')
			if i < 0 {
				break
			}
			if i > 0 {
				cur = append(cur, Span{Tag: sp.Tag, Style: sp.Style, Text: text[:i]})
			}
			out = append(out, Line{Spans: cur})
			cur = nil
			text = text[i+1:]
		}
		if text != "" {
			cur = append(cur, Span{Tag: sp.Tag, Style: sp.Style, Text: text})
		}
	}
	if len(cur) > 0 {
		out = append(out, Line{Spans: cur})
	}
	return out
}

// Draw paints line at row y starting at column x, skipping the first left
// display columns and clipping at width. Cells past the text are cleared
// with base. Tabs expand to tabWidth.
func Draw(s tcell.Screen, x, y, width, left, tabWidth int, line Line, palette Palette, base tcell.Style, override *tcell.Style) {
	if width <= 0 {
		return
	}
	if tabWidth <= 0 {
		tabWidth = 4
	}
	col := 0
	end := x + width
	put := func(r rune, w int, st tcell.Style) {
		if col >= left && x+col-left+w <= end {
			s.SetContent(x+col-left, y, r, nil, st)
			for i := 1; i < w; i++ {
				s.SetContent(x+col-left+i, y, ' ', nil, st)
			}
		}
		col += w
	}
	for _, sp := range line.Spans {
		st := sp.Style
		if ps, ok := palette[sp.Tag]; ok {
			st = ps
		}
		if override != nil {
			st = *override
		}
		for _, r := range sp.Text {
			if col-left >= width {
				break
			}
			if r == '\t' {
				n := tabWidth - col%tabWidth
				for i := 0; i < n; i++ {
					put(' ', 1, st)
				}
				continue
			}
			if r < ' ' {
				r = '?'
			}
			w := runewidth.RuneWidth(r)
			if w <= 0 {
				continue
			}
			put(r, w, st)
		}
	}
	fill := base
	if override != nil {
		fill = *override
	}
	start := col - left
	if start < 0 {
		start = 0
	}
	for i := start; i < width; i++ {
		s.SetContent(x+i, y, ' ', nil, fill)
	}
}

// DrawString paints s at (x, y) clipped to width and returns the columns used.
func DrawString(scr tcell.Screen, x, y, width int, s string, st tcell.Style) int {
	col := 0
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w <= 0 {
			continue
		}
		if col+w > width {
			break
		}
		scr.SetContent(x+col, y, r, nil, st)
		col += w
	}
	return col
}
