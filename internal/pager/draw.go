package pager

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/kobzarvs/kit/internal/config"
	"github.com/kobzarvs/kit/internal/keys"
	"github.com/kobzarvs/kit/internal/overlay"
	"github.com/kobzarvs/kit/internal/render"
)

type styles struct {
	base      tcell.Style
	status    tcell.Style
	command   tcell.Style
	highlight tcell.Style
	banner    tcell.Style
	diffAdd   tcell.Style
	diffDel   tcell.Style
	overlay   overlay.Styles
}

func newStyles(t config.Theme) styles {
	pair := func(fg, bg string) tcell.Style {
		return tcell.StyleDefault.
			Foreground(parseColor(fg, tcell.ColorDefault)).
			Background(parseColor(bg, tcell.ColorDefault))
	}
	return styles{
		base:      pair(t.Foreground, t.Background),
		status:    pair(t.StatuslineForeground, t.StatuslineBackground),
		command:   pair(t.CommandlineForeground, t.CommandlineBackground),
		highlight: pair(t.HighlightForeground, t.HighlightBackground),
		banner:    pair(t.BannerForeground, t.BannerBackground),
		diffAdd:   pair(t.DiffAddForeground, t.DiffAddBackground),
		diffDel:   pair(t.DiffDelForeground, t.DiffDelBackground),
		overlay: overlay.Styles{
			Text:     pair(t.MenuForeground, t.MenuBackground),
			Selected: pair(t.MenuSelectedForeground, t.MenuSelectedBackground),
			Disabled: pair(t.MenuDisabledForeground, t.MenuBackground),
			Border:   pair(t.BorderForeground, t.MenuBackground),
			Key:      pair(t.HelpKeyForeground, t.MenuBackground).Bold(true),
		},
	}
}

func (s styles) palette() render.Palette {
	return render.Palette{
		render.TagDiffAdd:   s.diffAdd,
		render.TagDiffDel:   s.diffDel,
		render.TagHighlight: s.highlight,
		render.TagBanner:    s.banner,
	}
}

func parseColor(name string, fallback tcell.Color) tcell.Color {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	if strings.HasPrefix(name, "#") && len(name) == 7 {
		r, err1 := strconv.ParseInt(name[1:3], 16, 32)
		g, err2 := strconv.ParseInt(name[3:5], 16, 32)
		b, err3 := strconv.ParseInt(name[5:7], 16, 32)
		if err1 == nil && err2 == nil && err3 == nil {
			return tcell.NewRGBColor(int32(r), int32(g), int32(b))
		}
		return fallback
	}
	name = strings.ToLower(name)
	if name == "default" {
		return tcell.ColorDefault
	}
	c := tcell.GetColor(name)
	if c == tcell.ColorDefault {
		return fallback
	}
	return c
}

// Draw paints the displayed buffer, the overlays and the bottom line.
func (v *Viewer) Draw(s tcell.Screen) {
	w, h := s.Size()
	if w <= 0 || h <= 0 {
		return
	}
	s.HideCursor()
	bodyHeight := h - 1
	buf := v.Current()
	if buf != nil && bodyHeight > 0 {
		vw := buf.Active()
		vw.SetHeight(bodyHeight)
		lines, first := vw.Visible()
		mark := vw.Marked()
		for row := 0; row < bodyHeight; row++ {
			if row >= len(lines) {
				render.Draw(s, 0, row, w, 0, v.tabWidth, render.Line{}, v.palette, v.styles.base, nil)
				continue
			}
			var override *tcell.Style
			if first+row == mark {
				hl := v.styles.highlight
				override = &hl
			}
			render.Draw(s, 0, row, w, vw.Left(), v.tabWidth, lines[row], v.palette, v.styles.base, override)
		}
		v.overlays.Draw(s, w, bodyHeight, v.styles.overlay)
	}
	v.drawBottom(s, w, h-1)
}

func (v *Viewer) drawBottom(s tcell.Screen, w, y int) {
	if v.mode == keys.CommandLine {
		line := string(v.prompt) + string(v.cmd)
		render.Draw(s, 0, y, w, 0, v.tabWidth, render.Plain(line), nil, v.styles.command, &v.styles.command)
		cx := runewidth.StringWidth(string(v.prompt) + string(v.cmd[:v.cmdCursor]))
		if cx < w {
			s.ShowCursor(cx, y)
		}
		return
	}

	v.mu.Lock()
	msg, tag := v.status, v.statusTag
	v.mu.Unlock()

	right := v.pagerText()
	if v.branch != "" {
		right = formatBranch(v.cfg.Pager.GitBranchSymbol, v.branch) + "  " + right
	}
	msgStyle := v.styles.status
	if st, ok := v.palette[tag]; ok {
		msgStyle = st
	}
	render.Draw(s, 0, y, w, 0, v.tabWidth, render.Line{}, nil, v.styles.status, nil)
	rw := runewidth.StringWidth(right)
	avail := w - rw - 1
	if avail > 0 {
		render.DrawString(s, 0, y, avail, msg, msgStyle)
	}
	if rw <= w {
		render.DrawString(s, w-rw, y, rw, right, v.styles.status)
	}
}

// pagerText is "line/total (pct%)" followed by one '=' per buffer below
// the current one in the history.
func (v *Viewer) pagerText() string {
	buf := v.Current()
	if buf == nil {
		return ""
	}
	vw := buf.Active()
	total := vw.Len()
	if total == 0 {
		return ""
	}
	vp := vw.Viewport()
	end := vp.Bottom + 1
	pct := vp.Middle * 100 / total
	if pct < 20 {
		pct = vp.Top * 100 / total
	}
	if pct > 20 {
		pct = min(end*100/total, 100)
	}
	text := fmt.Sprintf("%d/%d (%d%%)", min(end, total), total, pct)
	if depth := v.stack.Len() - 1; depth > 0 {
		text += " " + strings.Repeat("=", depth)
	}
	return text
}

func formatBranch(symbol, branch string) string {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		symbol = "git:"
	}
	if strings.HasSuffix(symbol, ":") {
		return symbol + branch
	}
	return symbol + " " + branch
}
