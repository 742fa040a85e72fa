// Package view is the scrollable surface a buffer is displayed through:
// rendered lines plus a viewport. Background tasks append lines while the
// event loop scrolls and draws, so every method is safe for concurrent use.
package view

import (
	"sort"
	"sync"

	"github.com/kobzarvs/kit/internal/render"
)

// Viewport identifies the visible line range.
type Viewport struct {
	Top    int
	Middle int
	Bottom int
}

type View struct {
	mu     sync.RWMutex
	lines  []render.Line
	top    int
	left   int
	height int
	mark   int
	// top requested by Restore before enough lines existed
	want   int

	spacers []int // rows with no source line, ascending
}

func New() *View {
	return &View{height: 1, mark: -1, want: -1}
}

func (v *View) Append(lines ...render.Line) {
	if len(lines) == 0 {
		return
	}
	v.mu.Lock()
	for i, l := range lines {
		if l.Spacer {
			v.spacers = append(v.spacers, len(v.lines)+i)
		}
	}
	v.lines = append(v.lines, lines...)
	if v.want >= 0 {
		v.top = v.want
		v.clampLocked()
		if v.top == v.want {
			v.want = -1
		}
	}
	v.mu.Unlock()
}

func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.lines)
}

func (v *View) Line(i int) (render.Line, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if i < 0 || i >= len(v.lines) {
		return render.Line{}, false
	}
	return v.lines[i], true
}

// SourceLine maps row i to the index of the source line it shows. A spacer
// maps to the line after it.
func (v *View) SourceLine(i int) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n := sort.SearchInts(v.spacers, i)
	return i - n
}

// Texts returns the unstyled text of every rendered line.
func (v *View) Texts() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, len(v.lines))
	for i, l := range v.lines {
		out[i] = l.Text()
	}
	return out
}

// Visible returns the lines in the viewport and the index of the first.
func (v *View) Visible() ([]render.Line, int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	start := v.top
	if start > len(v.lines) {
		start = len(v.lines)
	}
	end := start + v.height
	if end > len(v.lines) {
		end = len(v.lines)
	}
	out := make([]render.Line, end-start)
	copy(out, v.lines[start:end])
	return out, start
}

func (v *View) SetHeight(h int) {
	if h < 1 {
		h = 1
	}
	v.mu.Lock()
	v.height = h
	v.clampLocked()
	v.mu.Unlock()
}

func (v *View) Height() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.height
}

func (v *View) Left() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.left
}

func (v *View) Viewport() Viewport {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.viewportLocked()
}

func (v *View) viewportLocked() Viewport {
	bottom := v.top + v.height - 1
	if bottom > len(v.lines)-1 {
		bottom = len(v.lines) - 1
	}
	if bottom < v.top {
		bottom = v.top
	}
	middle := v.top + v.height/2
	if middle > bottom {
		middle = bottom
	}
	return Viewport{Top: v.top, Middle: middle, Bottom: bottom}
}

// Restore puts the viewport back to a captured position. If the view is
// still filling up, the position is reached once enough lines arrive.
func (v *View) Restore(vp Viewport) {
	v.mu.Lock()
	v.top = vp.Top
	v.want = -1
	v.clampLocked()
	if v.top != vp.Top {
		v.want = vp.Top
	}
	v.mu.Unlock()
}

func (v *View) SetTop(i int) {
	v.mu.Lock()
	v.want = -1
	v.top = i
	v.clampLocked()
	v.mu.Unlock()
}

func (v *View) Scroll(delta int) {
	v.mu.Lock()
	v.want = -1
	v.top += delta
	v.clampLocked()
	v.mu.Unlock()
}

func (v *View) ScrollHorizontal(delta int) {
	v.mu.Lock()
	v.left += delta
	if v.left < 0 {
		v.left = 0
	}
	v.mu.Unlock()
}

func (v *View) PageDown() {
	v.Scroll(v.Height() - 1)
}

func (v *View) PageUp() {
	v.Scroll(-(v.Height() - 1))
}

func (v *View) GotoTop() {
	v.mu.Lock()
	v.want = -1
	v.top = 0
	v.left = 0
	v.mu.Unlock()
}

func (v *View) GotoBottom() {
	v.mu.Lock()
	v.want = -1
	v.top = len(v.lines) - v.height
	v.clampLocked()
	v.mu.Unlock()
}

// CenterOn scrolls so that line i sits in the middle row.
func (v *View) CenterOn(i int) {
	v.mu.Lock()
	v.want = -1
	v.top = i - v.height/2
	v.clampLocked()
	v.mu.Unlock()
}

// Mark highlights line i; -1 clears it.
func (v *View) Mark(i int) {
	v.mu.Lock()
	v.mark = i
	v.mu.Unlock()
}

func (v *View) Marked() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.mark
}

// Focus is the line searches continue from: the marked line while it is
// on screen, otherwise the middle of the viewport.
func (v *View) Focus() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vp := v.viewportLocked()
	if v.mark >= vp.Top && v.mark <= vp.Bottom {
		return v.mark
	}
	return vp.Middle
}

func (v *View) clampLocked() {
	maxTop := len(v.lines) - v.height
	if v.top > maxTop {
		v.top = maxTop
	}
	if v.top < 0 {
		v.top = 0
	}
}
