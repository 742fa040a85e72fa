package overlay

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/kobzarvs/kit/internal/refs"
	"github.com/kobzarvs/kit/internal/render"
)

// Menu is a live list of reference candidates. The resolver fills it from
// a background task while the event loop moves the focus and draws it.
type Menu struct {
	mu          sync.Mutex
	title       string
	items       []refs.Candidate
	focus       int
	offset      int
	placeholder string
}

func NewMenu(title string) *Menu {
	return &Menu{title: title}
}

func (m *Menu) Title() string { return m.title }

// Add appends a candidate and returns its index.
func (m *Menu) Add(c refs.Candidate) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, c)
	return len(m.items) - 1
}

func (m *Menu) Focus(i int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= 0 && i < len(m.items) {
		m.focus = i
	}
}

// Placeholder sets the single disabled entry shown when nothing was found.
func (m *Menu) Placeholder(text string) {
	m.mu.Lock()
	m.placeholder = text
	m.mu.Unlock()
}

func (m *Menu) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Menu) Move(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return
	}
	m.focus += delta
	if m.focus < 0 {
		m.focus = 0
	}
	if m.focus >= len(m.items) {
		m.focus = len(m.items) - 1
	}
}

// Focused returns the candidate under the cursor.
func (m *Menu) Focused() (refs.Candidate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.focus < 0 || m.focus >= len(m.items) {
		return refs.Candidate{}, false
	}
	return m.items[m.focus], true
}

func (m *Menu) Draw(s tcell.Screen, w, h int, st Styles) {
	m.mu.Lock()
	labels := make([]string, len(m.items))
	for i, c := range m.items {
		labels[i] = c.Text
	}
	focus := m.focus
	placeholder := m.placeholder
	m.mu.Unlock()

	disabled := false
	if len(labels) == 0 {
		disabled = true
		if placeholder == "" {
			placeholder = "..."
		}
		labels = []string{placeholder}
		focus = -1
	}

	inner := runewidth.StringWidth(m.title) + 2
	for _, l := range labels {
		if lw := runewidth.StringWidth(l) + 2; lw > inner {
			inner = lw
		}
	}
	x0, y0, bw, bh := box(s, w, h, inner, len(labels), m.title, st)
	if bw == 0 {
		return
	}
	rows := bh - 2

	m.mu.Lock()
	if focus >= 0 {
		if focus < m.offset {
			m.offset = focus
		}
		if focus >= m.offset+rows {
			m.offset = focus - rows + 1
		}
	}
	offset := m.offset
	m.mu.Unlock()
	if offset > len(labels)-1 {
		offset = 0
	}

	for row := 0; row < rows && offset+row < len(labels); row++ {
		i := offset + row
		style := st.Text
		switch {
		case disabled:
			style = st.Disabled
		case i == focus:
			style = st.Selected
		}
		y := y0 + 1 + row
		for x := 1; x < bw-1; x++ {
			s.SetContent(x0+x, y, ' ', nil, style)
		}
		render.DrawString(s, x0+2, y, bw-4, labels[i], style)
	}
}

// box draws a centered bordered frame for rows lines of inner width and
// returns its position and size, or zero size when it does not fit.
func box(s tcell.Screen, w, h, inner, rows int, title string, st Styles) (x0, y0, bw, bh int) {
	if w < 8 || h < 3 {
		return 0, 0, 0, 0
	}
	bw = inner + 2
	if bw > w-2 {
		bw = w - 2
	}
	bh = rows + 2
	if bh > h {
		bh = h
	}
	x0 = (w - bw) / 2
	y0 = (h - bh) / 2

	for x := 0; x < bw; x++ {
		s.SetContent(x0+x, y0, tcell.RuneHLine, nil, st.Border)
		s.SetContent(x0+x, y0+bh-1, tcell.RuneHLine, nil, st.Border)
	}
	for y := 0; y < bh; y++ {
		s.SetContent(x0, y0+y, tcell.RuneVLine, nil, st.Border)
		s.SetContent(x0+bw-1, y0+y, tcell.RuneVLine, nil, st.Border)
		if y > 0 && y < bh-1 {
			for x := 1; x < bw-1; x++ {
				s.SetContent(x0+x, y0+y, ' ', nil, st.Text)
			}
		}
	}
	s.SetContent(x0, y0, tcell.RuneULCorner, nil, st.Border)
	s.SetContent(x0+bw-1, y0, tcell.RuneURCorner, nil, st.Border)
	s.SetContent(x0, y0+bh-1, tcell.RuneLLCorner, nil, st.Border)
	s.SetContent(x0+bw-1, y0+bh-1, tcell.RuneLRCorner, nil, st.Border)
	if title != "" && bw > 4 {
		render.DrawString(s, x0+2, y0, bw-4, title, st.Border)
	}
	return x0, y0, bw, bh
}
