// Package buffer holds the text being paged, its token index and the
// history stack of previously viewed buffers.
package buffer

import (
	"strings"
	"sync"

	"github.com/kobzarvs/kit/internal/escape"
	"github.com/kobzarvs/kit/internal/view"
)

const diffMarker = "diff --git"

// Token is one whitespace-separated word and the line it came from.
type Token struct {
	Text string
	Line int
}

type Stats struct {
	MaxWidth   int
	LineCount  int
	HasContent bool
	IsDiff     bool
	// RenderedLines counts the lines of the view on display, highlighted
	// ones included once the syntax view is active.
	RenderedLines int
}

// Canceler is implemented by background task handles.
type Canceler interface {
	Cancel()
}

// Buffer is one viewable unit of text. Raw lines keep their escape
// sequences; tokens are indexed from the printable text. Lines and tokens
// are only ever appended together.
type Buffer struct {
	mu       sync.RWMutex
	name     string
	filename string
	lines    []string
	tokens   []Token
	joined   string
	complete bool
	stats    Stats

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}

	// Plain is the escape-colored rendering; syntax is the lexer-driven
	// one and stays nil until highlighting is first requested.
	Plain    *view.View
	syntax   *view.View
	syntaxOn bool
	hlTask   Canceler
	language string
	focus    view.Viewport
	tasks    []Canceler
	closed   bool
}

// New creates an empty buffer. filename is the lexer hint, empty when the
// content did not come from a file.
func New(name, filename string) *Buffer {
	return &Buffer{
		name:     name,
		filename: filename,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		Plain:    view.New(),
	}
}

func (b *Buffer) Name() string     { return b.name }
func (b *Buffer) Filename() string { return b.filename }

// Append adds raw lines and their tokens and returns the index of the
// first appended line.
func (b *Buffer) Append(raw []string) int {
	if len(raw) == 0 {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return len(b.lines)
	}

	// Everything is computed before the buffer is touched so a failure
	// part-way cannot leave lines and tokens out of step.
	plain := make([]string, len(raw))
	widths := make([]int, len(raw))
	diff := false
	for i, line := range raw {
		plain[i] = escape.Strip(line)
		widths[i] = escape.Width(line)
		if !diff && strings.Contains(plain[i], diffMarker) {
			diff = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	start := len(b.lines)
	for i, p := range plain {
		for _, f := range strings.Fields(p) {
			b.tokens = append(b.tokens, Token{Text: f, Line: start + i})
		}
		if widths[i] > b.stats.MaxWidth {
			b.stats.MaxWidth = widths[i]
		}
	}
	b.lines = append(b.lines, raw...)
	b.stats.LineCount = len(b.lines)
	b.stats.HasContent = true
	if diff {
		b.stats.IsDiff = true
	}
	return start
}

// MarkReady releases Ready waiters. It is called after the first batch
// and again at the end of input; only the first call has an effect.
func (b *Buffer) MarkReady() {
	b.readyOnce.Do(func() { close(b.ready) })
}

func (b *Buffer) Ready() <-chan struct{} {
	return b.ready
}

// Finish marks the input as exhausted and builds the joined text.
func (b *Buffer) Finish() {
	b.mu.Lock()
	if !b.complete {
		b.complete = true
		if len(b.lines) > 0 {
			b.joined = strings.Join(b.lines, "\n") + "\n"
		}
		close(b.done)
	}
	b.mu.Unlock()
	b.MarkReady()
}

// Completed is closed by Finish.
func (b *Buffer) Completed() <-chan struct{} {
	return b.done
}

func (b *Buffer) Complete() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.complete
}

// Joined returns the full text. Before Finish it is built on demand from
// the lines read so far.
func (b *Buffer) Joined() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.complete || len(b.lines) == 0 {
		return b.joined
	}
	return strings.Join(b.lines, "\n") + "\n"
}

// Lines returns a copy of the raw lines.
func (b *Buffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Text returns the printable text: escapes removed, lines joined.
func (b *Buffer) Text() string {
	lines := b.Lines()
	for i, l := range lines {
		lines[i] = escape.Strip(l)
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Tokens returns a copy of the token index.
func (b *Buffer) Tokens() []Token {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Token, len(b.tokens))
	copy(out, b.tokens)
	return out
}

func (b *Buffer) Stats() Stats {
	b.mu.RLock()
	st := b.stats
	active := b.Plain
	if b.syntaxOn && b.syntax != nil {
		active = b.syntax
	}
	b.mu.RUnlock()
	st.RenderedLines = active.Len()
	return st
}

// Active returns the view currently on display.
func (b *Buffer) Active() *view.View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.syntaxOn && b.syntax != nil {
		return b.syntax
	}
	return b.Plain
}

func (b *Buffer) Syntax() *view.View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.syntax
}

func (b *Buffer) SyntaxOn() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.syntaxOn
}

// EnableSyntax installs the highlighted view, fed by task c, and
// switches to it. A previous highlighting task is cancelled.
func (b *Buffer) EnableSyntax(v *view.View, c Canceler) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		if c != nil {
			c.Cancel()
		}
		return
	}
	old := b.hlTask
	b.syntax = v
	b.syntaxOn = true
	b.hlTask = c
	if c != nil {
		b.tasks = append(b.tasks, c)
	}
	b.mu.Unlock()
	if old != nil {
		old.Cancel()
	}
}

// SetSyntaxOn flips between the two views. It returns false when there is
// no highlighted view yet.
func (b *Buffer) SetSyntaxOn(on bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.syntax == nil {
		return false
	}
	b.syntaxOn = on
	return true
}

func (b *Buffer) Language() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.language
}

func (b *Buffer) SetLanguage(lang string) {
	b.mu.Lock()
	b.language = lang
	b.mu.Unlock()
}

// Focus is the viewport captured when another buffer was pushed on top.
func (b *Buffer) Focus() view.Viewport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.focus
}

func (b *Buffer) SetFocus(vp view.Viewport) {
	b.mu.Lock()
	b.focus = vp
	b.mu.Unlock()
}

// Attach ties a background task to the buffer's lifetime. Attaching to a
// closed buffer cancels the task right away.
func (b *Buffer) Attach(c Canceler) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		c.Cancel()
		return
	}
	b.tasks = append(b.tasks, c)
	b.mu.Unlock()
}

// Close cancels every attached task.
func (b *Buffer) Close() {
	b.mu.Lock()
	tasks := b.tasks
	b.tasks = nil
	b.closed = true
	b.mu.Unlock()
	for _, c := range tasks {
		c.Cancel()
	}
}

func (b *Buffer) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
