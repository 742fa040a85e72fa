package syntax

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/kobzarvs/kit/internal/buffer"
	"github.com/kobzarvs/kit/internal/render"
	"github.com/kobzarvs/kit/internal/task"
)

var keyword = tcell.StyleDefault.Foreground(tcell.ColorFuchsia).Bold(true)

type call struct {
	Text     string
	Filename string
}

// fakeLexer styles every line with keyword. Filenames in byFile are
// forced; anything else is guessed as lang with confidence conf.
type fakeLexer struct {
	mu     sync.Mutex
	conf   float64
	lang   string
	byFile map[string]string
	calls  []call
}

func (f *fakeLexer) spans(text string) []render.Span {
	var out []render.Span
	for _, l := range strings.SplitAfter(text, "\n") {
		if l != "" {
			out = append(out, render.Span{Style: keyword, Text: l})
		}
	}
	return out
}

func (f *fakeLexer) Highlight(ctx context.Context, text, filename string) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{Text: text, Filename: filename})
	f.mu.Unlock()
	if l, ok := f.byFile[filename]; ok {
		return Result{Language: l, Confidence: 1, Forced: true, Spans: f.spans(text)}, nil
	}
	return Result{Language: f.lang, Confidence: f.conf, Spans: f.spans(text)}, nil
}

func (f *fakeLexer) HighlightAs(ctx context.Context, text, language string) (Result, error) {
	return Result{Language: language, Confidence: 1, Forced: true, Spans: f.spans(text)}, nil
}

func (f *fakeLexer) LexerFor(filename string) (string, bool) {
	l, ok := f.byFile[filename]
	return l, ok
}

func (f *fakeLexer) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

type statusLog struct {
	mu   sync.Mutex
	msgs []string
}

func (s *statusLog) set(msg string) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

func (s *statusLog) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.msgs) == 0 {
		return ""
	}
	return s.msgs[len(s.msgs)-1]
}

func newPipeline(lx Lexer) (*Pipeline, *statusLog) {
	st := &statusLog{}
	sched := task.New(time.Millisecond, nil)
	return NewPipeline(lx, sched, DefaultThreshold, tcell.StyleDefault, st.set), st
}

func loaded(lines []string) *buffer.Buffer {
	b := buffer.New("test", "")
	b.Append(lines)
	for _, l := range lines {
		b.Plain.Append(render.Plain(l))
	}
	b.Finish()
	return b
}

func waitTask(t *testing.T, h *task.Handle) {
	t.Helper()
	if h == nil {
		t.Fatalf("no highlighting task started")
	}
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("highlighting did not finish")
	}
}

func sameLines(a, b []render.Line) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i].Spans) != len(b[i].Spans) {
			return false
		}
		for k := range a[i].Spans {
			if a[i].Spans[k] != b[i].Spans[k] {
				return false
			}
		}
	}
	return true
}

func viewLines(b *buffer.Buffer) []render.Line {
	v := b.Active()
	out := make([]render.Line, v.Len())
	for i := range out {
		out[i], _ = v.Line(i)
	}
	return out
}

func TestLowConfidenceForcesPlain(t *testing.T) {
	p, st := newPipeline(&fakeLexer{conf: 0.05, lang: "Python"})
	b := loaded([]string{"some ambiguous", "plain text"})

	_, h := p.Toggle(b)
	waitTask(t, h)

	if got := b.Language(); got != LangNone {
		t.Fatalf("language = %q, want %q", got, LangNone)
	}
	if got, want := st.last(), "Setting syntax to none. (could not auto-detect a syntax)"; got != want {
		t.Fatalf("status = %q, want %q", got, want)
	}
	for _, l := range viewLines(b) {
		for _, sp := range l.Spans {
			if sp.Style == keyword {
				t.Fatalf("lexer style used on a plain fallback line: %+v", l)
			}
		}
	}
}

func TestConfidentGuessIsStyled(t *testing.T) {
	p, st := newPipeline(&fakeLexer{conf: 0.9, lang: "Python"})
	b := loaded([]string{"def f():", "    return 1"})

	_, h := p.Toggle(b)
	waitTask(t, h)

	if got := st.last(); got != "Setting syntax to Python" {
		t.Fatalf("status = %q", got)
	}
	lines := viewLines(b)
	if len(lines) != 2 || lines[0].Spans[0].Style != keyword {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestFilenameHintForcesLexer(t *testing.T) {
	lx := &fakeLexer{conf: 0, byFile: map[string]string{"main.go": "Go"}}
	p, _ := newPipeline(lx)
	b := buffer.New("main.go", "main.go")
	b.Append([]string{"package main"})
	b.Finish()

	_, h := p.Toggle(b)
	waitTask(t, h)
	if got := b.Language(); got != "Go" {
		t.Fatalf("language = %q, want Go", got)
	}
}

func TestToggleIsIdempotent(t *testing.T) {
	lines := make([]string, 200)
	for i := range lines {
		lines[i] = fmt.Sprintf("x = %d", i)
	}
	lx := &fakeLexer{conf: 1, lang: "Python"}
	p, _ := newPipeline(lx)
	b := loaded(lines)
	b.Plain.SetHeight(10)
	b.Plain.SetTop(50)

	msg, h := p.Toggle(b)
	waitTask(t, h)
	if !b.SyntaxOn() || !strings.HasPrefix(msg, "Setting syntax") {
		t.Fatalf("toggle on: syntax=%v msg=%q", b.SyntaxOn(), msg)
	}
	if got := b.Active().Viewport().Top; got != 50 {
		t.Fatalf("highlighted top = %d, want 50", got)
	}
	first := viewLines(b)

	b.Active().SetTop(70)
	want := b.Active().Viewport()

	msg, h = p.Toggle(b)
	if h != nil || msg != "Disabling syntax coloring" {
		t.Fatalf("toggle off: task=%v msg=%q", h, msg)
	}
	if got := b.Active().Viewport(); got != want {
		t.Fatalf("plain viewport = %+v, want %+v", got, want)
	}

	_, h = p.Toggle(b)
	if h != nil {
		t.Fatalf("second toggle on recomputed the view")
	}
	if got := b.Active().Viewport(); got != want {
		t.Fatalf("highlighted viewport = %+v, want %+v", got, want)
	}
	if !sameLines(first, viewLines(b)) {
		t.Fatalf("highlighted output changed between passes")
	}
	if n := len(lx.recorded()); n != 1 {
		t.Fatalf("lexer calls = %d, want 1", n)
	}
}

func TestHighlightWaitsForCompleteBuffer(t *testing.T) {
	lx := &fakeLexer{conf: 1, lang: "Python"}
	p, _ := newPipeline(lx)
	b := buffer.New("stdin", "")
	b.Append([]string{"a = 1"})

	_, h := p.Toggle(b)
	time.Sleep(20 * time.Millisecond)
	if n := len(lx.recorded()); n != 0 {
		t.Fatalf("lexer ran on a partial buffer")
	}
	b.Append([]string{"b = 2"})
	b.Finish()
	waitTask(t, h)
	calls := lx.recorded()
	if len(calls) != 1 || calls[0].Text != "a = 1\nb = 2\n" {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestDiffSplitsIntoFileChunks(t *testing.T) {
	input := "diff --git a/x b/x\n--- a/x\n+++ b/x\n@@ -1 +1 @@\n-old\n+new\n"
	lx := &fakeLexer{conf: 0}
	p, _ := newPipeline(lx)
	b := loaded(strings.Split(strings.TrimSuffix(input, "\n"), "\n"))
	if !b.Stats().IsDiff {
		t.Fatalf("buffer not flagged as diff")
	}

	_, h := p.Toggle(b)
	waitTask(t, h)

	calls := lx.recorded()
	if len(calls) != 1 || calls[0].Filename != "b/x" {
		t.Fatalf("lexer calls = %+v, want one chunk named b/x", calls)
	}
	lines := viewLines(b)
	if len(lines) != 6 {
		t.Fatalf("rendered %d lines, want 6", len(lines))
	}
	var del, add int
	for _, l := range lines {
		if len(l.Spans) == 0 {
			continue
		}
		switch l.Spans[0].Tag {
		case render.TagDiffDel:
			del++
		case render.TagDiffAdd:
			add++
		}
	}
	if del != 1 || add != 1 {
		t.Fatalf("marker lines: del=%d add=%d, want 1 and 1", del, add)
	}
	if got := lines[4].Text(); got != " old" {
		t.Fatalf("deleted line text = %q, want %q", got, " old")
	}
}

func TestDiffForcedLexerReportsGitDiff(t *testing.T) {
	lx := &fakeLexer{byFile: map[string]string{"b/x.go": "Go"}}
	p, st := newPipeline(lx)
	b := loaded([]string{"diff --git a/x.go b/x.go", "index 1..2", "--- a/x.go", "+++ b/x.go", "@@ -1 +1 @@", "-a", "+b"})
	_, h := p.Toggle(b)
	waitTask(t, h)
	if got := st.last(); got != "Setting syntax to git diff" {
		t.Fatalf("status = %q", got)
	}
}

func TestDiffWithUnknownFileTypeIsStillGitDiff(t *testing.T) {
	lx := &fakeLexer{conf: 0.05, lang: "Text"}
	p, st := newPipeline(lx)
	b := loaded([]string{"diff --git a/x b/x", "--- a/x", "+++ b/x", "@@ -1 +1 @@", "-old", "+new"})
	_, h := p.Toggle(b)
	waitTask(t, h)
	if got := st.last(); got != "Setting syntax to git diff" {
		t.Fatalf("status = %q, want %q", got, "Setting syntax to git diff")
	}
	lines := viewLines(b)
	if len(lines) != 6 || lines[5].Spans[0].Tag != render.TagDiffAdd {
		t.Fatalf("lines = %+v", lines)
	}
	if got := lines[5].Spans[1].Style; got != keyword {
		t.Fatalf("chunk body not lexer-styled despite low confidence")
	}
}

func TestDiffCommitHeaderIsNotLexed(t *testing.T) {
	lines := []string{
		"commit 1111",
		"Author: A <a@example.com>",
		"Date:   today",
		"",
		"    first",
		"",
		"diff --git a/main.go b/main.go",
		"index 1..2 100644",
		"--- a/main.go",
		"+++ b/main.go",
		"@@ -1 +1 @@",
		"-old",
		"+new",
		"commit 2222",
		"Author: B <b@example.com>",
		"Date:   yesterday",
		"",
		"    second",
		"",
		"diff --git a/y.go b/y.go",
		"index 3..4 100644",
		"--- a/y.go",
		"+++ b/y.go",
		"+added",
	}
	lx := &fakeLexer{byFile: map[string]string{"b/main.go": "Go", "b/y.go": "Go"}}
	p, _ := newPipeline(lx)
	b := loaded(lines)

	_, h := p.Toggle(b)
	waitTask(t, h)

	want := []call{
		{Text: "@@ -1 +1 @@\n-old\n+new\n", Filename: "b/main.go"},
		{Text: "+added\n", Filename: "b/y.go"},
	}
	if diff := cmp.Diff(want, lx.recorded()); diff != "" {
		t.Fatalf("lexer calls mismatch (-want +got):\n%s", diff)
	}

	got := viewLines(b)
	if len(got) != len(lines)+1 {
		t.Fatalf("rendered %d lines, want %d", len(got), len(lines)+1)
	}
	// a blank separator precedes the second commit block
	if got[13].Text() != "" || got[14].Text() != "commit 2222" || got[15].Text() != "Author: B <b@example.com>" {
		t.Fatalf("commit block misplaced: %q %q %q", got[13].Text(), got[14].Text(), got[15].Text())
	}
	for _, i := range []int{1, 14, 15, 16} {
		for _, sp := range got[i].Spans {
			if sp.Style == keyword {
				t.Fatalf("commit line %d %q was lexed", i, got[i].Text())
			}
		}
	}
	if got[11].Spans[0].Tag != render.TagDiffDel || got[12].Spans[0].Tag != render.TagDiffAdd {
		t.Fatalf("diff markers missing: %+v %+v", got[11], got[12])
	}
	if got := b.Active().SourceLine(14); got != 13 {
		t.Fatalf("row 14 maps to source line %d, want 13", got)
	}
	if n := b.Stats().RenderedLines; n != len(lines)+1 {
		t.Fatalf("rendered stat = %d, want the highlighted view's %d", n, len(lines)+1)
	}
	b.SetSyntaxOn(false)
	if n := b.Stats().RenderedLines; n != len(lines) {
		t.Fatalf("rendered stat = %d after switching back, want %d", n, len(lines))
	}
}

func TestApplyUsesNamedLexer(t *testing.T) {
	lx := &fakeLexer{conf: 0}
	p, st := newPipeline(lx)
	b := loaded([]string{"echo hi"})
	_, h := p.Apply(b, "bash")
	waitTask(t, h)
	if got := st.last(); got != "Setting syntax to bash" {
		t.Fatalf("status = %q", got)
	}
	if got := p.Disable(b); got != "Disabling syntax coloring" || b.SyntaxOn() {
		t.Fatalf("disable: %q on=%v", got, b.SyntaxOn())
	}
}
