package syntax

import (
	"context"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/kit/internal/buffer"
	"github.com/kobzarvs/kit/internal/escape"
	"github.com/kobzarvs/kit/internal/logger"
	"github.com/kobzarvs/kit/internal/render"
	"github.com/kobzarvs/kit/internal/task"
	"github.com/kobzarvs/kit/internal/view"
)

const (
	DefaultThreshold = 0.3

	diffBoundary = "diff --git"
	// lines following a boundary that belong to the file header
	diffHeaderLines = 3

	LangDiff     = "git diff"
	LangNone     = "none. (could not auto-detect a syntax)"
	msgDisabling = "Disabling syntax coloring"
)

// Pipeline owns the plain/highlighted switch of every buffer.
type Pipeline struct {
	lexer     Lexer
	sched     *task.Scheduler
	threshold float64
	base      tcell.Style
	status    func(string)
}

// NewPipeline creates a pipeline. status receives the language message
// whenever highlighting settles on a language.
func NewPipeline(lexer Lexer, sched *task.Scheduler, threshold float64, base tcell.Style, status func(string)) *Pipeline {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if status == nil {
		status = func(string) {}
	}
	return &Pipeline{lexer: lexer, sched: sched, threshold: threshold, base: base, status: status}
}

// Message is the status line text for the buffer's current mode.
func Message(buf *buffer.Buffer) string {
	if !buf.SyntaxOn() {
		return msgDisabling
	}
	lang := buf.Language()
	if lang == "" {
		return "Setting syntax"
	}
	return "Setting syntax to " + lang
}

// Toggle switches buf between plain and highlighted rendering. The first
// switch builds the highlighted view in the background and returns the
// task doing it; later switches only swap views. The viewport carries
// over in both directions.
func (p *Pipeline) Toggle(buf *buffer.Buffer) (string, *task.Handle) {
	if buf.Syntax() == nil {
		h := p.start(buf, "")
		return Message(buf), h
	}
	from := buf.Active()
	buf.SetSyntaxOn(!buf.SyntaxOn())
	to := buf.Active()
	to.SetHeight(from.Height())
	to.Restore(from.Viewport())
	return Message(buf), nil
}

// Apply highlights buf with an explicit lexer, replacing any earlier
// highlighted view.
func (p *Pipeline) Apply(buf *buffer.Buffer, language string) (string, *task.Handle) {
	h := p.start(buf, language)
	return Message(buf), h
}

// Disable switches buf back to plain rendering.
func (p *Pipeline) Disable(buf *buffer.Buffer) string {
	if buf.SyntaxOn() {
		from := buf.Active()
		buf.SetSyntaxOn(false)
		buf.Plain.Restore(from.Viewport())
	}
	return msgDisabling
}

func (p *Pipeline) start(buf *buffer.Buffer, language string) *task.Handle {
	from := buf.Active()
	v := view.New()
	v.SetHeight(from.Height())
	v.Restore(from.Viewport())

	j := &job{p: p, buf: buf, v: v, language: language, installed: make(chan struct{})}
	h := p.sched.Go("highlight "+buf.Name(), 0, j.step)
	buf.EnableSyntax(v, h)
	close(j.installed)
	return h
}

// job is one highlighting run. A diff is processed one file per step;
// anything else in a single step.
type job struct {
	p         *Pipeline
	buf       *buffer.Buffer
	v         *view.View
	language  string
	installed chan struct{}

	loaded bool
	raw    []string
	text   []string
	diff   bool
	pos    int
	fname  string
	steps  int
}

func (j *job) step(ctx context.Context) (bool, error) {
	if !j.loaded {
		// highlighted output never covers a partial buffer
		for _, ch := range []<-chan struct{}{j.installed, j.buf.Completed()} {
			select {
			case <-ch:
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
		j.raw = j.buf.Lines()
		j.text = make([]string, len(j.raw))
		for i, l := range j.raw {
			j.text[i] = escape.Strip(l)
		}
		j.diff = j.buf.Stats().IsDiff && j.language == ""
		j.loaded = true
	}
	if !j.diff {
		lines, lang := j.p.highlight(ctx, j.raw, j.text, j.buf.Filename(), j.language, false)
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		j.v.Append(lines...)
		j.settle(lang)
		return true, nil
	}
	return j.diffStep(ctx)
}

func (j *job) settle(lang string) {
	j.buf.SetLanguage(lang)
	if j.buf.SyntaxOn() {
		j.p.status(Message(j.buf))
	}
}

// diffStep emits the body of the current file, then the header of the
// next one. Commit metadata found at the end of the body (from the line
// before "Author:" on) is moved into the header block so it is never
// colored as the file's language.
func (j *job) diffStep(ctx context.Context) (bool, error) {
	start := j.pos
	end := start
	for end < len(j.text) && !strings.HasPrefix(j.text[end], diffBoundary) {
		end++
	}

	bodyEnd := end
	var header []render.Line
	if end < len(j.text) {
		author := -1
		for i := start; i < end; i++ {
			if strings.HasPrefix(j.text[i], "Author:") {
				author = i
			}
		}
		if author >= 0 {
			bodyEnd = max(author-1, start)
		}
		hdrEnd := min(end+1+diffHeaderLines, len(j.text))
		if j.steps > 0 && author >= 0 {
			header = append(header, render.Line{Spacer: true})
		}
		header = append(header, escape.Lines(j.raw[bodyEnd:hdrEnd], j.p.base)...)
		j.pos = hdrEnd
	} else {
		j.pos = end
	}

	// cursor moved before any work so a panicking chunk is skipped
	j.steps++
	fname := j.fname
	if end < len(j.text) {
		fields := strings.Fields(j.text[end])
		if len(fields) > 0 {
			j.fname = fields[len(fields)-1]
		}
	}

	if bodyEnd > start {
		body, lang := j.p.highlight(ctx, j.raw[start:bodyEnd], j.text[start:bodyEnd], fname, "", true)
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		j.v.Append(body...)
		j.settle(lang)
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	j.v.Append(header...)
	return j.pos >= len(j.text), nil
}

// highlight renders one block. It returns the lines and the language
// name for the status line. Lexer failures fall back to escape-colored
// rendering, and so do low-confidence guesses outside diffs.
func (p *Pipeline) highlight(ctx context.Context, raw, text []string, fname, language string, diff bool) ([]render.Line, string) {
	joined := strings.Join(text, "\n") + "\n"

	var res Result
	var err error
	if language != "" {
		res, err = p.lexer.HighlightAs(ctx, joined, language)
	} else {
		res, err = p.lexer.Highlight(ctx, joined, fname)
	}

	lang := res.Language
	plain := false
	switch {
	case err != nil:
		logger.Warn("lexer failed, using plain rendering", "file", fname, "error", err)
		plain = true
		lang = LangNone
	case diff:
		// a diff chunk is never judged by confidence
		lang = LangDiff
	case res.Plain || (!res.Forced && res.Confidence < p.threshold):
		logger.Debug("syntax not detected", "lexer", res.Language, "confidence", res.Confidence)
		plain = true
		lang = LangNone
	}

	var lines []render.Line
	if plain || res.Plain {
		lines = escape.Lines(raw, p.base)
	} else {
		lines = render.SplitLines(res.Spans)
	}
	if diff {
		for i := range lines {
			lines[i] = markDiff(lines[i])
		}
	}
	return lines, lang
}

// markDiff replaces a leading -/+ with a colored marker cell.
func markDiff(l render.Line) render.Line {
	if len(l.Spans) == 0 || l.Spans[0].Text == "" {
		return l
	}
	first := l.Spans[0]
	var tag string
	switch first.Text[0] {
	case '-':
		tag = render.TagDiffDel
	case '+':
		tag = render.TagDiffAdd
	default:
		return l
	}
	spans := make([]render.Span, 0, len(l.Spans)+1)
	spans = append(spans, render.Span{Tag: tag, Text: " "})
	if rest := first.Text[1:]; rest != "" {
		first.Text = rest
		spans = append(spans, first)
	}
	spans = append(spans, l.Spans[1:]...)
	return render.Line{Spans: spans}
}
