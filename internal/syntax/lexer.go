// Package syntax turns buffer text into lexer-styled lines.
package syntax

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/kit/internal/config"
	"github.com/kobzarvs/kit/internal/render"
	"github.com/kobzarvs/kit/internal/treesitter"
)

const plainLexer = "plaintext"

// Result is one highlighting pass. Forced is set when the lexer was chosen
// by name or filename instead of guessed; forced results carry
// confidence 1. Plain reports the degenerate plain text lexer.
type Result struct {
	Language   string
	Confidence float64
	Forced     bool
	Plain      bool
	Spans      []render.Span
}

// Lexer is the highlighting service.
type Lexer interface {
	// Highlight picks a lexer from filename when it names a known type and
	// guesses from text otherwise.
	Highlight(ctx context.Context, text, filename string) (Result, error)
	// HighlightAs uses the named lexer.
	HighlightAs(ctx context.Context, text, language string) (Result, error)
	LexerFor(filename string) (string, bool)
}

// Chroma is the Lexer backed by chroma. Guessed languages that have a
// tree-sitter grammar are cross-checked by parsing: the lower of the two
// scores wins.
type Chroma struct {
	style *chroma.Style
	langs config.Languages
	ts    *treesitter.Engine

	mu      sync.Mutex
	byFile  map[string]chroma.Lexer
	byToken map[chroma.TokenType]tcell.Style
}

func NewChroma(styleName string, langs config.Languages, ts *treesitter.Engine) *Chroma {
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	return &Chroma{
		style:   style,
		langs:   langs,
		ts:      ts,
		byFile:  make(map[string]chroma.Lexer),
		byToken: make(map[chroma.TokenType]tcell.Style),
	}
}

// lookup resolves a filename to a lexer. Results, misses included, are
// kept for the life of the process.
func (c *Chroma) lookup(filename string) chroma.Lexer {
	if filename == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.byFile[filename]; ok {
		return l
	}
	var l chroma.Lexer
	if lang := c.langs.Match(filename); lang != nil {
		l = lexers.Get(lang.Name)
	}
	if l == nil {
		l = lexers.Match(filename)
	}
	c.byFile[filename] = l
	return l
}

func (c *Chroma) LexerFor(filename string) (string, bool) {
	l := c.lookup(filename)
	if l == nil {
		return "", false
	}
	return l.Config().Name, true
}

func (c *Chroma) Highlight(ctx context.Context, text, filename string) (Result, error) {
	if l := c.lookup(filename); l != nil {
		return c.tokenise(l, text, 1, true)
	}
	l := lexers.Analyse(text)
	if l == nil {
		return Result{Language: plainLexer, Plain: true}, nil
	}
	score := 0.0
	if a, ok := l.(chroma.Analyser); ok {
		score = float64(a.AnalyseText(text))
	}
	if c.ts != nil {
		if parsed, ok := c.ts.Confidence(ctx, l.Config().Name, text); ok && parsed < score {
			score = parsed
		}
	}
	return c.tokenise(l, text, score, false)
}

func (c *Chroma) HighlightAs(ctx context.Context, text, language string) (Result, error) {
	l := lexers.Get(language)
	if l == nil {
		return Result{}, fmt.Errorf("unknown lexer: %s", language)
	}
	return c.tokenise(l, text, 1, true)
}

func (c *Chroma) tokenise(l chroma.Lexer, text string, score float64, forced bool) (Result, error) {
	res := Result{
		Language:   l.Config().Name,
		Confidence: score,
		Forced:     forced,
		Plain:      isPlain(l),
	}
	if res.Plain {
		return res, nil
	}
	it, err := chroma.Coalesce(l).Tokenise(nil, text)
	if err != nil {
		return res, fmt.Errorf("tokenise %s: %w", res.Language, err)
	}
	for tok := it(); tok != chroma.EOF; tok = it() {
		if tok.Value == "" {
			continue
		}
		res.Spans = append(res.Spans, render.Span{Style: c.styleFor(tok.Type), Text: tok.Value})
	}
	return res, nil
}

func isPlain(l chroma.Lexer) bool {
	return l == lexers.Fallback || strings.EqualFold(l.Config().Name, plainLexer)
}

func (c *Chroma) styleFor(tt chroma.TokenType) tcell.Style {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.byToken[tt]; ok {
		return st
	}
	entry := c.style.Get(tt)
	st := tcell.StyleDefault
	if entry.Colour.IsSet() {
		st = st.Foreground(tcell.NewRGBColor(int32(entry.Colour.Red()), int32(entry.Colour.Green()), int32(entry.Colour.Blue())))
	}
	if entry.Bold == chroma.Yes {
		st = st.Bold(true)
	}
	if entry.Italic == chroma.Yes {
		st = st.Italic(true)
	}
	if entry.Underline == chroma.Yes {
		st = st.Underline(true)
	}
	c.byToken[tt] = st
	return st
}
