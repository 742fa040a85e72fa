// Package treesitter cross-checks a guessed language by parsing the text
// with the matching grammar and measuring how much of the tree is errors.
package treesitter

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/golang"
	tree_sitter_markdown "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown"
	"github.com/smacker/go-tree-sitter/toml"
	"github.com/smacker/go-tree-sitter/yaml"
)

// Texts larger than this are not parsed.
const maxParseBytes = 8 << 20

type Engine struct {
	mu      sync.Mutex
	langs   map[string]*sitter.Language
	parsers map[string]*sitter.Parser
}

func New() *Engine {
	return &Engine{
		langs: map[string]*sitter.Language{
			"go":       golang.GetLanguage(),
			"bash":     bash.GetLanguage(),
			"sh":       bash.GetLanguage(),
			"yaml":     yaml.GetLanguage(),
			"toml":     toml.GetLanguage(),
			"markdown": tree_sitter_markdown.GetLanguage(),
		},
		parsers: make(map[string]*sitter.Parser),
	}
}

// Supports reports whether a grammar exists for the language name.
func (e *Engine) Supports(language string) bool {
	_, ok := e.langs[strings.ToLower(language)]
	return ok
}

// Confidence parses text as language and returns the share of syntax
// nodes that are not errors. ok is false when no grammar is available.
func (e *Engine) Confidence(ctx context.Context, language, text string) (score float64, ok bool) {
	language = strings.ToLower(language)
	lang, found := e.langs[language]
	if !found || len(text) > maxParseBytes {
		return 0, false
	}

	e.mu.Lock()
	parser := e.parsers[language]
	if parser == nil {
		parser = sitter.NewParser()
		parser.SetLanguage(lang)
		e.parsers[language] = parser
	}
	tree, err := parser.ParseCtx(ctx, nil, []byte(text))
	e.mu.Unlock()
	if err != nil || tree == nil {
		return 0, false
	}
	defer tree.Close()

	total, bad := countNodes(tree.RootNode())
	if total == 0 {
		return 0, false
	}
	return 1 - float64(bad)/float64(total), true
}

func countNodes(root *sitter.Node) (total, bad int) {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		total++
		if n.Type() == "ERROR" || n.IsMissing() {
			bad++
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			stack = append(stack, n.Child(i))
		}
	}
	return total, bad
}
