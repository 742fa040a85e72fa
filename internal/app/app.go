// Package app wires configuration, input and the pager together.
package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/kit/internal/config"
	"github.com/kobzarvs/kit/internal/gitinfo"
	"github.com/kobzarvs/kit/internal/ingest"
	"github.com/kobzarvs/kit/internal/logger"
	"github.com/kobzarvs/kit/internal/pager"
	"github.com/kobzarvs/kit/internal/refs"
	"github.com/kobzarvs/kit/internal/syntax"
	"github.com/kobzarvs/kit/internal/treesitter"
)

// App is the top-level runtime for kit.
type App struct {
	args   []string
	stdin  *os.File
	stdout io.Writer

	newScreen func() (tcell.Screen, error)
	// called once the screen is initialized, before the first event
	onStart func(tcell.Screen, *pager.Viewer)
}

func New(args []string) *App {
	return &App{
		args:      args,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		newScreen: tcell.NewScreen,
	}
}

func (a *App) Run() error {
	if err := logger.Init(os.Getenv("KIT_DEBUG") == "1"); err == nil {
		defer logger.Close()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	langs, err := config.LoadLanguages()
	if err != nil {
		return err
	}

	name, hint, src, err := a.source()
	if err != nil {
		return err
	}

	dir, _ := os.Getwd()
	if hint != "" {
		if abs, err := filepath.Abs(hint); err == nil {
			dir = filepath.Dir(abs)
		}
	}

	lexer := syntax.NewChroma(cfg.Pager.SyntaxStyle, langs, treesitter.New())
	v := pager.New(pager.Options{
		Config:   cfg,
		Lexer:    lexer,
		Resolver: refs.NewResolver(dir),
		Dir:      dir,
		Branch:   gitinfo.Branch(dir),
	})
	buf, h := v.Open(name, hint, src)

	select {
	case <-buf.Ready():
	case <-h.Done():
	}
	if !buf.Stats().HasContent {
		logger.Info("no input, exiting")
		v.Shutdown()
		return nil
	}

	s, err := a.newScreen()
	if err != nil {
		v.Shutdown()
		return err
	}
	if err := s.Init(); err != nil {
		v.Shutdown()
		return err
	}
	if a.onStart != nil {
		a.onStart(s, v)
	}
	v.Run(s)
	s.Fini()

	if v.PrintOnExit() {
		if cur := v.Current(); cur != nil {
			_, err := io.WriteString(a.stdout, cur.Joined())
			return err
		}
	}
	return nil
}

// source picks the input: the named files in order, or stdin when none
// are given. A single file doubles as the lexer hint.
func (a *App) source() (name, hint string, src ingest.Source, err error) {
	if len(a.args) == 0 {
		if info, err := a.stdin.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", "", nil, errors.New("missing input: pipe text in or pass files")
		}
		return "stdin", "", ingest.NewReaderSource(a.stdin), nil
	}

	readers := make([]io.Reader, 0, len(a.args))
	files := make([]*os.File, 0, len(a.args))
	for _, path := range a.args {
		f, err := os.Open(path)
		if err != nil {
			for _, open := range files {
				open.Close()
			}
			return "", "", nil, fmt.Errorf("open %s: %w", path, err)
		}
		files = append(files, f)
		readers = append(readers, f)
	}
	logger.Debug("reading files", "count", len(files))
	name = a.args[0]
	if len(a.args) == 1 {
		hint = a.args[0]
	}
	return name, hint, &fileSource{
		ReaderSource: ingest.NewReaderSource(io.MultiReader(readers...)),
		files:        files,
	}, nil
}

// fileSource closes the files once ingestion stops.
type fileSource struct {
	*ingest.ReaderSource
	files []*os.File
}

func (s *fileSource) Close() {
	s.ReaderSource.Close()
	for _, f := range s.files {
		f.Close()
	}
}
