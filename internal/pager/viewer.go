// Package pager is the interactive viewer: it owns the buffer history,
// the overlay stack and the key dispatch state, and draws them.
package pager

import (
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/kit/internal/buffer"
	"github.com/kobzarvs/kit/internal/config"
	"github.com/kobzarvs/kit/internal/external"
	"github.com/kobzarvs/kit/internal/ingest"
	"github.com/kobzarvs/kit/internal/keys"
	"github.com/kobzarvs/kit/internal/logger"
	"github.com/kobzarvs/kit/internal/overlay"
	"github.com/kobzarvs/kit/internal/refs"
	"github.com/kobzarvs/kit/internal/render"
	"github.com/kobzarvs/kit/internal/syntax"
	"github.com/kobzarvs/kit/internal/task"
)

const Welcome = "Welcome to the kit pager. Press '?' for shortcuts"

type Options struct {
	Config   config.Config
	Lexer    syntax.Lexer
	Resolver *refs.Resolver
	Tools    *external.Tools
	// Dir is where git objects are looked up.
	Dir    string
	Branch string
}

// Viewer holds all session state. Handlers run on the event loop; the
// scheduler's tasks only touch buffers, views and the status message.
type Viewer struct {
	cfg      config.Config
	sched    *task.Scheduler
	ingest   *ingest.Engine
	syntax   *syntax.Pipeline
	resolver *refs.Resolver
	tools    *external.Tools
	dir      string
	branch   string

	stack    *buffer.Stack
	overlays overlay.Stack

	normal   keys.Table
	general  keys.Table
	movement keys.Movement
	mode     keys.Mode
	// mode the last key was dispatched in
	lastMode keys.Mode

	prompt    rune
	cmd       []rune
	cmdCursor int

	search   searchState
	palette  render.Palette
	styles   styles
	tabWidth int

	mu         sync.Mutex
	status     string
	statusTag  string
	screen     tcell.Screen
	quit       bool
	print      bool
	resolveDly time.Duration
}

// New builds a viewer. Nothing is displayed until Run.
func New(opts Options) *Viewer {
	cfg := opts.Config
	v := &Viewer{
		cfg:        cfg,
		resolver:   opts.Resolver,
		tools:      opts.Tools,
		dir:        opts.Dir,
		branch:     opts.Branch,
		normal:     keys.NewTable(cfg.Keymap.Normal),
		general:    keys.NewTable(cfg.Keymap.General),
		movement:   keys.NewMovement(cfg.Keymap.Movement),
		tabWidth:   cfg.Pager.TabWidth,
		resolveDly: time.Duration(cfg.Pager.ResolveDelayMs) * time.Millisecond,
		status:     Welcome,
		statusTag:  render.TagBanner,
	}
	if v.resolver == nil {
		v.resolver = refs.NewResolver(opts.Dir)
	}
	if v.tools == nil {
		v.tools = external.New(cfg.Pager.Editor, cfg.Pager.Opener)
		v.tools.Run = v.runInTerminal
	}
	v.styles = newStyles(cfg.Theme)
	v.palette = v.styles.palette()

	interval := time.Duration(cfg.Pager.RedrawIntervalMs) * time.Millisecond
	v.sched = task.New(interval, v.wake)
	v.ingest = ingest.New(v.sched, cfg.Pager.BatchSize, v.styles.base, v.setError)
	v.syntax = syntax.NewPipeline(opts.Lexer, v.sched, cfg.Pager.ConfidenceThreshold, v.styles.base, v.SetStatus)
	return v
}

// Open pushes a new buffer fed by src and starts ingesting it. The first
// buffer opened becomes the root of the history.
func (v *Viewer) Open(name, filename string, src ingest.Source) (*buffer.Buffer, *task.Handle) {
	b := buffer.New(name, filename)
	if v.stack == nil {
		v.stack = buffer.NewStack(b)
	} else {
		v.stack.Push(b)
	}
	h := v.ingest.Start(b, src)
	logger.Debug("buffer opened", "name", name, "depth", v.stack.Len())
	return b, h
}

// OpenText pushes text as a new buffer.
func (v *Viewer) OpenText(name, filename, text string) *buffer.Buffer {
	b, _ := v.Open(name, filename, ingest.NewLinesSource(ingest.SplitText(text)))
	return b
}

// Current is the displayed buffer.
func (v *Viewer) Current() *buffer.Buffer {
	if v.stack == nil {
		return nil
	}
	return v.stack.Top()
}

func (v *Viewer) Mode() keys.Mode { return v.mode }

// SetStatus replaces the status message. Safe from any goroutine.
func (v *Viewer) SetStatus(msg string) {
	v.mu.Lock()
	v.status = msg
	v.statusTag = render.TagHighlight
	v.mu.Unlock()
}

// Status returns the current status message.
func (v *Viewer) Status() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

func (v *Viewer) setError(msg string) {
	v.mu.Lock()
	v.status = msg
	v.statusTag = render.TagDiffDel
	v.mu.Unlock()
}

// Done reports whether a quit was requested.
func (v *Viewer) Done() bool { return v.quit }

// PrintOnExit reports whether the last action asks for the buffer to be
// written to stdout after the screen is torn down.
func (v *Viewer) PrintOnExit() bool { return v.print }

// Run draws and dispatches events until the user quits or the screen is
// finalized. Background tasks are cancelled before it returns.
func (v *Viewer) Run(s tcell.Screen) {
	v.mu.Lock()
	v.screen = s
	v.mu.Unlock()
	defer v.Shutdown()

	v.Draw(s)
	s.Show()
	for !v.quit {
		ev := s.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			v.HandleKey(ev)
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventInterrupt:
			// background progress; redrawn below
		}
		if v.quit {
			return
		}
		v.Draw(s)
		s.Show()
	}
}

// Shutdown stops every background task.
func (v *Viewer) Shutdown() {
	v.sched.CancelAll()
	v.overlays.CloseAll()
	if v.stack != nil {
		v.stack.CloseAll()
	}
	v.mu.Lock()
	v.screen = nil
	v.mu.Unlock()
}

// Scheduler exposes the task scheduler so callers can wait on it.
func (v *Viewer) Scheduler() *task.Scheduler { return v.sched }

func (v *Viewer) wake() {
	v.mu.Lock()
	s := v.screen
	v.mu.Unlock()
	if s != nil {
		_ = s.PostEvent(tcell.NewEventInterrupt(nil))
	}
}

// runInTerminal gives the terminal to cmd for the duration of the call.
func (v *Viewer) runInTerminal(cmd *exec.Cmd) (err error) {
	v.mu.Lock()
	s := v.screen
	v.mu.Unlock()

	if tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
		defer tty.Close()
		cmd.Stdin, cmd.Stdout, cmd.Stderr = tty, tty, tty
	} else {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	}
	if s == nil {
		return cmd.Run()
	}
	if err := s.Suspend(); err != nil {
		return err
	}
	defer func() {
		if resumeErr := s.Resume(); resumeErr != nil && err == nil {
			err = resumeErr
		}
		s.Sync()
	}()
	return cmd.Run()
}
