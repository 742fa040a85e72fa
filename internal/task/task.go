// Package task runs long background work as a sequence of short steps.
//
// Each logical task (ingesting a stream, resolving references,
// highlighting a diff) is one goroutine that calls its step function
// until the step reports completion. Steps of the same task never run
// concurrently, and cancellation is observed between steps only.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kobzarvs/kit/internal/logger"
)

// maxPanics is how many consecutive panicking steps a task survives.
const maxPanics = 3

// Step processes one bounded chunk of work. It returns done once nothing
// is left. A step that panics loses its chunk; the task moves on to the
// next one.
type Step func(ctx context.Context) (done bool, err error)

type Scheduler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	quitting atomic.Bool
	wg       sync.WaitGroup
	redraw   *Debouncer
}

// New creates a scheduler whose redraw requests call notify at most once
// per interval.
func New(interval time.Duration, notify func()) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if notify == nil {
		notify = func() {}
	}
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		redraw: NewDebouncer(interval, notify),
	}
}

// Handle controls one running task.
type Handle struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *Handle) Name() string { return h.name }

// Cancel asks the task to stop. The step in flight finishes; no further
// step starts.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed when the task goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) Wait() { <-h.done }

// Go starts a task. delay is slept between steps, giving the event loop
// room when a task produces results faster than they can be drawn.
func (s *Scheduler) Go(name string, delay time.Duration, step Step) *Handle {
	ctx, cancel := context.WithCancel(s.ctx)
	h := &Handle{name: name, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	if s.Quitting() {
		cancel()
		close(h.done)
		return h
	}
	s.wg.Add(1)
	go s.run(h, delay, step)
	return h
}

func (s *Scheduler) run(h *Handle, delay time.Duration, step Step) {
	defer s.wg.Done()
	defer close(h.done)
	defer h.cancel()

	panics := 0
	for {
		if s.Quitting() || h.ctx.Err() != nil {
			return
		}
		done, err := s.runStep(h, step)
		var p *panicError
		if errors.As(err, &p) {
			panics++
			logger.Error("task step panicked", "task", h.name, "panic", p.value, "count", panics)
			if panics >= maxPanics {
				return
			}
			continue
		}
		panics = 0
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warn("task failed", "task", h.name, "error", err)
			}
			return
		}
		s.RequestRedraw()
		if done {
			logger.Debug("task finished", "task", h.name)
			return
		}
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-h.ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}
}

type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

func (s *Scheduler) runStep(h *Handle, step Step) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			done = false
			err = &panicError{value: r}
		}
	}()
	return step(h.ctx)
}

// RequestRedraw may be called from any goroutine at any rate.
func (s *Scheduler) RequestRedraw() {
	if s.Quitting() {
		return
	}
	s.redraw.Trigger()
}

// CancelAll sets the quitting flag and cancels every task.
func (s *Scheduler) CancelAll() {
	s.quitting.Store(true)
	s.cancel()
	s.redraw.Stop()
}

func (s *Scheduler) Quitting() bool {
	return s.quitting.Load()
}

// Wait blocks until every task has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
