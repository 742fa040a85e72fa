package refs

import (
	"context"
	"time"

	"github.com/kobzarvs/kit/internal/buffer"
	"github.com/kobzarvs/kit/internal/logger"
	"github.com/kobzarvs/kit/internal/task"
)

// tokens examined per step when nothing matches
const groupSize = 100

// Sink receives results as they are found.
type Sink interface {
	// Add appends a candidate and returns its index.
	Add(c Candidate) int
	Focus(index int)
	// Placeholder is called once, at the end, when nothing was found.
	Placeholder(text string)
}

type run struct {
	r      *Resolver
	kind   Kind
	tokens []buffer.Token
	focus  int
	sink   Sink

	pos     int
	seen    map[string]bool
	tried   map[string]bool
	values  map[string]bool
	found   int
	closest int
	best    int
	focused bool
}

// Start resolves tokens in document order, one token group per step.
// Each candidate goes to sink as soon as it is found. The candidate
// nearest to focusLine gets focus once a farther one shows up after it,
// or at the end if that never happens.
func (r *Resolver) Start(sched *task.Scheduler, kind Kind, tokens []buffer.Token, focusLine int, sink Sink, delay time.Duration) *task.Handle {
	w := &run{
		r:       r,
		kind:    kind,
		tokens:  tokens,
		focus:   focusLine,
		sink:    sink,
		seen:    make(map[string]bool),
		tried:   make(map[string]bool),
		values:  make(map[string]bool),
		closest: -1,
		best:    -1,
	}
	return sched.Go("resolve "+kind.String(), delay, w.step)
}

func (w *run) step(ctx context.Context) (bool, error) {
	for n := 0; n < groupSize && w.pos < len(w.tokens); n++ {
		tok := w.tokens[w.pos]
		w.pos++
		if w.seen[tok.Text] {
			continue
		}
		w.seen[tok.Text] = true

		c, ok := w.r.Match(w.kind, tok.Text, w.tried)
		if !ok || w.values[c.Value] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		w.values[c.Value] = true
		c.SourceLine = tok.Line
		w.add(c)
		return false, nil
	}
	if w.pos < len(w.tokens) {
		return false, nil
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if w.found == 0 {
		w.sink.Placeholder(w.kind.Empty())
	} else if !w.focused {
		w.sink.Focus(w.closest)
	}
	logger.Debug("references resolved", "kind", w.kind.String(), "found", w.found)
	return true, nil
}

func (w *run) add(c Candidate) {
	idx := w.sink.Add(c)
	w.found++
	dist := w.focus - c.SourceLine
	if dist < 0 {
		dist = -dist
	}
	switch {
	case w.best < 0 || dist < w.best:
		w.best = dist
		w.closest = idx
	case dist > w.best && !w.focused:
		w.sink.Focus(w.closest)
		w.focused = true
	}
}
