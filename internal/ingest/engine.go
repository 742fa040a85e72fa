package ingest

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/kit/internal/buffer"
	"github.com/kobzarvs/kit/internal/escape"
	"github.com/kobzarvs/kit/internal/logger"
	"github.com/kobzarvs/kit/internal/task"
)

const DefaultBatchSize = 100

type Engine struct {
	sched   *task.Scheduler
	batch   int
	base    tcell.Style
	onError func(string)
}

// New builds an engine. onError, when set, receives a message for every
// read failure that cut an input short.
func New(sched *task.Scheduler, batch int, base tcell.Style, onError func(string)) *Engine {
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Engine{sched: sched, batch: batch, base: base, onError: onError}
}

// Start ingests src into buf, one batch per step. The buffer becomes
// ready after the first batch and complete when src is exhausted. The
// task is attached to buf and dies with it.
func (e *Engine) Start(buf *buffer.Buffer, src Source) *task.Handle {
	h := e.sched.Go("ingest "+buf.Name(), 0, func(ctx context.Context) (bool, error) {
		return e.step(ctx, buf, src)
	})
	buf.Attach(h)
	go func() {
		<-h.Done()
		if c, ok := src.(interface{ Close() }); ok {
			c.Close()
		}
	}()
	return h
}

func (e *Engine) step(ctx context.Context, buf *buffer.Buffer, src Source) (bool, error) {
	lines, eof, err := src.Next(ctx, e.batch)
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if len(lines) > 0 {
		buf.Append(lines)
		buf.Plain.Append(escape.Lines(lines, e.base)...)
		buf.MarkReady()
	}
	if err != nil {
		logger.Warn("input read failed", "buffer", buf.Name(), "error", err)
		buf.Finish()
		if e.onError != nil {
			e.onError(fmt.Sprintf("read error in %s: %v", buf.Name(), err))
		}
		return true, nil
	}
	if eof {
		buf.Finish()
		logger.Debug("input complete", "buffer", buf.Name(), "lines", buf.Stats().LineCount)
		return true, nil
	}
	return false, nil
}
