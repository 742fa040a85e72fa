// Package ingest streams input into a buffer in batches.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const maxLineBytes = 10 << 20

// Source yields lines in batches. Next returns at most max lines and
// reports eof once the source is exhausted; a batch may carry lines and
// eof together.
type Source interface {
	Next(ctx context.Context, max int) (lines []string, eof bool, err error)
}

type readResult struct {
	line string
	err  error
}

// ReaderSource reads lines from a stream. A goroutine owns the reader so
// that a slow producer never blocks a batch longer than one line.
type ReaderSource struct {
	ch   chan readResult
	stop chan struct{}
}

func NewReaderSource(r io.Reader) *ReaderSource {
	s := &ReaderSource{
		ch:   make(chan readResult, 1024),
		stop: make(chan struct{}),
	}
	go s.scan(r)
	return s
}

func (s *ReaderSource) scan(r io.Reader) {
	defer close(s.ch)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		select {
		case s.ch <- readResult{line: sc.Text()}:
		case <-s.stop:
			return
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			err = fmt.Errorf("line longer than %d MiB: %w", maxLineBytes>>20, err)
		}
		select {
		case s.ch <- readResult{err: err}:
		case <-s.stop:
		}
	}
}

// Next waits for the first line, then takes whatever else is already
// buffered up to max.
func (s *ReaderSource) Next(ctx context.Context, max int) ([]string, bool, error) {
	var lines []string
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r, ok := <-s.ch:
		if !ok {
			return nil, true, nil
		}
		if r.err != nil {
			return nil, true, r.err
		}
		lines = append(lines, r.line)
	}
	for len(lines) < max {
		select {
		case r, ok := <-s.ch:
			if !ok {
				return lines, true, nil
			}
			if r.err != nil {
				return lines, true, r.err
			}
			lines = append(lines, r.line)
		default:
			return lines, false, nil
		}
	}
	return lines, false, nil
}

// Close stops the reading goroutine. A read already blocked on the
// underlying stream returns when that stream does.
func (s *ReaderSource) Close() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// LinesSource serves an in-memory list of lines.
type LinesSource struct {
	lines []string
	pos   int
}

func NewLinesSource(lines []string) *LinesSource {
	return &LinesSource{lines: lines}
}

func (s *LinesSource) Next(ctx context.Context, max int) ([]string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	end := s.pos + max
	if end > len(s.lines) {
		end = len(s.lines)
	}
	out := s.lines[s.pos:end]
	s.pos = end
	return out, s.pos >= len(s.lines), nil
}

// SplitText breaks text into lines. A trailing newline does not produce an
// extra empty line.
func SplitText(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
