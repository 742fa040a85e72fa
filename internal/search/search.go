// Package search finds regular expression matches in rendered lines.
package search

import (
	"fmt"
	"regexp"
)

const (
	MsgWrapping = "Pattern not found. Wrapping"
	MsgNotFound = "Pattern not found"
)

type Result struct {
	Index   int
	Found   bool
	Wrapped bool
}

// Status is the status line message for the result, empty on a direct hit.
func (r Result) Status() string {
	switch {
	case !r.Found:
		return MsgNotFound
	case r.Wrapped:
		return MsgWrapping
	}
	return ""
}

// Compile wraps regexp.Compile with a message fit for the status line.
func Compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return re, nil
}

// Find scans lines after from (before it when reverse) and wraps around
// once. from may be -1 to start at the top.
func Find(lines []string, re *regexp.Regexp, from int, reverse bool) Result {
	n := len(lines)
	if n == 0 || re == nil {
		return Result{Index: -1}
	}
	if reverse {
		for i := min(from-1, n-1); i >= 0; i-- {
			if re.MatchString(lines[i]) {
				return Result{Index: i, Found: true}
			}
		}
		for i := n - 1; i >= 0; i-- {
			if re.MatchString(lines[i]) {
				return Result{Index: i, Found: true, Wrapped: true}
			}
		}
		return Result{Index: -1}
	}
	for i := max(from+1, 0); i < n; i++ {
		if re.MatchString(lines[i]) {
			return Result{Index: i, Found: true}
		}
	}
	for i := 0; i < n; i++ {
		if re.MatchString(lines[i]) {
			return Result{Index: i, Found: true, Wrapped: true}
		}
	}
	return Result{Index: -1}
}
