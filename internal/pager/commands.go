package pager

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/kobzarvs/kit/internal/external"
	"github.com/kobzarvs/kit/internal/gitinfo"
	"github.com/kobzarvs/kit/internal/search"
	"github.com/kobzarvs/kit/internal/view"
)

// showObject fetches a git object's text.
var showObject = gitinfo.Show

type searchState struct {
	re *regexp.Regexp
}

func lineViewport(line int) view.Viewport {
	if line < 0 {
		line = 0
	}
	return view.Viewport{Top: line, Middle: line, Bottom: line}
}

// startSearch compiles pattern and jumps to the first match below the
// current position. An empty pattern repeats the last search.
func (v *Viewer) startSearch(pattern string) {
	if pattern != "" {
		re, err := search.Compile(pattern)
		if err != nil {
			v.setError(err.Error())
			return
		}
		v.search.re = re
	}
	v.searchNext(false)
}

// searchNext finds the next match in the displayed lines, marks it and
// centers it. Searching continues from the marked line while it is on
// screen, otherwise from the edge of the viewport. A miss leaves the
// viewport alone.
func (v *Viewer) searchNext(reverse bool) {
	if v.search.re == nil {
		v.SetStatus("no previous search")
		return
	}
	vw := v.Current().Active()
	vp := vw.Viewport()
	from := vw.Marked()
	if from < vp.Top || from > vp.Bottom {
		if reverse {
			from = vp.Bottom + 1
		} else {
			from = vp.Top - 1
		}
	}
	res := search.Find(vw.Texts(), v.search.re, from, reverse)
	if !res.Found {
		v.setError(res.Status())
		return
	}
	vw.Mark(res.Index)
	vw.CenterOn(res.Index)
	if msg := res.Status(); msg != "" {
		v.SetStatus(msg)
	} else {
		v.SetStatus("/" + v.search.re.String())
	}
}

// pipe feeds the buffer through a command and shows what it prints.
func (v *Viewer) pipe(command string) {
	if command == "" {
		return
	}
	out, err := external.Pipe(context.Background(), command, v.Current().Joined())
	if err != nil {
		v.setError(err.Error())
		return
	}
	v.OpenText("!"+command, "", out)
	v.SetStatus("!" + command)
}

// execCommand runs a ':' command line.
func (v *Viewer) execCommand(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	name, args := fields[0], fields[1:]
	if n, err := strconv.Atoi(name); err == nil {
		vw := v.Current().Active()
		vw.SetTop(n - 1)
		vw.Mark(n - 1)
		return
	}
	switch name {
	case "q", "q!", "quit":
		v.quitNow()
	case "syntax":
		if len(args) == 0 {
			v.SetStatus("usage: syntax <lexer>|off")
			return
		}
		buf := v.Current()
		if args[0] == "off" {
			v.SetStatus(v.syntax.Disable(buf))
			return
		}
		msg, _ := v.syntax.Apply(buf, strings.Join(args, " "))
		v.SetStatus(msg)
	case "w", "write":
		if len(args) == 0 {
			v.SetStatus("usage: w <file>")
			return
		}
		path := strings.Join(args, " ")
		buf := v.Current()
		if err := os.WriteFile(path, []byte(buf.Text()), 0o644); err != nil {
			v.setError(err.Error())
			return
		}
		v.SetStatus(fmt.Sprintf("wrote %d lines to %s", buf.Stats().LineCount, path))
	default:
		v.setError("unknown command: " + name)
	}
}
