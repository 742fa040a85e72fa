// Package refs finds openable references in buffer tokens: local files
// (with an optional :line suffix), web URLs and git object ids.
package refs

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/kobzarvs/kit/internal/gitinfo"
)

type Kind int

const (
	File Kind = iota
	URL
	Object
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case URL:
		return "url"
	case Object:
		return "object"
	}
	return "unknown"
}

// Title is the menu title for a search of this kind.
func (k Kind) Title() string {
	switch k {
	case File:
		return "Choose a file to open ('e' to open in editor)"
	case URL:
		return "Choose a URL to open"
	default:
		return "Choose a git object to open"
	}
}

// Empty is the placeholder entry shown when nothing was found.
func (k Kind) Empty() string {
	switch k {
	case File:
		return "No files found"
	case URL:
		return "No URLs found"
	default:
		return "No git objects found"
	}
}

// Candidate is one resolved reference.
type Candidate struct {
	Kind Kind
	// Text is the menu label, Value what selecting it acts on.
	Text  string
	Value string
	Path  string
	Line  int
	// SourceLine is the buffer line the token came from.
	SourceLine int
}

var (
	urlRe    = regexp.MustCompile("^\\W*((?:https?://|www\\.)[^\\s<>\"'`]+)")
	objectRe = regexp.MustCompile(`^[0-9a-f]{5,40}$`)
)

const trailingPunct = ".,;:!?)]}>'\""

// Resolver matches tokens against the three grammars. File existence and
// object validity are cached for the life of the process: files are not
// expected to appear or vanish, nor history to be rewritten, while the
// pager runs.
type Resolver struct {
	isFile       func(string) bool
	objectExists func(string) bool

	mu      sync.Mutex
	files   map[string]bool
	objects map[string]bool
}

// NewResolver checks files relative to the working directory and objects
// in the repository containing dir.
func NewResolver(dir string) *Resolver {
	return NewResolverWith(regularFile, func(obj string) bool {
		return gitinfo.ObjectExists(dir, obj)
	})
}

// NewResolverWith uses the given existence checks.
func NewResolverWith(isFile, objectExists func(string) bool) *Resolver {
	return &Resolver{
		isFile:       isFile,
		objectExists: objectExists,
		files:        make(map[string]bool),
		objects:      make(map[string]bool),
	}
}

func regularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (r *Resolver) fileExists(path string) bool {
	r.mu.Lock()
	ok, cached := r.files[path]
	r.mu.Unlock()
	if cached {
		return ok
	}
	ok = r.isFile(path)
	r.mu.Lock()
	r.files[path] = ok
	r.mu.Unlock()
	return ok
}

func (r *Resolver) validObject(id string) bool {
	r.mu.Lock()
	ok, cached := r.objects[id]
	r.mu.Unlock()
	if cached {
		return ok
	}
	ok = r.objectExists(id)
	r.mu.Lock()
	r.objects[id] = ok
	r.mu.Unlock()
	return ok
}

// Match tries one token. tried collects the paths already checked during
// the current run so overlapping tokens are not checked twice.
func (r *Resolver) Match(kind Kind, text string, tried map[string]bool) (Candidate, bool) {
	switch kind {
	case File:
		return r.matchFile(text, tried)
	case URL:
		return matchURL(text)
	case Object:
		return r.matchObject(text)
	}
	return Candidate{}, false
}

// matchFile first drops leading path segments ("a/b/c" -> "b/c" -> "c"),
// then peels trailing colon fields ("f.go:12:col" -> "f.go:12" -> "f.go"),
// keeping the last numeric field peeled as the line number.
func (r *Resolver) matchFile(text string, tried map[string]bool) (Candidate, bool) {
	for p := text; p != ""; {
		if !tried[p] {
			tried[p] = true
			if r.fileExists(p) {
				return fileCandidate(p, 0), true
			}
		}
		i := strings.IndexByte(p, '/')
		if i < 0 {
			break
		}
		p = p[i+1:]
	}

	line := 0
	for p := text; p != ""; {
		key := p + "\x00" + strconv.Itoa(line)
		if !tried[key] {
			tried[key] = true
			if r.fileExists(p) {
				return fileCandidate(p, line), true
			}
		}
		i := strings.LastIndexByte(p, ':')
		if i < 0 {
			break
		}
		n, err := strconv.Atoi(p[i+1:])
		if err != nil {
			n = 0
		}
		line = n
		p = p[:i]
	}
	return Candidate{}, false
}

func fileCandidate(path string, line int) Candidate {
	label := path
	if line > 0 {
		label = path + ":" + strconv.Itoa(line)
	}
	return Candidate{Kind: File, Text: label, Value: label, Path: path, Line: line}
}

func matchURL(text string) (Candidate, bool) {
	m := urlRe.FindStringSubmatch(text)
	if m == nil {
		return Candidate{}, false
	}
	u := strings.TrimRight(m[1], trailingPunct)
	www := strings.HasPrefix(u, "www.") && len(u) > len("www.")
	scheme := strings.Contains(u, "://") && !strings.HasSuffix(u, "://")
	if !www && !scheme {
		return Candidate{}, false
	}
	return Candidate{Kind: URL, Text: u, Value: u}, true
}

// URLTarget adds a scheme to bare www. addresses.
func URLTarget(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "http://" + u
}

func (r *Resolver) matchObject(text string) (Candidate, bool) {
	id := strings.Trim(text, trailingPunct+"(['")
	if !objectRe.MatchString(id) || !r.validObject(id) {
		return Candidate{}, false
	}
	label := id
	if len(label) > 10 {
		label = label[:10]
	}
	return Candidate{Kind: Object, Text: label, Value: id}, true
}
