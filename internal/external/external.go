// Package external runs the programs the pager hands work to: the text
// editor, the URL opener, shell pipes and the clipboard.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/google/shlex"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/kobzarvs/kit/internal/logger"
)

// NoDifference is the single line shown when a diff is empty.
const NoDifference = "no difference between clipboard and buffer!"

// Runner runs a command that needs the terminal. The pager suspends its
// screen around the call.
type Runner func(cmd *exec.Cmd) error

// Clipboard is the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error) {
	if clipboard.Unsupported {
		return "", errors.New("no clipboard utility found (install xsel, xclip or wl-clipboard)")
	}
	return clipboard.ReadAll()
}

func (systemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errors.New("no clipboard utility found (install xsel, xclip or wl-clipboard)")
	}
	return clipboard.WriteAll(text)
}

// Tools bundles the configured commands.
type Tools struct {
	Editor    string
	Opener    string
	Clipboard Clipboard
	Run       Runner
	// Start launches a detached command such as the URL opener.
	Start func(cmd *exec.Cmd) error
}

// New uses the system clipboard and runs commands directly.
func New(editor, opener string) *Tools {
	return &Tools{
		Editor:    editor,
		Opener:    opener,
		Clipboard: systemClipboard{},
		Run:       func(cmd *exec.Cmd) error { return cmd.Run() },
		Start:     func(cmd *exec.Cmd) error { return startDetached(cmd, nil) },
	}
}

// EditorCommand resolves the editor: the configured command, then
// $VISUAL, then $EDITOR, then vim.
func (t *Tools) EditorCommand() ([]string, error) {
	for _, c := range []string{t.Editor, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if strings.TrimSpace(c) == "" {
			continue
		}
		parts, err := SplitCommandLine(c)
		if err != nil {
			return nil, err
		}
		if len(parts) > 0 {
			return parts, nil
		}
	}
	return []string{"vim"}, nil
}

// EditText writes text to a temporary file, opens it in the editor and
// returns the file's content once the editor exits cleanly.
func (t *Tools) EditText(text string) (string, error) {
	f, err := os.CreateTemp("", "kit-*.txt")
	if err != nil {
		return "", err
	}
	name := f.Name()
	defer os.Remove(name)
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	argv, err := t.EditorCommand()
	if err != nil {
		return "", err
	}
	cmd := exec.Command(argv[0], append(argv[1:], name)...)
	if err := t.Run(cmd); err != nil {
		logger.Warn("editor failed", "editor", argv[0], "error", err)
		return "", fmt.Errorf("editor exited: %w", err)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EditFile opens path in the editor, at line when it is positive.
func (t *Tools) EditFile(path string, line int) error {
	argv, err := t.EditorCommand()
	if err != nil {
		return err
	}
	args := append([]string(nil), argv[1:]...)
	if line > 0 {
		args = append(args, "+"+strconv.Itoa(line))
	}
	args = append(args, path)
	if err := t.Run(exec.Command(argv[0], args...)); err != nil {
		return fmt.Errorf("editor exited: %w", err)
	}
	return nil
}

// OpenURL hands target to the platform opener without waiting for it.
func (t *Tools) OpenURL(target string) error {
	var argv []string
	if strings.TrimSpace(t.Opener) != "" {
		parts, err := SplitCommandLine(t.Opener)
		if err != nil {
			return err
		}
		argv = parts
	} else {
		switch runtime.GOOS {
		case "darwin":
			argv = []string{"open"}
		case "windows":
			argv = []string{"cmd", "/C", "start", ""}
		default:
			argv = []string{"xdg-open"}
		}
	}
	if len(argv) == 0 {
		return errors.New("opener command is empty")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return fmt.Errorf("opener not found: %s", argv[0])
	}
	cmd := exec.Command(argv[0], append(argv[1:], target)...)
	return t.Start(cmd)
}

// startDetached starts cmd and reaps it in the background. done, when
// set, receives the exit status.
func startDetached(cmd *exec.Cmd, done func(error)) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		err := cmd.Wait()
		if err != nil {
			logger.Debug("detached command failed", "command", cmd.Path, "error", err)
		}
		if done != nil {
			done(err)
		}
	}()
	return nil
}

// Pipe runs command with input on stdin and returns its stdout. The
// command line is split like a shell would, without running one.
func Pipe(ctx context.Context, command, input string) (string, error) {
	argv, err := SplitCommandLine(command)
	if err != nil {
		return "", err
	}
	if len(argv) == 0 {
		return "", errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.String(), fmt.Errorf("%s: %s", argv[0], firstLine(msg))
		}
		return stdout.String(), fmt.Errorf("%s: %w", argv[0], err)
	}
	return stdout.String(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Yank copies text to the clipboard.
func (t *Tools) Yank(text string) error {
	return t.Clipboard.WriteAll(text)
}

// DiffClipboard returns a unified diff of the clipboard (before) against
// text (after), or the NoDifference line. empty reports an empty clipboard.
func (t *Tools) DiffClipboard(text string) (diff string, empty bool, err error) {
	clip, err := t.Clipboard.ReadAll()
	if err != nil {
		return "", false, err
	}
	clip = strings.TrimSpace(clip)
	if clip == "" {
		return "", true, nil
	}
	return Diff(clip, text), false, nil
}

// Diff compares before and after line by line.
func Diff(before, after string) string {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(ensureNewline(before)),
		B:        difflib.SplitLines(ensureNewline(after)),
		FromFile: "clipboard",
		ToFile:   "buffer",
		Context:  3,
	}
	out, err := difflib.GetUnifiedDiffString(ud)
	if err != nil || out == "" {
		return NoDifference + "\n"
	}
	return out
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// SplitCommandLine splits a command the way a POSIX shell would, with
// quotes and backslash escapes, without expanding anything.
func SplitCommandLine(input string) ([]string, error) {
	parts, err := shlex.Split(input)
	if err != nil {
		return nil, fmt.Errorf("cannot split %q: %w", input, err)
	}
	return parts, nil
}
