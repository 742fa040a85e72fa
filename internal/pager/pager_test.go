package pager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/kit/internal/buffer"
	"github.com/kobzarvs/kit/internal/config"
	"github.com/kobzarvs/kit/internal/external"
	"github.com/kobzarvs/kit/internal/ingest"
	"github.com/kobzarvs/kit/internal/keys"
	"github.com/kobzarvs/kit/internal/refs"
	"github.com/kobzarvs/kit/internal/search"
	"github.com/kobzarvs/kit/internal/syntax"
	"github.com/kobzarvs/kit/internal/task"
)

type plainLexer struct{}

func (plainLexer) Highlight(ctx context.Context, text, filename string) (syntax.Result, error) {
	return syntax.Result{Language: "text", Confidence: 1, Forced: true}, nil
}

func (plainLexer) HighlightAs(ctx context.Context, text, language string) (syntax.Result, error) {
	return syntax.Result{Language: language, Confidence: 1, Forced: true}, nil
}

func (plainLexer) LexerFor(filename string) (string, bool) { return "", false }

type memClipboard struct {
	text string
	err  error
}

func (c *memClipboard) ReadAll() (string, error) { return c.text, c.err }

func (c *memClipboard) WriteAll(text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

// fixture is a viewer drawn on a 40x10 simulated screen.
type fixture struct {
	v       *Viewer
	s       tcell.SimulationScreen
	clip    *memClipboard
	started [][]string
	ran     [][]string
	// editorEdit rewrites the file the editor was given
	editorEdit func(string) string
	files      map[string]bool
}

func numbered(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	return lines
}

func newFixture(t *testing.T, lines []string) *fixture {
	t.Helper()
	f := &fixture{clip: &memClipboard{}, files: map[string]bool{}}
	tools := &external.Tools{
		Editor:    "fake-editor",
		Opener:    "true",
		Clipboard: f.clip,
		Run: func(cmd *exec.Cmd) error {
			f.ran = append(f.ran, cmd.Args)
			if f.editorEdit != nil {
				path := cmd.Args[len(cmd.Args)-1]
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				return os.WriteFile(path, []byte(f.editorEdit(string(data))), 0o600)
			}
			return nil
		},
		Start: func(cmd *exec.Cmd) error {
			f.started = append(f.started, cmd.Args)
			return nil
		},
	}
	resolver := refs.NewResolverWith(
		func(p string) bool { return f.files[p] },
		func(string) bool { return false },
	)
	cfg := config.Default()
	cfg.Pager.ResolveDelayMs = 0
	f.v = New(Options{Config: cfg, Lexer: plainLexer{}, Resolver: resolver, Tools: tools})
	t.Cleanup(f.v.Shutdown)

	_, h := f.v.Open("stdin", "", ingest.NewLinesSource(lines))
	waitHandle(t, h)

	f.s = tcell.NewSimulationScreen("UTF-8")
	if err := f.s.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	t.Cleanup(f.s.Fini)
	f.s.SetSize(40, 10)
	f.draw()
	return f
}

func waitHandle(t *testing.T, h *task.Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("task %s did not finish", h.Name())
	}
}

func waitComplete(t *testing.T, b *buffer.Buffer) {
	t.Helper()
	select {
	case <-b.Completed():
	case <-time.After(5 * time.Second):
		t.Fatalf("buffer %s never completed", b.Name())
	}
}

// waitOverlay waits for the resolver feeding the top overlay.
func (f *fixture) waitOverlay(t *testing.T) {
	t.Helper()
	top := f.v.overlays.Top()
	if top == nil {
		t.Fatalf("no overlay open")
	}
	h, ok := top.Task.(*task.Handle)
	if !ok {
		t.Fatalf("overlay %s has no task", top.Name)
	}
	waitHandle(t, h)
}

func (f *fixture) draw() {
	f.v.Draw(f.s)
	f.s.Show()
}

func (f *fixture) typeText(text string) {
	for _, r := range text {
		f.v.HandleKey(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone))
		f.draw()
	}
}

func (f *fixture) press(k tcell.Key) {
	f.v.HandleKey(tcell.NewEventKey(k, 0, tcell.ModNone))
	f.draw()
}

func (f *fixture) row(y int) string {
	cells, w, _ := f.s.GetContents()
	var b strings.Builder
	for x := 0; x < w; x++ {
		c := cells[y*w+x]
		if len(c.Runes) == 0 {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(c.Runes[0])
	}
	return strings.TrimRight(b.String(), " ")
}

func TestWelcomeAndPosition(t *testing.T) {
	f := newFixture(t, numbered(100))
	status := f.row(9)
	if !strings.HasPrefix(status, "Welcome") {
		t.Fatalf("status = %q, want welcome banner", status)
	}
	if !strings.HasSuffix(status, "9/100 (0%)") {
		t.Fatalf("status = %q, want position 9/100 (0%%)", status)
	}
	if got := f.row(0); got != "line 0" {
		t.Fatalf("row 0 = %q, want %q", got, "line 0")
	}

	f.typeText("G")
	if status := f.row(9); !strings.HasSuffix(status, "100/100 (100%)") {
		t.Fatalf("status = %q, want 100/100 (100%%)", status)
	}
	if got := f.row(8); got != "line 99" {
		t.Fatalf("last row = %q, want %q", got, "line 99")
	}
}

func TestGeneralModeRevertsOnAnyKey(t *testing.T) {
	f := newFixture(t, numbered(100))
	f.typeText("g")
	if f.v.Mode() != keys.General {
		t.Fatalf("mode = %v, want general", f.v.Mode())
	}
	f.typeText("x")
	if f.v.Mode() != keys.Normal {
		t.Fatalf("mode = %v, want normal after unbound key", f.v.Mode())
	}

	f.typeText("G")
	f.typeText("gg")
	if top := f.v.Current().Active().Viewport().Top; top != 0 {
		t.Fatalf("top = %d, want 0 after gg", top)
	}
	if f.v.Mode() != keys.Normal {
		t.Fatalf("mode = %v, want normal", f.v.Mode())
	}
}

func TestMovementKeys(t *testing.T) {
	f := newFixture(t, numbered(100))
	f.typeText("jjj")
	if top := f.v.Current().Active().Viewport().Top; top != 3 {
		t.Fatalf("top = %d, want 3", top)
	}
	f.typeText("k")
	f.press(tcell.KeyPgDn)
	if top := f.v.Current().Active().Viewport().Top; top != 10 {
		t.Fatalf("top = %d, want 10", top)
	}
	f.press(tcell.KeyHome)
	if top := f.v.Current().Active().Viewport().Top; top != 0 {
		t.Fatalf("top = %d, want 0", top)
	}
}

func TestGotoLineCommand(t *testing.T) {
	f := newFixture(t, numbered(100))
	f.typeText(":")
	if f.v.Mode() != keys.CommandLine {
		t.Fatalf("mode = %v, want command line", f.v.Mode())
	}
	f.typeText("50")
	if got := f.row(9); got != ":50" {
		t.Fatalf("command row = %q, want %q", got, ":50")
	}
	f.press(tcell.KeyEnter)
	vw := f.v.Current().Active()
	if top := vw.Viewport().Top; top != 49 {
		t.Fatalf("top = %d, want 49", top)
	}
	if vw.Marked() != 49 {
		t.Fatalf("marked = %d, want 49", vw.Marked())
	}
	if f.v.Mode() != keys.Normal {
		t.Fatalf("mode = %v, want normal", f.v.Mode())
	}
}

func TestBackspaceOnEmptyPromptCancels(t *testing.T) {
	f := newFixture(t, numbered(5))
	f.typeText("/a")
	f.press(tcell.KeyBackspace)
	if f.v.Mode() != keys.CommandLine {
		t.Fatalf("mode = %v, want command line", f.v.Mode())
	}
	f.press(tcell.KeyBackspace)
	if f.v.Mode() != keys.Normal {
		t.Fatalf("mode = %v, want normal", f.v.Mode())
	}
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t, numbered(5))
	f.typeText(":bogus")
	f.press(tcell.KeyEnter)
	if got := f.v.Status(); got != "unknown command: bogus" {
		t.Fatalf("status = %q", got)
	}
}

func TestSearchWrapsAndMissKeepsViewport(t *testing.T) {
	lines := numbered(100)
	lines[3] = "the needle"
	f := newFixture(t, lines)
	f.typeText("G")

	f.typeText("/needle")
	f.press(tcell.KeyEnter)
	vw := f.v.Current().Active()
	if vw.Marked() != 3 {
		t.Fatalf("marked = %d, want 3", vw.Marked())
	}
	if got := f.v.Status(); got != search.MsgWrapping {
		t.Fatalf("status = %q, want %q", got, search.MsgWrapping)
	}

	f.typeText("G")
	before := vw.Viewport()
	f.typeText("/absent")
	f.press(tcell.KeyEnter)
	if got := f.v.Status(); got != search.MsgNotFound {
		t.Fatalf("status = %q, want %q", got, search.MsgNotFound)
	}
	if after := vw.Viewport(); after != before {
		t.Fatalf("viewport moved from %+v to %+v", before, after)
	}
}

func TestSearchNextContinuesFromMark(t *testing.T) {
	lines := numbered(100)
	lines[2] = "x needle"
	lines[5] = "y needle"
	f := newFixture(t, lines)
	f.typeText("/needle")
	f.press(tcell.KeyEnter)
	vw := f.v.Current().Active()
	if vw.Marked() != 2 {
		t.Fatalf("marked = %d, want 2", vw.Marked())
	}
	f.typeText("n")
	if vw.Marked() != 5 {
		t.Fatalf("marked = %d, want 5", vw.Marked())
	}
	f.typeText("N")
	if vw.Marked() != 2 {
		t.Fatalf("marked = %d, want 2", vw.Marked())
	}
}

func TestURLMenuOpensSelection(t *testing.T) {
	lines := numbered(20)
	lines[4] = "docs at https://example.com/guide."
	f := newFixture(t, lines)
	f.typeText("u")
	f.waitOverlay(t)
	f.draw()

	f.press(tcell.KeyEnter)
	if f.v.overlays.Len() != 0 {
		t.Fatalf("overlay still open")
	}
	if len(f.started) != 1 || f.started[0][len(f.started[0])-1] != "https://example.com/guide" {
		t.Fatalf("started = %v", f.started)
	}
	if got := f.v.Status(); got != "opening https://example.com/guide" {
		t.Fatalf("status = %q", got)
	}
}

func TestReferenceFocusIgnoresSearchMark(t *testing.T) {
	lines := numbered(20)
	lines[0] = "see https://a.example"
	lines[6] = "see https://b.example"
	f := newFixture(t, lines)
	f.v.Current().Active().Mark(0)
	f.typeText("u")
	f.waitOverlay(t)

	c, ok := f.v.focusedCandidate()
	if !ok || c.SourceLine != 6 {
		t.Fatalf("focused = %+v, want the candidate nearest the viewport middle", c)
	}
}

func TestOverlayCloseRestoresStatusThenQuits(t *testing.T) {
	f := newFixture(t, numbered(20))
	f.typeText("u")
	f.waitOverlay(t)
	f.draw()
	if !strings.Contains(screen(f), refs.URL.Empty()) {
		t.Fatalf("placeholder missing:\n%s", screen(f))
	}
	f.typeText("q")
	if f.v.overlays.Len() != 0 || f.v.Done() {
		t.Fatalf("q should close the overlay only")
	}
	if got := f.v.Status(); got != Welcome {
		t.Fatalf("status = %q, want welcome restored", got)
	}
	f.typeText("q")
	if !f.v.Done() {
		t.Fatalf("q on the root buffer should quit")
	}
}

func TestMissingFileKeepsMenuOpen(t *testing.T) {
	lines := []string{"see gone.txt:3 for details"}
	f := newFixture(t, lines)
	f.files["gone.txt"] = true
	f.typeText("f")
	f.waitOverlay(t)

	f.press(tcell.KeyEnter)
	if f.v.overlays.Len() != 1 {
		t.Fatalf("menu closed after failed open")
	}
	if got := f.v.Status(); !strings.HasPrefix(got, "cannot open gone.txt") {
		t.Fatalf("status = %q", got)
	}
}

func TestFileMenuOpensAtLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte(strings.Join(numbered(60), "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := newFixture(t, []string{"look at " + path + ":30"})
	f.files[path] = true
	f.typeText("f")
	f.waitOverlay(t)
	f.press(tcell.KeyEnter)

	buf := f.v.Current()
	if buf.Name() != path {
		t.Fatalf("current = %q, want %q", buf.Name(), path)
	}
	waitComplete(t, buf)
	f.draw()
	if got := f.row(0); got != "line 29" {
		t.Fatalf("row 0 = %q, want %q", got, "line 29")
	}
	if status := f.row(9); !strings.HasSuffix(status, " =") {
		t.Fatalf("status = %q, want history marker", status)
	}
}

func TestEditPushesAndPopRestores(t *testing.T) {
	f := newFixture(t, numbered(100))
	f.editorEdit = strings.ToUpper
	f.typeText("jjjj")
	f.typeText("e")
	if f.v.stack.Len() != 2 {
		t.Fatalf("stack depth = %d, want 2", f.v.stack.Len())
	}
	if len(f.ran) != 1 || f.ran[0][0] != "fake-editor" {
		t.Fatalf("ran = %v", f.ran)
	}
	edited := f.v.Current()
	waitComplete(t, edited)
	f.draw()
	if got := f.row(0); got != "LINE 0" {
		t.Fatalf("row 0 = %q, want %q", got, "LINE 0")
	}

	f.press(tcell.KeyBackspace)
	if f.v.stack.Len() != 1 {
		t.Fatalf("stack depth = %d, want 1", f.v.stack.Len())
	}
	if !edited.Closed() {
		t.Fatalf("popped buffer not closed")
	}
	if top := f.v.Current().Active().Viewport().Top; top != 4 {
		t.Fatalf("top = %d, want 4", top)
	}
}

func TestEditorFailureKeepsBuffer(t *testing.T) {
	f := newFixture(t, numbered(5))
	f.v.tools.Run = func(*exec.Cmd) error { return errors.New("exit status 1") }
	f.typeText("e")
	if f.v.stack.Len() != 1 {
		t.Fatalf("stack depth = %d, want 1", f.v.stack.Len())
	}
	if got := f.v.Status(); !strings.HasPrefix(got, "editor exited") {
		t.Fatalf("status = %q", got)
	}
}

func TestPrintRequestsExit(t *testing.T) {
	f := newFixture(t, numbered(5))
	f.typeText("p")
	if !f.v.Done() || !f.v.PrintOnExit() {
		t.Fatalf("done=%v print=%v", f.v.Done(), f.v.PrintOnExit())
	}
}

func TestYankAndDiffClipboard(t *testing.T) {
	f := newFixture(t, []string{"alpha", "beta"})
	f.typeText("d")
	if got := f.v.Status(); got != "no diff, to speak of" {
		t.Fatalf("status = %q", got)
	}

	f.typeText("y")
	if f.clip.text != "alpha\nbeta\n" {
		t.Fatalf("clipboard = %q", f.clip.text)
	}
	f.typeText("d")
	if f.v.stack.Len() != 2 {
		t.Fatalf("stack depth = %d, want 2", f.v.stack.Len())
	}
	waitComplete(t, f.v.Current())
	if text := f.v.Current().Text(); text != external.NoDifference+"\n" {
		t.Fatalf("diff = %q", text)
	}

	f.press(tcell.KeyBackspace)
	f.clip.text = "alpha\ngamma\n"
	f.typeText("d")
	waitComplete(t, f.v.Current())
	diff := f.v.Current().Text()
	for _, want := range []string{"--- clipboard", "+++ buffer", "-gamma", "+beta"} {
		if !strings.Contains(diff, want) {
			t.Fatalf("diff missing %q:\n%s", want, diff)
		}
	}
}

func TestClipboardErrorsAreReported(t *testing.T) {
	f := newFixture(t, []string{"alpha"})
	f.clip.err = errors.New("no clipboard utility")
	f.typeText("y")
	if got := f.v.Status(); !strings.Contains(got, "no clipboard utility") {
		t.Fatalf("status = %q", got)
	}
}

func TestHelpListsActiveTable(t *testing.T) {
	f := newFixture(t, numbered(5))
	f.typeText("?")
	top := f.v.overlays.Top()
	if top == nil || top.Name != "help" {
		t.Fatalf("help overlay not open")
	}
	if !strings.Contains(screen(f), "Keys") {
		t.Fatalf("help title missing:\n%s", screen(f))
	}
	f.press(tcell.KeyEscape)

	f.typeText("g?")
	if !strings.Contains(screen(f), "General keys") {
		t.Fatalf("general help missing:\n%s", screen(f))
	}
}

func TestWriteCommand(t *testing.T) {
	f := newFixture(t, []string{"one", "two"})
	path := filepath.Join(t.TempDir(), "out.txt")
	f.typeText(":w " + path)
	f.press(tcell.KeyEnter)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "one\ntwo\n" {
		t.Fatalf("written = %q", data)
	}
}

func TestPipeShowsOutput(t *testing.T) {
	if _, err := exec.LookPath("tr"); err != nil {
		t.Skip("tr not available")
	}
	f := newFixture(t, []string{"one", "two"})
	f.typeText("!tr a-z A-Z")
	f.press(tcell.KeyEnter)
	buf := f.v.Current()
	waitComplete(t, buf)
	if got := buf.Text(); got != "ONE\nTWO\n" {
		t.Fatalf("piped = %q", got)
	}
}

func TestReadErrorShownOnStatus(t *testing.T) {
	f := newFixture(t, numbered(3))
	_, h := f.v.Open("broken", "", ingest.NewReaderSource(iotest.ErrReader(errors.New("disk gone"))))
	waitHandle(t, h)
	if got, want := f.v.Status(), "read error in broken: disk gone"; got != want {
		t.Fatalf("status = %q, want %q", got, want)
	}
}

func TestPopOnRootReportsStatus(t *testing.T) {
	f := newFixture(t, numbered(3))
	f.press(tcell.KeyBackspace)
	if got := f.v.Status(); got != "no previous buffer" {
		t.Fatalf("status = %q", got)
	}
}

func screen(f *fixture) string {
	_, _, h := f.s.GetContents()
	rows := make([]string, h)
	for y := range rows {
		rows[y] = f.row(y)
	}
	return strings.Join(rows, "\n")
}
