package render

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/google/go-cmp/cmp"
)

func lineTexts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text()
	}
	return out
}

func TestSplitLinesDistributesMultilineSpans(t *testing.T) {
	comment := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	spans := []Span{
		{Tag: "Keyword", Text: "func"},
		{Text: " f() {\n"},
		{Tag: "Comment", Style: comment, Text: "/* a\nb */"},
		{Text: "\n}\n"},
	}
	got := SplitLines(spans)
	want := []string{"func f() {", "/* a", "b */", "}"}
	if diff := cmp.Diff(want, lineTexts(got)); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	if got[1].Spans[0].Tag != "Comment" || got[2].Spans[0].Tag != "Comment" {
		t.Fatalf("comment style not carried across lines: %#v %#v", got[1], got[2])
	}
	if got[2].Spans[0].Style != comment {
		t.Fatalf("comment style lost on second line")
	}
}

func TestSplitLinesKeepsEmptyLines(t *testing.T) {
	got := SplitLines([]Span{{Text: "a\n\nb"}})
	want := []string{"a", "", "b"}
	if diff := cmp.Diff(want, lineTexts(got)); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestDrawClipsAndScrolls(t *testing.T) {
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	defer s.Fini()
	s.SetSize(6, 1)

	line := Line{Spans: []Span{{Text: "ab"}, {Tag: TagDiffAdd, Text: "cdefgh"}}}
	add := tcell.StyleDefault.Background(tcell.ColorGreen)
	Draw(s, 0, 0, 6, 1, 4, line, Palette{TagDiffAdd: add}, tcell.StyleDefault, nil)
	s.Show()

	cells, w, _ := s.GetContents()
	got := make([]rune, w)
	for i := 0; i < w; i++ {
		if len(cells[i].Runes) > 0 {
			got[i] = cells[i].Runes[0]
		}
	}
	if string(got) != "bcdefg" {
		t.Fatalf("row = %q, want %q", string(got), "bcdefg")
	}
	if cells[1].Style != add {
		t.Fatalf("palette style not applied to tagged span")
	}
}
