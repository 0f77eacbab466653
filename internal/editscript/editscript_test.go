package editscript

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/FocuswithJustin/Bookshelf/core/book"
	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
)

func fixture(t *testing.T) *book.Book {
	t.Helper()
	b := book.New("1", "书", "作者")
	b.SetChapters([]book.Chapter{
		{Title: "第一卷", Volume: book.LabelVolume, StartLine: 1, LineCount: 1},
		{Title: "第一章", Volume: "第一卷", StartLine: 2, LineCount: 5},
		{Title: "第二章", Volume: "第一卷", StartLine: 7, LineCount: 3},
		{Title: "第三章", Volume: "第一卷", StartLine: 10, LineCount: 2},
		{Title: "第二卷", Volume: book.LabelVolume, StartLine: 12, LineCount: 1},
		{Title: "第四章", Volume: "第二卷", StartLine: 13, LineCount: 4},
	})
	if err := b.MarkImported(); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestParse(t *testing.T) {
	src := `# fix the split chapter
merge 2..4
rename 5..9 "第二卷"

merge 12   # single ordinal
rename 3 "say \"hi\""
`
	s, err := ParseString(src)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	want := []Edit{
		{Kind: KindMerge, Start: 2, End: 4, Line: 2},
		{Kind: KindRename, Start: 5, End: 9, Label: "第二卷", Line: 3},
		{Kind: KindMerge, Start: 12, End: 12, Line: 5},
		{Kind: KindRename, Start: 3, End: 3, Label: `say "hi"`, Line: 6},
	}
	if !reflect.DeepEqual(s.Edits, want) {
		t.Errorf("edits = %+v\nwant    %+v", s.Edits, want)
	}
}

func TestParseEmpty(t *testing.T) {
	for _, src := range []string{"", "\n\n", "# only a comment\n"} {
		s, err := ParseString(src)
		if err != nil {
			t.Errorf("ParseString(%q) error = %v", src, err)
			continue
		}
		if len(s.Edits) != 0 {
			t.Errorf("ParseString(%q) = %d edits", src, len(s.Edits))
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"merge",
		"merge -1",
		"merge 1..",
		"rename 1..2",
		"rename 1 unquoted",
		`rename 1 "unterminated`,
		"split 1..2",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := Parse("fix.edits", strings.NewReader(src))
			var pe *bserrors.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse(%q) error = %v, want ParseError", src, err)
			}
			if pe.Path != "fix.edits" {
				t.Errorf("Path = %q", pe.Path)
			}
		})
	}
}

func TestEditString(t *testing.T) {
	tests := []struct {
		edit Edit
		want string
	}{
		{Edit{Kind: KindMerge, Start: 2, End: 4}, "merge 2..4"},
		{Edit{Kind: KindMerge, Start: 3, End: 3}, "merge 3"},
		{Edit{Kind: KindRename, Start: 1, End: 3, Label: "卷一"}, `rename 1..3 "卷一"`},
	}
	for _, tt := range tests {
		if got := tt.edit.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		s, err := ParseString(tt.edit.String())
		if err != nil {
			t.Fatalf("reparse %q: %v", tt.want, err)
		}
		got := s.Edits[0]
		if got.Kind != tt.edit.Kind || got.Start != tt.edit.Start || got.End != tt.edit.End || got.Label != tt.edit.Label {
			t.Errorf("reparse %q = %+v", tt.want, got)
		}
	}
}

func TestApply(t *testing.T) {
	b := fixture(t)
	s, err := ParseString("merge 1..3\nrename 5 \"终卷\"\n")
	if err != nil {
		t.Fatal(err)
	}
	if err := Apply(s, b); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if got := b.Chapters[1].LineCount; got != 10 {
		t.Errorf("merged LineCount = %d, want 10", got)
	}
	for _, i := range []int{2, 3} {
		if !b.Chapters[i].IsTombstone() {
			t.Errorf("chapter %d not tombstoned", i)
		}
	}
	if b.Chapters[5].Volume != "终卷" {
		t.Errorf("chapter 5 volume = %q", b.Chapters[5].Volume)
	}
	if b.Chapters[4].Title != "终卷" {
		t.Errorf("heading title = %q, want retitled", b.Chapters[4].Title)
	}
	if b.Status() != book.StatusNew {
		t.Errorf("status = %v, want New", b.Status())
	}
}

func TestApplyAtomic(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		target error
	}{
		{"out of bounds after valid edit", "merge 1..2\nmerge 3..9", bserrors.ErrMalformedRange},
		{"start merged away by earlier edit", "merge 1..3\nmerge 2..3", bserrors.ErrMalformedRange},
		{"inverted", "rename 1 \"x\"\nmerge 4..2", bserrors.ErrMalformedRange},
		{"role marker label", "merge 1..2\nrename 5 \"delete\"", bserrors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := fixture(t)
			before := append([]book.Chapter(nil), b.Chapters...)
			loaded := book.New("2", "t", "a")
			loaded.SetChapters(before)
			if err := loaded.MarkLoaded(); err != nil {
				t.Fatal(err)
			}

			s, err := ParseString(tt.src)
			if err != nil {
				t.Fatal(err)
			}
			for _, target := range []*book.Book{b, loaded} {
				status := target.Status()
				err = Apply(s, target)
				if !errors.Is(err, tt.target) {
					t.Fatalf("Apply() error = %v, want %v", err, tt.target)
				}
				if !reflect.DeepEqual(target.Chapters, before) {
					t.Error("book mutated by a rejected script")
				}
				if target.Status() != status {
					t.Errorf("status changed %v -> %v", status, target.Status())
				}
			}
		})
	}
}

func TestApplyReportsLine(t *testing.T) {
	b := fixture(t)
	s, err := ParseString("merge 1..2\n\nmerge 0..99\n")
	if err != nil {
		t.Fatal(err)
	}
	err = Apply(s, b)
	if err == nil || !strings.HasPrefix(err.Error(), "line 3: merge 0..99") {
		t.Errorf("Apply() error = %v", err)
	}
	var mr *bserrors.MalformedRangeError
	if !errors.As(err, &mr) || mr.End != 99 {
		t.Errorf("MalformedRangeError not exposed: %v", err)
	}
}

func TestApplyEmptyScript(t *testing.T) {
	b := fixture(t)
	if err := Apply(&Script{}, b); err != nil {
		t.Fatalf("Apply(empty) error = %v", err)
	}
	if b.Status() != book.StatusNew {
		t.Errorf("status = %v", b.Status())
	}
}
