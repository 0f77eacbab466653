// Package editscript parses and applies textual correction scripts:
//
//	# comment
//	merge 2..4
//	rename 5..9 "第二卷"
//	merge 12
//
// Spans are inclusive chapter ordinals. A script applies atomically: if any
// edit is rejected the book is left exactly as it was.
package editscript

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/Bookshelf/core/book"
	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
)

//nolint:govet // participle grammar tags are not standard struct tags
type scriptGrammar struct {
	Commands []*commandGrammar `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type commandGrammar struct {
	Pos    lexer.Position
	Merge  *spanGrammar   `  "merge" @@`
	Rename *renameGrammar `| "rename" @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type spanGrammar struct {
	Start int  `@Int`
	End   *int `( ".." @Int )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type renameGrammar struct {
	Span  spanGrammar `@@`
	Label string      `@String`
}

var scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"(\\.|[^"\\\n])*"`},
	{Name: "Keyword", Pattern: `[a-z]+`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Range", Pattern: `\.\.`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Newline", Pattern: `\n+`},
})

var scriptParser = participle.MustBuild[scriptGrammar](
	participle.Lexer(scriptLexer),
	participle.Unquote("String"),
	participle.Elide("Comment", "Whitespace", "Newline"),
)

// Kind names an edit.
type Kind string

const (
	KindMerge  Kind = "merge"
	KindRename Kind = "rename"
)

// Edit is one parsed command.
type Edit struct {
	Kind  Kind
	Start int
	End   int
	Label string // rename only
	Line  int    // source line, for error messages
}

func (e Edit) String() string {
	span := strconv.Itoa(e.Start)
	if e.End != e.Start {
		span += ".." + strconv.Itoa(e.End)
	}
	if e.Kind == KindRename {
		return fmt.Sprintf("rename %s %s", span, strconv.Quote(e.Label))
	}
	return "merge " + span
}

// Script is an ordered list of edits.
type Script struct {
	Name  string
	Edits []Edit
}

// Parse reads a script from r. name is used in error messages.
func Parse(name string, r io.Reader) (*Script, error) {
	parsed, err := scriptParser.Parse(name, r)
	if err != nil {
		return nil, &bserrors.ParseError{Format: "edit script", Path: name, Message: err.Error(), Err: err}
	}
	return fromGrammar(name, parsed), nil
}

// ParseString parses a script held in memory.
func ParseString(src string) (*Script, error) {
	return Parse("", strings.NewReader(src))
}

func fromGrammar(name string, g *scriptGrammar) *Script {
	s := &Script{Name: name}
	for _, cmd := range g.Commands {
		var e Edit
		var span spanGrammar
		switch {
		case cmd.Merge != nil:
			e.Kind = KindMerge
			span = *cmd.Merge
		case cmd.Rename != nil:
			e.Kind = KindRename
			span = cmd.Rename.Span
			e.Label = cmd.Rename.Label
		}
		e.Start = span.Start
		e.End = span.Start
		if span.End != nil {
			e.End = *span.End
		}
		e.Line = cmd.Pos.Line
		s.Edits = append(s.Edits, e)
	}
	return s
}

// Apply runs every edit against a copy of b in order and commits the copy
// only when all of them succeed. The returned error names the failing edit
// and wraps the underlying *errors.MalformedRangeError or
// *errors.ValidationError.
func Apply(s *Script, b *book.Book) error {
	if len(s.Edits) == 0 {
		return nil
	}

	work := *b
	work.Chapters = append([]book.Chapter(nil), b.Chapters...)

	for _, e := range s.Edits {
		var err error
		switch e.Kind {
		case KindMerge:
			err = work.MergeRange(e.Start, e.End)
		case KindRename:
			err = work.RenameRange(e.Start, e.End, e.Label)
		default:
			err = bserrors.NewUnsupported("edit", string(e.Kind))
		}
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", e.Line, e, err)
		}
	}

	*b = work
	return nil
}
