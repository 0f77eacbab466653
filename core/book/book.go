// Package book holds the chapter hierarchy model shared by every pipeline
// stage: chapter records kept in an ordinal-indexed arena, the book that owns
// them, its save status, display views, and the merge/rename corrections.
package book

import (
	"fmt"

	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
)

// Role markers stored in Chapter.Volume.
const (
	// LabelVolume marks a record that is itself a volume heading.
	LabelVolume = "volumn"
	// LabelDeleted marks a tombstone left behind by a merge.
	LabelDeleted = "delete"
	// DefaultVolume is the label carried by body chapters before any
	// volume heading has been seen.
	DefaultVolume = "正文"
)

// Chapter is one segmented unit of text.
type Chapter struct {
	// Title is the heading line as it appeared in the source.
	Title string `json:"title" yaml:"title"`

	// Volume is the containing volume label, or LabelVolume / LabelDeleted
	// when the record plays a structural role.
	Volume string `json:"volume" yaml:"volume"`

	// Prefix is the heading prefix that matched the title, if any. It is
	// informational and does not affect volume grouping.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Source identifies where the text lives (a file path or catalog entry).
	Source string `json:"source" yaml:"source"`

	// StartLine is the 1-based line number of the heading line. It is -1
	// for synthesized volume headings.
	StartLine int `json:"start_line" yaml:"start_line"`

	// LineCount is the extent beginning at the heading line with the
	// trailing blank run excluded.
	LineCount int `json:"line_count" yaml:"line_count"`

	// Ordinal is the creation index. It never changes after segmentation.
	Ordinal int `json:"ordinal" yaml:"ordinal"`
}

// IsHeading reports whether the record is a volume heading.
func (c Chapter) IsHeading() bool {
	return c.Volume == LabelVolume
}

// IsTombstone reports whether the record was merged away.
func (c Chapter) IsTombstone() bool {
	return c.Volume == LabelDeleted
}

// IsSynthesized reports whether the record has no backing text.
func (c Chapter) IsSynthesized() bool {
	return c.StartLine == -1
}

// BodyRange returns the 0-based half-open line range of the body text (the
// lines after the heading inside the extent). Callers index the source line
// slice with it.
func (c Chapter) BodyRange() (from, to int) {
	if c.StartLine < 1 || c.LineCount < 1 {
		return 0, 0
	}
	return c.StartLine, c.StartLine + c.LineCount - 1
}

// Book is the caller-owned record the engine fills with chapters.
type Book struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Author      string   `json:"author" yaml:"author"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Cover       string   `json:"cover,omitempty" yaml:"cover,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Source      string   `json:"source,omitempty" yaml:"source,omitempty"`

	// Chapters is the arena; a record's index equals its Ordinal.
	Chapters []Chapter `json:"chapters" yaml:"chapters"`

	status Status
}

// New returns a book with the given identity and no chapters.
func New(id, title, author string) *Book {
	return &Book{ID: id, Title: title, Author: author}
}

// Len returns the number of records in the arena, tombstones included.
func (b *Book) Len() int {
	return len(b.Chapters)
}

// Chapter returns the record with the given ordinal.
func (b *Book) Chapter(ordinal int) (Chapter, bool) {
	if ordinal < 0 || ordinal >= len(b.Chapters) {
		return Chapter{}, false
	}
	return b.Chapters[ordinal], true
}

// SetChapters replaces the arena with freshly segmented records. Ordinals
// are reassigned to match positions.
func (b *Book) SetChapters(chapters []Chapter) {
	b.Chapters = make([]Chapter, len(chapters))
	copy(b.Chapters, chapters)
	for i := range b.Chapters {
		b.Chapters[i].Ordinal = i
	}
}

// LiveLineCount sums LineCount over records that contribute body text.
func (b *Book) LiveLineCount() int {
	total := 0
	for _, ch := range b.Chapters {
		if ch.IsTombstone() || ch.IsHeading() || ch.LineCount < 0 {
			continue
		}
		total += ch.LineCount
	}
	return total
}

// Validate checks that ordinals are dense and extents do not overlap.
func (b *Book) Validate() error {
	for i, ch := range b.Chapters {
		if ch.Ordinal != i {
			return bserrors.NewValidation("chapters", fmt.Sprintf("record %d carries ordinal %d", i, ch.Ordinal))
		}
	}

	prev := -1
	for i, ch := range b.Chapters {
		if ch.IsSynthesized() || ch.IsTombstone() || ch.StartLine == 0 {
			continue
		}
		if prev >= 0 {
			p := b.Chapters[prev]
			if ch.StartLine < p.StartLine+p.LineCount {
				return bserrors.NewValidation("chapters",
					fmt.Sprintf("chapter %d starts at line %d inside chapter %d (%d+%d)", i, ch.StartLine, prev, p.StartLine, p.LineCount))
			}
		}
		prev = i
	}
	return nil
}
