package book

import (
	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
)

// Filter selects the records a view shows.
type Filter func(Chapter) bool

// BodyOnly hides tombstones and volume headings, the way a table of
// contents is displayed for editing.
func BodyOnly(ch Chapter) bool {
	return !ch.IsTombstone() && !ch.IsHeading()
}

// Live hides only tombstones.
func Live(ch Chapter) bool {
	return !ch.IsTombstone()
}

// View is a filtered projection of a book. It stores ordinals, so it stays
// valid as long as the arena is the same length.
type View struct {
	book     *Book
	ordinals []int
}

// NewView builds a view over b showing the records accepted by keep.
func NewView(b *Book, keep Filter) *View {
	v := &View{book: b}
	for _, ch := range b.Chapters {
		if keep == nil || keep(ch) {
			v.ordinals = append(v.ordinals, ch.Ordinal)
		}
	}
	return v
}

// Len returns the number of visible rows.
func (v *View) Len() int {
	return len(v.ordinals)
}

// Ordinals returns the visible ordinals in display order.
func (v *View) Ordinals() []int {
	out := make([]int, len(v.ordinals))
	copy(out, v.ordinals)
	return out
}

// Row returns the record displayed at row.
func (v *View) Row(row int) (Chapter, bool) {
	ord, err := v.Ordinal(row)
	if err != nil {
		return Chapter{}, false
	}
	return v.book.Chapter(ord)
}

// Ordinal translates a display row to an ordinal.
func (v *View) Ordinal(row int) (int, error) {
	if row < 0 || row >= len(v.ordinals) {
		return 0, bserrors.NewMalformedRange(row, row, len(v.ordinals), "row outside view")
	}
	return v.ordinals[row], nil
}

// Span translates an inclusive row selection to an inclusive ordinal range.
func (v *View) Span(first, last int) (start, end int, err error) {
	if first > last {
		return 0, 0, bserrors.NewMalformedRange(first, last, len(v.ordinals), "end before start")
	}
	if start, err = v.Ordinal(first); err != nil {
		return 0, 0, err
	}
	if end, err = v.Ordinal(last); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
