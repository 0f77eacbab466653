package book

import (
	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
)

// checkRange validates an inclusive ordinal range before any mutation.
func (b *Book) checkRange(start, end int) error {
	n := len(b.Chapters)
	switch {
	case b.status == StatusDeleted:
		return bserrors.NewMalformedRange(start, end, n, "book is deleted")
	case start < 0 || end < 0:
		return bserrors.NewMalformedRange(start, end, n, "negative ordinal")
	case end < start:
		return bserrors.NewMalformedRange(start, end, n, "end before start")
	case end >= n:
		return bserrors.NewMalformedRange(start, end, n, "end out of bounds")
	}
	return nil
}

// CheckMerge reports whether MergeRange(start, end) would be accepted.
func (b *Book) CheckMerge(start, end int) error {
	if err := b.checkRange(start, end); err != nil {
		return err
	}
	if b.Chapters[start].IsTombstone() {
		return bserrors.NewMalformedRange(start, end, len(b.Chapters), "start is a merged-away record")
	}
	return nil
}

// CheckRename reports whether RenameRange(start, end, label) would be accepted.
func (b *Book) CheckRename(start, end int, label string) error {
	if err := b.checkRange(start, end); err != nil {
		return err
	}
	if label == "" || label == LabelVolume || label == LabelDeleted {
		return bserrors.NewValidation("label", "volume label must be non-empty and not a role marker")
	}
	return nil
}

// MergeRange folds chapters start+1..end into start. The absorbed records
// become tombstones with a zero extent; total coverage is unchanged. A
// catalog record keeps LineCount -1.
func (b *Book) MergeRange(start, end int) error {
	if err := b.CheckMerge(start, end); err != nil {
		return err
	}
	if start == end {
		return nil
	}

	// Catalog records carry no line extent and keep their -1 marker.
	if b.Chapters[start].LineCount >= 0 {
		total := 0
		for i := end; i >= start; i-- {
			if n := b.Chapters[i].LineCount; n > 0 {
				total += n
			}
		}
		b.Chapters[start].LineCount = total
	}
	for i := start + 1; i <= end; i++ {
		b.Chapters[i].Volume = LabelDeleted
		b.Chapters[i].LineCount = 0
	}
	return b.MarkEdited()
}

// RenameRange relabels every body record in start..end. Tombstones and
// volume headings keep their role marker. The old label is taken from the
// first body record in the range; when the record just before it is a
// heading titled with that label the heading is retitled too. This only
// looks one record back and is best-effort when several headings share a
// title. A range holding no body records is left unchanged.
func (b *Book) RenameRange(start, end int, label string) error {
	if err := b.CheckRename(start, end, label); err != nil {
		return err
	}

	first := -1
	for i := start; i <= end; i++ {
		if ch := b.Chapters[i]; !ch.IsTombstone() && !ch.IsHeading() {
			first = i
			break
		}
	}
	if first < 0 {
		return nil
	}

	prior := b.Chapters[first].Volume
	for i := first; i <= end; i++ {
		ch := &b.Chapters[i]
		if ch.IsTombstone() || ch.IsHeading() {
			continue
		}
		ch.Volume = label
	}
	if first > 0 {
		prev := &b.Chapters[first-1]
		if prev.IsHeading() && prev.Title == prior {
			prev.Title = label
		}
	}
	return b.MarkEdited()
}
