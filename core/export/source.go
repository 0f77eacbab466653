package export

import (
	"os"

	"github.com/FocuswithJustin/Bookshelf/core/book"
	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
	"github.com/FocuswithJustin/Bookshelf/core/segment"
	"github.com/FocuswithJustin/Bookshelf/internal/catalog"
	"github.com/FocuswithJustin/Bookshelf/internal/config"
)

// LineSource yields the body lines of a chapter, heading excluded.
type LineSource interface {
	Lines(ch book.Chapter) ([]string, error)
}

// TextSource serves chapters cut from one normalized text file. The file is
// read on first use and kept for the rest of the export.
type TextSource struct {
	path  string
	lines []string
}

// NewTextSource returns a source backed by the file at path.
func NewTextSource(path string) *TextSource {
	return &TextSource{path: path}
}

// Lines implements LineSource.
func (s *TextSource) Lines(ch book.Chapter) ([]string, error) {
	if ch.IsSynthesized() {
		return nil, nil
	}
	if s.lines == nil {
		data, err := os.ReadFile(s.path)
		if err != nil {
			return nil, bserrors.NewIO("read source", s.path, err)
		}
		s.lines = segment.SplitLines(string(data))
		if s.lines == nil {
			s.lines = []string{}
		}
	}
	from, to := ch.BodyRange()
	if from >= len(s.lines) {
		return nil, nil
	}
	if to > len(s.lines) {
		to = len(s.lines)
	}
	return s.lines[from:to], nil
}

// FragmentSource serves catalog chapters, one markup fragment each. A
// record followed by tombstones absorbs their fragments, since a merge
// always tombstones the records right after its start.
type FragmentSource struct {
	extractor catalog.Extractor
	arena     []book.Chapter
}

// NewFragmentSource returns a source for b's catalog chapters.
func NewFragmentSource(extractor catalog.Extractor, b *book.Book) *FragmentSource {
	return &FragmentSource{extractor: extractor, arena: b.Chapters}
}

// Lines implements LineSource.
func (s *FragmentSource) Lines(ch book.Chapter) ([]string, error) {
	if ch.IsSynthesized() {
		return nil, nil
	}
	lines, err := s.fragment(ch.Source)
	if err != nil {
		return nil, err
	}
	if ch.Ordinal < 0 || ch.Ordinal >= len(s.arena) {
		return lines, nil
	}
	for _, next := range s.arena[ch.Ordinal+1:] {
		if !next.IsTombstone() {
			break
		}
		more, err := s.fragment(next.Source)
		if err != nil {
			return nil, err
		}
		lines = append(lines, more...)
	}
	return lines, nil
}

func (s *FragmentSource) fragment(path string) ([]string, error) {
	lines, _, err := s.extractor.Lines(path)
	return lines, err
}

// isCatalogBook reports whether b's records point at catalog fragments.
func isCatalogBook(b *book.Book) bool {
	for _, ch := range b.Chapters {
		if ch.IsSynthesized() || ch.IsTombstone() {
			continue
		}
		return ch.StartLine == 0
	}
	return false
}

// sourceFor picks the line source matching how b was imported.
func sourceFor(b *book.Book, cfg *config.Config) LineSource {
	if isCatalogBook(b) {
		return NewFragmentSource(catalog.Extractor{
			Start: cfg.Catalog.StartMarker,
			End:   cfg.Catalog.EndMarker,
		}, b)
	}
	return NewTextSource(b.Source)
}
