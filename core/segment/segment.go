package segment

import (
	"strings"

	"github.com/FocuswithJustin/Bookshelf/core/book"
)

// SplitLines splits normalized text into lines. A trailing carriage return
// is removed from each line and the empty element produced by a final
// newline is dropped.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// Stats summarizes one segmentation pass.
type Stats struct {
	Lines      int  // total input lines
	FirstStart int  // line number of the first chapter heading, 0 if none
	Boundary   int  // last line number that belongs to the text body
	Trimmed    int  // blank lines excluded from chapter extents
	Ended      bool // an ending marker stopped the scan
}

// Covered returns the number of lines from the first heading through the
// boundary.
func (s Stats) Covered() int {
	if s.FirstStart == 0 {
		return 0
	}
	return s.Boundary - s.FirstStart + 1
}

type state int

const (
	scanning state = iota
	closed
)

// segmenter is the pass state. open is the index of the chapter currently
// being extended, or -1.
type segmenter struct {
	source   string
	chapters []book.Chapter
	open     int
	emptyRun int
	stats    Stats
}

// close ends the open chapter whose extent stops before closeLine.
func (s *segmenter) close(closeLine int) {
	if s.open < 0 {
		return
	}
	ch := &s.chapters[s.open]
	ch.LineCount = closeLine - ch.StartLine - s.emptyRun
	s.stats.Trimmed += s.emptyRun
	s.open = -1
}

// Segment runs a single pass over lines and returns the chapters in creation
// order. Volume is left empty for labeling; Prefix records the prefix that
// matched the heading.
func Segment(lines []string, c *Classifier, source string) ([]book.Chapter, Stats) {
	s := &segmenter{source: source, open: -1}
	s.stats.Lines = len(lines)

	st := scanning
	lineNumber := 0
	for _, line := range lines {
		lineNumber++
		class := c.Classify(line)

		switch class.Kind {
		case KindEmpty:
			s.emptyRun++
		case KindEnding:
			s.close(lineNumber)
			s.stats.Ended = true
			s.stats.Boundary = lineNumber - 1
			st = closed
		case KindChapterStart:
			s.close(lineNumber)
			if s.stats.FirstStart == 0 {
				s.stats.FirstStart = lineNumber
			}
			s.chapters = append(s.chapters, book.Chapter{
				Title:     strings.TrimSuffix(line, "\r"),
				Prefix:    class.Label,
				Source:    source,
				StartLine: lineNumber,
				Ordinal:   len(s.chapters),
			})
			s.open = len(s.chapters) - 1
			s.emptyRun = 0
		case KindContent:
			s.emptyRun = 0
		}
		if st == closed {
			break
		}
	}

	if st == scanning {
		s.close(len(lines) + 1)
		s.stats.Boundary = len(lines)
	}
	return s.chapters, s.stats
}
