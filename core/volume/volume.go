// Package volume groups segmented chapters into volumes. Labeling decides
// which records are volume headings; Organize materializes the two-level
// outline the exporters walk.
package volume

import (
	"unicode/utf8"

	"github.com/FocuswithJustin/Bookshelf/core/book"
)

// Policy decides whether a chapter carries body text or is only a heading.
// body holds the chapter's lines after the heading.
type Policy interface {
	IsBody(ch book.Chapter, body []string) bool
}

// DefaultPolicy treats a chapter as body when more than MaxHeadingLines
// lines follow its heading or one of them is wider than LongLineWidth runes.
// Short legitimate chapters are misread as headings by this rule.
type DefaultPolicy struct {
	MaxHeadingLines int
	LongLineWidth   int
}

// NewDefaultPolicy returns the policy with the historical thresholds.
func NewDefaultPolicy() DefaultPolicy {
	return DefaultPolicy{MaxHeadingLines: 3, LongLineWidth: 100}
}

// IsBody implements Policy.
func (p DefaultPolicy) IsBody(ch book.Chapter, body []string) bool {
	if ch.LineCount-1 > p.MaxHeadingLines {
		return true
	}
	for _, line := range body {
		if utf8.RuneCountInString(line) > p.LongLineWidth {
			return true
		}
	}
	return false
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ch book.Chapter, body []string) bool

// IsBody implements Policy.
func (f PolicyFunc) IsBody(ch book.Chapter, body []string) bool {
	return f(ch, body)
}

// bodyLines returns the lines after the heading inside ch's extent.
func bodyLines(ch book.Chapter, lines []string) []string {
	from, to := ch.BodyRange()
	if from >= len(lines) {
		return nil
	}
	if to > len(lines) {
		to = len(lines)
	}
	return lines[from:to]
}

// Label resolves volume labels in place for every record except tombstones.
// Chapters judged to be body join the current volume; the rest become
// headings and open a volume named after their title.
func Label(chapters []book.Chapter, lines []string, policy Policy, defaultVolume string) (headings int) {
	if policy == nil {
		policy = NewDefaultPolicy()
	}
	if defaultVolume == "" {
		defaultVolume = book.DefaultVolume
	}

	current := defaultVolume
	for i := range chapters {
		ch := &chapters[i]
		if ch.IsTombstone() {
			continue
		}
		if policy.IsBody(*ch, bodyLines(*ch, lines)) {
			ch.Volume = current
			continue
		}
		ch.Volume = book.LabelVolume
		current = ch.Title
		headings++
	}
	return headings
}

// Outline is the materialized hierarchy. Entries are copies; synthesized
// headings carry Ordinal, StartLine and LineCount of -1.
type Outline struct {
	Entries []book.Chapter
	flat    bool
}

// Flat reports whether the book has a single volume, in which case every
// entry is rendered at the top level.
func (o *Outline) Flat() bool {
	return o.flat
}

// Headings counts the live volume headings in the outline.
func (o *Outline) Headings() int {
	n := 0
	for _, e := range o.Entries {
		if e.IsHeading() {
			n++
		}
	}
	return n
}

// Organize builds the outline for chapters. Tombstones are skipped. A
// heading is synthesized in front of every body chapter whose label differs
// from the running one. When exactly one heading results it is tombstoned so
// the book renders flat.
func Organize(chapters []book.Chapter) *Outline {
	out := &Outline{}
	running := ""
	headings := 0
	for _, ch := range chapters {
		if ch.IsTombstone() {
			continue
		}
		if ch.IsHeading() {
			running = ch.Title
			headings++
			out.Entries = append(out.Entries, ch)
			continue
		}
		if ch.Volume != running {
			out.Entries = append(out.Entries, book.Chapter{
				Title:     ch.Volume,
				Volume:    book.LabelVolume,
				Source:    ch.Source,
				StartLine: -1,
				LineCount: -1,
				Ordinal:   -1,
			})
			running = ch.Volume
			headings++
		}
		out.Entries = append(out.Entries, ch)
	}

	if headings == 1 {
		for i := range out.Entries {
			if out.Entries[i].IsHeading() {
				out.Entries[i].Volume = book.LabelDeleted
				break
			}
		}
		out.flat = true
	}
	return out
}
