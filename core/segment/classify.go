// Package segment classifies normalized text lines and cuts them into
// chapter records.
package segment

import (
	"fmt"
	"regexp"
	"strings"

	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
)

// DefaultPlaceholder is substituted with each prefix in a chapter pattern.
const DefaultPlaceholder = "%s"

// Kind is the class of a single line.
type Kind int

// Line kinds.
const (
	KindContent Kind = iota
	KindEmpty
	KindEnding
	KindChapterStart
)

var kindNames = map[Kind]string{
	KindContent:      "content",
	KindEmpty:        "empty",
	KindEnding:       "ending",
	KindChapterStart: "chapter",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// LineClass is the classification of one line. Label is the prefix that
// matched and is only meaningful for KindChapterStart.
type LineClass struct {
	Kind  Kind
	Label string
}

// Rules configures a Classifier.
type Rules struct {
	// EndingMarkers are exact-match lines that end the usable text.
	EndingMarkers []string
	// ChapterPatterns are regular expressions matched at the start of a
	// line. Each may contain Placeholder, replaced by every prefix in turn.
	ChapterPatterns []string
	// Prefixes are tried in order; the empty prefix is always tried last.
	Prefixes []string
	// Placeholder defaults to DefaultPlaceholder.
	Placeholder string
}

type compiledPattern struct {
	source string
	label  string
	re     *regexp.Regexp
}

// Classifier assigns a LineClass to lines. It is safe for concurrent use.
type Classifier struct {
	endings  map[string]struct{}
	patterns []compiledPattern
	prefixes []string
}

// NewClassifier compiles every pattern and prefix combination up front.
func NewClassifier(rules Rules) (*Classifier, error) {
	placeholder := rules.Placeholder
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}

	c := &Classifier{
		endings:  make(map[string]struct{}, len(rules.EndingMarkers)),
		prefixes: NormalizePrefixes(rules.Prefixes),
	}
	for _, m := range rules.EndingMarkers {
		if m != "" {
			c.endings[m] = struct{}{}
		}
	}

	for i, pattern := range rules.ChapterPatterns {
		if strings.TrimSpace(pattern) == "" {
			continue
		}
		for _, prefix := range c.prefixes {
			expr := strings.ReplaceAll(pattern, placeholder, regexp.QuoteMeta(prefix))
			re, err := regexp.Compile("^(?:" + expr + ")")
			if err != nil {
				return nil, &bserrors.ValidationError{
					Field:   fmt.Sprintf("chapter_patterns[%d]", i),
					Value:   pattern,
					Message: err.Error(),
					Err:     err,
				}
			}
			c.patterns = append(c.patterns, compiledPattern{source: pattern, label: prefix, re: re})
		}
	}
	if len(c.patterns) == 0 {
		return nil, bserrors.NewValidation("chapter_patterns", "at least one chapter pattern is required")
	}
	return c, nil
}

// NormalizePrefixes drops empty entries and appends the empty prefix last.
func NormalizePrefixes(prefixes []string) []string {
	out := make([]string, 0, len(prefixes)+1)
	seen := make(map[string]bool, len(prefixes))
	for _, p := range prefixes {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return append(out, "")
}

// Prefixes returns the effective prefix list.
func (c *Classifier) Prefixes() []string {
	out := make([]string, len(c.prefixes))
	copy(out, c.prefixes)
	return out
}

// Classify returns the class of line. Patterns are tried in order and, for
// each pattern, prefixes in order; the first match wins.
func (c *Classifier) Classify(line string) LineClass {
	if strings.TrimSpace(line) == "" {
		return LineClass{Kind: KindEmpty}
	}
	if _, ok := c.endings[line]; ok {
		return LineClass{Kind: KindEnding}
	}
	for _, p := range c.patterns {
		if p.re.MatchString(line) {
			return LineClass{Kind: KindChapterStart, Label: p.label}
		}
	}
	return LineClass{Kind: KindContent}
}
