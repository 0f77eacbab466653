package catalog

import (
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/FocuswithJustin/Bookshelf/core/encoding"
	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
)

// Extractor cuts chapter text out of a markup fragment.
type Extractor struct {
	// Start and End delimit the body. A missing Start means the body
	// begins at the top; a missing End means it runs to the end.
	Start string
	End   string

	// Encoding controls the in-place normalization run before reading.
	Encoding encoding.Options
}

// Lines normalizes the fragment at path to UTF-8 on disk, then returns its
// body split into lines at <br> and paragraph boundaries. Any degraded
// decode is returned in the report.
func (e Extractor) Lines(path string) ([]string, *encoding.Report, error) {
	rep, err := encoding.NormalizeFile(path, e.Encoding)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rep, bserrors.NewIO("read fragment", path, err)
	}
	return SplitBreaks(Cut(string(data), e.Start, e.End)), rep, nil
}

// Cut returns the text between the first start marker and the first end
// marker after it.
func Cut(content, start, end string) string {
	if start != "" {
		if i := strings.Index(content, start); i >= 0 {
			content = content[i+len(start):]
		}
	}
	if end != "" {
		if j := strings.Index(content, end); j >= 0 {
			content = content[:j]
		}
	}
	return content
}

// SplitBreaks turns a markup fragment into text lines. Each <br> ends a
// line, as does the end of a p or div element. Entities are decoded and tags
// dropped; script and style content is skipped.
func SplitBreaks(fragment string) []string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil
	}

	var lines []string
	var cur strings.Builder
	flush := func() {
		lines = append(lines, cur.String())
		cur.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "br":
				flush()
				return
			case "script", "style":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && (n.Data == "p" || n.Data == "div") {
			flush()
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	if cur.Len() > 0 {
		flush()
	}
	return lines
}
