package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/Bookshelf/core/book"
	"github.com/FocuswithJustin/Bookshelf/core/encoding"
	"github.com/FocuswithJustin/Bookshelf/core/epub"
	"github.com/FocuswithJustin/Bookshelf/internal/config"
	"github.com/FocuswithJustin/Bookshelf/internal/logging"
)

// EPUBExporter renders a book as an EPUB 3 package.
type EPUBExporter struct {
	cfg  *config.Config
	opts options
}

// NewEPUBExporter returns an exporter writing under cfg.Paths.TargetDir.
func NewEPUBExporter(cfg *config.Config, opts ...Option) *EPUBExporter {
	e := &EPUBExporter{cfg: cfg}
	for _, opt := range opts {
		opt(&e.opts)
	}
	return e
}

// Export writes b to TargetDir/<EPUBName % title>. Volume headings become
// top-level pages with their chapters as children; a flat book puts every
// chapter at the top level. Nothing is written when b has no chapters.
func (e *EPUBExporter) Export(ctx context.Context, b *book.Book) (*Result, error) {
	ctx = logging.WithBookID(ctx, b.ID)

	outline, err := prepare(b)
	if err != nil {
		logging.StageError(ctx, "organize", err)
		return nil, err
	}
	cover, err := loadCover(b)
	if err != nil {
		return nil, err
	}
	css, err := loadStylesheet(e.cfg)
	if err != nil {
		return nil, err
	}
	stem, err := fileStem(b.Title)
	if err != nil {
		return nil, err
	}

	doc := epub.New()
	doc.SetTitle(b.Title)
	doc.SetAuthor(b.Author)
	doc.SetLanguage(e.cfg.Render.Language)
	doc.SetPublisher(e.cfg.Render.Publisher)
	doc.SetDescription(b.Description)
	doc.SetBookID(b.ID)
	for _, tag := range b.Tags {
		doc.AddSubject(tag)
	}
	doc.SetCover(cover.data, cover.mime)
	doc.SetCSS(string(css.data))

	src := e.opts.source
	if src == nil {
		src = sourceFor(b, e.cfg)
	}

	res := &Result{}
	var current *epub.Page
	for _, entry := range outline.Entries {
		if entry.IsTombstone() {
			continue
		}
		content, err := e.render(src, entry)
		if err != nil {
			logging.StageError(ctx, "render", err, "chapter", entry.Title)
			return nil, err
		}
		switch {
		case entry.IsHeading():
			current = doc.AddPage(entry.Title, content, nil)
			res.Volumes++
		case outline.Flat():
			doc.AddPage(entry.Title, content, nil)
			res.Chapters++
		default:
			doc.AddPage(entry.Title, content, current)
			res.Chapters++
		}
	}

	if err := ensureDir(e.cfg.Paths.TargetDir); err != nil {
		return nil, err
	}
	res.Path = filepath.Join(e.cfg.Paths.TargetDir, formatName(e.cfg.Paths.EPUBName, stem))
	if err := doc.Save(res.Path); err != nil {
		return nil, err
	}
	if err := describe(res); err != nil {
		return nil, err
	}

	logging.StageContext(ctx, "epub",
		"path", res.Path,
		"chapters", res.Chapters,
		"volumes", res.Volumes,
		"depth", doc.Depth(),
		"bytes", res.Size,
	)
	return res, nil
}

// render builds a page body: the header template, then one paragraph per
// non-blank line. Synthesized headings carry the header only.
func (e *EPUBExporter) render(src LineSource, ch book.Chapter) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(e.cfg.Render.ChapterHeaderTemplate, encoding.EscapeXMLText(ch.Title)))
	if ch.IsSynthesized() {
		return sb.String(), nil
	}
	lines, err := src.Lines(ch)
	if err != nil {
		return "", err
	}
	for _, line := range trimmedLines(lines) {
		sb.WriteString(fmt.Sprintf(e.cfg.Render.ContentLineTemplate, encoding.EscapeXMLText(line)))
	}
	return sb.String(), nil
}
