package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/Bookshelf/core/book"
	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
	"github.com/FocuswithJustin/Bookshelf/core/volume"
	"github.com/FocuswithJustin/Bookshelf/internal/archive"
	"github.com/FocuswithJustin/Bookshelf/internal/config"
	"github.com/FocuswithJustin/Bookshelf/internal/convert"
	"github.com/FocuswithJustin/Bookshelf/internal/logging"
)

const (
	volumePrefix  = "# "
	chapterPrefix = "## "
)

// frontMatter is the YAML header of a manuscript, in field order.
type frontMatter struct {
	Title       string `yaml:"title"`
	Author      string `yaml:"author"`
	Subject     string `yaml:"subject"`
	Publisher   string `yaml:"publisher"`
	CoverImage  string `yaml:"cover-image"`
	CSS         string `yaml:"css"`
	Description string `yaml:"description"`
}

// ManuscriptExporter writes a Markdown manuscript with its cover and
// stylesheet, bundles them, and optionally runs the external converter.
type ManuscriptExporter struct {
	cfg       *config.Config
	converter *convert.Converter
	opts      options
}

// NewManuscriptExporter returns an exporter writing under
// cfg.Paths.TargetDir. The converter runs when cfg.Converter.Enabled is set
// or one is supplied with WithConverter.
func NewManuscriptExporter(cfg *config.Config, opts ...Option) *ManuscriptExporter {
	m := &ManuscriptExporter{cfg: cfg}
	if cfg.Converter.Enabled {
		m.converter = convert.New(cfg.Converter)
	}
	for _, opt := range opts {
		opt(&m.opts)
	}
	return m
}

// WithConverter sets the converter run after bundling. Nil disables it.
func (m *ManuscriptExporter) WithConverter(c *convert.Converter) *ManuscriptExporter {
	m.converter = c
	return m
}

// Export writes the bundle TargetDir/<id>.<title>-<author>.<ext> and, when a
// converter is set, TargetDir/<title>.epub. The working directory is removed
// afterwards unless the converter fails, in which case it is kept and named
// in the returned *errors.ConverterError.
func (m *ManuscriptExporter) Export(ctx context.Context, b *book.Book) (*Result, error) {
	ctx = logging.WithBookID(ctx, b.ID)

	outline, err := prepare(b)
	if err != nil {
		logging.StageError(ctx, "organize", err)
		return nil, err
	}
	format, err := archive.ParseFormat(m.cfg.Bundle.Format)
	if err != nil {
		return nil, err
	}
	cover, err := loadCover(b)
	if err != nil {
		return nil, err
	}
	css, err := loadStylesheet(m.cfg)
	if err != nil {
		return nil, err
	}
	stem, err := fileStem(b.Title + "-" + b.Author)
	if err != nil {
		return nil, err
	}

	if err := ensureDir(m.cfg.Paths.TargetDir); err != nil {
		return nil, err
	}
	work, err := os.MkdirTemp(m.cfg.Paths.TargetDir, "manuscript-*")
	if err != nil {
		return nil, bserrors.NewIO("create working directory", m.cfg.Paths.TargetDir, err)
	}
	keep := false
	defer func() {
		if !keep {
			_ = os.RemoveAll(work)
		}
	}()

	src := m.opts.source
	if src == nil {
		src = sourceFor(b, m.cfg)
	}

	manuscript := stem + ".md"
	res, err := m.writeManuscript(filepath.Join(work, manuscript), b, outline, src, cover.name, css.name)
	if err != nil {
		logging.StageError(ctx, "manuscript", err)
		return nil, err
	}
	for _, a := range []*asset{cover, css} {
		if err := os.WriteFile(filepath.Join(work, a.name), a.data, 0o644); err != nil {
			return nil, bserrors.NewIO("write asset", a.name, err)
		}
	}

	bundleStem, err := fileStem(fmt.Sprintf("%s.%s", b.ID, stem))
	if err != nil {
		return nil, err
	}
	res.Bundle = filepath.Join(m.cfg.Paths.TargetDir, bundleStem+format.Ext())
	if err := archive.Create(work, res.Bundle, format, ""); err != nil {
		logging.StageError(ctx, "bundle", err, "path", res.Bundle)
		return nil, err
	}
	res.Path = res.Bundle
	logging.StageContext(ctx, "bundle", "path", res.Bundle, "format", string(format))

	if m.converter != nil {
		titleStem, err := fileStem(b.Title)
		if err != nil {
			return nil, err
		}
		out := filepath.Join(m.cfg.Paths.TargetDir, titleStem+".epub")
		err = m.converter.Convert(ctx, convert.Request{WorkDir: work, Manuscript: manuscript, Output: out})
		if err != nil {
			var convErr *bserrors.ConverterError
			if errors.As(err, &convErr) {
				keep = true
				logging.StageError(ctx, "convert", err, "workdir", work)
			}
			return nil, err
		}
		res.Converted = out
		res.Path = out
	}

	if err := describe(res); err != nil {
		return nil, err
	}
	return res, nil
}

func (m *ManuscriptExporter) writeManuscript(path string, b *book.Book, outline *volume.Outline, src LineSource, coverName, cssName string) (*Result, error) {
	header, err := yaml.Marshal(frontMatter{
		Title:       b.Title,
		Author:      b.Author,
		Subject:     strings.Join(b.Tags, ","),
		Publisher:   m.cfg.Render.Publisher,
		CoverImage:  coverName,
		CSS:         cssName,
		Description: b.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, bserrors.NewIO("create manuscript", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	w.WriteString(strings.Replace(m.cfg.Render.FrontMatterTemplate, config.FrontMatterPlaceholder, string(header), 1))
	w.WriteString("\n" + volumePrefix + m.cfg.Render.DescriptionHeading + "\n\n")
	for _, line := range trimmedLines(strings.Split(b.Description, "\n")) {
		w.WriteString(line + "\n\n")
	}

	res := &Result{}
	for _, entry := range outline.Entries {
		if entry.IsTombstone() {
			continue
		}
		prefix := chapterPrefix
		if outline.Flat() || entry.IsHeading() {
			prefix = volumePrefix
		}
		if entry.IsHeading() {
			res.Volumes++
		} else {
			res.Chapters++
		}
		w.WriteString(prefix + entry.Title + "\n\n")

		if entry.IsSynthesized() {
			w.WriteString(entry.Title + "\n\n")
			continue
		}
		lines, err := src.Lines(entry)
		if err != nil {
			return nil, err
		}
		for _, line := range trimmedLines(lines) {
			w.WriteString(line + "\n\n")
		}
	}

	if err := w.Flush(); err != nil {
		return nil, bserrors.NewIO("write manuscript", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, bserrors.NewIO("close manuscript", path, err)
	}
	return res, nil
}
