// Package importer turns a source into a book's chapter hierarchy. Text
// sources run the full pipeline: stage, normalize, segment, label. Catalog
// sources take their chapters from the manifest.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/FocuswithJustin/Bookshelf/core/book"
	"github.com/FocuswithJustin/Bookshelf/core/encoding"
	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
	"github.com/FocuswithJustin/Bookshelf/core/segment"
	"github.com/FocuswithJustin/Bookshelf/core/volume"
	"github.com/FocuswithJustin/Bookshelf/internal/catalog"
	"github.com/FocuswithJustin/Bookshelf/internal/config"
	"github.com/FocuswithJustin/Bookshelf/internal/logging"
	"github.com/FocuswithJustin/Bookshelf/internal/validation"
)

// Report summarizes an import.
type Report struct {
	Source   string           // path the chapters point at
	Encoding *encoding.Report // nil for catalog imports
	Stats    segment.Stats
	Chapters int
	Headings int
}

// Degraded reports whether the decode had to guess or drop bytes.
func (r *Report) Degraded() bool {
	return r.Encoding != nil && r.Encoding.Degraded
}

// Option adjusts an import.
type Option func(*options)

type options struct {
	prefixes []string
	policy   volume.Policy
	encoding encoding.Options
	ctx      context.Context
}

// WithPrefixes adds chapter prefixes (for example 番外) tried before the
// configured ones.
func WithPrefixes(prefixes ...string) Option {
	return func(o *options) { o.prefixes = append(o.prefixes, prefixes...) }
}

// WithPolicy replaces the volume heading policy.
func WithPolicy(p volume.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithEncoding sets the normalizer options.
func WithEncoding(opts encoding.Options) Option {
	return func(o *options) { o.encoding = opts }
}

// WithContext attaches a context used for log correlation.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

func buildOptions(cfg *config.Config, opts []Option) options {
	o := options{ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.policy == nil {
		o.policy = volume.DefaultPolicy{
			MaxHeadingLines: cfg.Heuristic.MaxHeadingLines,
			LongLineWidth:   cfg.Heuristic.LongLineWidth,
		}
	}
	return o
}

// Classifier builds the line classifier described by cfg plus any extra
// prefixes.
func Classifier(cfg *config.Config, extraPrefixes ...string) (*segment.Classifier, error) {
	prefixes := append(append([]string(nil), extraPrefixes...), cfg.Parser.Prefixes...)
	return segment.NewClassifier(segment.Rules{
		EndingMarkers:   cfg.Parser.EndingMarkers,
		ChapterPatterns: cfg.Parser.ChapterPatterns,
		Prefixes:        prefixes,
		Placeholder:     cfg.Parser.Placeholder,
	})
}

// ImportText stages the text source at path, normalizes it to UTF-8 in
// place, segments it and labels volumes. On success b holds the chapters,
// b.Source names the staged file and b is marked imported. When no chapter
// is found the result is an *errors.EmptyDocumentError and b is unchanged.
// A degraded decode is not an error; it is reported in Report.Encoding.
func ImportText(b *book.Book, path string, cfg *config.Config, opts ...Option) (*Report, error) {
	o := buildOptions(cfg, opts)
	ctx := logging.WithBookID(o.ctx, b.ID)

	if _, err := b.Status().Next(book.EventImport); err != nil {
		return nil, err
	}
	classifier, err := Classifier(cfg, o.prefixes...)
	if err != nil {
		return nil, err
	}

	staged, err := stage(path, cfg.Paths.SourceDir)
	if err != nil {
		logging.StageError(ctx, "stage", err, "path", path)
		return nil, err
	}
	logging.StageContext(ctx, "stage", "source", path, "staged", staged)

	encRep, err := encoding.NormalizeFile(staged, o.encoding)
	if err != nil {
		logging.StageError(ctx, "normalize", err, "path", staged)
		return nil, err
	}
	logging.StageContext(ctx, "normalize",
		"charset", encRep.Charset,
		"decoder", encRep.Decoder,
		"changed", encRep.Changed,
		"degraded", encRep.Degraded,
	)

	data, err := os.ReadFile(staged)
	if err != nil {
		return nil, bserrors.NewIO("read source", staged, err)
	}
	lines := segment.SplitLines(string(data))

	chapters, stats := segment.Segment(lines, classifier, staged)
	if len(chapters) == 0 {
		err := &bserrors.EmptyDocumentError{Source: staged}
		logging.StageError(ctx, "segment", err, "lines", stats.Lines)
		return nil, err
	}
	logging.StageContext(ctx, "segment",
		"lines", stats.Lines,
		"chapters", len(chapters),
		"ended", stats.Ended,
	)

	headings := volume.Label(chapters, lines, o.policy, cfg.Heuristic.DefaultVolume)
	logging.StageContext(ctx, "label", "headings", headings)

	b.SetChapters(chapters)
	b.Source = staged
	if err := b.MarkImported(); err != nil {
		return nil, err
	}

	return &Report{
		Source:   staged,
		Encoding: encRep,
		Stats:    stats,
		Chapters: len(chapters),
		Headings: headings,
	}, nil
}

// ImportCatalog fills b from the catalog manifest. Chapters arrive with
// their volumes already labeled; b.Source becomes the catalog path.
func ImportCatalog(ctx context.Context, b *book.Book, cat *catalog.Catalog, cfg *config.Config) (*Report, error) {
	ctx = logging.WithBookID(ctx, b.ID)

	if _, err := b.Status().Next(book.EventImport); err != nil {
		return nil, err
	}
	chapters, err := cat.Chapters(ctx, b.ID, cfg.Heuristic.DefaultVolume)
	if err != nil {
		logging.StageError(ctx, "manifest", err)
		return nil, err
	}
	if len(chapters) == 0 {
		return nil, &bserrors.EmptyDocumentError{Source: cat.Path()}
	}

	b.SetChapters(chapters)
	b.Source = cat.Path()
	if err := b.MarkImported(); err != nil {
		return nil, err
	}
	logging.StageContext(ctx, "manifest", "chapters", len(chapters))

	return &Report{Source: cat.Path(), Chapters: len(chapters)}, nil
}

// stage copies or extracts the source into dir and returns the staged
// path. With no dir the source is used where it is, except that archives
// are extracted beside themselves.
func stage(path, dir string) (string, error) {
	if err := validation.ValidatePath(path); err != nil {
		return "", &bserrors.ValidationError{Field: "path", Value: path, Message: err.Error(), Err: err}
	}
	f, err := os.Open(path)
	if err != nil {
		return "", bserrors.NewIO("open source", path, err)
	}
	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		f.Close()
		return "", &bserrors.EmptyDocumentError{Source: path}
	}
	ft, err := validation.ValidateFileType(f, path)
	f.Close()
	if err != nil {
		return "", &bserrors.ValidationError{Field: "path", Value: path, Message: err.Error(), Err: bserrors.ErrInvalidInput}
	}

	switch ft {
	case validation.FileTypeText:
		if dir == "" {
			return path, nil
		}
		return copyInto(path, dir)
	case validation.FileTypeZip:
		if dir == "" {
			dir = filepath.Dir(path)
		}
		return extractFirst(path, dir)
	}
	return "", bserrors.NewUnsupported("source type", fmt.Sprintf("%s (%s)", filepath.Ext(path), ft))
}

func sameFile(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}
