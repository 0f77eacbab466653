// Package export assembles a book's outline into a packaged EPUB or a
// manuscript bundle for an external converter.
package export

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/Bookshelf/core/book"
	"github.com/FocuswithJustin/Bookshelf/core/epub"
	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
	"github.com/FocuswithJustin/Bookshelf/core/volume"
	"github.com/FocuswithJustin/Bookshelf/internal/config"
	"github.com/FocuswithJustin/Bookshelf/internal/validation"
)

// DefaultStylesheetName is used for the stylesheet when none is configured.
const DefaultStylesheetName = "style.css"

// Result describes a written artifact.
type Result struct {
	Path      string // primary artifact
	Size      int64  // bytes at Path
	BLAKE3    string // hex digest of Path
	Chapters  int    // body chapters rendered
	Volumes   int    // volume headings rendered
	Bundle    string // manuscript bundle, empty for EPUB exports
	Converted string // converter output, empty when the converter did not run
}

// Option adjusts an exporter.
type Option func(*options)

type options struct {
	source LineSource
}

// WithLineSource overrides the line source normally chosen from the book.
func WithLineSource(src LineSource) Option {
	return func(o *options) { o.source = src }
}

// asset is a file shipped with the book.
type asset struct {
	name string
	data []byte
	mime string
}

// prepare organizes b for rendering. A book without live chapters is an
// *errors.EmptyDocumentError.
func prepare(b *book.Book) (*volume.Outline, error) {
	if b.Status() == book.StatusDeleted {
		return nil, bserrors.NewValidation("status", "cannot export a deleted book")
	}
	outline := volume.Organize(b.Chapters)
	for _, e := range outline.Entries {
		if !e.IsHeading() && !e.IsTombstone() {
			return outline, nil
		}
	}
	return nil, &bserrors.EmptyDocumentError{Source: b.Source}
}

// loadCover reads and sniffs b's cover image.
func loadCover(b *book.Book) (*asset, error) {
	if strings.TrimSpace(b.Cover) == "" {
		return nil, &bserrors.MissingAssetError{Asset: "cover"}
	}
	data, err := os.ReadFile(b.Cover)
	if err != nil {
		return nil, &bserrors.MissingAssetError{Asset: "cover", Path: b.Cover, Err: err}
	}
	ft, err := validation.ValidateFileType(bytes.NewReader(data), b.Cover)
	if err != nil || !ft.IsImage() {
		return nil, &bserrors.ValidationError{
			Field:   "book.cover",
			Value:   b.Cover,
			Message: "cover is not a supported image",
			Err:     err,
		}
	}
	return &asset{name: filepath.Base(b.Cover), data: data, mime: http.DetectContentType(data)}, nil
}

// loadStylesheet reads the configured stylesheet, or returns the built-in
// one when none is configured.
func loadStylesheet(cfg *config.Config) (*asset, error) {
	path := cfg.Paths.CSSFile
	if path == "" {
		return &asset{name: DefaultStylesheetName, data: []byte(epub.DefaultCSS), mime: "text/css"}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &bserrors.MissingAssetError{Asset: "stylesheet", Path: path, Err: err}
	}
	return &asset{name: filepath.Base(path), data: data, mime: "text/css"}, nil
}

// fileStem sanitizes a name for use as a file name.
func fileStem(name string) (string, error) {
	stem, err := validation.SanitizeFilename(name)
	if err != nil {
		return "", &bserrors.ValidationError{Field: "book.title", Value: name, Message: err.Error(), Err: err}
	}
	return stem, nil
}

// trimmedLines drops blank lines and surrounding whitespace.
func trimmedLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// describe fills the size and digest of r.Path.
func describe(r *Result) error {
	f, err := os.Open(r.Path)
	if err != nil {
		return bserrors.NewIO("open artifact", r.Path, err)
	}
	defer f.Close()

	h := blake3.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return bserrors.NewIO("digest artifact", r.Path, err)
	}
	r.Size = n
	r.BLAKE3 = hex.EncodeToString(h.Sum(nil))
	return nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return bserrors.NewIO("create directory", dir, err)
	}
	return nil
}

func formatName(pattern, value string) string {
	if strings.Contains(pattern, "%s") {
		return fmt.Sprintf(pattern, value)
	}
	return pattern
}
