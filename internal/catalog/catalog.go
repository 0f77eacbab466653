// Package catalog reads catalog-backed books: a SQLite manifest listing one
// markup fragment per chapter, and the fragments themselves.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"github.com/FocuswithJustin/Bookshelf/core/book"
	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
	"github.com/FocuswithJustin/Bookshelf/core/sqlite"
	"github.com/FocuswithJustin/Bookshelf/internal/config"
	"github.com/FocuswithJustin/Bookshelf/internal/logging"
	"github.com/FocuswithJustin/Bookshelf/internal/validation"
)

const manifestQuery = `SELECT id, title, volumn FROM book_contents WHERE novelid = ? ORDER BY displayorder, id`

// FragmentExt is the extension of chapter fragment files.
const FragmentExt = ".htm"

// Entry is one manifest row.
type Entry struct {
	ID     int64
	Title  string
	Volume string
}

// Catalog is an open manifest database plus the directory holding the
// fragments, laid out as <SourceDir>/<bookID>/<entryID>.htm.
type Catalog struct {
	db        *sql.DB
	path      string
	sourceDir string
	extractor Extractor
}

// Open opens the configured catalog read-only.
func Open(cfg config.Catalog) (*Catalog, error) {
	if cfg.Database == "" {
		return nil, bserrors.NewValidation("catalog.database", "no catalog database configured")
	}
	if err := checkDatabase(cfg.Database); err != nil {
		return nil, err
	}
	db, err := sqlite.OpenReadOnly(cfg.Database)
	if err != nil {
		return nil, err
	}
	return &Catalog{
		db:        db,
		path:      cfg.Database,
		sourceDir: cfg.SourceDir,
		extractor: Extractor{Start: cfg.StartMarker, End: cfg.EndMarker},
	}, nil
}

func checkDatabase(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return bserrors.NewIO("open catalog", path, err)
	}
	defer f.Close()
	ft, err := validation.ValidateFileType(f, path)
	if err != nil {
		return &bserrors.ValidationError{Field: "catalog.database", Value: path, Message: err.Error()}
	}
	if ft != validation.FileTypeSQLite {
		return &bserrors.ValidationError{Field: "catalog.database", Value: path, Message: "not a SQLite database"}
	}
	return nil
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database location.
func (c *Catalog) Path() string {
	return c.path
}

// Extractor returns the fragment extractor configured for this catalog.
func (c *Catalog) Extractor() Extractor {
	return c.extractor
}

// Entries returns the manifest rows for bookID in display order.
func (c *Catalog) Entries(ctx context.Context, bookID string) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, manifestQuery, bookID)
	if err != nil {
		return nil, fmt.Errorf("query manifest for %s: %w", bookID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var volume sql.NullString
		if err := rows.Scan(&e.ID, &e.Title, &volume); err != nil {
			return nil, fmt.Errorf("scan manifest row: %w", err)
		}
		e.Volume = volume.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return entries, nil
}

// FragmentPath returns where the fragment for entryID of bookID lives.
func (c *Catalog) FragmentPath(bookID string, entryID int64) (string, error) {
	rel := bookID + "/" + strconv.FormatInt(entryID, 10) + FragmentExt
	path, err := validation.ResolveUnder(c.sourceDir, rel)
	if err != nil {
		return "", &bserrors.ValidationError{Field: "book.id", Value: bookID, Message: err.Error(), Err: err}
	}
	return path, nil
}

// Chapters builds chapter records for bookID. Volumes come from the
// manifest; rows without one get defaultVolume. Records carry StartLine 0
// and LineCount -1 since their text lives in the fragment named by Source.
func (c *Catalog) Chapters(ctx context.Context, bookID, defaultVolume string) ([]book.Chapter, error) {
	entries, err := c.Entries(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if defaultVolume == "" {
		defaultVolume = book.DefaultVolume
	}

	chapters := make([]book.Chapter, 0, len(entries))
	for i, e := range entries {
		path, err := c.FragmentPath(bookID, e.ID)
		if err != nil {
			return nil, err
		}
		volume := e.Volume
		if volume == "" || volume == book.LabelDeleted {
			volume = defaultVolume
		}
		chapters = append(chapters, book.Chapter{
			Title:     e.Title,
			Volume:    volume,
			Source:    path,
			StartLine: 0,
			LineCount: -1,
			Ordinal:   i,
		})
	}
	logging.DebugContext(logging.WithBookID(ctx, bookID), "catalog manifest read",
		"database", c.path,
		"chapters", len(chapters),
	)
	return chapters, nil
}
