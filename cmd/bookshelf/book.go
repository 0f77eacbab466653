package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/Bookshelf/core/book"
	"github.com/FocuswithJustin/Bookshelf/core/importer"
	"github.com/FocuswithJustin/Bookshelf/core/sqlite"
	"github.com/FocuswithJustin/Bookshelf/internal/catalog"
	"github.com/FocuswithJustin/Bookshelf/internal/config"
	"github.com/FocuswithJustin/Bookshelf/internal/editscript"
	"github.com/FocuswithJustin/Bookshelf/internal/validation"
)

// BookFlags describe the book being processed and where its text lives.
type BookFlags struct {
	Source      string   `arg:"" optional:"" help:"Text or zip source (omit with --catalog)" type:"path"`
	ID          string   `name:"id" help:"Book ID (defaults to the title)"`
	Title       string   `name:"title" help:"Book title (defaults to the source file name)"`
	Author      string   `name:"author" help:"Book author"`
	Description string   `name:"description" help:"Book description"`
	Cover       string   `name:"cover" help:"Cover image" type:"path"`
	Tags        []string `name:"tag" help:"Subject tag (repeatable)"`
	Prefix      []string `name:"prefix" help:"Extra chapter prefix such as 番外 (repeatable)"`
	Catalog     bool     `name:"catalog" help:"Read chapters from the configured catalog database"`
	Edits       string   `name:"edits" help:"Edit script applied after import" type:"existingfile"`
}

// newBook builds the book record from the flags.
func (f *BookFlags) newBook() (*book.Book, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" && f.Source != "" {
		title = strings.TrimSuffix(filepath.Base(f.Source), filepath.Ext(f.Source))
	}
	if title == "" {
		return nil, fmt.Errorf("a --title is required")
	}
	id := strings.TrimSpace(f.ID)
	if id == "" {
		id = title
	}
	b := book.New(id, title, f.Author)
	b.Description = f.Description
	b.Cover = f.Cover
	b.Tags = append([]string(nil), f.Tags...)
	return b, nil
}

// load imports the book and applies the edit script, if any.
func (f *BookFlags) load(ctx context.Context, cfg *config.Config) (*book.Book, *importer.Report, error) {
	b, err := f.newBook()
	if err != nil {
		return nil, nil, err
	}

	var rep *importer.Report
	if f.Catalog {
		cat, err := catalog.Open(cfg.Catalog)
		if err != nil {
			return nil, nil, err
		}
		defer cat.Close()
		rep, err = importer.ImportCatalog(ctx, b, cat, cfg)
		if err != nil {
			return nil, nil, err
		}
	} else {
		if f.Source == "" {
			return nil, nil, fmt.Errorf("a source file is required unless --catalog is set")
		}
		if err := validation.ValidatePath(f.Source); err != nil {
			return nil, nil, fmt.Errorf("invalid source path: %w", err)
		}
		rep, err = importer.ImportText(b, f.Source, cfg,
			importer.WithPrefixes(f.Prefix...),
			importer.WithContext(ctx),
		)
		if err != nil {
			return nil, nil, err
		}
	}

	if f.Edits != "" {
		if err := applyEdits(f.Edits, b); err != nil {
			return nil, nil, err
		}
	}
	return b, rep, nil
}

func applyEdits(path string, b *book.Book) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open edit script: %w", err)
	}
	defer file.Close()

	script, err := editscript.Parse(path, file)
	if err != nil {
		return err
	}
	return editscript.Apply(script, b)
}

func sqliteDriver() string {
	return sqlite.DriverType()
}
