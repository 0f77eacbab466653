// Package archive writes and reads manuscript bundles in zip, tar.gz and
// tar.xz form.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
)

// Reader wraps a tar.Reader with automatic decompression handling.
type Reader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

// NewReader creates a tar reader for the given path, handling .tar.gz and
// .tar.xz compression.
func NewReader(path string) (*Reader, error) {
	format, ok := DetectFormat(path)
	if !ok || format == FormatZip {
		return nil, bserrors.NewUnsupported("tar archive", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	var reader io.Reader
	var decompressor io.Closer

	switch format {
	case FormatTarXz:
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		reader = xzr
	case FormatTarGz:
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		reader = gzr
		decompressor = gzr
	}

	return &Reader{
		Reader:       tar.NewReader(reader),
		file:         f,
		decompressor: decompressor,
	}, nil
}

// Close closes the archive reader and any underlying decompressors.
func (r *Reader) Close() error {
	var errs []error
	if r.decompressor != nil {
		if err := r.decompressor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Visitor is called for each archive entry. Return true to stop iteration.
type Visitor func(name string, isDir bool, content io.Reader) (stop bool, err error)

// Iterate walks through all entries in the archive, calling the visitor for each.
func (r *Reader) Iterate(visitor Visitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		stop, err := visitor(header.Name, header.Typeflag == tar.TypeDir, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// Walk opens an archive of any supported format and visits its entries in
// stored order.
func Walk(path string, visitor Visitor) error {
	format, ok := DetectFormat(path)
	if !ok {
		return bserrors.NewUnsupported("archive format", path)
	}
	if format == FormatZip {
		return walkZip(path, visitor)
	}
	r, err := NewReader(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Iterate(visitor)
}

func walkZip(path string, visitor Visitor) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		stop, err := visitor(f.Name, f.FileInfo().IsDir(), rc)
		rc.Close()
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

// List returns the names of all entries.
func List(path string) ([]string, error) {
	var names []string
	err := Walk(path, func(name string, _ bool, _ io.Reader) (bool, error) {
		names = append(names, name)
		return false, nil
	})
	return names, err
}

// ReadFile reads a specific file from the archive. The name matches with or
// without a leading directory.
func ReadFile(archivePath, filename string) ([]byte, error) {
	var content []byte
	found := false
	err := Walk(archivePath, func(name string, isDir bool, r io.Reader) (bool, error) {
		if isDir {
			return false, nil
		}
		short := name
		if idx := strings.Index(name, "/"); idx >= 0 {
			short = name[idx+1:]
		}
		if short == filename || name == filename {
			var err error
			content, err = io.ReadAll(r)
			found = true
			return true, err
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("file not found: %s", filename)
	}
	return content, nil
}
