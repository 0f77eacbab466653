package importer

import (
	"io"
	"os"
	"path/filepath"

	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
	"github.com/FocuswithJustin/Bookshelf/internal/archive"
	"github.com/FocuswithJustin/Bookshelf/internal/fileutil"
	"github.com/FocuswithJustin/Bookshelf/internal/validation"
)

func copyInto(path, dir string) (string, error) {
	dst := filepath.Join(dir, filepath.Base(path))
	if sameFile(path, dst) {
		return dst, nil
	}
	if err := fileutil.CopyFile(path, dst); err != nil {
		return "", bserrors.NewIO("stage source", dst, err)
	}
	return dst, nil
}

// extractFirst writes the first regular member of the zip at path into dir.
func extractFirst(path, dir string) (string, error) {
	var dst string
	err := archive.Walk(path, func(name string, isDir bool, content io.Reader) (bool, error) {
		if isDir {
			return false, nil
		}
		base, err := validation.SanitizeFilename(filepath.Base(name))
		if err != nil {
			return true, &bserrors.ValidationError{Field: "archive member", Value: name, Message: err.Error(), Err: bserrors.ErrInvalidInput}
		}
		dst = filepath.Join(dir, base)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return true, err
		}
		out, err := os.Create(dst)
		if err != nil {
			return true, err
		}
		if _, err := io.Copy(out, content); err != nil {
			out.Close()
			return true, err
		}
		return true, out.Close()
	})
	if err != nil {
		return "", bserrors.NewIO("extract source", path, err)
	}
	if dst == "" {
		return "", &bserrors.EmptyDocumentError{Source: path}
	}
	return dst, nil
}
