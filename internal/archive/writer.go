package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
)

// Create archives the contents of srcDir into dstPath. Entries are named
// baseDir/rel, or rel alone when baseDir is empty. The archive is written to
// a temporary file beside dstPath and renamed into place, so a failed run
// never leaves a truncated bundle behind.
func Create(srcDir, dstPath string, format Format, baseDir string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dstPath), ".bundle-*")
	if err != nil {
		return bserrors.NewIO("create archive", dstPath, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	switch format {
	case FormatZip:
		err = writeZip(tmp, srcDir, baseDir)
	case FormatTarGz:
		gw := gzip.NewWriter(tmp)
		err = writeTar(gw, srcDir, baseDir)
		if cerr := gw.Close(); err == nil {
			err = cerr
		}
	case FormatTarXz:
		var xw *xz.Writer
		xw, err = xz.NewWriter(tmp)
		if err == nil {
			err = writeTar(xw, srcDir, baseDir)
			if cerr := xw.Close(); err == nil {
				err = cerr
			}
		}
	default:
		tmp.Close()
		return bserrors.NewUnsupported("archive format", string(format))
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	if err := os.Rename(tmpName, dstPath); err != nil {
		return bserrors.NewIO("rename archive", dstPath, err)
	}
	return nil
}

// CreateTarGz creates a tar.gz archive from a source directory.
func CreateTarGz(srcDir, dstPath, baseDir string) error {
	return Create(srcDir, dstPath, FormatTarGz, baseDir)
}

func entryName(baseDir, relPath string) string {
	relPath = filepath.ToSlash(relPath)
	if baseDir == "" {
		return relPath
	}
	return baseDir + "/" + relPath
}

func writeTar(w io.Writer, srcDir, baseDir string) error {
	tw := tar.NewWriter(w)

	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		// Skip root directory
		if relPath == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = entryName(baseDir, relPath)
		if info.IsDir() {
			header.Name += "/"
		}

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		return copyFileTo(tw, path)
	})
	if err != nil {
		return err
	}
	return tw.Close()
}

func writeZip(w io.Writer, srcDir, baseDir string) error {
	zw := zip.NewWriter(w)

	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = entryName(baseDir, relPath)
		if info.IsDir() {
			header.Name += "/"
		} else {
			header.Method = zip.Deflate
		}

		fw, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		return copyFileTo(fw, path)
	})
	if err != nil {
		return err
	}
	return zw.Close()
}

func copyFileTo(w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(w, file)
	return err
}
