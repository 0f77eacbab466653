package archive

import (
	"strings"

	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
)

// Format names a bundle container.
type Format string

const (
	FormatZip   Format = "zip"
	FormatTarGz Format = "tar.gz"
	FormatTarXz Format = "tar.xz"
)

// ParseFormat maps a configured name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "zip":
		return FormatZip, nil
	case "tar.gz", "tgz":
		return FormatTarGz, nil
	case "tar.xz", "txz":
		return FormatTarXz, nil
	}
	return "", bserrors.NewUnsupported("archive format", name)
}

// Ext returns the file extension including the leading dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// DetectFormat detects the archive format from the file extension.
func DetectFormat(path string) (Format, bool) {
	switch {
	case strings.HasSuffix(path, ".zip"):
		return FormatZip, true
	case strings.HasSuffix(path, ".tar.xz"), strings.HasSuffix(path, ".txz"):
		return FormatTarXz, true
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		return FormatTarGz, true
	}
	return "", false
}
