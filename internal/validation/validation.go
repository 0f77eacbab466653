// Package validation checks paths and files that come from book metadata
// or catalog rows before they reach the filesystem.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
)

// Limits on names derived from book metadata.
const (
	// MaxFilenameLength is the maximum allowed filename length in bytes.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrPathTooLong      = errors.New("path too long")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
)

// SanitizePath validates a relative path taken from a catalog row and
// returns it cleaned. The path must stay within baseDir.
func SanitizePath(baseDir, userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}
	if err := ValidatePath(userPath); err != nil {
		return "", err
	}

	cleanPath := filepath.Clean(filepath.FromSlash(userPath))
	if filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(baseDir, cleanPath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	relPath, err := filepath.Rel(absBase, absPath)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	return cleanPath, nil
}

// ResolveUnder joins a sanitized userPath onto baseDir.
func ResolveUnder(baseDir, userPath string) (string, error) {
	clean, err := SanitizePath(baseDir, userPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, clean), nil
}

// ValidatePath rejects empty, oversized and control-character paths.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range path {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ValidateFilename checks that a single path element is safe to create.
func ValidateFilename(filename string) error {
	if filename == "" {
		return ErrInvalidFilename
	}
	if len(filename) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	}
	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	}
	for _, r := range filename {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	if strings.HasPrefix(filename, "-") {
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	return nil
}

// SanitizeFilename turns a book title or a title-author pair into a safe
// filename. Separators and characters reserved on common filesystems become
// underscores; control characters are removed. Names longer than
// MaxFilenameLength are cut at a rune boundary.
func SanitizeFilename(filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", ErrInvalidFilename
	}

	var cleaned strings.Builder
	for _, r := range filename {
		switch {
		case r == 0 || unicode.IsControl(r):
			continue
		case strings.ContainsRune(`/\:*?"<>|`, r):
			cleaned.WriteRune('_')
		default:
			cleaned.WriteRune(r)
		}
	}
	filename = strings.TrimLeft(cleaned.String(), "-")

	if len(filename) > MaxFilenameLength {
		cut := MaxFilenameLength
		for cut > 0 && !isRuneStart(filename[cut]) {
			cut--
		}
		filename = filename[:cut]
	}

	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	return filename, nil
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// FileType represents a detected asset type.
type FileType string

const (
	FileTypeJPEG    FileType = "jpeg"
	FileTypePNG     FileType = "png"
	FileTypeGIF     FileType = "gif"
	FileTypeWebP    FileType = "webp"
	FileTypeZip     FileType = "zip"
	FileTypeSQLite  FileType = "sqlite"
	FileTypeText    FileType = "text"
	FileTypeUnknown FileType = "unknown"
)

// IsImage reports whether t is a cover-capable image type.
func (t FileType) IsImage() bool {
	switch t {
	case FileTypeJPEG, FileTypePNG, FileTypeGIF, FileTypeWebP:
		return true
	}
	return false
}

// magicBytes defines magic byte signatures for file type detection.
var magicBytes = []struct {
	fileType FileType
	magic    []byte
	offset   int
}{
	{FileTypeJPEG, []byte{0xff, 0xd8, 0xff}, 0},
	{FileTypePNG, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, 0},
	{FileTypeGIF, []byte("GIF8"), 0},
	{FileTypeWebP, []byte("WEBP"), 8},
	{FileTypeZip, []byte{0x50, 0x4b, 0x03, 0x04}, 0},
	{FileTypeSQLite, []byte("SQLite format 3\x00"), 0},
}

// ValidateFileType reads the header of reader and checks it against the
// type implied by filename's extension.
func ValidateFileType(reader io.Reader, filename string) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	detected := detectFileTypeFromMagic(buf)
	expected := detectFileTypeFromExtension(filename)

	switch {
	case detected == expected:
		return detected, nil
	case detected == FileTypeUnknown && expected == FileTypeText:
		if isLikelyText(buf) {
			return FileTypeText, nil
		}
		return FileTypeUnknown, fmt.Errorf("file type mismatch: %s does not look like text", filename)
	case detected != FileTypeUnknown && expected != FileTypeUnknown:
		return FileTypeUnknown, fmt.Errorf("file type mismatch: extension suggests %s but content is %s", expected, detected)
	case detected == FileTypeUnknown && expected != FileTypeUnknown:
		return FileTypeUnknown, fmt.Errorf("file type mismatch: %s does not look like %s", filename, expected)
	}
	return detected, nil
}

func detectFileTypeFromMagic(buf []byte) FileType {
	for _, sig := range magicBytes {
		if sig.offset+len(sig.magic) <= len(buf) {
			if bytes.Equal(buf[sig.offset:sig.offset+len(sig.magic)], sig.magic) {
				return sig.fileType
			}
		}
	}
	return FileTypeUnknown
}

func detectFileTypeFromExtension(filename string) FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return FileTypeJPEG
	case ".png":
		return FileTypePNG
	case ".gif":
		return FileTypeGIF
	case ".webp":
		return FileTypeWebP
	case ".zip", ".epub":
		return FileTypeZip
	case ".sqlite", ".db", ".sqlite3":
		return FileTypeSQLite
	case ".txt", ".md", ".css", ".html", ".htm", ".xhtml":
		return FileTypeText
	}
	return FileTypeUnknown
}

// isLikelyText reports whether buf has no NUL bytes and is dominated by
// printable characters. Bytes at or above 0x80 count as neutral so legacy
// double-byte text passes.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}

	printable := 0
	control := 0
	for _, b := range buf {
		switch {
		case b >= 0x20 && b <= 0x7e, b == '\t', b == '\n', b == '\r', b >= 0x80:
			printable++
		case b < 0x20:
			control++
		}
	}
	return float64(printable)/float64(printable+control) > 0.95
}
