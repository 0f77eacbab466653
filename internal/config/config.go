package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
)

// Parser configures line classification.
type Parser struct {
	EndingMarkers   []string `toml:"ending_markers" yaml:"ending_markers"`
	ChapterPatterns []string `toml:"chapter_patterns" yaml:"chapter_patterns"`
	Prefixes        []string `toml:"prefixes" yaml:"prefixes"`
	Placeholder     string   `toml:"placeholder" yaml:"placeholder"`
}

// Heuristic configures the volume heading policy.
type Heuristic struct {
	MaxHeadingLines int    `toml:"max_heading_lines" yaml:"max_heading_lines"`
	LongLineWidth   int    `toml:"long_line_width" yaml:"long_line_width"`
	DefaultVolume   string `toml:"default_volume" yaml:"default_volume"`
}

// Catalog configures catalog-backed books: one markup fragment per chapter,
// body text cut out between StartMarker and EndMarker.
type Catalog struct {
	Database    string `toml:"database" yaml:"database"`
	SourceDir   string `toml:"source_dir" yaml:"source_dir"`
	StartMarker string `toml:"start_marker" yaml:"start_marker"`
	EndMarker   string `toml:"end_marker" yaml:"end_marker"`
}

// Render configures page and manuscript rendering. Templates use %s for the
// escaped text.
type Render struct {
	ChapterHeaderTemplate string `toml:"chapter_header_template" yaml:"chapter_header_template"`
	ContentLineTemplate   string `toml:"content_line_template" yaml:"content_line_template"`
	FrontMatterTemplate   string `toml:"front_matter_template" yaml:"front_matter_template"`
	DescriptionHeading    string `toml:"description_heading" yaml:"description_heading"`
	Publisher             string `toml:"publisher" yaml:"publisher"`
	Language              string `toml:"language" yaml:"language"`
}

// Paths contains file and directory locations.
type Paths struct {
	TargetDir string `toml:"target_dir" yaml:"target_dir"`
	SourceDir string `toml:"source_dir" yaml:"source_dir"`
	CSSFile   string `toml:"css_file" yaml:"css_file"`
	EPUBName  string `toml:"epub_name" yaml:"epub_name"`
}

// Bundle configures the manuscript archive.
type Bundle struct {
	Format string `toml:"format" yaml:"format"`
}

// Converter configures the optional external document converter.
type Converter struct {
	Enabled        bool     `toml:"enabled" yaml:"enabled"`
	Command        string   `toml:"command" yaml:"command"`
	Args           []string `toml:"args" yaml:"args"`
	TimeoutSeconds int      `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the converter deadline.
func (c Converter) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Config is passed explicitly to every pipeline stage.
//
// Sections:
//   - Parser: ending markers, chapter patterns, prefixes
//   - Heuristic: volume heading thresholds
//   - Catalog: catalog database and fragment delimiters
//   - Render: templates and package metadata
//   - Paths: target, staging and stylesheet locations
//   - Bundle: manuscript archive format
//   - Converter: external converter invocation
//   - Logging: log level and format
type Config struct {
	Parser    Parser    `toml:"parser" yaml:"parser"`
	Heuristic Heuristic `toml:"heuristic" yaml:"heuristic"`
	Catalog   Catalog   `toml:"catalog" yaml:"catalog"`
	Render    Render    `toml:"render" yaml:"render"`
	Paths     Paths     `toml:"paths" yaml:"paths"`
	Bundle    Bundle    `toml:"bundle" yaml:"bundle"`
	Converter Converter `toml:"converter" yaml:"converter"`
	Logging   Logging   `toml:"logging" yaml:"logging"`
}

// Load reads the configuration at path over the defaults. An empty path
// yields the defaults; an explicit path that does not exist is an error.
// The format follows the extension: .toml, .yaml or .yml.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return nil, err
		}
		file, err := os.Open(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, bserrors.NewIO("open config", expanded, err)
			}
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := decode(file, expanded, &cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(r io.Reader, path string, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.NewDecoder(r).Decode(cfg); err != nil {
			return &bserrors.ParseError{Format: "config", Path: path, Message: err.Error(), Err: err}
		}
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return &bserrors.ParseError{Format: "config", Path: path, Message: err.Error(), Err: err}
		}
	default:
		return bserrors.NewUnsupported("config format", ext)
	}
	return nil
}

// EnsureDirectories creates the target and staging directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.TargetDir, c.Paths.SourceDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
