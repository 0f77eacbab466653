package config

import (
	"fmt"
	"strings"

	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
)

// BundleFormats lists the accepted manuscript archive formats.
var BundleFormats = []string{"zip", "tar.gz", "tar.xz"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateParser(); err != nil {
		return err
	}
	if err := c.validateHeuristic(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateBundle(); err != nil {
		return err
	}
	if err := c.validateConverter(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateParser() error {
	for _, p := range c.Parser.ChapterPatterns {
		if strings.TrimSpace(p) != "" {
			return nil
		}
	}
	return bserrors.NewValidation("parser.chapter_patterns", "at least one pattern is required")
}

func (c *Config) validateHeuristic() error {
	if c.Heuristic.MaxHeadingLines < 0 {
		return bserrors.NewValidation("heuristic.max_heading_lines", "must not be negative")
	}
	if c.Heuristic.LongLineWidth <= 0 {
		return bserrors.NewValidation("heuristic.long_line_width", "must be positive")
	}
	return nil
}

func (c *Config) validateRender() error {
	if !strings.Contains(c.Render.ChapterHeaderTemplate, "%s") {
		return bserrors.NewValidation("render.chapter_header_template", "must contain %s")
	}
	if !strings.Contains(c.Render.ContentLineTemplate, "%s") {
		return bserrors.NewValidation("render.content_line_template", "must contain %s")
	}
	if !strings.Contains(c.Render.FrontMatterTemplate, FrontMatterPlaceholder) {
		return bserrors.NewValidation("render.front_matter_template", "must contain "+FrontMatterPlaceholder)
	}
	if strings.Count(c.Paths.EPUBName, "%s") > 1 {
		return bserrors.NewValidation("paths.epub_name", "may contain %s at most once")
	}
	return nil
}

func (c *Config) validateBundle() error {
	for _, f := range BundleFormats {
		if c.Bundle.Format == f {
			return nil
		}
	}
	return &bserrors.ValidationError{
		Field:   "bundle.format",
		Value:   c.Bundle.Format,
		Message: fmt.Sprintf("must be one of %s", strings.Join(BundleFormats, ", ")),
	}
}

func (c *Config) validateConverter() error {
	if c.Converter.TimeoutSeconds < 0 {
		return bserrors.NewValidation("converter.timeout_seconds", "must not be negative")
	}
	return nil
}
