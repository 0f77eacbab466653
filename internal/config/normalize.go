package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeParser()
	c.normalizeHeuristic()
	c.normalizeRender()
	c.normalizeBundle()
	c.normalizeConverter()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.TargetDir, err = expandPath(c.Paths.TargetDir); err != nil {
		return fmt.Errorf("paths.target_dir: %w", err)
	}
	if c.Paths.SourceDir, err = expandPath(c.Paths.SourceDir); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if c.Paths.CSSFile, err = expandPath(c.Paths.CSSFile); err != nil {
		return fmt.Errorf("paths.css_file: %w", err)
	}
	if c.Catalog.Database, err = expandPath(c.Catalog.Database); err != nil {
		return fmt.Errorf("catalog.database: %w", err)
	}
	if c.Catalog.SourceDir, err = expandPath(c.Catalog.SourceDir); err != nil {
		return fmt.Errorf("catalog.source_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.EPUBName) == "" {
		c.Paths.EPUBName = defaultEPUBName
	}
	return nil
}

func (c *Config) normalizeParser() {
	if c.Parser.Placeholder == "" {
		c.Parser.Placeholder = defaultPlaceholder
	}
	markers := c.Parser.EndingMarkers[:0]
	for _, m := range c.Parser.EndingMarkers {
		if m = strings.TrimSpace(m); m != "" {
			markers = append(markers, m)
		}
	}
	c.Parser.EndingMarkers = markers
}

func (c *Config) normalizeHeuristic() {
	c.Heuristic.DefaultVolume = strings.TrimSpace(c.Heuristic.DefaultVolume)
	if c.Heuristic.DefaultVolume == "" {
		c.Heuristic.DefaultVolume = defaultDefaultVolume
	}
}

func (c *Config) normalizeRender() {
	if c.Render.ChapterHeaderTemplate == "" {
		c.Render.ChapterHeaderTemplate = defaultChapterHeader
	}
	if c.Render.ContentLineTemplate == "" {
		c.Render.ContentLineTemplate = defaultContentLine
	}
	if c.Render.FrontMatterTemplate == "" {
		c.Render.FrontMatterTemplate = defaultFrontMatter
	}
	if strings.TrimSpace(c.Render.Language) == "" {
		c.Render.Language = defaultLanguage
	}
}

func (c *Config) normalizeBundle() {
	format := strings.ToLower(strings.TrimSpace(c.Bundle.Format))
	switch format {
	case "":
		format = defaultBundleFormat
	case "tgz":
		format = "tar.gz"
	case "txz":
		format = "tar.xz"
	}
	c.Bundle.Format = format
}

func (c *Config) normalizeConverter() {
	c.Converter.Command = strings.TrimSpace(c.Converter.Command)
	if c.Converter.Command == "" {
		c.Converter.Command = defaultConverter
	}
	if c.Converter.TimeoutSeconds == 0 {
		c.Converter.TimeoutSeconds = defaultConverterSecs
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
