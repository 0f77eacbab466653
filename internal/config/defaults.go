package config

const (
	defaultPlaceholder     = "%s"
	defaultDefaultVolume   = "正文"
	defaultChapterHeader   = `<h2 id="title">%s</h2>`
	defaultContentLine     = `<p>%s</p>`
	defaultFrontMatter     = "---\n$header$---\n"
	defaultDescription     = "简介"
	defaultPublisher       = "nothingbut"
	defaultLanguage        = "zh"
	defaultEPUBName        = "%s.epub"
	defaultBundleFormat    = "zip"
	defaultConverter       = "pandoc"
	defaultConverterSecs   = 20 * 60
	defaultStartMarker     = `<div id="content">`
	defaultEndMarker       = `</div>`
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
	defaultMaxHeadingLines = 3
	defaultLongLineWidth   = 100
)

// FrontMatterPlaceholder is replaced by the YAML header in the front
// matter template.
const FrontMatterPlaceholder = "$header$"

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Parser: Parser{
			EndingMarkers: []string{"（全书完）", "《全本完》"},
			ChapterPatterns: []string{
				`\s*%s(楔子|序章|序言|序 |引子|终幕|后记)`,
				`\s*%s[第卷][0123456789一二三四五六七八九十零〇百千两]*[章回部节集卷][:： ]`,
			},
			Placeholder: defaultPlaceholder,
		},
		Heuristic: Heuristic{
			MaxHeadingLines: defaultMaxHeadingLines,
			LongLineWidth:   defaultLongLineWidth,
			DefaultVolume:   defaultDefaultVolume,
		},
		Catalog: Catalog{
			StartMarker: defaultStartMarker,
			EndMarker:   defaultEndMarker,
		},
		Render: Render{
			ChapterHeaderTemplate: defaultChapterHeader,
			ContentLineTemplate:   defaultContentLine,
			FrontMatterTemplate:   defaultFrontMatter,
			DescriptionHeading:    defaultDescription,
			Publisher:             defaultPublisher,
			Language:              defaultLanguage,
		},
		Paths: Paths{
			TargetDir: ".",
			EPUBName:  defaultEPUBName,
		},
		Bundle: Bundle{
			Format: defaultBundleFormat,
		},
		Converter: Converter{
			Command:        defaultConverter,
			TimeoutSeconds: defaultConverterSecs,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
