// Command bookshelf turns plain-text and catalog-backed novels into EPUB
// packages and manuscript bundles.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/Bookshelf/internal/config"
	"github.com/FocuswithJustin/Bookshelf/internal/logging"
)

const version = "0.4.0"

// Globals are flags shared by every command.
type Globals struct {
	Config    string `name:"config" short:"c" help:"Configuration file (.yaml, .yml or .toml)" type:"path"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Log format (auto, json, text)"`

	out io.Writer `kong:"-"`
}

// stdout returns where command output goes.
func (g *Globals) stdout() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

// load reads the configuration and initializes logging from it, letting
// the command-line flags override the configured level and format.
func (g *Globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.Logging.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Logging.Format = g.LogFormat
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	logging.InitLogger(level, format)
	return cfg, nil
}

// CLI defines the command-line interface for bookshelf.
type CLI struct {
	Globals

	Toc        TocCmd        `cmd:"" help:"Segment a source and print its chapter table"`
	EPUB       EPUBCmd       `cmd:"" name:"epub" help:"Build an EPUB package"`
	Manuscript ManuscriptCmd `cmd:"" help:"Build a manuscript bundle, optionally converting it"`
	Inspect    InspectCmd    `cmd:"" help:"Show the metadata and navigation of an EPUB"`
	Version    VersionCmd    `cmd:"" help:"Print version information"`
}

// VersionCmd prints the version and SQLite driver in use.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Fprintf(g.stdout(), "bookshelf version %s (sqlite driver: %s)\n", version, sqliteDriver())
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bookshelf"),
		kong.Description("Bookshelf - plain-text novel to e-book pipeline"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
