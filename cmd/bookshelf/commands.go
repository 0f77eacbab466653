package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/FocuswithJustin/Bookshelf/core/book"
	"github.com/FocuswithJustin/Bookshelf/core/epub"
	"github.com/FocuswithJustin/Bookshelf/core/export"
	"github.com/FocuswithJustin/Bookshelf/core/importer"
	"github.com/FocuswithJustin/Bookshelf/core/volume"
	"github.com/FocuswithJustin/Bookshelf/internal/archive"
)

// TocCmd prints the chapter table of a source.
type TocCmd struct {
	BookFlags `embed:""`

	BodyOnly bool `name:"body-only" help:"Hide volume headings and merged records"`
	Outline  bool `name:"outline" help:"Print the organized outline instead of the raw records"`
}

func (c *TocCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	b, rep, err := c.load(context.Background(), cfg)
	if err != nil {
		return err
	}

	out := g.stdout()
	if c.Outline {
		fmt.Fprintln(out, outlineTable(volume.Organize(b.Chapters)))
	} else {
		filter := book.Live
		if c.BodyOnly {
			filter = book.BodyOnly
		}
		fmt.Fprintln(out, chapterTable(book.NewView(b, filter)))
	}
	printReport(out, b, rep)
	return nil
}

func chapterTable(v *book.View) string {
	rows := make([][]string, 0, v.Len())
	for row := 0; row < v.Len(); row++ {
		ch, _ := v.Row(row)
		rows = append(rows, []string{
			strconv.Itoa(ch.Ordinal),
			ch.Title,
			ch.Volume,
			lineNumber(ch.StartLine),
			lineNumber(ch.LineCount),
		})
	}
	return renderTable(
		[]string{"#", "Title", "Volume", "Start", "Lines"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
	)
}

func outlineTable(o *volume.Outline) string {
	var rows [][]string
	for _, e := range o.Entries {
		if e.IsTombstone() {
			continue
		}
		title := e.Title
		if !e.IsHeading() && !o.Flat() {
			title = "└ " + title
		}
		rows = append(rows, []string{title, lineNumber(e.LineCount)})
	}
	return renderTable([]string{"Outline", "Lines"}, rows, []columnAlignment{alignLeft, alignRight})
}

func lineNumber(n int) string {
	if n < 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

func printReport(w io.Writer, b *book.Book, rep *importer.Report) {
	fmt.Fprintf(w, "Book: %s (%s)\n", b.Title, b.ID)
	fmt.Fprintf(w, "  Source: %s\n", rep.Source)
	fmt.Fprintf(w, "  Records: %d (%d volume headings)\n", b.Len(), rep.Headings)
	if rep.Encoding != nil {
		fmt.Fprintf(w, "  Encoding: %s via %s\n", rep.Encoding.Charset, rep.Encoding.Decoder)
		if rep.Degraded() {
			fmt.Fprintf(w, "  WARNING: %v\n", rep.Encoding.Warning)
		}
	}
	if !rep.Stats.Ended && rep.Encoding != nil {
		fmt.Fprintln(w, "  No ending marker found")
	}
}

// EPUBCmd builds an EPUB package.
type EPUBCmd struct {
	BookFlags `embed:""`
}

func (c *EPUBCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	b, _, err := c.load(ctx, cfg)
	if err != nil {
		return err
	}
	res, err := export.NewEPUBExporter(cfg).Export(ctx, b)
	if err != nil {
		return err
	}
	printResult(g.stdout(), res)
	return nil
}

// ManuscriptCmd builds a manuscript bundle.
type ManuscriptCmd struct {
	BookFlags `embed:""`

	Format  string `name:"format" help:"Bundle format (zip, tar.gz, tar.xz)"`
	Convert bool   `name:"convert" help:"Run the configured converter on the manuscript"`
}

func (c *ManuscriptCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if c.Format != "" {
		format, err := archive.ParseFormat(c.Format)
		if err != nil {
			return err
		}
		cfg.Bundle.Format = string(format)
	}
	if c.Convert {
		cfg.Converter.Enabled = true
	}

	ctx := context.Background()
	b, _, err := c.load(ctx, cfg)
	if err != nil {
		return err
	}
	res, err := export.NewManuscriptExporter(cfg).Export(ctx, b)
	if err != nil {
		return err
	}
	printResult(g.stdout(), res)
	return nil
}

func printResult(w io.Writer, res *export.Result) {
	fmt.Fprintf(w, "Wrote: %s\n", res.Path)
	fmt.Fprintf(w, "  Size: %s\n", humanize.Bytes(uint64(res.Size)))
	fmt.Fprintf(w, "  BLAKE3: %s\n", res.BLAKE3)
	fmt.Fprintf(w, "  Chapters: %d in %d volumes\n", res.Chapters, res.Volumes)
	if res.Bundle != "" && res.Bundle != res.Path {
		fmt.Fprintf(w, "  Bundle: %s\n", res.Bundle)
	}
}

// InspectCmd prints an EPUB's metadata and table of contents.
type InspectCmd struct {
	Path string `arg:"" help:"EPUB file" type:"existingfile"`
}

func (c *InspectCmd) Run(g *Globals) error {
	info, err := epub.Inspect(c.Path)
	if err != nil {
		return err
	}
	out := g.stdout()
	fmt.Fprintf(out, "EPUB: %s\n", info.Path)
	fmt.Fprintf(out, "  Title: %s\n", info.Title)
	fmt.Fprintf(out, "  Author: %s\n", info.Author)
	fmt.Fprintf(out, "  Identifier: %s\n", info.Identifier)
	fmt.Fprintf(out, "  Language: %s\n", info.Language)
	if len(info.Subjects) > 0 {
		fmt.Fprintf(out, "  Subjects: %s\n", strings.Join(info.Subjects, ", "))
	}
	if info.Cover != "" {
		fmt.Fprintf(out, "  Cover: %s\n", info.Cover)
	}
	fmt.Fprintf(out, "  Spine: %d documents, %s paragraphs\n", len(info.Spine), humanize.Comma(int64(paragraphs(info))))
	fmt.Fprintf(out, "  Navigation depth: %d\n", info.Depth())
	printTOC(out, info.TOC, "    ")
	return nil
}

func paragraphs(info *epub.Info) int {
	n := 0
	for _, p := range info.Spine {
		n += p.Paragraphs
	}
	return n
}

func printTOC(w io.Writer, entries []epub.TOCEntry, indent string) {
	for _, e := range entries {
		fmt.Fprintf(w, "%s%s\n", indent, e.Title)
		printTOC(w, e.Children, indent+"  ")
	}
}
