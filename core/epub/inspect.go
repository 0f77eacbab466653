package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	goepub "github.com/taylorskalyo/goreader/epub"
)

var (
	rootfileExpr   = xpath.MustCompile(`//*[local-name()='rootfile']`)
	titleExpr      = xpath.MustCompile(`//*[local-name()='metadata']/*[local-name()='title']`)
	creatorExpr    = xpath.MustCompile(`//*[local-name()='metadata']/*[local-name()='creator']`)
	identifierExpr = xpath.MustCompile(`//*[local-name()='metadata']/*[local-name()='identifier']`)
	languageExpr   = xpath.MustCompile(`//*[local-name()='metadata']/*[local-name()='language']`)
	subjectExpr    = xpath.MustCompile(`//*[local-name()='metadata']/*[local-name()='subject']`)
	coverItemExpr  = xpath.MustCompile(`//*[local-name()='manifest']/*[local-name()='item'][@properties='cover-image']`)
	ncxItemExpr    = xpath.MustCompile(`//*[local-name()='manifest']/*[local-name()='item'][@media-type='application/x-dtbncx+xml']`)
	navMapExpr     = xpath.MustCompile(`//*[local-name()='navMap']/*[local-name()='navPoint']`)
	childPointExpr = xpath.MustCompile(`./*[local-name()='navPoint']`)
	navTextExpr    = xpath.MustCompile(`./*[local-name()='navLabel']/*[local-name()='text']`)
	navSrcExpr     = xpath.MustCompile(`./*[local-name()='content']`)
	pageTitleExpr  = xpath.MustCompile(`//*[local-name()='head']/*[local-name()='title']`)
	paragraphExpr  = xpath.MustCompile(`//*[local-name()='body']//*[local-name()='p']`)
)

// Info is what Inspect reads back from a package.
type Info struct {
	Path       string
	Title      string
	Author     string
	Identifier string
	Language   string
	Subjects   []string
	Cover      string // manifest href of the cover image, "" if none
	Spine      []PageInfo
	TOC        []TOCEntry
}

// PageInfo describes one spine document.
type PageInfo struct {
	Href       string
	Title      string
	Paragraphs int
}

// TOCEntry is one navPoint of toc.ncx.
type TOCEntry struct {
	Title    string
	Src      string
	Children []TOCEntry
}

// Depth returns the nesting depth of the table of contents.
func (i *Info) Depth() int {
	var depth func(entries []TOCEntry) int
	depth = func(entries []TOCEntry) int {
		deepest := 0
		for _, e := range entries {
			if d := 1 + depth(e.Children); d > deepest {
				deepest = d
			}
		}
		return deepest
	}
	return depth(i.TOC)
}

// Inspect opens the package at path and reads its metadata, spine, and
// navigation map.
func Inspect(filename string) (*Info, error) {
	rc, err := goepub.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub")
	}
	pkg := rc.Rootfiles[0]

	info := &Info{Path: filename}
	for _, ref := range pkg.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		page := PageInfo{Href: ref.Item.HREF}
		if r, err := ref.Item.Open(); err == nil {
			if doc, err := xmlquery.Parse(r); err == nil {
				if n := xmlquery.QuerySelector(doc, pageTitleExpr); n != nil {
					page.Title = strings.TrimSpace(n.InnerText())
				}
				page.Paragraphs = len(xmlquery.QuerySelectorAll(doc, paragraphExpr))
			}
			r.Close()
		}
		info.Spine = append(info.Spine, page)
	}

	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open epub archive: %w", err)
	}
	defer zr.Close()

	container, err := parseMember(&zr.Reader, "META-INF/container.xml")
	if err != nil {
		return nil, err
	}
	rootfile := xmlquery.QuerySelector(container, rootfileExpr)
	if rootfile == nil {
		return nil, fmt.Errorf("container.xml has no rootfile")
	}
	opfPath := rootfile.SelectAttr("full-path")

	opf, err := parseMember(&zr.Reader, opfPath)
	if err != nil {
		return nil, err
	}
	info.Title = queryText(opf, titleExpr)
	info.Author = queryText(opf, creatorExpr)
	info.Identifier = queryText(opf, identifierExpr)
	info.Language = queryText(opf, languageExpr)
	for _, n := range xmlquery.QuerySelectorAll(opf, subjectExpr) {
		info.Subjects = append(info.Subjects, strings.TrimSpace(n.InnerText()))
	}
	if n := xmlquery.QuerySelector(opf, coverItemExpr); n != nil {
		info.Cover = n.SelectAttr("href")
	}

	if n := xmlquery.QuerySelector(opf, ncxItemExpr); n != nil {
		ncx, err := parseMember(&zr.Reader, path.Join(path.Dir(opfPath), n.SelectAttr("href")))
		if err != nil {
			return nil, err
		}
		info.TOC = navPoints(xmlquery.QuerySelectorAll(ncx, navMapExpr))
	}
	return info, nil
}

func navPoints(nodes []*xmlquery.Node) []TOCEntry {
	var entries []TOCEntry
	for _, n := range nodes {
		entry := TOCEntry{Title: queryText(n, navTextExpr)}
		if src := xmlquery.QuerySelector(n, navSrcExpr); src != nil {
			entry.Src = src.SelectAttr("src")
		}
		entry.Children = navPoints(xmlquery.QuerySelectorAll(n, childPointExpr))
		entries = append(entries, entry)
	}
	return entries
}

func queryText(top *xmlquery.Node, expr *xpath.Expr) string {
	if n := xmlquery.QuerySelector(top, expr); n != nil {
		return strings.TrimSpace(n.InnerText())
	}
	return ""
}

func parseMember(zr *zip.Reader, name string) (*xmlquery.Node, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", name, err)
		}
		defer rc.Close()
		doc, err := xmlquery.Parse(io.LimitReader(rc, 64<<20))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		return doc, nil
	}
	return nil, fmt.Errorf("%s not found in epub", name)
}
