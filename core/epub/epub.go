// Package epub writes EPUB 3 packages with a two-level page tree and reads
// them back for inspection.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/Bookshelf/core/encoding"
)

// DefaultCSS is used when no stylesheet is supplied.
const DefaultCSS = `body {
  font-family: serif;
  margin: 1em;
  line-height: 1.6;
}
h1, h2, h3 {
  font-family: sans-serif;
}
p {
  text-indent: 2em;
  margin: 0.5em 0;
}
`

// bookNamespace scopes name-based identifiers derived from book IDs.
var bookNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/FocuswithJustin/Bookshelf"))

// EPUB represents an EPUB document.
type EPUB struct {
	Metadata  BookMetadata
	Pages     []*Page
	cover     []byte
	coverMime string
	css       string
	count     int
}

// BookMetadata contains EPUB metadata.
type BookMetadata struct {
	Title       string
	Author      string
	Language    string
	Identifier  string
	Publisher   string
	Description string
	Date        string
	Subjects    []string
}

// Page is one XHTML document in the package. Content is an XHTML body
// fragment inserted verbatim.
type Page struct {
	Title    string
	Content  string
	Children []*Page
	index    int
}

// File returns the page's path relative to the OEBPS directory.
func (p *Page) File() string {
	return fmt.Sprintf("text/page%04d.xhtml", p.index)
}

// New creates a new EPUB.
func New() *EPUB {
	return &EPUB{
		Metadata: BookMetadata{
			Language:   "zh",
			Identifier: "urn:uuid:" + uuid.NewString(),
			Date:       time.Now().Format("2006-01-02"),
		},
	}
}

// SetTitle sets the book title.
func (e *EPUB) SetTitle(title string) {
	e.Metadata.Title = title
}

// SetAuthor sets the book author.
func (e *EPUB) SetAuthor(author string) {
	e.Metadata.Author = author
}

// SetLanguage sets the book language.
func (e *EPUB) SetLanguage(lang string) {
	e.Metadata.Language = lang
}

// SetIdentifier sets the book identifier verbatim.
func (e *EPUB) SetIdentifier(id string) {
	e.Metadata.Identifier = id
}

// SetBookID derives a stable urn:uuid identifier from a host book ID, so
// repeated exports of the same book share an identifier.
func (e *EPUB) SetBookID(bookID string) {
	e.Metadata.Identifier = "urn:uuid:" + uuid.NewSHA1(bookNamespace, []byte(bookID)).String()
}

// SetPublisher sets the book publisher.
func (e *EPUB) SetPublisher(publisher string) {
	e.Metadata.Publisher = publisher
}

// SetDescription sets the book description.
func (e *EPUB) SetDescription(desc string) {
	e.Metadata.Description = desc
}

// AddSubject adds a dc:subject entry.
func (e *EPUB) AddSubject(subject string) {
	if subject = strings.TrimSpace(subject); subject != "" {
		e.Metadata.Subjects = append(e.Metadata.Subjects, subject)
	}
}

// SetCover sets the cover image. An empty mimeType is sniffed from data.
func (e *EPUB) SetCover(data []byte, mimeType string) {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	e.cover = data
	e.coverMime = mimeType
}

// SetCSS sets the stylesheet.
func (e *EPUB) SetCSS(css string) {
	e.css = css
}

// AddPage appends a page under parent, or at the top level when parent is
// nil. Only two levels are rendered in the navigation documents.
func (e *EPUB) AddPage(title, content string, parent *Page) *Page {
	e.count++
	p := &Page{Title: title, Content: content, index: e.count}
	if parent == nil {
		e.Pages = append(e.Pages, p)
	} else {
		parent.Children = append(parent.Children, p)
	}
	return p
}

// PageCount returns the number of pages at every level.
func (e *EPUB) PageCount() int {
	return e.count
}

// Depth returns the navigation depth: 2 when any page has children.
func (e *EPUB) Depth() int {
	for _, p := range e.Pages {
		if len(p.Children) > 0 {
			return 2
		}
	}
	return 1
}

// walk visits pages in reading order.
func (e *EPUB) walk(fn func(p *Page) error) error {
	var visit func(pages []*Page) error
	visit = func(pages []*Page) error {
		for _, p := range pages {
			if err := fn(p); err != nil {
				return err
			}
			if err := visit(p.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(e.Pages)
}

func (e *EPUB) coverExt() string {
	switch {
	case strings.Contains(e.coverMime, "png"):
		return "png"
	case strings.Contains(e.coverMime, "gif"):
		return "gif"
	case strings.Contains(e.coverMime, "webp"):
		return "webp"
	}
	return "jpg"
}

// Save builds the package and writes it to path.
func (e *EPUB) Save(path string) error {
	data, err := e.Build()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Build creates the EPUB as bytes.
func (e *EPUB) Build() ([]byte, error) {
	if len(e.Pages) == 0 {
		return nil, fmt.Errorf("EPUB must have at least one page")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// Add mimetype (must be first, uncompressed)
	mimetypeWriter, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return nil, err
	}
	if _, err := mimetypeWriter.Write([]byte("application/epub+zip")); err != nil {
		return nil, err
	}

	steps := []func(*zip.Writer) error{
		e.addContainerXML,
		e.addContentOPF,
		e.addTocNCX,
		e.addTocXHTML,
		e.addCSS,
	}
	if len(e.cover) > 0 {
		steps = append(steps, e.addCover, e.addCoverPage)
	}
	for _, step := range steps {
		if err := step(zw); err != nil {
			return nil, err
		}
	}

	err = e.walk(func(p *Page) error {
		return e.addPage(zw, p)
	})
	if err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (e *EPUB) addContainerXML(zw *zip.Writer) error {
	w, err := zw.Create("META-INF/container.xml")
	if err != nil {
		return err
	}

	container := `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

	_, err = w.Write([]byte(container))
	return err
}

func (e *EPUB) addContentOPF(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/content.opf")
	if err != nil {
		return err
	}

	var manifestItems strings.Builder
	var spineItems strings.Builder
	var extraMeta strings.Builder

	manifestItems.WriteString(`    <item id="toc" href="toc.xhtml" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
	manifestItems.WriteString(`    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>` + "\n")
	manifestItems.WriteString(`    <item id="style" href="style.css" media-type="text/css"/>` + "\n")

	if len(e.cover) > 0 {
		fmt.Fprintf(&manifestItems, `    <item id="cover-image" href="images/cover.%s" media-type="%s" properties="cover-image"/>`+"\n",
			e.coverExt(), encoding.EscapeXMLAttr(e.coverMime))
		manifestItems.WriteString(`    <item id="cover" href="cover.xhtml" media-type="application/xhtml+xml"/>` + "\n")
		spineItems.WriteString(`    <itemref idref="cover" linear="no"/>` + "\n")
		extraMeta.WriteString(`    <meta name="cover" content="cover-image"/>` + "\n")
	}

	for _, subject := range e.Metadata.Subjects {
		fmt.Fprintf(&extraMeta, "    <dc:subject>%s</dc:subject>\n", encoding.EscapeXMLText(subject))
	}

	_ = e.walk(func(p *Page) error {
		id := fmt.Sprintf("page%04d", p.index)
		fmt.Fprintf(&manifestItems, `    <item id="%s" href="%s" media-type="application/xhtml+xml"/>`+"\n", id, p.File())
		fmt.Fprintf(&spineItems, `    <itemref idref="%s"/>`+"\n", id)
		return nil
	})

	opf := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="BookId">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="BookId">%s</dc:identifier>
    <dc:title>%s</dc:title>
    <dc:creator>%s</dc:creator>
    <dc:language>%s</dc:language>
    <dc:date>%s</dc:date>
    <dc:publisher>%s</dc:publisher>
    <dc:description>%s</dc:description>
%s    <meta property="dcterms:modified">%s</meta>
  </metadata>
  <manifest>
%s  </manifest>
  <spine toc="ncx">
%s  </spine>
</package>`,
		encoding.EscapeXMLText(e.Metadata.Identifier),
		encoding.EscapeXMLText(e.Metadata.Title),
		encoding.EscapeXMLText(e.Metadata.Author),
		encoding.EscapeXMLText(e.Metadata.Language),
		encoding.EscapeXMLText(e.Metadata.Date),
		encoding.EscapeXMLText(e.Metadata.Publisher),
		encoding.EscapeXMLText(e.Metadata.Description),
		extraMeta.String(),
		time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		manifestItems.String(),
		spineItems.String(),
	)

	_, err = w.Write([]byte(opf))
	return err
}

func (e *EPUB) addTocNCX(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/toc.ncx")
	if err != nil {
		return err
	}

	var navPoints strings.Builder
	order := 0
	var writePoints func(pages []*Page, indent string)
	writePoints = func(pages []*Page, indent string) {
		for _, p := range pages {
			order++
			fmt.Fprintf(&navPoints, "%s<navPoint id=\"navpoint%d\" playOrder=\"%d\">\n", indent, order, order)
			fmt.Fprintf(&navPoints, "%s  <navLabel><text>%s</text></navLabel>\n", indent, encoding.EscapeXMLText(p.Title))
			fmt.Fprintf(&navPoints, "%s  <content src=\"%s\"/>\n", indent, p.File())
			writePoints(p.Children, indent+"  ")
			fmt.Fprintf(&navPoints, "%s</navPoint>\n", indent)
		}
	}
	writePoints(e.Pages, "    ")

	ncx := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
    <meta name="dtb:uid" content="%s"/>
    <meta name="dtb:depth" content="%d"/>
    <meta name="dtb:totalPageCount" content="0"/>
    <meta name="dtb:maxPageNumber" content="0"/>
  </head>
  <docTitle><text>%s</text></docTitle>
  <navMap>
%s  </navMap>
</ncx>`,
		encoding.EscapeXMLAttr(e.Metadata.Identifier),
		e.Depth(),
		encoding.EscapeXMLText(e.Metadata.Title),
		navPoints.String(),
	)

	_, err = w.Write([]byte(ncx))
	return err
}

func (e *EPUB) addTocXHTML(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/toc.xhtml")
	if err != nil {
		return err
	}

	var tocItems strings.Builder
	var writeItems func(pages []*Page, indent string)
	writeItems = func(pages []*Page, indent string) {
		for _, p := range pages {
			fmt.Fprintf(&tocItems, `%s<li><a href="%s">%s</a>`, indent, p.File(), encoding.EscapeXMLText(p.Title))
			if len(p.Children) > 0 {
				fmt.Fprintf(&tocItems, "\n%s  <ol>\n", indent)
				writeItems(p.Children, indent+"    ")
				fmt.Fprintf(&tocItems, "%s  </ol>\n%s", indent, indent)
			}
			tocItems.WriteString("</li>\n")
		}
	}
	writeItems(e.Pages, "      ")

	toc := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
  <title>%s</title>
  <link rel="stylesheet" type="text/css" href="style.css"/>
</head>
<body>
  <nav epub:type="toc" id="toc">
    <h1>%s</h1>
    <ol>
%s    </ol>
  </nav>
</body>
</html>`, encoding.EscapeXMLText(e.Metadata.Title), encoding.EscapeXMLText(e.Metadata.Title), tocItems.String())

	_, err = w.Write([]byte(toc))
	return err
}

func (e *EPUB) addCSS(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/style.css")
	if err != nil {
		return err
	}

	css := e.css
	if css == "" {
		css = DefaultCSS
	}

	_, err = w.Write([]byte(css))
	return err
}

func (e *EPUB) addCover(zw *zip.Writer) error {
	w, err := zw.Create(fmt.Sprintf("OEBPS/images/cover.%s", e.coverExt()))
	if err != nil {
		return err
	}

	_, err = w.Write(e.cover)
	return err
}

func (e *EPUB) addCoverPage(zw *zip.Writer) error {
	w, err := zw.Create("OEBPS/cover.xhtml")
	if err != nil {
		return err
	}

	xhtml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>%s</title>
</head>
<body>
  <img src="images/cover.%s" alt="%s"/>
</body>
</html>`,
		encoding.EscapeXMLText(e.Metadata.Title),
		e.coverExt(),
		encoding.EscapeXMLAttr(e.Metadata.Title),
	)

	_, err = w.Write([]byte(xhtml))
	return err
}

func (e *EPUB) addPage(zw *zip.Writer, p *Page) error {
	w, err := zw.Create("OEBPS/" + p.File())
	if err != nil {
		return err
	}

	xhtml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>%s</title>
  <link rel="stylesheet" type="text/css" href="../style.css"/>
</head>
<body>
%s
</body>
</html>`,
		encoding.EscapeXMLText(p.Title),
		p.Content,
	)

	_, err = w.Write([]byte(xhtml))
	return err
}
