package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func readMember(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("not a zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatal(err)
		}
		return string(b)
	}
	t.Fatalf("%s missing from package", name)
	return ""
}

func twoVolumeBook() *EPUB {
	e := New()
	e.SetTitle("星河")
	e.SetAuthor("某人")
	e.SetBookID("1001")
	e.AddSubject("科幻")
	e.AddSubject("  ")
	e.AddSubject("长篇")

	v1 := e.AddPage("第一卷", `<h2 id="title">第一卷</h2>`, nil)
	e.AddPage("第一章", `<h2 id="title">第一章</h2><p>一</p><p>二</p>`, v1)
	e.AddPage("第二章", `<h2 id="title">第二章</h2><p>三</p>`, v1)
	v2 := e.AddPage("第二卷", `<h2 id="title">第二卷</h2>`, nil)
	e.AddPage("第三章", `<h2 id="title">第三章</h2><p>四 &amp; 五</p>`, v2)
	return e
}

func TestBuildEmpty(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Error("Build() of an empty book should fail")
	}
}

func TestBuildMimetypeFirst(t *testing.T) {
	data, err := twoVolumeBook().Build()
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	first := zr.File[0]
	if first.Name != "mimetype" || first.Method != zip.Store {
		t.Errorf("first entry = %s (method %d), want stored mimetype", first.Name, first.Method)
	}
}

func TestPageTree(t *testing.T) {
	e := twoVolumeBook()
	if e.PageCount() != 5 {
		t.Errorf("PageCount() = %d", e.PageCount())
	}
	if e.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", e.Depth())
	}
	if len(e.Pages) != 2 || len(e.Pages[0].Children) != 2 {
		t.Errorf("unexpected tree shape")
	}
	if got := e.Pages[1].File(); got != "text/page0004.xhtml" {
		t.Errorf("File() = %q", got)
	}

	flat := New()
	flat.AddPage("第一章", "<p>x</p>", nil)
	if flat.Depth() != 1 {
		t.Errorf("flat Depth() = %d", flat.Depth())
	}
}

func TestContentOPF(t *testing.T) {
	e := twoVolumeBook()
	e.SetCover(pngHeader, "")
	data, err := e.Build()
	if err != nil {
		t.Fatal(err)
	}
	opf := readMember(t, data, "OEBPS/content.opf")

	for _, want := range []string{
		"<dc:title>星河</dc:title>",
		"<dc:subject>科幻</dc:subject>",
		"<dc:subject>长篇</dc:subject>",
		`href="images/cover.png" media-type="image/png" properties="cover-image"`,
		`<meta name="cover" content="cover-image"/>`,
		`<itemref idref="page0005"/>`,
	} {
		if !strings.Contains(opf, want) {
			t.Errorf("content.opf missing %q", want)
		}
	}
	if strings.Count(opf, "<dc:subject>") != 2 {
		t.Error("blank subjects should be ignored")
	}
	readMember(t, data, "OEBPS/images/cover.png")
}

func TestStableIdentifier(t *testing.T) {
	a, b := New(), New()
	a.SetBookID("1001")
	b.SetBookID("1001")
	if a.Metadata.Identifier != b.Metadata.Identifier {
		t.Error("same book ID should give the same identifier")
	}
	b.SetBookID("1002")
	if a.Metadata.Identifier == b.Metadata.Identifier {
		t.Error("different book IDs should differ")
	}
	if !strings.HasPrefix(a.Metadata.Identifier, "urn:uuid:") {
		t.Errorf("Identifier = %q", a.Metadata.Identifier)
	}
}

func TestDefaultAndCustomCSS(t *testing.T) {
	e := twoVolumeBook()
	data, err := e.Build()
	if err != nil {
		t.Fatal(err)
	}
	if got := readMember(t, data, "OEBPS/style.css"); got != DefaultCSS {
		t.Errorf("style.css = %q, want default", got)
	}

	e.SetCSS("p { color: red; }")
	data, err = e.Build()
	if err != nil {
		t.Fatal(err)
	}
	if got := readMember(t, data, "OEBPS/style.css"); got != "p { color: red; }" {
		t.Errorf("style.css = %q", got)
	}
}

func TestInspectRoundTrip(t *testing.T) {
	e := twoVolumeBook()
	e.SetCover(pngHeader, "image/png")
	path := filepath.Join(t.TempDir(), "book.epub")
	if err := e.Save(path); err != nil {
		t.Fatal(err)
	}

	info, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() = %v", err)
	}
	if info.Title != "星河" || info.Author != "某人" {
		t.Errorf("metadata = %q / %q", info.Title, info.Author)
	}
	if info.Identifier != e.Metadata.Identifier {
		t.Errorf("Identifier = %q", info.Identifier)
	}
	if len(info.Subjects) != 2 {
		t.Errorf("Subjects = %v", info.Subjects)
	}
	if info.Cover != "images/cover.png" {
		t.Errorf("Cover = %q", info.Cover)
	}
	if info.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", info.Depth())
	}
	if len(info.TOC) != 2 || info.TOC[0].Title != "第一卷" || len(info.TOC[0].Children) != 2 {
		t.Fatalf("TOC = %+v", info.TOC)
	}
	if got := info.TOC[1].Children[0]; got.Title != "第三章" || got.Src != "text/page0005.xhtml" {
		t.Errorf("TOC[1].Children[0] = %+v", got)
	}

	// Cover page plus five content pages.
	if len(info.Spine) != 6 {
		t.Fatalf("Spine has %d pages", len(info.Spine))
	}
	if p := info.Spine[2]; p.Title != "第一章" || p.Paragraphs != 2 {
		t.Errorf("Spine[2] = %+v", p)
	}
}
