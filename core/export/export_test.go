package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/FocuswithJustin/Bookshelf/core/book"
	"github.com/FocuswithJustin/Bookshelf/core/epub"
	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
	"github.com/FocuswithJustin/Bookshelf/internal/config"
)

var sourceText = strings.Join([]string{
	"第一卷 风起",
	"第一章 出山",
	"　一行。",
	"二行 <b>&",
	"",
	"第二章 下山",
	"三行。",
	"第二卷 云涌",
	"第三章 入城",
	"四行。",
}, "\n") + "\n"

var pngCover = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.TargetDir = filepath.Join(t.TempDir(), "out")
	return &cfg
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// volumeBook has two volume headings over three chapters.
func volumeBook(t *testing.T) *book.Book {
	t.Helper()
	dir := t.TempDir()
	b := book.New("7", "斗破", "天蚕")
	b.Description = "少年的故事。\n第二段。"
	b.Tags = []string{"玄幻", "热血"}
	b.Cover = writeFile(t, dir, "cover.png", pngCover)
	b.Source = writeFile(t, dir, "doupo.txt", []byte(sourceText))
	b.SetChapters([]book.Chapter{
		{Title: "第一卷 风起", Volume: book.LabelVolume, StartLine: 1, LineCount: 1},
		{Title: "第一章 出山", Volume: "第一卷 风起", StartLine: 2, LineCount: 3},
		{Title: "第二章 下山", Volume: "第一卷 风起", StartLine: 6, LineCount: 2},
		{Title: "第二卷 云涌", Volume: book.LabelVolume, StartLine: 8, LineCount: 1},
		{Title: "第三章 入城", Volume: "第二卷 云涌", StartLine: 9, LineCount: 2},
	})
	for i := range b.Chapters {
		b.Chapters[i].Source = b.Source
	}
	if err := b.MarkImported(); err != nil {
		t.Fatal(err)
	}
	return b
}

// flatBook has chapters in the default volume only.
func flatBook(t *testing.T) *book.Book {
	t.Helper()
	b := volumeBook(t)
	b.SetChapters([]book.Chapter{
		{Title: "第一章 出山", Volume: book.DefaultVolume, Source: b.Source, StartLine: 2, LineCount: 3},
		{Title: "第二章 下山", Volume: book.DefaultVolume, Source: b.Source, StartLine: 6, LineCount: 2},
	})
	return b
}

func spinePage(info *epub.Info, title string) (epub.PageInfo, bool) {
	for _, p := range info.Spine {
		if p.Title == title {
			return p, true
		}
	}
	return epub.PageInfo{}, false
}

func TestTextSource(t *testing.T) {
	path := writeFile(t, t.TempDir(), "src.txt", []byte(sourceText))
	src := NewTextSource(path)

	tests := []struct {
		name string
		ch   book.Chapter
		want []string
	}{
		{"body", book.Chapter{StartLine: 2, LineCount: 3}, []string{"　一行。", "二行 <b>&"}},
		{"heading only", book.Chapter{StartLine: 1, LineCount: 1}, []string{}},
		{"synthesized", book.Chapter{StartLine: -1, LineCount: -1}, nil},
		{"clamped", book.Chapter{StartLine: 9, LineCount: 10}, []string{"四行。"}},
		{"past end", book.Chapter{StartLine: 40, LineCount: 2}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := src.Lines(tt.ch)
			if err != nil {
				t.Fatalf("Lines() error = %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Lines() = %q, want %q", got, tt.want)
			}
		})
	}

	missing := NewTextSource(filepath.Join(t.TempDir(), "absent.txt"))
	var ioErr *bserrors.IOError
	if _, err := missing.Lines(book.Chapter{StartLine: 1, LineCount: 2}); !errors.As(err, &ioErr) {
		t.Errorf("missing source error = %v, want IOError", err)
	}
}

func TestFragmentSourceMergedRecords(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	b := book.New("42", "书", "作者")
	b.SetChapters([]book.Chapter{
		{Title: "一", Volume: "上卷", Source: writeFile(t, dir, "1.htm", []byte(`<div id="content">甲<br>乙</div>`)), LineCount: -1},
		{Title: "二", Volume: "上卷", Source: writeFile(t, dir, "2.htm", []byte(`<div id="content">丙</div>`)), LineCount: -1},
		{Title: "三", Volume: "上卷", Source: writeFile(t, dir, "3.htm", []byte(`<div id="content">丁</div>`)), LineCount: -1},
	})
	if err := b.MergeRange(0, 1); err != nil {
		t.Fatal(err)
	}

	src := sourceFor(b, &cfg)
	if _, ok := src.(*FragmentSource); !ok {
		t.Fatalf("sourceFor() = %T, want *FragmentSource", src)
	}
	got, err := src.Lines(b.Chapters[0])
	if err != nil {
		t.Fatalf("Lines() error = %v", err)
	}
	if strings.Join(got, "|") != "甲|乙|丙" {
		t.Errorf("merged lines = %q", got)
	}
	got, err = src.Lines(b.Chapters[2])
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, "|") != "丁" {
		t.Errorf("lines = %q", got)
	}
}

func TestEPUBExportVolumes(t *testing.T) {
	cfg := testConfig(t)
	b := volumeBook(t)

	res, err := NewEPUBExporter(cfg).Export(context.Background(), b)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Path != filepath.Join(cfg.Paths.TargetDir, "斗破.epub") {
		t.Errorf("path = %q", res.Path)
	}
	if res.Chapters != 3 || res.Volumes != 2 {
		t.Errorf("chapters/volumes = %d/%d", res.Chapters, res.Volumes)
	}
	if len(res.BLAKE3) != 64 || res.Size == 0 {
		t.Errorf("digest %q size %d", res.BLAKE3, res.Size)
	}

	info, err := epub.Inspect(res.Path)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if info.Depth() != 2 {
		t.Errorf("nav depth = %d, want 2", info.Depth())
	}
	if len(info.TOC) != 2 || len(info.TOC[0].Children) != 2 || len(info.TOC[1].Children) != 1 {
		t.Fatalf("toc = %+v", info.TOC)
	}
	if info.TOC[0].Title != "第一卷 风起" || info.TOC[1].Children[0].Title != "第三章 入城" {
		t.Errorf("toc titles = %+v", info.TOC)
	}
	if info.Title != "斗破" || info.Author != "天蚕" {
		t.Errorf("metadata = %q / %q", info.Title, info.Author)
	}
	sort.Strings(info.Subjects)
	if strings.Join(info.Subjects, ",") != "热血,玄幻" {
		t.Errorf("subjects = %q", info.Subjects)
	}
	if !strings.HasPrefix(info.Identifier, "urn:uuid:") {
		t.Errorf("identifier = %q", info.Identifier)
	}
	if info.Cover == "" {
		t.Error("cover not embedded")
	}

	page, ok := spinePage(info, "第一章 出山")
	if !ok {
		t.Fatalf("chapter page missing from spine: %+v", info.Spine)
	}
	if page.Paragraphs != 2 {
		t.Errorf("paragraphs = %d, want 2", page.Paragraphs)
	}

	again, err := NewEPUBExporter(cfg).Export(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	info2, err := epub.Inspect(again.Path)
	if err != nil {
		t.Fatal(err)
	}
	if info2.Identifier != info.Identifier {
		t.Errorf("identifier changed between exports: %q vs %q", info.Identifier, info2.Identifier)
	}
}

func TestEPUBExportFlat(t *testing.T) {
	cfg := testConfig(t)
	res, err := NewEPUBExporter(cfg).Export(context.Background(), flatBook(t))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Volumes != 0 || res.Chapters != 2 {
		t.Errorf("chapters/volumes = %d/%d", res.Chapters, res.Volumes)
	}
	info, err := epub.Inspect(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Depth() != 1 || len(info.TOC) != 2 {
		t.Errorf("depth %d toc %+v", info.Depth(), info.TOC)
	}
}

func TestEPUBExportSynthesizedHeadings(t *testing.T) {
	cfg := testConfig(t)
	b := volumeBook(t)
	b.SetChapters([]book.Chapter{
		{Title: "第一章 出山", Volume: "上卷", Source: b.Source, StartLine: 2, LineCount: 3},
		{Title: "第三章 入城", Volume: "下卷", Source: b.Source, StartLine: 9, LineCount: 2},
	})

	res, err := NewEPUBExporter(cfg).Export(context.Background(), b)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	info, err := epub.Inspect(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.TOC) != 2 || info.TOC[0].Title != "上卷" || info.TOC[1].Title != "下卷" {
		t.Fatalf("toc = %+v", info.TOC)
	}
	page, ok := spinePage(info, "上卷")
	if !ok || page.Paragraphs != 0 {
		t.Errorf("synthesized heading page = %+v (found %v)", page, ok)
	}
}

func TestExportErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, b *book.Book, cfg *config.Config)
		target error
	}{
		{
			name:   "no chapters",
			mutate: func(t *testing.T, b *book.Book, cfg *config.Config) { b.SetChapters(nil) },
			target: bserrors.ErrEmptyDocument,
		},
		{
			name: "only tombstones",
			mutate: func(t *testing.T, b *book.Book, cfg *config.Config) {
				b.SetChapters([]book.Chapter{{Title: "x", Volume: book.LabelDeleted, StartLine: 2}})
			},
			target: bserrors.ErrEmptyDocument,
		},
		{
			name:   "no cover",
			mutate: func(t *testing.T, b *book.Book, cfg *config.Config) { b.Cover = "" },
			target: bserrors.ErrMissingAsset,
		},
		{
			name: "cover missing on disk",
			mutate: func(t *testing.T, b *book.Book, cfg *config.Config) {
				b.Cover = filepath.Join(t.TempDir(), "gone.jpg")
			},
			target: os.ErrNotExist,
		},
		{
			name: "stylesheet missing",
			mutate: func(t *testing.T, b *book.Book, cfg *config.Config) {
				cfg.Paths.CSSFile = filepath.Join(t.TempDir(), "gone.css")
			},
			target: bserrors.ErrMissingAsset,
		},
		{
			name: "cover not an image",
			mutate: func(t *testing.T, b *book.Book, cfg *config.Config) {
				b.Cover = writeFile(t, t.TempDir(), "cover.txt", []byte("not an image"))
			},
			target: bserrors.ErrInvalidInput,
		},
		{
			name: "deleted book",
			mutate: func(t *testing.T, b *book.Book, cfg *config.Config) {
				if err := b.MarkDeleted(); err != nil {
					t.Fatal(err)
				}
			},
			target: bserrors.ErrInvalidInput,
		},
	}

	exporters := map[string]func(cfg *config.Config) interface {
		Export(context.Context, *book.Book) (*Result, error)
	}{
		"epub": func(cfg *config.Config) interface {
			Export(context.Context, *book.Book) (*Result, error)
		} {
			return NewEPUBExporter(cfg)
		},
		"manuscript": func(cfg *config.Config) interface {
			Export(context.Context, *book.Book) (*Result, error)
		} {
			return NewManuscriptExporter(cfg)
		},
	}

	for kind, newExporter := range exporters {
		for _, tt := range tests {
			t.Run(kind+"/"+tt.name, func(t *testing.T) {
				cfg := testConfig(t)
				b := volumeBook(t)
				tt.mutate(t, b, cfg)

				res, err := newExporter(cfg).Export(context.Background(), b)
				if !errors.Is(err, tt.target) {
					t.Fatalf("Export() error = %v, want %v", err, tt.target)
				}
				if res != nil {
					t.Error("result returned with error")
				}
				entries, _ := os.ReadDir(cfg.Paths.TargetDir)
				if len(entries) != 0 {
					t.Errorf("artifacts left behind: %v", entries)
				}
			})
		}
	}
}
