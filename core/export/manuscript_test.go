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
	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
	"github.com/FocuswithJustin/Bookshelf/internal/archive"
	"github.com/FocuswithJustin/Bookshelf/internal/config"
	"github.com/FocuswithJustin/Bookshelf/internal/convert"
)

const manuscriptName = "斗破-天蚕.md"

func readManuscript(t *testing.T, bundle string) string {
	t.Helper()
	data, err := archive.ReadFile(bundle, manuscriptName)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", manuscriptName, err)
	}
	return string(data)
}

func TestManuscriptExportBundle(t *testing.T) {
	formats := []struct {
		format string
		ext    string
	}{
		{"zip", ".zip"},
		{"tar.gz", ".tar.gz"},
		{"tar.xz", ".tar.xz"},
	}
	for _, tt := range formats {
		t.Run(tt.format, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Bundle.Format = tt.format

			res, err := NewManuscriptExporter(cfg).Export(context.Background(), volumeBook(t))
			if err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			want := filepath.Join(cfg.Paths.TargetDir, "7.斗破-天蚕"+tt.ext)
			if res.Bundle != want || res.Path != want {
				t.Errorf("bundle = %q path = %q, want %q", res.Bundle, res.Path, want)
			}
			if res.Converted != "" {
				t.Errorf("converted = %q without a converter", res.Converted)
			}
			if res.Chapters != 3 || res.Volumes != 2 || len(res.BLAKE3) != 64 {
				t.Errorf("result = %+v", res)
			}

			names, err := archive.List(res.Bundle)
			if err != nil {
				t.Fatal(err)
			}
			sort.Strings(names)
			if strings.Join(names, ",") != "cover.png,style.css,"+manuscriptName {
				t.Errorf("bundle entries = %q", names)
			}

			entries, err := os.ReadDir(cfg.Paths.TargetDir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 1 {
				t.Errorf("target dir holds %d entries, want only the bundle", len(entries))
			}
		})
	}
}

func TestManuscriptContent(t *testing.T) {
	cfg := testConfig(t)
	res, err := NewManuscriptExporter(cfg).Export(context.Background(), volumeBook(t))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	text := readManuscript(t, res.Bundle)

	for _, want := range []string{
		"---\ntitle: 斗破\n",
		"author: 天蚕\n",
		"subject: 玄幻,热血\n",
		"publisher: nothingbut\n",
		"cover-image: cover.png\n",
		"css: style.css\n",
		"---\n\n# 简介\n\n少年的故事。\n\n第二段。\n\n",
		"# 第一卷 风起\n\n## 第一章 出山\n\n一行。\n\n二行 <b>&\n\n## 第二章 下山\n\n三行。\n\n",
		"# 第二卷 云涌\n\n## 第三章 入城\n\n四行。\n\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("manuscript missing %q\n%s", want, text)
		}
	}
	if strings.Index(text, "title:") > strings.Index(text, "author:") {
		t.Error("front matter keys out of order")
	}
}

func TestManuscriptFlatAndSynthesized(t *testing.T) {
	t.Run("flat", func(t *testing.T) {
		cfg := testConfig(t)
		res, err := NewManuscriptExporter(cfg).Export(context.Background(), flatBook(t))
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		text := readManuscript(t, res.Bundle)
		if strings.Contains(text, "## ") {
			t.Error("flat manuscript has chapter-level headings")
		}
		if !strings.Contains(text, "# 第一章 出山\n\n一行。") || strings.Contains(text, "# 正文") {
			t.Errorf("unexpected flat layout:\n%s", text)
		}
	})

	t.Run("synthesized", func(t *testing.T) {
		cfg := testConfig(t)
		b := volumeBook(t)
		b.SetChapters([]book.Chapter{
			{Title: "第一章 出山", Volume: "上卷", Source: b.Source, StartLine: 2, LineCount: 3},
			{Title: "第三章 入城", Volume: "下卷", Source: b.Source, StartLine: 9, LineCount: 2},
		})
		res, err := NewManuscriptExporter(cfg).Export(context.Background(), b)
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		text := readManuscript(t, res.Bundle)
		if !strings.Contains(text, "# 上卷\n\n上卷\n\n## 第一章 出山\n\n") {
			t.Errorf("synthesized heading not rendered as title only:\n%s", text)
		}
	})
}

func TestManuscriptConverter(t *testing.T) {
	cfg := testConfig(t)
	var gotDir string
	var gotArgs []string
	conv := convert.New(config.Converter{Command: "pandoc"})
	conv.WithCommandRunner(func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		gotDir, gotArgs = dir, args
		if _, err := os.Stat(filepath.Join(dir, args[0])); err != nil {
			return nil, err
		}
		return nil, os.WriteFile(args[2], []byte("epub"), 0o644)
	})

	res, err := NewManuscriptExporter(cfg).WithConverter(conv).Export(context.Background(), volumeBook(t))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	want := filepath.Join(cfg.Paths.TargetDir, "斗破.epub")
	if res.Converted != want || res.Path != want {
		t.Errorf("converted = %q path = %q", res.Converted, res.Path)
	}
	if res.Size != 4 {
		t.Errorf("size = %d, want the converted artifact", res.Size)
	}
	if gotArgs[0] != manuscriptName {
		t.Errorf("manuscript arg = %q", gotArgs[0])
	}
	if _, err := os.Stat(gotDir); !os.IsNotExist(err) {
		t.Errorf("working directory %s not removed", gotDir)
	}
	if _, err := os.Stat(res.Bundle); err != nil {
		t.Errorf("bundle missing: %v", err)
	}
}

func TestManuscriptConverterFailureKeepsWorkDir(t *testing.T) {
	cfg := testConfig(t)
	conv := convert.New(config.Converter{Command: "pandoc"})
	conv.WithCommandRunner(func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		return []byte("pandoc: unknown option"), errors.New("exit status 2")
	})

	res, err := NewManuscriptExporter(cfg).WithConverter(conv).Export(context.Background(), volumeBook(t))
	if !errors.Is(err, bserrors.ErrConverterFailed) {
		t.Fatalf("Export() error = %v, want ErrConverterFailed", err)
	}
	if res != nil {
		t.Error("result returned with error")
	}

	var convErr *bserrors.ConverterError
	if !errors.As(err, &convErr) {
		t.Fatal("error is not a ConverterError")
	}
	if _, err := os.Stat(filepath.Join(convErr.WorkDir, manuscriptName)); err != nil {
		t.Errorf("manuscript not kept in %s: %v", convErr.WorkDir, err)
	}
	if !strings.Contains(convErr.Output, "unknown option") {
		t.Errorf("output = %q", convErr.Output)
	}
}

func TestManuscriptUnsupportedFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bundle.Format = "rar"
	_, err := NewManuscriptExporter(cfg).Export(context.Background(), volumeBook(t))
	if !errors.Is(err, bserrors.ErrUnsupported) {
		t.Fatalf("Export() error = %v, want ErrUnsupported", err)
	}
}
