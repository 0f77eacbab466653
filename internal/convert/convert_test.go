package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
	"github.com/FocuswithJustin/Bookshelf/internal/config"
)

func newTestConverter(run CommandRunner) *Converter {
	c := New(config.Converter{Command: "pandoc", Args: []string{"--toc"}, TimeoutSeconds: 60})
	c.WithCommandRunner(run)
	return c
}

func TestArgs(t *testing.T) {
	c := newTestConverter(nil)
	got := c.Args(Request{WorkDir: "/w", Manuscript: "书-作者.md", Output: "/out/书.epub"})
	want := []string{"书-作者.md", "-o", "/out/书.epub", "--resource-path=/w", "--toc"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %q, want %q", got, want)
	}
}

func TestConvertSuccess(t *testing.T) {
	work := t.TempDir()
	out := filepath.Join(t.TempDir(), "书.epub")

	var gotDir, gotName string
	c := newTestConverter(func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		gotDir, gotName = dir, name
		return nil, os.WriteFile(args[2], []byte("epub"), 0o644)
	})

	if err := c.Convert(context.Background(), Request{WorkDir: work, Manuscript: "m.md", Output: out}); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if gotDir != work || gotName != "pandoc" {
		t.Errorf("runner called with dir=%q name=%q", gotDir, gotName)
	}
}

func TestConvertFailure(t *testing.T) {
	work := t.TempDir()
	c := newTestConverter(func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		return []byte("pandoc: unknown option\n"), errors.New("exit status 2")
	})

	err := c.Convert(context.Background(), Request{WorkDir: work, Manuscript: "m.md", Output: filepath.Join(work, "o.epub")})
	var ce *bserrors.ConverterError
	if !errors.As(err, &ce) {
		t.Fatalf("Convert() error = %v, want ConverterError", err)
	}
	if !errors.Is(err, bserrors.ErrConverterFailed) {
		t.Error("error does not match ErrConverterFailed")
	}
	if ce.WorkDir != work || ce.Output != "pandoc: unknown option" {
		t.Errorf("ConverterError = %+v", ce)
	}
	if _, statErr := os.Stat(work); statErr != nil {
		t.Error("work dir was removed")
	}
}

func TestConvertNoOutput(t *testing.T) {
	c := newTestConverter(func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		return nil, nil
	})
	err := c.Convert(context.Background(), Request{WorkDir: t.TempDir(), Manuscript: "m.md", Output: filepath.Join(t.TempDir(), "o.epub")})
	if !errors.Is(err, bserrors.ErrConverterFailed) {
		t.Fatalf("Convert() error = %v, want ErrConverterFailed", err)
	}
}

func TestConvertTimeout(t *testing.T) {
	c := newTestConverter(func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c.timeout = 10 * time.Millisecond

	err := c.Convert(context.Background(), Request{WorkDir: t.TempDir(), Manuscript: "m.md", Output: "/nonexistent/o.epub"})
	if !errors.Is(err, bserrors.ErrConverterFailed) {
		t.Fatalf("Convert() error = %v, want ErrConverterFailed", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error %q does not mention the timeout", err)
	}
}

func TestConvertValidation(t *testing.T) {
	c := newTestConverter(func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		t.Fatal("runner should not be called")
		return nil, nil
	})
	if err := c.Convert(context.Background(), Request{}); !errors.Is(err, bserrors.ErrInvalidInput) {
		t.Errorf("Convert(empty) error = %v", err)
	}
}

func TestTrimOutput(t *testing.T) {
	long := strings.Repeat("x", maxOutput+10) + "tail"
	got := trimOutput([]byte(long))
	if len(got) != maxOutput || !strings.HasSuffix(got, "tail") {
		t.Errorf("trimOutput kept %d bytes", len(got))
	}
}
