package codegen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"
)

// File is one output file
type File struct {
	Path   string
	Render func(io.Writer) error
}

// GoFile renders a jennifer file to path
func GoFile(path string, f *jen.File) File {
	return File{Path: path, Render: f.Render}
}

// Writer renders and writes files concurrently
type Writer struct {
	// Workers bounds concurrent renders, runtime.GOMAXPROCS(0) when zero
	Workers int
}

// WriteAll renders every file and writes it. A failed render leaves the
// previous content on disk.
func (w *Writer) WriteAll(ctx context.Context, files []File) error {
	workers := w.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, file := range files {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var b bytes.Buffer
			if err := file.Render(&b); err != nil {
				return fmt.Errorf("render %s: %w", file.Path, err)
			}
			if dir := filepath.Dir(file.Path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(file.Path, b.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", file.Path, err)
			}
			return nil
		})
	}
	return eg.Wait()
}
