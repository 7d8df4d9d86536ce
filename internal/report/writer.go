// Package report persists a per-run record of what provisioning did.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"

	"proctor-sync/internal/logx"
)

// Uploader ships a written report somewhere else.
type Uploader interface {
	Upload(ctx context.Context, localPath, remoteName string) error
}

type Writer struct {
	Dir string
	// Compress is "" or "brotli".
	Compress string
	Uploader Uploader // optional
}

// Enabled reports whether reports are written at all.
func (w *Writer) Enabled() bool { return w != nil && w.Dir != "" }

// FileName returns the report name for a run.
func (w *Writer) FileName(runID string) string {
	name := "provision-" + runID + ".csv"
	if w.brotli() {
		name += ".br"
	}
	return name
}

func (w *Writer) brotli() bool { return strings.EqualFold(w.Compress, "brotli") }

// Write stores the report and uploads it when an uploader is set. Upload
// failures are logged and do not fail the call.
func (w *Writer) Write(ctx context.Context, runID string, rows []Row) (string, error) {
	if !w.Enabled() {
		return "", nil
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("report: mkdir %s: %w", w.Dir, err)
	}

	name := w.FileName(runID)
	path := filepath.Join(w.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("report: create %s: %w", path, err)
	}

	var out io.Writer = f
	var bw *brotli.Writer
	if w.brotli() {
		bw = brotli.NewWriterLevel(f, brotli.DefaultCompression)
		out = bw
	}

	err = WriteCSV(out, rows)
	if bw != nil {
		if cerr := bw.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}

	log := logx.FromContext(ctx)
	log.Info("report written", "path", path, "rows", len(rows))

	if w.Uploader != nil {
		if err := w.Uploader.Upload(ctx, path, name); err != nil {
			log.Error("report upload failed", "path", path, "error", err)
		} else {
			log.Info("report uploaded", "name", name)
		}
	}
	return path, nil
}
