// Package ingest resolves uploaded files into the pipeline's input shape:
// a list of page images plus optional raw text. PDFs are rasterized with
// pdftoppm, images pass through unchanged, and plain-text files bypass OCR
// entirely by carrying their raw content.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/Yureehh/Extractly/constants"
	"github.com/Yureehh/Extractly/internal/llm"
	"github.com/Yureehh/Extractly/internal/pipeline"
)

type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI for PDFs, default 300
	MaxPages int    // 0 = no limit
}

type Resolver struct {
	cfg    Config
	runner Runner
	log    *slog.Logger
}

func NewResolver(cfg Config, logger *slog.Logger) *Resolver {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{cfg: cfg, runner: execRunner{}, log: logger}
}

// WithRunner swaps the command runner; tests use it to stub pdftoppm.
func (r *Resolver) WithRunner(runner Runner) *Resolver {
	r.runner = runner
	return r
}

// Resolve turns one file path into a pipeline document.
func (r *Resolver) Resolve(ctx context.Context, path string) (pipeline.Document, error) {
	filename := filepath.Base(path)
	format := constants.MapExtToFormat(filepath.Ext(path))

	switch format {
	case constants.TEXT:
		data, err := os.ReadFile(path)
		if err != nil {
			return pipeline.Document{}, fmt.Errorf("read text file: %w", err)
		}
		return pipeline.Document{Filename: filename, Text: string(data)}, nil

	case constants.IMAGE:
		data, err := os.ReadFile(path)
		if err != nil {
			return pipeline.Document{}, fmt.Errorf("read image file: %w", err)
		}
		img := llm.Image{MediaType: imageMediaType(path), Data: data}
		return pipeline.Document{Filename: filename, Pages: []llm.Image{img}}, nil

	case constants.PDF:
		pages, err := r.rasterizePDF(ctx, path)
		if err != nil {
			return pipeline.Document{}, err
		}
		return pipeline.Document{Filename: filename, Pages: pages}, nil

	default:
		return pipeline.Document{}, fmt.Errorf("unsupported file type: %s", filename)
	}
}

// rasterizePDF renders each PDF page to PNG via pdftoppm and loads the
// results in page order.
func (r *Resolver) rasterizePDF(ctx context.Context, path string) ([]llm.Image, error) {
	tmpDir, err := os.MkdirTemp("", "extractly-pp-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			r.log.Warn("ingest.tmp_cleanup_failed", "dir", tmpDir, "error", rerr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", r.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if r.cfg.MaxPages > 0 && len(matches) > r.cfg.MaxPages {
		matches = matches[:r.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages for %s", filepath.Base(path))
	}

	pages := make([]llm.Image, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read rendered page: %w", err)
		}
		pages = append(pages, llm.Image{MediaType: "image/png", Data: data})
	}
	return pages, nil
}

func imageMediaType(path string) string {
	switch constants.NormalizeExt(filepath.Ext(path)) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	case "tif", "tiff":
		return "image/tiff"
	default:
		return "image/png"
	}
}
