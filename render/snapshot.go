package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/chromedp/chromedp"

	"credit-analytics/utils"
)

// Snapshotter is a Renderer that loads each chart page in headless Chrome and
// writes a screenshot to <dir>/<chart name>.png next to the HTML source.
type Snapshotter struct {
	dir         string
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	logger      *slog.Logger
}

// NewSnapshotter prepares the output directory and a browser allocator.
// Chrome itself starts lazily on the first Render.
func NewSnapshotter(dir, chromeBin string, logger *slog.Logger) (*Snapshotter, error) {
	if logger == nil {
		logger = utils.NopLogger()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(chartWidth, chartHeight),
	)
	if bin := findChromeBinary(chromeBin); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Snapshotter{
		dir:         abs,
		allocCtx:    allocCtx,
		cancelAlloc: cancel,
		logger:      logger.With(slog.String("component", "snapshotter")),
	}, nil
}

// Render writes the chart page and its PNG screenshot.
func (s *Snapshotter) Render(ctx context.Context, chart Chart) error {
	page, err := Page(chart)
	if errors.Is(err, ErrEmptyChart) {
		s.logger.Info("chart skipped, no data", slog.String("chart", chart.Name))
		return nil
	}
	if err != nil {
		return err
	}

	htmlPath := filepath.Join(s.dir, chart.Name+".html")
	if err := os.WriteFile(htmlPath, page, 0644); err != nil {
		return fmt.Errorf("snapshot: write page: %w", err)
	}

	// Suppress chromedp log noise
	browserCtx, cancel := chromedp.NewContext(s.allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var png []byte
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate("file://"+htmlPath),
		chromedp.WaitVisible("#chart", chromedp.ByID),
		chromedp.Screenshot("#chart", &png, chromedp.ByID),
	); err != nil {
		return fmt.Errorf("snapshot %s: %w", chart.Name, err)
	}

	pngPath := filepath.Join(s.dir, chart.Name+".png")
	if err := os.WriteFile(pngPath, png, 0644); err != nil {
		return fmt.Errorf("snapshot: write png: %w", err)
	}

	s.logger.Info("chart rendered",
		slog.String("chart", chart.Name),
		slog.Uint64("generation", chart.Generation),
		slog.String("path", pngPath))
	return nil
}

// Close shuts the browser down.
func (s *Snapshotter) Close() {
	s.cancelAlloc()
}

// findChromeBinary prefers the configured path, then the first Chrome or
// Chromium found on PATH. An empty result lets chromedp use its default.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
