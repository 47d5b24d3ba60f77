package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"credit-analytics/api"
	"credit-analytics/config"
	"credit-analytics/models"
	"credit-analytics/render"
	"credit-analytics/services"
	"credit-analytics/storage"
	"credit-analytics/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("credit analytics starting", slog.String("mode", cfg.Mode), slog.String("source", cfg.Source))

	store := storage.NewDatasetStore(logger)
	ingestor := services.NewIngestor(logger)

	switch cfg.Mode {
	case "serve":
		err = serve(ctx, cfg, store, ingestor, logger)
	default:
		err = report(ctx, cfg, store, ingestor, logger)
	}
	if err != nil {
		logger.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func report(ctx context.Context, cfg *config.Config, store *storage.DatasetStore, ingestor *services.Ingestor, logger *slog.Logger) error {
	ds, err := loadDataset(ctx, cfg, ingestor, logger)
	if err != nil {
		return err
	}
	store.Replace(ds)

	printer := services.NewPrinter(os.Stdout, isTerminal(os.Stdout))
	printer.PrintDataset(ds)

	subset := services.FilterByCountry(ds.Records, cfg.Query)
	title := reportTitle(cfg.Query)
	summary, statsErr := services.ComputeStatistics(subset)
	printer.PrintSummary(title, summary, statsErr)

	var cmp *models.Comparison
	if cfg.CompareA != "" && cfg.CompareB != "" {
		key, err := services.ParseGroupKey(cfg.CompareKey)
		if err != nil {
			return err
		}
		cmp, err = services.CompareDataset(ds, key, cfg.CompareA, cfg.CompareB)
		if err != nil {
			return err
		}
		printer.PrintComparison(cmp)
	}

	if cfg.ExportPath != "" {
		if err := export(cfg.ExportPath, ds); err != nil {
			logger.Error("CSV export failed", slog.Any("error", err))
		} else {
			logger.Info("normalised records exported", slog.String("path", cfg.ExportPath))
		}
	}

	if cfg.SnapshotDir != "" {
		charts := render.SingleCharts(ds.Generation, title, subset)
		if cmp != nil {
			charts = append(charts, render.ComparisonCharts(cmp)...)
		}
		if err := snapshot(ctx, cfg, store, charts, logger); err != nil {
			logger.Error("chart snapshot failed", slog.Any("error", err))
		}
	}
	return nil
}

// reportTitle names the filtered subset. A blank query is no filter.
func reportTitle(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "All countries"
	}
	return fmt.Sprintf("Countries matching %q", query)
}

func loadDataset(ctx context.Context, cfg *config.Config, ingestor *services.Ingestor, logger *slog.Logger) (*models.Dataset, error) {
	if cfg.Source == "postgres" {
		pg, err := storage.NewPostgresSource(ctx, cfg.DSN(), cfg.PostgresTable, cfg.MaxRetries, logger)
		if err != nil {
			return nil, err
		}
		return fetchDataset(ctx, pg, ingestor)
	}

	raw, err := os.ReadFile(cfg.InputPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", cfg.InputPath, err)
	}
	shape := models.ShapeForFilename(cfg.InputPath)
	if cfg.InputShape != "" {
		if shape, err = models.ParseShape(cfg.InputShape); err != nil {
			return nil, err
		}
	}
	return ingestor.Load(cfg.InputPath, raw, shape)
}

func fetchDataset(ctx context.Context, src storage.RecordSource, ingestor *services.Ingestor) (*models.Dataset, error) {
	defer src.Close()

	records, skipped, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return ingestor.Adopt(src.Name(), records, skipped)
}

func export(path string, ds *models.Dataset) error {
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	return writeAll(w, ds.Records)
}

func writeAll(w storage.RecordWriter, records []models.Record) error {
	if err := w.WriteRecords(records); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func snapshot(ctx context.Context, cfg *config.Config, store *storage.DatasetStore, charts []render.Chart, logger *slog.Logger) error {
	renderer, closeRenderer, err := newChartRenderer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRenderer()

	d := render.NewDispatcher(store, renderer, logger)
	store.Subscribe(d.Invalidate)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	return d.Dispatch(ctx, charts...)
}

// newChartRenderer picks go-chart files or headless Chrome screenshots.
func newChartRenderer(cfg *config.Config, logger *slog.Logger) (render.Renderer, func(), error) {
	if cfg.SnapshotEngine == "chrome" {
		snap, err := render.NewSnapshotter(cfg.SnapshotDir, cfg.ChromeBin, logger)
		if err != nil {
			return nil, nil, err
		}
		return snap, snap.Close, nil
	}
	fr, err := render.NewFileRenderer(cfg.SnapshotDir, logger)
	if err != nil {
		return nil, nil, err
	}
	return fr, func() {}, nil
}

func serve(ctx context.Context, cfg *config.Config, store *storage.DatasetStore, ingestor *services.Ingestor, logger *slog.Logger) error {
	if cfg.InputPath != "" || cfg.Source == "postgres" {
		ds, err := loadDataset(ctx, cfg, ingestor, logger)
		if err != nil {
			logger.Warn("initial dataset not loaded", slog.Any("error", err))
		} else {
			store.Replace(ds)
		}
	}

	srv := api.NewServer(store, ingestor, logger, api.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
