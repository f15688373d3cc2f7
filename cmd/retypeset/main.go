package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/joseph-ayodele/retypeset/internal/cache"
	"github.com/joseph-ayodele/retypeset/internal/clean"
	"github.com/joseph-ayodele/retypeset/internal/common"
	"github.com/joseph-ayodele/retypeset/internal/document"
	"github.com/joseph-ayodele/retypeset/internal/entity"
	"github.com/joseph-ayodele/retypeset/internal/export"
	"github.com/joseph-ayodele/retypeset/internal/extract"
	"github.com/joseph-ayodele/retypeset/internal/fingerprint"
	"github.com/joseph-ayodele/retypeset/internal/ingest"
	"github.com/joseph-ayodele/retypeset/internal/layout"
	"github.com/joseph-ayodele/retypeset/internal/ocr"
	"github.com/joseph-ayodele/retypeset/internal/pipeline"
	"github.com/joseph-ayodele/retypeset/internal/render"
)

// printError prints to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir      = flag.String("dir", "", "directory of scanned PDFs to process")
		file     = flag.String("file", "", "single PDF to process")
		out      = flag.String("out", "", "output directory (defaults next to the input)")
		cfgPath  = flag.String("config", "", "optional YAML config file")
		cacheDrv = flag.String("cache", "", "cache driver: sqlite, postgres or memory (overrides config)")
		ocrEng   = flag.String("engine", "", "OCR engine: tesseract or gosseract (overrides config)")
		workers  = flag.Int("workers", 0, "concurrent pages in flight (overrides config)")
		noClean  = flag.Bool("no-clean", false, "skip LLM text cleaning")
		noExport = flag.Bool("no-export", false, "skip XLSX table export")
		verbose  = flag.Bool("verbose", false, "debug logging")
	)
	flag.Parse()

	if *dir == "" && *file == "" {
		printError("Error: one of --dir or --file is required\n")
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := common.LoadConfig()
	if *cfgPath != "" {
		if err := cfg.MergeFile(*cfgPath); err != nil {
			logger.Error("failed to load config file", "path", *cfgPath, "error", err)
			os.Exit(1)
		}
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}
	if *cacheDrv != "" {
		cfg.Cache.Driver = *cacheDrv
	}
	if *ocrEng != "" {
		cfg.OCR.Engine = *ocrEng
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, err := cache.OpenStore(ctx, cfg.Cache, logger)
	if err != nil {
		logger.Error("failed to open cache store", "driver", cfg.Cache.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("cache store close failed", "error", err)
		}
	}()
	rc := cache.New(store, logger)

	engine, ocrVersion, err := buildEngine(ctx, cfg.OCR, logger)
	if err != nil {
		logger.Error("failed to build OCR engine", "engine", cfg.OCR.Engine, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("ocr engine close failed", "error", err)
		}
	}()

	layoutCfg := layout.DefaultConfig()
	layoutCfg.MinTableConfidence = cfg.Layout.MinTableConfidence
	layoutCfg.MinGapPx = cfg.Layout.MinGapPx
	layoutCfg.MarginPx = cfg.Layout.MarginPx
	classifier := layout.NewClassifier(layoutCfg)

	extractor := extract.New(engine, cfg.Extract, logger)

	params := fingerprint.Params{
		DPI:                cfg.OCR.DPI,
		Language:           cfg.OCR.Language,
		PSM:                cfg.OCR.PSM,
		OEM:                cfg.OCR.OEM,
		MinTableConfidence: cfg.Layout.MinTableConfidence,
		MinGapPx:           cfg.Layout.MinGapPx,
		MarginPx:           cfg.Layout.MarginPx,
		LowConfidence:      cfg.Extract.LowConfidence,
	}
	pipe, err := pipeline.New(classifier, extractor, rc, ocrVersion, params, cfg.Pipeline, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	var cleaner clean.Cleaner = clean.NoopCleaner{}
	if !*noClean {
		oc := clean.NewOllamaCleaner(cfg.Clean, logger)
		if _, err := oc.CheckConnection(ctx); err != nil {
			logger.Warn("ollama unavailable, skipping text cleaning", "error", err)
		} else {
			cleaner = oc
		}
	}

	renderer := render.New(logger)
	exporter := export.NewService(logger)
	loader := document.NewLoader(cfg.OCR, logger)

	paths, err := collectInputs(ctx, *dir, *file, logger)
	if err != nil {
		logger.Error("failed to collect inputs", "error", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		printError("Error: no PDFs to process\n")
		os.Exit(1)
	}

	var processed, failures atomic.Int64
	queue := pipeline.NewDocumentQueue(pipe, logger,
		pipeline.WithQueueWorkers(cfg.Pipeline.DocumentWorkers),
		pipeline.WithDocumentTimeout(cfg.Pipeline.DocumentTimeout),
		pipeline.WithReportHandler(func(report *pipeline.DocumentReport) {
			if err := finishOne(ctx, report, *out, cleaner, renderer, exporter, *noExport, logger); err != nil {
				logger.Error("document failed", "path", report.SourcePath, "error", err)
				failures.Add(1)
				return
			}
			processed.Add(1)
		}))

	for _, path := range paths {
		if ctx.Err() != nil {
			logger.Warn("interrupted, stopping intake")
			break
		}
		doc, err := loader.Load(ctx, path)
		if err != nil {
			logger.Error("document failed", "path", path, "error", err)
			failures.Add(1)
			continue
		}
		if err := queue.Enqueue(ctx, doc); err != nil {
			logger.Error("enqueue failed", "path", path, "error", err)
			failures.Add(1)
		}
	}
	// Drain in-flight documents; an interrupt abandons the wait.
	queue.Shutdown(ctx)

	fmt.Printf("Batch complete!\n")
	fmt.Printf("- Documents processed: %d\n", processed.Load())
	fmt.Printf("- Failures: %d\n", failures.Load())
}

// buildEngine constructs the configured OCR engine and resolves the version
// string that feeds every fingerprint.
func buildEngine(ctx context.Context, cfg common.OCRConfig, logger *slog.Logger) (ocr.Engine, string, error) {
	ec := ocr.Config{
		Binary:   cfg.Tesseract,
		Language: cfg.Language,
		PSM:      cfg.PSM,
		OEM:      cfg.OEM,
		Timeout:  cfg.Timeout,
	}
	if cfg.Engine == "gosseract" {
		engine, err := ocr.NewGosseractEngine(ec, logger)
		if err != nil {
			return nil, "", err
		}
		return engine, engine.Version(), nil
	}
	engine := ocr.NewTesseractEngine(ec, logger)
	version, err := engine.ResolveVersion(ctx)
	if err != nil {
		return nil, "", err
	}
	return engine, version, nil
}

func collectInputs(ctx context.Context, dir, file string, logger *slog.Logger) ([]string, error) {
	if file != "" {
		return []string{file}, nil
	}
	scanner := ingest.NewScanner(logger)
	results, stats, err := scanner.ScanDirectory(ctx, dir)
	if err != nil {
		return nil, err
	}
	logger.Info("scan complete",
		"matched", stats.Matched, "accepted", stats.Accepted,
		"deduplicated", stats.Deduplicated, "failed", stats.Failed)
	return ingest.Accepted(results), nil
}

// finishOne turns one processed document's report into the output files.
// It runs on a queue worker; everything it touches is per-document.
func finishOne(
	ctx context.Context,
	report *pipeline.DocumentReport,
	outDir string,
	cleaner clean.Cleaner,
	renderer *render.Renderer,
	exporter *export.Service,
	noExport bool,
	logger *slog.Logger,
) error {
	path := report.SourcePath
	fmt.Print(report.Summary())

	contents := report.Contents()
	if len(contents) == 0 {
		return fmt.Errorf("every page failed")
	}

	pages := make([]render.Page, 0, len(contents))
	for _, content := range contents {
		prose := proseOf(content)
		if prose != "" {
			cleaned, err := cleaner.CleanText(ctx, prose)
			if err != nil {
				logger.Warn("cleaning failed, keeping raw text", "page", content.PageIndex, "error", err)
			} else {
				prose = cleaned
			}
		}
		pages = append(pages, render.Page{Index: content.PageIndex, Prose: prose, Tables: content.Tables})
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	pdfPath := filepath.Join(outDir, base+"-retypeset.pdf")
	f, err := os.Create(pdfPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", pdfPath, err)
	}
	cached, fresh, failed := report.Counts()
	meta := render.Meta{
		Title: base,
		Notes: []string{fmt.Sprintf("%d pages (%d cached, %d fresh, %d failed)", len(report.Pages), cached, fresh, failed)},
	}
	if err := renderer.Render(f, meta, pages); err != nil {
		f.Close()
		return fmt.Errorf("render: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", pdfPath, err)
	}
	logger.Info("wrote pdf", "path", pdfPath)

	summaryPath := filepath.Join(outDir, base+"-summary.pdf")
	sf, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", summaryPath, err)
	}
	if err := renderer.RenderSummary(sf, meta, pages); err != nil {
		sf.Close()
		return fmt.Errorf("render summary: %w", err)
	}
	if err := sf.Close(); err != nil {
		return fmt.Errorf("close %s: %w", summaryPath, err)
	}
	logger.Info("wrote summary", "path", summaryPath)

	if !noExport && hasTables(contents) {
		xlsx, err := exporter.ExportTablesXLSX(contents)
		if err != nil {
			return fmt.Errorf("export tables: %w", err)
		}
		xlsxPath := filepath.Join(outDir, base+"-tables.xlsx")
		if err := os.WriteFile(xlsxPath, xlsx, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", xlsxPath, err)
		}
		logger.Info("wrote workbook", "path", xlsxPath)
	}
	return nil
}

func proseOf(content *entity.ExtractedContent) string {
	var b strings.Builder
	for _, ln := range content.Lines {
		b.WriteString(ln.Text)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

func hasTables(contents []*entity.ExtractedContent) bool {
	for _, c := range contents {
		if len(c.Tables) > 0 {
			return true
		}
	}
	return false
}
