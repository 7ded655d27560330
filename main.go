package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"pdb-harvest/config"
	"pdb-harvest/models"
	"pdb-harvest/providers/pdbe"
	"pdb-harvest/providers/rcsb"
	"pdb-harvest/providers/uniprot"
	"pdb-harvest/services"
	"pdb-harvest/storage"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// harvester führt einen vollständigen Lauf aus.
type harvester interface {
	Run(ctx context.Context, since string) (*models.PipelineRun, error)
}

func main() {
	os.Exit(run())
}

func run() int {
	since := flag.String("since", "", "release date (YYYY-MM-DD); prompts when empty")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		return 1
	}
	logging, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't initialize zap logger: %v\n", err)
		return 1
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := services.NewMetrics(prometheus.DefaultRegisterer)

	if flag.Arg(0) == "serve" {
		sinks, ledger, archive, closeSinks := setupSinks(ctx, cfg, logging)
		defer closeSinks()
		pipeline := newPipeline(cfg, logging, metrics, sinks...)
		if err := serve(ctx, cfg, logging, pipeline, ledger, archive); err != nil {
			logging.Error("Failed to run server", zap.Error(err))
			return 1
		}
		return 0
	}
	return harvestCLI(ctx, cfg, logging, metrics, *since, os.Stdin, os.Stdout)
}

// harvestCLI prüft das Datum, bevor Sinks geöffnet werden; ein ungültiges Datum
// hinterlässt keine Dateien.
func harvestCLI(ctx context.Context, cfg *config.Config, logging *zap.Logger, metrics *services.Metrics, since string, in io.Reader, out io.Writer) int {
	since, ok := promptSince(since, in, out)
	if !ok {
		return 1
	}
	if err := services.ValidateDate(since); err != nil {
		fmt.Fprintln(out, "Invalid date format. Use YYYY-MM-DD.")
		return 1
	}

	sinks, _, _, closeSinks := setupSinks(ctx, cfg, logging)
	defer closeSinks()
	return runOnce(ctx, newPipeline(cfg, logging, metrics, sinks...), since, in, out)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	if cfg.LogDevelopment {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func newPipeline(cfg *config.Config, logging *zap.Logger, metrics *services.Metrics, sinks ...services.Sink) *services.Pipeline {
	entries := rcsb.NewFetcher(cfg, logging)
	mappings := pdbe.NewFetcher(cfg, logging)
	texts := uniprot.NewFetcher(cfg, logging)
	logging.Info("Active providers loaded", zap.Strings("providers", []string{entries.Name(), mappings.Name(), texts.Name()}))
	return services.NewPipeline(cfg, logging, metrics, entries, entries, mappings, texts, entries, sinks...)
}

// setupSinks öffnet die konfigurierten Sinks. Ein Sink, der sich nicht öffnen lässt,
// wird mit einer Warnung übersprungen.
func setupSinks(ctx context.Context, cfg *config.Config, logging *zap.Logger) ([]services.Sink, *storage.Ledger, *storage.Archive, func()) {
	var (
		sinks   []services.Sink
		ledger  *storage.Ledger
		archive *storage.Archive
	)
	if cfg.ArchiveEnabled() {
		a, err := storage.OpenArchive(cfg, logging)
		if err != nil {
			logging.Warn("Archiv-Datenbank nicht verfügbar", zap.Error(err))
		} else {
			archive = a
			sinks = append(sinks, a)
		}
	}
	if cfg.UploadEnabled() {
		u, err := storage.NewUploader(ctx, cfg, logging)
		if err != nil {
			logging.Warn("S3-Upload nicht verfügbar", zap.Error(err))
		} else {
			sinks = append(sinks, u)
		}
	}
	// Journal zuletzt, damit es die Fehler der übrigen Sinks sieht
	if cfg.LedgerEnabled() {
		l, err := storage.OpenLedger(cfg.LedgerPath, logging)
		if err != nil {
			logging.Warn("Lauf-Journal nicht verfügbar", zap.Error(err))
		} else {
			ledger = l
			sinks = append(sinks, l)
		}
	}
	return sinks, ledger, archive, func() {
		if ledger != nil {
			_ = ledger.Close()
		}
	}
}

// promptSince fragt das Datum ab, wenn since leer ist.
func promptSince(since string, in io.Reader, out io.Writer) (string, bool) {
	if since == "" {
		fmt.Fprint(out, "Enter a release date (YYYY-MM-DD): ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			fmt.Fprintf(out, "\nFailed to read input: %v\n", err)
			return "", false
		}
		since = line
	}
	return strings.TrimSpace(since), true
}

// runOnce führt einen interaktiven Lauf aus und liefert den Exit-Code.
func runOnce(ctx context.Context, h harvester, since string, in io.Reader, out io.Writer) int {
	since, ok := promptSince(since, in, out)
	if !ok {
		return 1
	}

	run, err := h.Run(ctx, since)
	switch {
	case errors.Is(err, services.ErrInvalidDate):
		fmt.Fprintln(out, "Invalid date format. Use YYYY-MM-DD.")
		return 1
	case errors.Is(err, services.ErrNoEntries):
		fmt.Fprintf(out, "No PDB entries released since %s.\n", since)
		return 1
	case err != nil:
		fmt.Fprintf(out, "Run failed: %v\n", err)
		return 1
	}

	fmt.Fprintf(out, "\nProcessed %d of %d entries (%d skipped), %d passed the filter.\n",
		run.Processed, run.Discovered, run.Skipped, run.Filtered)
	fmt.Fprintf(out, "Wrote %d chain records (%d FASTA failures).\n", run.FastaRecords, run.FastaFailures)
	for _, f := range run.OutputFiles {
		fmt.Fprintf(out, "  %s\n", f)
	}
	for _, e := range run.SinkErrors {
		fmt.Fprintf(out, "  warning: %s\n", e)
	}
	return 0
}
