package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdb-harvest/config"
	"pdb-harvest/models"
	"pdb-harvest/providers"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidDate wird zurückgegeben, wenn das Datum nicht im Format YYYY-MM-DD vorliegt.
	ErrInvalidDate = errors.New("invalid date format, use YYYY-MM-DD")
	// ErrNoEntries wird zurückgegeben, wenn die Suche keine Einträge liefert.
	ErrNoEntries = errors.New("no released PDB entries found")
)

// Sink nimmt die Ergebnisse eines abgeschlossenen Laufs entgegen (Archiv, Journal, Upload).
type Sink interface {
	Name() string
	Store(ctx context.Context, run *models.PipelineRun, entries []*models.PdbEntry, chains []models.FastaRecord) error
}

// Pipeline orchestriert einen vollständigen Harvest-Lauf. Alle Abrufe laufen sequentiell.
type Pipeline struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *Metrics
	Discoverer providers.Discoverer
	Aggregator *Aggregator
	UniProt    providers.FlatTextSource
	Fasta      *FastaRetriever
	Sinks      []Sink
	Now        func() time.Time
}

// NewPipeline erstellt eine Pipeline aus den Providern.
func NewPipeline(cfg *config.Config, logger *zap.Logger, metrics *Metrics,
	discoverer providers.Discoverer, entries providers.EntrySource, mappings providers.MappingSource,
	uniprot providers.FlatTextSource, fasta providers.FastaSource, sinks ...Sink) *Pipeline {
	return &Pipeline{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics,
		Discoverer: discoverer,
		Aggregator: NewAggregator(entries, mappings, logger),
		UniProt:    uniprot,
		Fasta:      NewFastaRetriever(fasta, cfg.FastaOutputDir(), logger, metrics),
		Sinks:      sinks,
		Now:        time.Now,
	}
}

// ValidateDate prüft das Format YYYY-MM-DD.
func ValidateDate(since string) error {
	if _, err := time.Parse("2006-01-02", since); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, since)
	}
	return nil
}

// Run führt Discovery, Aggregation, Filter, CSV-Export und FASTA-Abruf für since aus.
// Fehler einzelner Einträge werden protokolliert und übersprungen; nur ein ungültiges Datum,
// eine leere Suche, ein abgebrochener Kontext oder ein Fehler beim Schreiben der Ausgaben
// brechen den Lauf ab.
func (p *Pipeline) Run(ctx context.Context, since string) (*models.PipelineRun, error) {
	if err := ValidateDate(since); err != nil {
		return nil, err
	}

	run := &models.PipelineRun{
		ID:        uuid.NewString(),
		Since:     since,
		StartedAt: p.Now(),
		Status:    models.RunStatusRunning,
	}
	log := p.Logger.With(zap.String("run_id", run.ID), zap.String("since", since))

	uniprotDir := filepath.Join(p.Config.OutputDir, "uniprot_entries_"+strings.ReplaceAll(since, "-", ""))
	if err := os.MkdirAll(uniprotDir, 0o755); err != nil {
		return p.abort(run, fmt.Errorf("create uniprot dir: %w", err))
	}

	log.Info("[1] Hole freigegebene PDB-IDs...")
	ids, err := p.Discoverer.ReleasedSince(ctx, since)
	if err != nil {
		log.Error("RCSB-Suche fehlgeschlagen", zap.Error(err))
	}
	run.Discovered = len(ids)
	if len(ids) == 0 {
		return p.abort(run, ErrNoEntries)
	}

	log.Info("[2] Hole Metadaten für jede PDB-ID...", zap.Int("total", len(ids)))
	annotations := NewAnnotationFetcher(p.UniProt, NewAnnotationCache(), uniprotDir, p.Logger, p.Metrics)
	var all []*models.PdbEntry
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return p.abort(run, fmt.Errorf("aggregation interrupted after %d of %d entries: %w", i, len(ids), err))
		}
		log.Info("Hole Metadaten", zap.String("pdb_id", id), zap.Int("index", i+1), zap.Int("total", len(ids)))
		entry, err := p.Aggregator.Aggregate(ctx, id, annotations)
		if err != nil {
			log.Warn("Metadaten konnten nicht abgerufen werden, Eintrag wird übersprungen", zap.String("pdb_id", id), zap.Error(err))
			run.SkippedIDs = append(run.SkippedIDs, id)
			p.Metrics.EntriesSkipped.Inc()
			continue
		}
		entry.RunID = run.ID
		all = append(all, entry)
		p.Metrics.EntriesProcessed.Inc()
	}
	filtered := Partition(all)
	p.Metrics.EntriesFiltered.Add(float64(len(filtered)))
	run.Processed = len(all)
	run.Skipped = len(run.SkippedIDs)
	run.Filtered = len(filtered)

	today := p.Now().Format("2006-01-02")
	run.AllCSV = filepath.Join(p.Config.OutputDir, fmt.Sprintf("pdb_metadata_all_since_%s_saved_%s.csv", since, today))
	run.FilteredCSV = filepath.Join(p.Config.OutputDir, fmt.Sprintf("pdb_metadata_filtered_since_%s_saved_%s.csv", since, today))
	if err := WriteEntriesCSV(run.AllCSV, all); err != nil {
		return p.abort(run, err)
	}
	if err := WriteEntriesCSV(run.FilteredCSV, filtered); err != nil {
		return p.abort(run, err)
	}
	run.OutputFiles = append(run.OutputFiles, run.AllCSV, run.FilteredCSV)

	log.Info("[3] Hole FASTA-Sequenzen für gefilterte PDB-IDs...", zap.Int("filtered", len(filtered)))
	report, err := p.Fasta.FetchFromCSV(ctx, run.FilteredCSV)
	if err != nil {
		return p.abort(run, err)
	}
	for i := range report.Records {
		report.Records[i].RunID = run.ID
	}
	run.FastaRecords = len(report.Records)
	run.FastaFailures = len(report.Failed)
	run.FailedFastaIDs = report.Failed
	run.OutputFiles = append(run.OutputFiles, report.Files()...)

	finished := p.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted

	for _, sink := range p.Sinks {
		if err := sink.Store(ctx, run, all, report.Records); err != nil {
			log.Error("Sink fehlgeschlagen", zap.String("sink", sink.Name()), zap.Error(err))
			run.SinkErrors = append(run.SinkErrors, fmt.Sprintf("%s: %v", sink.Name(), err))
		}
	}

	p.Metrics.Runs.WithLabelValues(run.Status).Inc()
	p.Metrics.LastRunSuccess.Set(float64(finished.Unix()))
	log.Info("Lauf abgeschlossen",
		zap.Int("discovered", run.Discovered),
		zap.Int("processed", run.Processed),
		zap.Int("skipped", run.Skipped),
		zap.Int("filtered", run.Filtered),
		zap.Int("fasta_records", run.FastaRecords),
		zap.Int("fasta_failures", run.FastaFailures))
	return run, nil
}

func (p *Pipeline) abort(run *models.PipelineRun, err error) (*models.PipelineRun, error) {
	finished := p.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusAborted
	p.Metrics.Runs.WithLabelValues(run.Status).Inc()
	p.Logger.Error("Lauf abgebrochen", zap.String("run_id", run.ID), zap.Error(err))
	return run, err
}
