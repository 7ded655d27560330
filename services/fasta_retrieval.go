package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdb-harvest/models"
	"pdb-harvest/providers"

	"go.uber.org/zap"
)

// FastaReport fasst das Ergebnis eines FASTA-Abrufs zusammen.
type FastaReport struct {
	Records   []models.FastaRecord
	Failed    []string
	FastaPath string
	TextPath  string
	CSVPath   string
	// leer, wenn kein Abruf fehlgeschlagen ist
	FailedPath string
}

// Files liefert alle geschriebenen Dateien.
func (r *FastaReport) Files() []string {
	files := []string{r.FastaPath, r.TextPath, r.CSVPath}
	if r.FailedPath != "" {
		files = append(files, r.FailedPath)
	}
	return files
}

// FastaRetriever holt Ketten-FASTA für die IDs einer CSV und schreibt FASTA-, Text- und CSV-Ausgabe.
type FastaRetriever struct {
	Source  providers.FastaSource
	Dir     string
	Logger  *zap.Logger
	Metrics *Metrics
	Now     func() time.Time
}

// NewFastaRetriever erstellt einen Retriever, der nach dir schreibt.
func NewFastaRetriever(source providers.FastaSource, dir string, logger *zap.Logger, metrics *Metrics) *FastaRetriever {
	return &FastaRetriever{Source: source, Dir: dir, Logger: logger, Metrics: metrics, Now: time.Now}
}

// FetchFromCSV liest die Spalte PDB_ID aus csvPath und holt pro ID den FASTA-Text.
// Fehlgeschlagene IDs landen in failed_ids_<datum>.txt, es gibt keine Wiederholung.
func (f *FastaRetriever) FetchFromCSV(ctx context.Context, csvPath string) (*FastaReport, error) {
	ids, err := ReadPDBIDs(csvPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create fasta dir: %w", err)
	}

	date := f.Now().Format("20060102")
	report := &FastaReport{
		FastaPath: filepath.Join(f.Dir, fmt.Sprintf("pdb_fasta_by_chain_%s.fasta", date)),
		TextPath:  filepath.Join(f.Dir, fmt.Sprintf("pdb_fasta_by_chain_%s.txt", date)),
		CSVPath:   filepath.Join(f.Dir, fmt.Sprintf("pdb_fasta_by_chain_%s.csv", date)),
	}

	f.Logger.Info("Starte FASTA-Abruf", zap.String("csv", csvPath), zap.Int("ids", len(ids)))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fasta retrieval interrupted: %w", err)
		}
		text, err := f.Source.Fasta(ctx, id)
		if err != nil {
			f.Logger.Warn("FASTA-Abruf fehlgeschlagen", zap.String("pdb_id", id), zap.Error(err))
			report.Failed = append(report.Failed, id)
			f.Metrics.FastaFailures.Inc()
			continue
		}
		for _, block := range ParseFasta(text) {
			pdb, chain, desc := ExtractHeader(block.Header)
			report.Records = append(report.Records, models.FastaRecord{
				PDBID:       pdb,
				ChainID:     chain,
				Description: desc,
				Sequence:    block.Sequence,
				Header:      block.Header,
			})
		}
	}
	f.Metrics.FastaRecords.Add(float64(len(report.Records)))

	var sb strings.Builder
	for i := range report.Records {
		sb.WriteString(report.Records[i].Block())
	}
	fasta := []byte(sb.String())
	if err := os.WriteFile(report.FastaPath, fasta, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", report.FastaPath, err)
	}
	if err := os.WriteFile(report.TextPath, fasta, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", report.TextPath, err)
	}
	if err := WriteFastaCSV(report.CSVPath, report.Records); err != nil {
		return nil, err
	}

	if len(report.Failed) > 0 {
		report.FailedPath = filepath.Join(f.Dir, fmt.Sprintf("failed_ids_%s.txt", date))
		if err := os.WriteFile(report.FailedPath, []byte(strings.Join(report.Failed, "\n")), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", report.FailedPath, err)
		}
	}

	f.Logger.Info("FASTA-Abruf abgeschlossen",
		zap.Int("records", len(report.Records)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}
