package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pdb-harvest/models"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Stufen, in denen eine PDB-ID fehlschlagen kann.
const (
	StageMetadata = "metadata"
	StageFasta    = "fasta"
)

// Ledger ist das lokale SQLite-Journal aller Läufe und ihrer fehlgeschlagenen IDs.
type Ledger struct {
	DB     *sql.DB
	SQ     sq.StatementBuilderType
	Logger *zap.Logger
}

// RunFailure ist eine fehlgeschlagene PDB-ID eines Laufs.
type RunFailure struct {
	RunID string `json:"run_id"`
	Stage string `json:"stage"`
	PDBID string `json:"pdb_id"`
}

// OpenLedger öffnet (oder erstellt) die Datenbank unter dbPath und spielt die Migrationen ein.
func OpenLedger(dbPath string, logger *zap.Logger) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("make ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Pragmas gelten pro Verbindung
	db.SetMaxOpenConns(1)
	for _, p := range []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("Lauf-Journal geöffnet", zap.String("path", dbPath))
	return &Ledger{DB: db, SQ: sq.StatementBuilder, Logger: logger}, nil
}

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
        name TEXT PRIMARY KEY,
        applied_at TEXT NOT NULL
    )`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		var n int
		err := db.QueryRow(`SELECT 1 FROM schema_migrations WHERE name = ?`, name).Scan(&n)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations(name, applied_at) VALUES (?, ?)`,
			name, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close schließt die Datenbank.
func (l *Ledger) Close() error {
	return l.DB.Close()
}

// Name implementiert services.Sink.
func (l *Ledger) Name() string { return "ledger" }

// Store protokolliert den Lauf samt übersprungener und FASTA-loser IDs.
func (l *Ledger) Store(ctx context.Context, run *models.PipelineRun, _ []*models.PdbEntry, _ []models.FastaRecord) error {
	if err := l.RecordRun(ctx, run); err != nil {
		return err
	}
	if err := l.RecordFailures(ctx, run.ID, StageMetadata, run.SkippedIDs); err != nil {
		return err
	}
	return l.RecordFailures(ctx, run.ID, StageFasta, run.FailedFastaIDs)
}

// RecordRun legt den Lauf an oder aktualisiert ihn; bereits gespeicherte Fehl-IDs bleiben erhalten.
func (l *Ledger) RecordRun(ctx context.Context, run *models.PipelineRun) error {
	var finished any
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	q := l.SQ.Insert("runs").
		Columns("id", "since", "status", "started_at", "finished_at",
			"discovered", "processed", "skipped", "filtered", "fasta_records", "fasta_failures",
			"all_csv", "filtered_csv", "sink_errors").
		Values(run.ID, run.Since, run.Status, run.StartedAt.UTC().Format(time.RFC3339), finished,
			run.Discovered, run.Processed, run.Skipped, run.Filtered, run.FastaRecords, run.FastaFailures,
			run.AllCSV, run.FilteredCSV, strings.Join(run.SinkErrors, "\n")).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			status = excluded.status, finished_at = excluded.finished_at,
			discovered = excluded.discovered, processed = excluded.processed,
			skipped = excluded.skipped, filtered = excluded.filtered,
			fasta_records = excluded.fasta_records, fasta_failures = excluded.fasta_failures,
			all_csv = excluded.all_csv, filtered_csv = excluded.filtered_csv,
			sink_errors = excluded.sink_errors`)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}
	if _, err := l.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// RecordFailures speichert die fehlgeschlagenen IDs einer Stufe; Duplikate werden ignoriert.
func (l *Ledger) RecordFailures(ctx context.Context, runID, stage string, pdbIDs []string) error {
	if len(pdbIDs) == 0 {
		return nil
	}
	q := l.SQ.Insert("failures").Options("OR IGNORE").Columns("run_id", "stage", "pdb_id")
	for _, id := range pdbIDs {
		q = q.Values(runID, stage, id)
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build failure insert: %w", err)
	}
	if _, err := l.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("record failures for %s: %w", runID, err)
	}
	return nil
}

// Runs liefert die letzten limit Läufe, neueste zuerst.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	q := l.SQ.Select("id", "since", "status", "started_at", "finished_at",
		"discovered", "processed", "skipped", "filtered", "fasta_records", "fasta_failures",
		"all_csv", "filtered_csv", "sink_errors").
		From("runs").
		OrderBy("started_at DESC", "id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build run query: %w", err)
	}
	rows, err := l.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.PipelineRun
	for rows.Next() {
		var (
			r          models.PipelineRun
			started    string
			finished   sql.NullString
			sinkErrors string
		)
		if err := rows.Scan(&r.ID, &r.Since, &r.Status, &started, &finished,
			&r.Discovered, &r.Processed, &r.Skipped, &r.Filtered, &r.FastaRecords, &r.FastaFailures,
			&r.AllCSV, &r.FilteredCSV, &sinkErrors); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		if finished.Valid {
			if t, err := time.Parse(time.RFC3339, finished.String); err == nil {
				r.FinishedAt = &t
			}
		}
		if sinkErrors != "" {
			r.SinkErrors = strings.Split(sinkErrors, "\n")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Failures liefert die fehlgeschlagenen IDs eines Laufs, sortiert nach Stufe und ID.
func (l *Ledger) Failures(ctx context.Context, runID string) ([]RunFailure, error) {
	sqlStr, args, err := l.SQ.Select("run_id", "stage", "pdb_id").
		From("failures").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("stage", "pdb_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build failure query: %w", err)
	}
	rows, err := l.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []RunFailure
	for rows.Next() {
		var f RunFailure
		if err := rows.Scan(&f.RunID, &f.Stage, &f.PDBID); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
