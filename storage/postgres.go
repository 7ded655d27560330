package storage

import (
	"context"
	"fmt"

	"pdb-harvest/config"
	"pdb-harvest/models"
	"pdb-harvest/services"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Archive speichert aggregierte Einträge und Ketten dauerhaft in PostgreSQL.
type Archive struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// EntryFilter schränkt die Abfrage archivierter Einträge ein.
type EntryFilter struct {
	RunID string
	// nur Einträge, die das Einschlusskriterium erfüllen
	Included bool
	Limit    int
}

// OpenArchive verbindet sich mit der Archiv-Datenbank und migriert das Schema.
func OpenArchive(cfg *config.Config, log *zap.Logger) (*Archive, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect archive: %w", err)
	}
	return NewArchive(db, log)
}

// NewArchive nutzt eine bestehende GORM-Verbindung und migriert das Schema.
func NewArchive(db *gorm.DB, log *zap.Logger) (*Archive, error) {
	if err := db.AutoMigrate(&models.PdbEntry{}, &models.FastaRecord{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	log.Info("Archiv-Datenbank bereit")
	return &Archive{DB: db, Logger: log}, nil
}

// Name implementiert services.Sink.
func (a *Archive) Name() string { return "archive" }

// Store speichert Einträge und Ketten eines Laufs in einer Transaktion.
func (a *Archive) Store(ctx context.Context, run *models.PipelineRun, entries []*models.PdbEntry, chains []models.FastaRecord) error {
	err := a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveEntries(tx, entries); err != nil {
			return err
		}
		return saveChains(tx, chains)
	})
	if err != nil {
		return err
	}
	a.Logger.Info("Lauf archiviert",
		zap.String("run_id", run.ID),
		zap.Int("entries", len(entries)),
		zap.Int("chains", len(chains)))
	return nil
}

// SaveEntries fügt Einträge ein oder überschreibt vorhandene mit gleicher PDB-ID.
func (a *Archive) SaveEntries(ctx context.Context, entries []*models.PdbEntry) error {
	return saveEntries(a.DB.WithContext(ctx), entries)
}

// SaveChains fügt Ketten ein oder überschreibt vorhandene mit gleichem Header.
func (a *Archive) SaveChains(ctx context.Context, chains []models.FastaRecord) error {
	return saveChains(a.DB.WithContext(ctx), chains)
}

// lastByKey behält pro Schlüssel das zuletzt gesehene Element an der Position seines
// ersten Auftretens. Ein Upsert-Batch darf denselben Konfliktschlüssel nur einmal enthalten.
func lastByKey[T any](items []T, key func(T) string) []T {
	index := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if i, ok := index[k]; ok {
			out[i] = it
			continue
		}
		index[k] = len(out)
		out = append(out, it)
	}
	return out
}

func saveEntries(db *gorm.DB, entries []*models.PdbEntry) error {
	if len(entries) == 0 {
		return nil
	}
	entries = lastByKey(entries, func(e *models.PdbEntry) string { return e.PDBID })
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pdb_id"}},
		UpdateAll: true,
	}).CreateInBatches(entries, 200).Error
	if err != nil {
		return fmt.Errorf("save entries: %w", err)
	}
	return nil
}

func saveChains(db *gorm.DB, chains []models.FastaRecord) error {
	if len(chains) == 0 {
		return nil
	}
	chains = lastByKey(chains, func(c models.FastaRecord) string { return c.Header })
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "header"}},
		UpdateAll: true,
	}).CreateInBatches(chains, 200).Error
	if err != nil {
		return fmt.Errorf("save chains: %w", err)
	}
	return nil
}

// Entries liefert archivierte Einträge sortiert nach PDB-ID.
func (a *Archive) Entries(ctx context.Context, f EntryFilter) ([]models.PdbEntry, error) {
	q := a.DB.WithContext(ctx).Model(&models.PdbEntry{}).Order("pdb_id")
	if f.RunID != "" {
		q = q.Where("run_id = ?", f.RunID)
	}
	if f.Included {
		q = q.Where("transmembrane = ? AND viral = ?", true, false).
			Where("journal_abbrev NOT IN ?", services.UnpublishedJournals())
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var entries []models.PdbEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return entries, nil
}

// Chains liefert die archivierten Ketten eines PDB-Eintrags.
func (a *Archive) Chains(ctx context.Context, pdbID string) ([]models.FastaRecord, error) {
	var chains []models.FastaRecord
	err := a.DB.WithContext(ctx).Where("pdb_id = ?", pdbID).Order("chain_id").Find(&chains).Error
	if err != nil {
		return nil, fmt.Errorf("query chains for %s: %w", pdbID, err)
	}
	return chains, nil
}
