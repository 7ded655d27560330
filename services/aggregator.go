package services

import (
	"context"
	"fmt"

	"pdb-harvest/models"
	"pdb-harvest/providers"

	"go.uber.org/zap"
)

// Aggregator führt RCSB-Metadaten und die UniProt-Annotationen eines PDB-Eintrags zusammen.
type Aggregator struct {
	Entries  providers.EntrySource
	Mappings providers.MappingSource
	Logger   *zap.Logger
}

// NewAggregator erstellt einen neuen Aggregator.
func NewAggregator(entries providers.EntrySource, mappings providers.MappingSource, logger *zap.Logger) *Aggregator {
	return &Aggregator{Entries: entries, Mappings: mappings, Logger: logger}
}

// Aggregate baut den Eintrag für pdbID. Schlägt der Metadaten-Abruf fehl, wird ein Fehler
// zurückgegeben und der Eintrag vom Aufrufer übersprungen.
//
// Sobald Transmembrane und Virus beide gesetzt sind, werden die restlichen Accessions nicht
// mehr abgerufen; GO-Terms und Klassifikationen enthalten dann nur die bis dahin gesehenen.
func (a *Aggregator) Aggregate(ctx context.Context, pdbID string, annotations *AnnotationFetcher) (*models.PdbEntry, error) {
	log := a.Logger.With(zap.String("pdb_id", pdbID))

	data, err := a.Entries.Entry(ctx, pdbID)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata for %s: %w", pdbID, err)
	}

	entry := &models.PdbEntry{
		PDBID:              pdbID,
		Title:              data.Struct.Title,
		PubMedID:           string(data.PrimaryCitation.PubMedID),
		Resolution:         data.Resolution(),
		ExperimentalMethod: data.Method(),
	}
	if c := data.PrimaryCitationRecord(); c != nil {
		entry.JournalAbbrev = string(c.JournalAbbrev)
		entry.Year = string(c.Year)
		entry.Volume = string(c.Volume)
		entry.PageFirst = string(c.PageFirst)
		entry.PageLast = string(c.PageLast)
	}

	accessions, err := a.Mappings.UniProtAccessions(ctx, pdbID)
	if err != nil {
		log.Warn("UniProt-Mappings konnten nicht abgerufen werden", zap.Error(err))
		accessions = nil
	}
	entry.UniProtIDs = accessions

	goTerms := map[string]struct{}{}
	keywords := map[string]struct{}{}
	for _, acc := range accessions {
		ann := annotations.Annotate(ctx, acc)
		if !ann.Fetched() {
			log.Debug("Kein UniProt-Eintrag, Accession trägt nichts bei", zap.String("accession", acc))
		}
		if ann.Transmembrane {
			entry.Transmembrane = true
		}
		if ann.Viral {
			entry.Viral = true
		}
		for _, t := range ann.GOTerms {
			goTerms[t] = struct{}{}
		}
		for _, k := range ann.Keywords {
			keywords[k] = struct{}{}
		}
		if entry.Transmembrane && entry.Viral {
			log.Debug("Beide Flags gesetzt, restliche Accessions werden übersprungen", zap.String("last_accession", acc))
			break
		}
	}
	entry.GOTerms = sortedKeys(goTerms)
	entry.Classifications = sortedKeys(keywords)

	return entry, nil
}
