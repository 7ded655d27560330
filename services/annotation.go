package services

import (
	"context"
	"os"
	"path/filepath"

	"pdb-harvest/models"
	"pdb-harvest/providers"

	"go.uber.org/zap"
)

// AnnotationCache hält die UniProt-Flat-Files eines einzelnen Laufs.
// Ein nil-Wert ist ein gecachter Fehlschlag. Keine Verdrängung, keine Persistenz über den Lauf hinaus.
type AnnotationCache struct {
	entries map[string]*string
}

// NewAnnotationCache erstellt einen leeren Cache für einen Lauf.
func NewAnnotationCache() *AnnotationCache {
	return &AnnotationCache{entries: make(map[string]*string)}
}

// Get liefert den gecachten Text und ob die Accession bereits abgefragt wurde.
func (c *AnnotationCache) Get(accession string) (*string, bool) {
	text, ok := c.entries[accession]
	return text, ok
}

// Put speichert ein Ergebnis, nil für einen fehlgeschlagenen Abruf.
func (c *AnnotationCache) Put(accession string, text *string) {
	c.entries[accession] = text
}

// Len gibt die Anzahl der gecachten Accessions zurück.
func (c *AnnotationCache) Len() int {
	return len(c.entries)
}

// AnnotationFetcher holt UniProt-Einträge mit höchstens einem Netzwerkabruf pro Accession und Lauf
// und legt erfolgreich geholte Texte als <Dir>/<accession>.txt ab.
type AnnotationFetcher struct {
	Source  providers.FlatTextSource
	Cache   *AnnotationCache
	Dir     string
	Logger  *zap.Logger
	Metrics *Metrics
}

// NewAnnotationFetcher erstellt einen Fetcher für einen Lauf.
func NewAnnotationFetcher(source providers.FlatTextSource, cache *AnnotationCache, dir string, logger *zap.Logger, metrics *Metrics) *AnnotationFetcher {
	return &AnnotationFetcher{Source: source, Cache: cache, Dir: dir, Logger: logger, Metrics: metrics}
}

// FetchText liefert den Flat-File-Text oder nil, wenn der Abruf (jetzt oder früher im Lauf)
// fehlgeschlagen ist. Es gibt keine Wiederholung innerhalb eines Laufs.
func (a *AnnotationFetcher) FetchText(ctx context.Context, accession string) *string {
	if text, ok := a.Cache.Get(accession); ok {
		a.Metrics.UniProtCacheHits.Inc()
		return text
	}

	log := a.Logger.With(zap.String("accession", accession))
	raw, err := a.Source.FlatText(ctx, accession)
	if err != nil {
		log.Warn("UniProt-Eintrag konnte nicht abgerufen werden", zap.Error(err))
		a.Metrics.UniProtFetches.WithLabelValues("failed").Inc()
		a.Cache.Put(accession, nil)
		return nil
	}
	a.Metrics.UniProtFetches.WithLabelValues("ok").Inc()

	path := filepath.Join(a.Dir, accession+".txt")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		log.Warn("UniProt-Eintrag konnte nicht gespeichert werden", zap.String("path", path), zap.Error(err))
	}

	text := &raw
	a.Cache.Put(accession, text)
	return text
}

// Annotate holt den Eintrag und wertet ihn aus.
func (a *AnnotationFetcher) Annotate(ctx context.Context, accession string) *models.UniProtAnnotation {
	text := a.FetchText(ctx, accession)
	ff := ParseFlatFile(text)
	return &models.UniProtAnnotation{
		Accession:     accession,
		Text:          text,
		Transmembrane: ff.IsTransmembrane(),
		Viral:         ff.IsViral(),
		GOTerms:       ff.GOTerms(),
		Keywords:      ff.Keywords(),
	}
}
