package rcsb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"pdb-harvest/config"
	"pdb-harvest/providers/httpclient"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const releaseDateAttribute = "rcsb_accession_info.initial_release_date"

// Fetcher kapselt die Aufrufe gegen Search API, Data API und FASTA-Download der RCSB.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	client *resty.Client
}

// NewFetcher erstellt eine neue Instanz des RCSB-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger, client: httpclient.New(cfg)}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "rcsb"
}

// ReleasedSince liefert alle Entry-IDs mit initial_release_date >= since, in der
// Reihenfolge der Search API (kein Dedup, keine Sortierung).
func (f *Fetcher) ReleasedSince(ctx context.Context, since string) ([]string, error) {
	log := f.Logger.With(zap.String("since", since))
	log.Info("Starte RCSB-Suche nach freigegebenen Einträgen.")

	query := SearchRequest{
		Query: SearchQuery{
			Type:    "terminal",
			Service: "text",
			Parameters: QueryParameters{
				Attribute: releaseDateAttribute,
				Operator:  "greater_or_equal",
				Value:     since,
			},
		},
		ReturnType:     "entry",
		RequestOptions: RequestOptions{ReturnAllHits: true},
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(query).
		Post(f.Config.RCSBSearchURL)
	if err != nil {
		return nil, fmt.Errorf("rcsb search request: %w", err)
	}
	// Die Search API antwortet mit 204, wenn es keine Treffer gibt.
	if resp.StatusCode() == http.StatusNoContent {
		log.Info("RCSB-Suche ohne Treffer.")
		return nil, nil
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("rcsb search failed: status %d", resp.StatusCode())
	}

	var sr SearchResponse
	if err := json.Unmarshal(resp.Body(), &sr); err != nil {
		return nil, fmt.Errorf("decode rcsb search response: %w", err)
	}

	ids := make([]string, 0, len(sr.ResultSet))
	for _, r := range sr.ResultSet {
		ids = append(ids, r.Identifier)
	}
	log.Info("RCSB-Suche abgeschlossen", zap.Int("total_ids", len(ids)))
	return ids, nil
}

// Entry holt das Core-Entry-Dokument für eine PDB-ID.
func (f *Fetcher) Entry(ctx context.Context, pdbID string) (*Entry, error) {
	entryURL := f.Config.RCSBDataURL + "/" + url.PathEscape(pdbID)
	f.Logger.Debug("Rufe RCSB Data API auf", zap.String("url", entryURL))

	resp, err := f.client.R().SetContext(ctx).Get(entryURL)
	if err != nil {
		return nil, fmt.Errorf("rcsb entry request %s: %w", pdbID, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("rcsb entry %s failed: status %d", pdbID, resp.StatusCode())
	}

	var e Entry
	if err := json.Unmarshal(resp.Body(), &e); err != nil {
		return nil, fmt.Errorf("decode rcsb entry %s: %w", pdbID, err)
	}
	return &e, nil
}

// Fasta holt den Ketten-FASTA-Text für eine PDB-ID. Ein leerer Body gilt als Fehler.
func (f *Fetcher) Fasta(ctx context.Context, pdbID string) (string, error) {
	fastaURL := f.Config.RCSBFastaURL + "/" + url.PathEscape(pdbID)
	f.Logger.Debug("Rufe RCSB FASTA-Download auf", zap.String("url", fastaURL))

	resp, err := f.client.R().SetContext(ctx).Get(fastaURL)
	if err != nil {
		return "", fmt.Errorf("rcsb fasta request %s: %w", pdbID, err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("rcsb fasta %s failed: status %d", pdbID, resp.StatusCode())
	}
	text := string(resp.Body())
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("rcsb fasta %s: empty response", pdbID)
	}
	return text, nil
}
