// Package uniprot holt UniProtKB-Einträge im Flat-File-Format.
package uniprot

import (
	"context"
	"fmt"
	"net/url"

	"pdb-harvest/config"
	"pdb-harvest/providers/httpclient"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Fetcher kapselt die Logik für die UniProt REST API.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	client *resty.Client
}

// NewFetcher erstellt einen neuen UniProt-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger, client: httpclient.New(cfg)}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "uniprot"
}

// FlatText holt den Flat-File-Text (.txt) einer Accession.
func (f *Fetcher) FlatText(ctx context.Context, accession string) (string, error) {
	txtURL := fmt.Sprintf("%s/%s.txt", f.Config.UniProtURL, url.PathEscape(accession))
	log := f.Logger.With(zap.String("accession", accession), zap.String("url", txtURL))
	log.Debug("Rufe UniProt Flat-File ab.")

	resp, err := f.client.R().SetContext(ctx).Get(txtURL)
	if err != nil {
		return "", fmt.Errorf("uniprot request %s: %w", accession, err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("uniprot request %s failed with status: %d", accession, resp.StatusCode())
	}
	return string(resp.Body()), nil
}
