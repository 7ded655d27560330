// Package pdbe löst PDB-IDs über die SIFTS-Mappings der PDBe zu UniProt-Accessions auf.
package pdbe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"pdb-harvest/config"
	"pdb-harvest/providers/httpclient"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Fetcher implementiert die Abfrage der PDBe-UniProt-Mappings.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	client *resty.Client
}

// NewFetcher erstellt einen neuen PDBe-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger, client: httpclient.New(cfg)}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "pdbe"
}

// UniProtAccessions liefert die UniProt-Accessions eines PDB-Eintrags in der Reihenfolge
// der Antwort. Fehlt der Eintrag oder der UniProt-Schlüssel, ist das Ergebnis leer.
// Ein 404 bedeutet "keine Mappings" und ist kein Fehler.
func (f *Fetcher) UniProtAccessions(ctx context.Context, pdbID string) ([]string, error) {
	id := strings.ToLower(pdbID)
	mappingURL := f.Config.PDBeMappingsURL + "/" + id
	f.Logger.Debug("Rufe PDBe Mappings auf", zap.String("url", mappingURL))

	resp, err := f.client.R().SetContext(ctx).Get(mappingURL)
	if err != nil {
		return nil, fmt.Errorf("pdbe mappings request %s: %w", id, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("pdbe mappings %s failed: status %d", id, resp.StatusCode())
	}
	return parseAccessions(resp.Body(), id)
}

// parseAccessions liest body[id].UniProt und gibt dessen Schlüssel in Dokumentreihenfolge zurück.
func parseAccessions(body []byte, id string) ([]string, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode pdbe mappings %s: %w", id, err)
	}
	raw, ok := entries[id]
	if !ok {
		return nil, nil
	}

	var databases map[string]json.RawMessage
	if err := json.Unmarshal(raw, &databases); err != nil {
		return nil, fmt.Errorf("decode pdbe databases %s: %w", id, err)
	}
	unp, ok := databases["UniProt"]
	if !ok {
		return nil, nil
	}
	return objectKeys(unp)
}

// objectKeys liefert die Schlüssel eines JSON-Objekts in der Reihenfolge des Dokuments.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		// null oder kein Objekt: keine Accessions
		return nil, nil
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
