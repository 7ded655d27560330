package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"pdb-harvest/providers/rcsb"
)

var errStub = errors.New("stub: not found")

// stubSource implementiert alle Provider-Schnittstellen aus festen Tabellen.
type stubSource struct {
	ids       []string
	searchErr error
	entries   map[string]string
	mappings  map[string][]string
	mapErr    map[string]error
	flat      map[string]string
	fasta     map[string]string

	flatCalls  map[string]int
	fastaCalls []string

	// onEntry läuft vor jedem Entry-Abruf
	onEntry func(pdbID string)
}

func newStubSource() *stubSource {
	return &stubSource{
		entries:   map[string]string{},
		mappings:  map[string][]string{},
		mapErr:    map[string]error{},
		flat:      map[string]string{},
		fasta:     map[string]string{},
		flatCalls: map[string]int{},
	}
}

func (s *stubSource) ReleasedSince(_ context.Context, _ string) ([]string, error) {
	return s.ids, s.searchErr
}

func (s *stubSource) Entry(_ context.Context, pdbID string) (*rcsb.Entry, error) {
	if s.onEntry != nil {
		s.onEntry(pdbID)
	}
	doc, ok := s.entries[pdbID]
	if !ok {
		return nil, errStub
	}
	var e rcsb.Entry
	if err := json.Unmarshal([]byte(doc), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *stubSource) UniProtAccessions(_ context.Context, pdbID string) ([]string, error) {
	if err := s.mapErr[pdbID]; err != nil {
		return nil, err
	}
	return s.mappings[pdbID], nil
}

func (s *stubSource) FlatText(_ context.Context, accession string) (string, error) {
	s.flatCalls[accession]++
	text, ok := s.flat[accession]
	if !ok {
		return "", errStub
	}
	return text, nil
}

func (s *stubSource) Fasta(_ context.Context, pdbID string) (string, error) {
	s.fastaCalls = append(s.fastaCalls, pdbID)
	text, ok := s.fasta[pdbID]
	if !ok {
		return "", errStub
	}
	return text, nil
}

func equalStrings(t *testing.T, what string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %q, got %q", what, want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s: expected %q, got %q", what, want, got)
		}
	}
}

const (
	flatTransmembrane = "ID   TM1_HUMAN\nOS   Homo sapiens (Human).\nOX   NCBI_TaxID=9606;\n" +
		"DR   GO; GO:0016021; C:integral component of membrane; ISS:UniProtKB.\n" +
		"KW   Membrane; Transmembrane helix;\nFT   TRANSMEM        10..30\n//\n"
	flatViral = "ID   VIR_HIV\nOS   Human immunodeficiency virus 1.\nOX   NCBI_TaxID=11676;\n" +
		"DR   GO; GO:0005886; C:plasma membrane; IDA:UniProtKB.\nKW   Virion;\n//\n"
	flatSoluble = "ID   SOL_HUMAN\nOS   Homo sapiens (Human).\nOX   NCBI_TaxID=9606;\n" +
		"DR   GO; GO:0005737; C:cytoplasm; IDA:UniProtKB.\nKW   Cytoplasm;\n//\n"
)
