package providers

import (
	"context"

	"pdb-harvest/providers/rcsb"
)

// Discoverer liefert die PDB-IDs, die ab einem Datum freigegeben wurden.
type Discoverer interface {
	ReleasedSince(ctx context.Context, since string) ([]string, error)
}

// EntrySource liefert die Strukturmetadaten eines PDB-Eintrags.
type EntrySource interface {
	Entry(ctx context.Context, pdbID string) (*rcsb.Entry, error)
}

// FastaSource liefert den Ketten-FASTA-Text eines PDB-Eintrags.
type FastaSource interface {
	Fasta(ctx context.Context, pdbID string) (string, error)
}

// MappingSource löst eine PDB-ID zu UniProt-Accessions auf.
type MappingSource interface {
	UniProtAccessions(ctx context.Context, pdbID string) ([]string, error)
}

// FlatTextSource liefert den UniProt-Flat-File-Text einer Accession.
type FlatTextSource interface {
	FlatText(ctx context.Context, accession string) (string, error)
}
