package services

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFasta(t *testing.T) {
	got := ParseFasta(">1ABC_A desc1\nSEQ1\n>1ABC_B desc2\nSEQ2\n")
	want := []FastaBlock{{">1ABC_A desc1", "SEQ1"}, {">1ABC_B desc2", "SEQ2"}}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestParseFastaMultiline(t *testing.T) {
	got := ParseFasta("junk before header\r\n>1XYZ_A chain\r\nMKT\r\nLLV\r\n\r\nAAA")
	if len(got) != 1 {
		t.Fatalf("expected one record, got %+v", got)
	}
	if got[0].Header != ">1XYZ_A chain" || got[0].Sequence != "MKTLLVAAA" {
		t.Errorf("unexpected record %+v", got[0])
	}
	if len(ParseFasta("")) != 0 || len(ParseFasta("  \n")) != 0 {
		t.Error("blank text must give no records")
	}
}

func TestExtractHeader(t *testing.T) {
	cases := []struct {
		header            string
		pdb, chain, descr string
	}{
		{">1ABC_A mol:protein length:120  Chain A, SOME PROTEIN", "1ABC", "A", "SOME PROTEIN"},
		{">7XYZ_1 mol:protein length:50  Chain 1,Porin", "7XYZ", "1", "Porin"},
		{">2DEF_B mol:na length:12  Chains B, C, DNA", "UNKNOWN", "?", "2DEF_B mol:na length:12  Chains B, C, DNA"},
		{">1ABC_1|Chains A, B|SOME PROTEIN|Homo sapiens (9606)", "UNKNOWN", "?", "1ABC_1|Chains A, B|SOME PROTEIN|Homo sapiens (9606)"},
		{">1ABC_A mol:protein length:120", "UNKNOWN", "?", "1ABC_A mol:protein length:120"},
		{">", "UNKNOWN", "?", ""},
	}
	for _, tc := range cases {
		pdb, chain, descr := ExtractHeader(tc.header)
		if pdb != tc.pdb || chain != tc.chain || descr != tc.descr {
			t.Errorf("ExtractHeader(%q) = (%q, %q, %q), expected (%q, %q, %q)",
				tc.header, pdb, chain, descr, tc.pdb, tc.chain, tc.descr)
		}
	}
}

func TestReadPDBIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ids.csv")
	content := "\ufeffPDB_ID,Title\n 1ABC ,a\n,empty\n2DEF,b\n1ABC,dup\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	ids, err := ReadPDBIDs(path)
	if err != nil {
		t.Fatalf("ReadPDBIDs: %v", err)
	}
	equalStrings(t, "ids", ids, []string{"1ABC", "2DEF", "1ABC"})

	noColumn := filepath.Join(dir, "other.csv")
	if err := os.WriteFile(noColumn, []byte("ID\n1ABC\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if ids, err := ReadPDBIDs(noColumn); err != nil || len(ids) != 0 {
		t.Errorf("expected no ids without a PDB_ID column, got %v, %v", ids, err)
	}

	if _, err := ReadPDBIDs(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
