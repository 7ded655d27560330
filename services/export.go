package services

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"pdb-harvest/models"
)

// WriteEntriesCSV schreibt die Einträge mit der festen 15-Spalten-Kopfzeile.
// Eine leere Liste ergibt eine Datei mit nur der Kopfzeile.
func WriteEntriesCSV(path string, entries []*models.PdbEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, e.CSVRow())
	}
	return writeCSV(path, models.EntryCSVHeader, rows)
}

// WriteFastaCSV schreibt die strukturierten Kettenfelder ohne Roh-Header.
func WriteFastaCSV(path string, records []models.FastaRecord) error {
	rows := make([][]string, 0, len(records))
	for i := range records {
		rows = append(rows, records[i].CSVRow())
	}
	return writeCSV(path, models.FastaCSVHeader, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows %s: %w", path, err)
	}
	return f.Close()
}
