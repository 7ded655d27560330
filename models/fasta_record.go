package models

import "time"

// FastaRecord ist ein einzelner Ketten-Eintrag aus der RCSB-FASTA-Antwort.
type FastaRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	RunID string `json:"run_id" gorm:"index"`

	PDBID       string `json:"pdb_id" gorm:"column:pdb_id;index"`
	ChainID     string `json:"chain_id"`
	Description string `json:"description" gorm:"type:text"`
	Sequence    string `json:"sequence" gorm:"type:text"`
	// Roh-Header inklusive führendem '>'
	Header string `json:"header" gorm:"uniqueIndex;size:1024;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (FastaRecord) TableName() string {
	return "fasta_records"
}

// FastaCSVHeader ist die Spaltenfolge der strukturierten FASTA-CSV.
var FastaCSVHeader = []string{"PDB_ID", "Chain_ID", "Description", "Sequence"}

// CSVRow liefert den Datensatz ohne Roh-Header.
func (r *FastaRecord) CSVRow() []string {
	return []string{r.PDBID, r.ChainID, r.Description, r.Sequence}
}

// Block liefert den Datensatz als FASTA-Block.
func (r *FastaRecord) Block() string {
	return r.Header + "\n" + r.Sequence + "\n"
}
