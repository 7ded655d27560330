package models

import (
	"strconv"
	"strings"
	"time"
)

// PdbEntry repräsentiert einen aggregierten PDB-Eintrag samt UniProt-Annotationen.
type PdbEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RunID string `json:"run_id" gorm:"index"`

	PDBID              string   `json:"pdb_id" gorm:"column:pdb_id;uniqueIndex;not null"`
	Title              string   `json:"title" gorm:"type:text"`
	PubMedID           string   `json:"pubmed_id,omitempty" gorm:"column:pubmed_id"`
	JournalAbbrev      string   `json:"journal_abbrev,omitempty" gorm:"index"`
	Year               string   `json:"year,omitempty"`
	Volume             string   `json:"volume,omitempty"`
	PageFirst          string   `json:"page_first,omitempty"`
	PageLast           string   `json:"page_last,omitempty"`
	Resolution         *float64 `json:"resolution,omitempty"`
	ExperimentalMethod string   `json:"experimental_method,omitempty"`

	// Reihenfolge wie vom Mapping-Dienst geliefert
	UniProtIDs []string `json:"uniprot_ids" gorm:"serializer:json"`

	Transmembrane   bool     `json:"transmembrane" gorm:"index"`
	Viral           bool     `json:"viral" gorm:"index"`
	Classifications []string `json:"classifications" gorm:"serializer:json"`
	GOTerms         []string `json:"go_terms" gorm:"column:go_terms;serializer:json"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (PdbEntry) TableName() string {
	return "pdb_entries"
}

// EntryCSVHeader ist die feste Spaltenfolge der Metadaten-CSVs.
var EntryCSVHeader = []string{
	"PDB_ID", "Title", "PubMed_ID", "Journal_Abbrev", "Year", "Volume",
	"Page_First", "Page_Last", "Resolution (Å)", "Experimental Method",
	"UniProt_IDs", "Transmembrane", "Virus", "Classification", "GO_Terms",
}

// CSVRow liefert den Eintrag in der Spaltenfolge von EntryCSVHeader.
func (e *PdbEntry) CSVRow() []string {
	return []string{
		e.PDBID,
		e.Title,
		e.PubMedID,
		e.JournalAbbrev,
		e.Year,
		e.Volume,
		e.PageFirst,
		e.PageLast,
		FormatResolution(e.Resolution),
		e.ExperimentalMethod,
		strings.Join(e.UniProtIDs, ", "),
		YesNo(e.Transmembrane),
		YesNo(e.Viral),
		strings.Join(e.Classifications, ", "),
		strings.Join(e.GOTerms, ", "),
	}
}

// YesNo bildet ein Flag auf die CSV-Werte "Yes"/"No" ab.
func YesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// FormatResolution schreibt die Auflösung wie ein Float mit mindestens einer Nachkommastelle,
// fehlende Werte bleiben leer.
func FormatResolution(r *float64) string {
	if r == nil {
		return ""
	}
	s := strconv.FormatFloat(*r, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
