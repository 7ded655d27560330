// Package rcsb enthält die Logik für die Interaktion mit den RCSB-PDB-Diensten
// (Search API, Data API und FASTA-Download).
package rcsb

import (
	"bytes"
	"encoding/json"
	"strings"
)

// SearchRequest ist der JSON-Body einer Suchanfrage.
type SearchRequest struct {
	Query          SearchQuery    `json:"query"`
	ReturnType     string         `json:"return_type"`
	RequestOptions RequestOptions `json:"request_options"`
}

// SearchQuery ist ein einzelner Terminal-Knoten der Suchanfrage.
type SearchQuery struct {
	Type       string          `json:"type"`
	Service    string          `json:"service"`
	Parameters QueryParameters `json:"parameters"`
}

// QueryParameters beschreibt Attribut, Operator und Vergleichswert.
type QueryParameters struct {
	Attribute string `json:"attribute"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
}

// RequestOptions steuert die Paginierung der Suche.
type RequestOptions struct {
	ReturnAllHits bool `json:"return_all_hits"`
}

// SearchResponse repräsentiert die JSON-Antwort der Search API.
type SearchResponse struct {
	ResultSet []struct {
		Identifier string `json:"identifier"`
	} `json:"result_set"`
}

// Entry repräsentiert die relevanten Teile eines Core-Entry-Dokuments der Data API.
type Entry struct {
	RCSBID string `json:"rcsb_id"`
	Struct struct {
		Title string `json:"title"`
	} `json:"struct"`
	PrimaryCitation struct {
		PubMedID FlexString `json:"pdbx_database_id_pub_med"`
	} `json:"rcsb_primary_citation"`
	Citations []Citation `json:"citation"`
	Exptl     []struct {
		Method string `json:"method"`
	} `json:"exptl"`
	EntryInfo struct {
		ResolutionCombined []float64 `json:"resolution_combined"`
	} `json:"rcsb_entry_info"`
}

// Citation ist ein Eintrag der citation-Liste.
type Citation struct {
	JournalAbbrev FlexString `json:"journal_abbrev"`
	Year          FlexString `json:"year"`
	Volume        FlexString `json:"volume"`
	PageFirst     FlexString `json:"page_first"`
	PageLast      FlexString `json:"page_last"`
	RCSBCitation  struct {
		Primary FlexBool `json:"primary"`
	} `json:"rcsb_citation"`
}

// PrimaryCitationRecord liefert die erste als primär markierte Zitation, sonst die erste der Liste.
// Ohne Zitationen ist das Ergebnis nil.
func (e *Entry) PrimaryCitationRecord() *Citation {
	for i := range e.Citations {
		if e.Citations[i].RCSBCitation.Primary {
			return &e.Citations[i]
		}
	}
	if len(e.Citations) > 0 {
		return &e.Citations[0]
	}
	return nil
}

// Method liefert die erste experimentelle Methode oder "".
func (e *Entry) Method() string {
	if len(e.Exptl) == 0 {
		return ""
	}
	return e.Exptl[0].Method
}

// Resolution liefert die erste kombinierte Auflösung oder nil.
func (e *Entry) Resolution() *float64 {
	if len(e.EntryInfo.ResolutionCombined) == 0 {
		return nil
	}
	r := e.EntryInfo.ResolutionCombined[0]
	return &r
}

// FlexString nimmt JSON-Strings, Zahlen und null entgegen. Zahlen werden in ihrer
// Textform übernommen, null ergibt "".
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	*s = FlexString(string(data))
	return nil
}

// FlexBool nimmt true/false sowie "Y"/"N" entgegen.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(data)), `"`)) {
	case "true", "y", "yes":
		*b = true
	default:
		*b = false
	}
	return nil
}
