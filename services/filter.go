package services

import "pdb-harvest/models"

// Journale, die als "nicht veröffentlicht" gelten.
var unpublishedJournals = map[string]struct{}{
	"":                {},
	"To Be Published": {},
	"Biorxiv":         {},
}

// UnpublishedJournals liefert die ausgeschlossenen Journal-Kürzel, sortiert.
func UnpublishedJournals() []string {
	return sortedKeys(unpublishedJournals)
}

// Include ist das Einschlusskriterium: nicht viral, transmembran, in einem Journal veröffentlicht.
func Include(e *models.PdbEntry) bool {
	if e == nil || e.Viral || !e.Transmembrane {
		return false
	}
	_, unpublished := unpublishedJournals[e.JournalAbbrev]
	return !unpublished
}

// Partition liefert die Teilmenge der Einträge, die Include erfüllen, in Eingabereihenfolge.
func Partition(entries []*models.PdbEntry) []*models.PdbEntry {
	filtered := make([]*models.PdbEntry, 0, len(entries))
	for _, e := range entries {
		if Include(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
