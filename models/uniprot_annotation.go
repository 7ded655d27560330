package models

// UniProtAnnotation enthält die aus einem UniProt-Flat-File abgeleiteten Signale.
// Text ist nil, wenn der Abruf fehlgeschlagen ist.
type UniProtAnnotation struct {
	Accession     string
	Text          *string
	Transmembrane bool
	Viral         bool
	GOTerms       []string
	Keywords      []string
}

// Fetched meldet, ob für die Accession ein Flat-File vorliegt.
func (a *UniProtAnnotation) Fetched() bool {
	return a != nil && a.Text != nil
}
