package services

import (
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ligatureReplacer = strings.NewReplacer(
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬀ", "ff",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"ﬆ", "st",
)

// NormalizeText bereitet Titel für die Such-Ansicht der API auf: Ligaturen ersetzen,
// NFC-Normalisierung, Whitespace (auch Zeilenumbrüche) zu einem Leerzeichen.
// Die exportierten Dateien enthalten die Texte unverändert.
func NormalizeText(s string) string {
	if s == "" {
		return s
	}
	s = ligatureReplacer.Replace(s)
	t := transform.Chain(norm.NFC)
	normalized, _, err := transform.String(t, s)
	if err != nil {
		normalized = s
	}
	return strings.Join(strings.Fields(normalized), " ")
}
