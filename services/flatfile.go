package services

import (
	"sort"
	"strings"
)

// UniProt flat-file line codes used by the miners.
const (
	codeOrganism = "OS"
	codeTaxonomy = "OX"
	codeCrossRef = "DR"
	codeKeywords = "KW"

	virusTaxonID = "NCBI_TaxID=10239"
)

// FlatLine is one line of a UniProt flat-file entry split into its two-letter
// line code and the payload after the code column.
type FlatLine struct {
	Code string
	Data string
	Raw  string
}

// FlatFile is a parsed UniProt flat-file entry. A nil *FlatFile stands for a
// failed fetch; every miner on it returns false or an empty set.
type FlatFile struct {
	lines []FlatLine
}

// ParseFlatFile splits the entry into lines. A nil text yields a nil FlatFile.
func ParseFlatFile(text *string) *FlatFile {
	if text == nil || *text == "" {
		return nil
	}
	raw := strings.Split(strings.ReplaceAll(*text, "\r\n", "\n"), "\n")
	ff := &FlatFile{lines: make([]FlatLine, 0, len(raw))}
	for _, l := range raw {
		l = strings.TrimSuffix(l, "\r")
		fl := FlatLine{Raw: l}
		if len(l) >= 2 {
			fl.Code = l[:2]
		}
		if len(l) > 5 {
			fl.Data = l[5:]
		}
		ff.lines = append(ff.lines, fl)
	}
	return ff
}

// Lines returns all lines carrying the given line code.
func (ff *FlatFile) Lines(code string) []FlatLine {
	if ff == nil {
		return nil
	}
	var out []FlatLine
	for _, l := range ff.lines {
		if l.Code == code {
			out = append(out, l)
		}
	}
	return out
}

// IsTransmembrane reports a TRANSMEM feature or any mention of "Transmembrane"
// (keyword, comment or feature note).
func (ff *FlatFile) IsTransmembrane() bool {
	if ff == nil {
		return false
	}
	for _, l := range ff.lines {
		if strings.Contains(l.Raw, "FT   TRANSMEM") || strings.Contains(l.Raw, "Transmembrane") {
			return true
		}
	}
	return false
}

// IsViral reports the Viruses superkingdom taxon id on an OX line, or "virus"
// (any case) in the organism name.
func (ff *FlatFile) IsViral() bool {
	if ff == nil {
		return false
	}
	for _, l := range ff.Lines(codeTaxonomy) {
		if strings.Contains(l.Raw, virusTaxonID) {
			return true
		}
	}
	for _, l := range ff.Lines(codeOrganism) {
		if strings.Contains(strings.ToLower(l.Raw), "virus") {
			return true
		}
	}
	return false
}

// GOTerms returns the distinct GO cross-references formatted as
// "GO:<id> [<aspect>:<term>]", sorted.
func (ff *FlatFile) GOTerms() []string {
	if ff == nil {
		return nil
	}
	set := map[string]struct{}{}
	for _, l := range ff.Lines(codeCrossRef) {
		if !strings.HasPrefix(l.Raw, "DR   GO;") {
			continue
		}
		id, aspect, term, ok := parseGOReference(l.Raw)
		if !ok {
			continue
		}
		set["GO:"+id+" ["+aspect+":"+term+"]"] = struct{}{}
	}
	return sortedKeys(set)
}

// Keywords returns the distinct KW entries, sorted.
func (ff *FlatFile) Keywords() []string {
	if ff == nil {
		return nil
	}
	set := map[string]struct{}{}
	for _, l := range ff.Lines(codeKeywords) {
		if !strings.HasPrefix(l.Raw, "KW   ") {
			continue
		}
		for _, kw := range strings.Split(l.Data, ";") {
			if kw = strings.TrimSpace(kw); kw != "" {
				set[kw] = struct{}{}
			}
		}
	}
	return sortedKeys(set)
}

// parseGOReference finds the first "GO:<digits>;<ws><C|F|P>:<term>" in a DR line.
// The term runs up to the next ';' or the end of the line and is trimmed.
func parseGOReference(line string) (id, aspect, term string, ok bool) {
	for start := 0; ; {
		i := strings.Index(line[start:], "GO:")
		if i < 0 {
			return "", "", "", false
		}
		pos := start + i
		if id, aspect, term, ok = parseGOAt(line, pos+3); ok {
			return id, aspect, term, true
		}
		start = pos + 1
	}
}

func parseGOAt(line string, p int) (id, aspect, term string, ok bool) {
	digits := p
	for p < len(line) && line[p] >= '0' && line[p] <= '9' {
		p++
	}
	if p == digits || p >= len(line) || line[p] != ';' {
		return "", "", "", false
	}
	id = line[digits:p]
	p++

	ws := p
	for p < len(line) && isSpace(line[p]) {
		p++
	}
	if p == ws || p+1 >= len(line) {
		return "", "", "", false
	}
	switch line[p] {
	case 'C', 'F', 'P':
	default:
		return "", "", "", false
	}
	if line[p+1] != ':' {
		return "", "", "", false
	}
	aspect = line[p : p+1]
	p += 2

	end := strings.IndexByte(line[p:], ';')
	if end < 0 {
		end = len(line) - p
	}
	if end == 0 {
		return "", "", "", false
	}
	return id, aspect, strings.TrimSpace(line[p : p+end]), true
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
