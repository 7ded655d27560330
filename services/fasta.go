package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// FastaBlock ist ein Header mit der zusammengefügten Sequenz.
type FastaBlock struct {
	Header   string
	Sequence string
}

// ParseFasta zerlegt einen FASTA-Text an Zeilen mit '>' in Datensätze. Zeilen vor dem ersten
// Header werden verworfen; der letzte Datensatz wird immer ausgegeben.
func ParseFasta(text string) []FastaBlock {
	var (
		blocks  []FastaBlock
		header  string
		current strings.Builder
	)
	flush := func() {
		if header != "" {
			blocks = append(blocks, FastaBlock{Header: header, Sequence: current.String()})
		}
	}

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, ">") {
			flush()
			header = line
			current.Reset()
			continue
		}
		current.WriteString(line)
	}
	flush()
	return blocks
}

// ExtractHeader liest PDB-Code, Ketten-ID und Beschreibung aus einem Header der Form
// ">1ABC_A mol:protein length:120  Chain A, DESCRIPTION". Passt der Header nicht, ist das
// Ergebnis ("UNKNOWN", "?", Header ohne führendes '>').
func ExtractHeader(header string) (pdbID, chainID, description string) {
	if pdbID, chainID, description, ok := parseChainHeader(header); ok {
		return pdbID, chainID, description
	}
	return "UNKNOWN", "?", strings.TrimPrefix(header, ">")
}

func parseChainHeader(h string) (pdbID, chainID, description string, ok bool) {
	// ">" + 4 Zeichen Code + "_" + Kette + mindestens ein Whitespace
	if len(h) < 8 || h[0] != '>' || h[5] != '_' || !isSpace(h[7]) {
		return "", "", "", false
	}
	for i := 1; i < 5; i++ {
		if !isAlnum(h[i]) {
			return "", "", "", false
		}
	}
	if !isAlnum(h[6]) {
		return "", "", "", false
	}

	for start := 8; start < len(h); {
		i := strings.Index(h[start:], "Chain")
		if i < 0 {
			return "", "", "", false
		}
		pos := start + i
		if desc, ok := parseChainToken(h, pos+len("Chain")); ok {
			return h[1:5], h[6:7], desc, true
		}
		start = pos + 1
	}
	return "", "", "", false
}

// parseChainToken prüft "<ws>+<alnum>,<ws>*" ab p und liefert den Rest der Zeile.
func parseChainToken(h string, p int) (string, bool) {
	ws := p
	for p < len(h) && isSpace(h[p]) {
		p++
	}
	if p == ws || p+1 >= len(h) || !isAlnum(h[p]) || h[p+1] != ',' {
		return "", false
	}
	p += 2
	for p < len(h) && isSpace(h[p]) {
		p++
	}
	return h[p:], true
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// ReadPDBIDs liest die nicht-leeren, getrimmten Werte der Spalte PDB_ID in Dateireihenfolge.
// Fehlt die Spalte, ist das Ergebnis leer.
func ReadPDBIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	col := -1
	for i, name := range header {
		if strings.TrimPrefix(name, "\ufeff") == "PDB_ID" {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, nil
	}

	var ids []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if col >= len(rec) {
			continue
		}
		if id := strings.TrimSpace(rec[col]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
