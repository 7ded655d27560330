package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdb-harvest/config"
	"pdb-harvest/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type recordingSink struct {
	name    string
	err     error
	runs    []*models.PipelineRun
	entries int
	chains  int
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Store(_ context.Context, run *models.PipelineRun, entries []*models.PdbEntry, chains []models.FastaRecord) error {
	s.runs = append(s.runs, run)
	s.entries = len(entries)
	s.chains = len(chains)
	return s.err
}

func newTestPipeline(t *testing.T, src *stubSource, sinks ...Sink) (*Pipeline, *prometheus.Registry) {
	t.Helper()
	cfg := &config.Config{OutputDir: t.TempDir(), FastaDir: "fasta_output"}
	reg := prometheus.NewRegistry()
	p := NewPipeline(cfg, zap.NewNop(), NewMetrics(reg), src, src, src, src, src, sinks...)
	p.Now = fixedNow
	p.Fasta.Now = fixedNow
	return p, reg
}

// counterValue summiert alle Serien eines Counters, optional gefiltert nach einem Label-Wert.
func counterValue(t *testing.T, reg *prometheus.Registry, name, labelValue string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue != "" {
				match := false
				for _, l := range m.GetLabel() {
					if l.GetValue() == labelValue {
						match = true
					}
				}
				if !match {
					continue
				}
			}
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

func TestPipelineRun(t *testing.T) {
	src := newStubSource()
	src.ids = []string{"1ABC", "2VIR", "3ERR", "4SOL"}
	src.entries["1ABC"] = entry1ABC
	src.entries["2VIR"] = `{"citation": [{"journal_abbrev": "Cell", "rcsb_citation": {"primary": true}}]}`
	src.entries["4SOL"] = `{"citation": [{"journal_abbrev": "Cell"}]}`
	src.mappings["1ABC"] = []string{"P12345"}
	src.mappings["2VIR"] = []string{"V1", "P12345"}
	src.mappings["4SOL"] = []string{"P99999"}
	src.flat["P12345"] = flatTransmembrane
	src.flat["V1"] = flatViral
	src.flat["P99999"] = flatSoluble
	src.fasta["1ABC"] = fasta1ABC

	ok := &recordingSink{name: "ok"}
	broken := &recordingSink{name: "broken", err: errors.New("disk full")}
	p, reg := newTestPipeline(t, src, ok, broken)

	run, err := p.Run(context.Background(), "2024-03-01")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != models.RunStatusCompleted || run.FinishedAt == nil {
		t.Errorf("unexpected run state %s", run.Status)
	}
	if run.Discovered != 4 || run.Processed != 3 || run.Skipped != 1 || run.Filtered != 1 {
		t.Errorf("unexpected counts %+v", run)
	}
	equalStrings(t, "skipped", run.SkippedIDs, []string{"3ERR"})
	if run.FastaRecords != 2 || run.FastaFailures != 0 {
		t.Errorf("unexpected fasta counts %d/%d", run.FastaRecords, run.FastaFailures)
	}
	if src.flatCalls["P12345"] != 1 {
		t.Errorf("accession shared by two entries must be fetched once, got %d", src.flatCalls["P12345"])
	}

	out := p.Config.OutputDir
	if run.AllCSV != filepath.Join(out, "pdb_metadata_all_since_2024-03-01_saved_2024-03-05.csv") {
		t.Errorf("unexpected all csv %s", run.AllCSV)
	}
	all := readFile(t, run.AllCSV)
	if strings.Count(all, "\n") != 4 || !strings.Contains(all, "2VIR") || strings.Contains(all, "3ERR") {
		t.Errorf("unexpected all csv content:\n%s", all)
	}
	filtered := readFile(t, run.FilteredCSV)
	if !strings.Contains(filtered, "1ABC,Crystal  structure of a transporter,12345678,Nature,2024") || strings.Contains(filtered, "4SOL") {
		t.Errorf("unexpected filtered csv content:\n%s", filtered)
	}
	if _, err := os.Stat(filepath.Join(out, "uniprot_entries_20240301", "P12345.txt")); err != nil {
		t.Errorf("uniprot text not persisted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "fasta_output", "pdb_fasta_by_chain_20240305.fasta")); err != nil {
		t.Errorf("fasta output missing: %v", err)
	}
	if len(run.OutputFiles) != 5 {
		t.Errorf("expected five output files, got %v", run.OutputFiles)
	}

	if len(ok.runs) != 1 || ok.entries != 3 || ok.chains != 2 {
		t.Errorf("sink received unexpected data: runs=%d entries=%d chains=%d", len(ok.runs), ok.entries, ok.chains)
	}
	if len(run.SinkErrors) != 1 || !strings.HasPrefix(run.SinkErrors[0], "broken:") {
		t.Errorf("expected one sink error, got %v", run.SinkErrors)
	}

	if got := counterValue(t, reg, "harvest_runs_total", models.RunStatusCompleted); got != 1 {
		t.Errorf("expected one completed run, got %v", got)
	}
	if got := counterValue(t, reg, "pdb_entries_skipped_total", ""); got != 1 {
		t.Errorf("expected one skipped entry, got %v", got)
	}
	if got := counterValue(t, reg, "uniprot_cache_hits_total", ""); got != 1 {
		t.Errorf("expected one cache hit, got %v", got)
	}
}

func TestPipelineInvalidDate(t *testing.T) {
	src := newStubSource()
	src.ids = []string{"1ABC"}
	p, _ := newTestPipeline(t, src)

	for _, since := range []string{"2024-13-01", "01.03.2024", "", "2024-3-1"} {
		run, err := p.Run(context.Background(), since)
		if !errors.Is(err, ErrInvalidDate) {
			t.Errorf("%q: expected ErrInvalidDate, got %v", since, err)
		}
		if run != nil {
			t.Errorf("%q: no run expected", since)
		}
	}
	entries, err := os.ReadDir(p.Config.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("invalid date must not produce output, found %d entries", len(entries))
	}
}

func TestPipelineNoEntries(t *testing.T) {
	for name, src := range map[string]*stubSource{
		"empty":        newStubSource(),
		"search error": {searchErr: errors.New("search down")},
	} {
		t.Run(name, func(t *testing.T) {
			sink := &recordingSink{name: "sink"}
			p, _ := newTestPipeline(t, src, sink)
			run, err := p.Run(context.Background(), "2024-03-01")
			if !errors.Is(err, ErrNoEntries) {
				t.Fatalf("expected ErrNoEntries, got %v", err)
			}
			if run.Status != models.RunStatusAborted {
				t.Errorf("expected aborted run, got %s", run.Status)
			}
			if len(sink.runs) != 0 {
				t.Error("sinks must not run for an aborted run")
			}
			matches, _ := filepath.Glob(filepath.Join(p.Config.OutputDir, "*.csv"))
			if len(matches) != 0 {
				t.Errorf("no csv expected, found %v", matches)
			}
		})
	}
}

func TestPipelineCancelledDuringAggregation(t *testing.T) {
	src := newStubSource()
	src.ids = []string{"1ABC", "2DEF", "3GHI"}
	for _, id := range src.ids {
		src.entries[id] = `{"citation": [{"journal_abbrev": "Cell"}]}`
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var fetched []string
	src.onEntry = func(id string) {
		fetched = append(fetched, id)
		cancel()
	}
	sink := &recordingSink{name: "sink"}
	p, reg := newTestPipeline(t, src, sink)

	run, err := p.Run(ctx, "2024-03-01")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if run.Status != models.RunStatusAborted {
		t.Errorf("expected aborted run, got %s", run.Status)
	}
	equalStrings(t, "fetched", fetched, []string{"1ABC"})
	if len(run.SkippedIDs) != 0 {
		t.Errorf("cancelled entries must not count as skipped, got %v", run.SkippedIDs)
	}
	if len(sink.runs) != 0 {
		t.Error("sinks must not run for a cancelled run")
	}
	matches, _ := filepath.Glob(filepath.Join(p.Config.OutputDir, "*.csv"))
	if len(matches) != 0 {
		t.Errorf("no csv expected, found %v", matches)
	}
	if got := counterValue(t, reg, "harvest_runs_total", models.RunStatusAborted); got != 1 {
		t.Errorf("expected one aborted run, got %v", got)
	}
}
