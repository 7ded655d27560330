package services

import "github.com/prometheus/client_golang/prometheus"

// Metrics bündelt die Prometheus-Kennzahlen der Pipeline.
type Metrics struct {
	EntriesProcessed prometheus.Counter
	EntriesSkipped   prometheus.Counter
	EntriesFiltered  prometheus.Counter
	UniProtFetches   *prometheus.CounterVec
	UniProtCacheHits prometheus.Counter
	FastaRecords     prometheus.Counter
	FastaFailures    prometheus.Counter
	Runs             *prometheus.CounterVec
	LastRunSuccess   prometheus.Gauge
}

// NewMetrics erstellt die Kennzahlen und registriert sie, sofern reg nicht nil ist.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EntriesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pdb_entries_processed_total",
			Help: "Total number of PDB entries aggregated.",
		}),
		EntriesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pdb_entries_skipped_total",
			Help: "Total number of PDB entries skipped because their metadata could not be fetched.",
		}),
		EntriesFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pdb_entries_filtered_total",
			Help: "Total number of PDB entries that passed the inclusion filter.",
		}),
		UniProtFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uniprot_fetches_total",
			Help: "UniProt flat-file fetches by result.",
		}, []string{"result"}),
		UniProtCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uniprot_cache_hits_total",
			Help: "UniProt lookups served from the per-run cache.",
		}),
		FastaRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fasta_records_total",
			Help: "Total number of chain FASTA records written.",
		}),
		FastaFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fasta_failures_total",
			Help: "Total number of PDB ids without a FASTA response.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_runs_total",
			Help: "Pipeline runs by final status.",
		}, []string{"status"}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_last_success_timestamp_seconds",
			Help: "Unix time of the last completed pipeline run.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.EntriesProcessed, m.EntriesSkipped, m.EntriesFiltered,
			m.UniProtFetches, m.UniProtCacheHits,
			m.FastaRecords, m.FastaFailures,
			m.Runs, m.LastRunSuccess,
		)
	}
	return m
}
