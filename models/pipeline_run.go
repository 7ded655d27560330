package models

import "time"

// Status eines Pipeline-Laufs.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusAborted   = "aborted"
)

// PipelineRun beschreibt einen einzelnen Harvest-Lauf und seine Ergebnisse.
type PipelineRun struct {
	ID         string     `json:"id"`
	Since      string     `json:"since"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`

	Discovered    int `json:"discovered"`
	Processed     int `json:"processed"`
	Skipped       int `json:"skipped"`
	Filtered      int `json:"filtered"`
	FastaRecords  int `json:"fasta_records"`
	FastaFailures int `json:"fasta_failures"`

	AllCSV      string   `json:"all_csv,omitempty"`
	FilteredCSV string   `json:"filtered_csv,omitempty"`
	OutputFiles []string `json:"output_files,omitempty"`

	// Einträge, deren Metadaten nicht abgerufen werden konnten
	SkippedIDs []string `json:"skipped_ids,omitempty"`
	// IDs ohne FASTA-Antwort
	FailedFastaIDs []string `json:"failed_fasta_ids,omitempty"`
	SinkErrors     []string `json:"sink_errors,omitempty"`
}
