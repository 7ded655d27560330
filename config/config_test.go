package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("S3_BUCKET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RCSBSearchURL != "https://search.rcsb.org/rcsbsearch/v2/query" {
		t.Errorf("unexpected search url %q", cfg.RCSBSearchURL)
	}
	if cfg.HTTPTimeout != 60*time.Second {
		t.Errorf("expected 60s timeout, got %s", cfg.HTTPTimeout)
	}
	if cfg.HTTPRetryCount != 0 {
		t.Errorf("expected no retries by default, got %d", cfg.HTTPRetryCount)
	}
	if cfg.ArchiveEnabled() || cfg.UploadEnabled() {
		t.Error("archive and upload must be disabled without DB_HOST/S3_BUCKET")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.local")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_USER", "harvest")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "pdb")
	t.Setenv("HTTP_RETRY_COUNT", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.ArchiveEnabled() {
		t.Error("expected archive to be enabled")
	}
	want := "host=db.local user=harvest password=secret dbname=pdb port=6543 sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN: expected %q, got %q", want, got)
	}
	if cfg.HTTPRetryCount != 2 {
		t.Errorf("expected 2 retries, got %d", cfg.HTTPRetryCount)
	}
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a non-numeric DB_PORT")
	}
}

func TestFastaOutputDir(t *testing.T) {
	cfg := &Config{OutputDir: "out", FastaDir: "fasta_output"}
	if got := cfg.FastaOutputDir(); got != filepath.Join("out", "fasta_output") {
		t.Errorf("unexpected fasta dir %q", got)
	}
	abs := filepath.Join(string(filepath.Separator), "srv", "fasta")
	cfg.FastaDir = abs
	if got := cfg.FastaOutputDir(); got != abs {
		t.Errorf("absolute FASTA_DIR must be kept, got %q", got)
	}
}
