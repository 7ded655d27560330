package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	// Remote-Dienste
	RCSBSearchURL   string `envconfig:"RCSB_SEARCH_URL" default:"https://search.rcsb.org/rcsbsearch/v2/query"`
	RCSBDataURL     string `envconfig:"RCSB_DATA_URL" default:"https://data.rcsb.org/rest/v1/core/entry"`
	RCSBFastaURL    string `envconfig:"RCSB_FASTA_URL" default:"https://www.rcsb.org/fasta/entry"`
	PDBeMappingsURL string `envconfig:"PDBE_MAPPINGS_URL" default:"https://www.ebi.ac.uk/pdbe/api/mappings/uniprot"`
	UniProtURL      string `envconfig:"UNIPROT_URL" default:"https://rest.uniprot.org/uniprotkb"`

	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"60s"`
	// 0 = ein fehlgeschlagener Aufruf wird nicht wiederholt
	HTTPRetryCount int    `envconfig:"HTTP_RETRY_COUNT" default:"0"`
	UserAgent      string `envconfig:"USER_AGENT" default:"pdb-harvest/1.0"`

	// Ausgabe
	OutputDir string `envconfig:"OUTPUT_DIR" default:"."`
	FastaDir  string `envconfig:"FASTA_DIR" default:"fasta_output"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`

	// Server-Modus
	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`
	LookbackDays int    `envconfig:"LOOKBACK_DAYS" default:"7"`

	// Lokales Lauf-Journal (SQLite), leer = deaktiviert
	LedgerPath string `envconfig:"LEDGER_PATH" default:"data/ledger.db"`

	// Archiv-Datenbank, deaktiviert solange DB_HOST leer ist
	DBHost     string `envconfig:"DB_HOST"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"pdb_harvest"`

	// S3-Upload der Ergebnisdateien, deaktiviert solange S3_BUCKET leer ist
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"eu-central-1"`
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3Bucket string `envconfig:"S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// ArchiveEnabled meldet, ob Einträge zusätzlich in PostgreSQL archiviert werden.
func (c *Config) ArchiveEnabled() bool { return c.DBHost != "" }

// UploadEnabled meldet, ob Ergebnisdateien nach S3 hochgeladen werden.
func (c *Config) UploadEnabled() bool { return c.S3Bucket != "" }

// LedgerEnabled meldet, ob Läufe im lokalen Journal protokolliert werden.
func (c *Config) LedgerEnabled() bool { return c.LedgerPath != "" }

// FastaOutputDir löst FASTA_DIR relativ zu OUTPUT_DIR auf.
func (c *Config) FastaOutputDir() string {
	if filepath.IsAbs(c.FastaDir) {
		return c.FastaDir
	}
	return filepath.Join(c.OutputDir, c.FastaDir)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
