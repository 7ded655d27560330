package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdb-harvest/config"
	"pdb-harvest/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// ArchiveConfig ergänzt die S3-Einstellungen um die Archiv-Optionen.
type ArchiveConfig struct {
	SourceDir    string `envconfig:"ARCHIVE_SOURCE"`
	Prefix       string `envconfig:"ARCHIVE_PREFIX" default:"harvest-"`
	KeepArchives int    `envconfig:"KEEP_ARCHIVES" default:"4"`
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't initialize zap logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starte Archivierung...")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Fehler beim Laden der Konfiguration", zap.Error(err))
	}
	var acfg ArchiveConfig
	if err := envconfig.Process("", &acfg); err != nil {
		logger.Fatal("Fehler beim Laden der Archiv-Konfiguration", zap.Error(err))
	}
	if acfg.SourceDir == "" {
		acfg.SourceDir = cfg.OutputDir
	}
	if !cfg.UploadEnabled() {
		logger.Fatal("S3_BUCKET ist nicht gesetzt")
	}

	ctx := context.Background()

	// 1. Ausgabeverzeichnis packen, ohne Journal-Datenbank
	var exclude []string
	if cfg.LedgerEnabled() {
		exclude = ledgerFiles(cfg.LedgerPath)
	}
	data, err := createArchive(acfg.SourceDir, exclude...)
	if err != nil {
		logger.Fatal("Fehler beim Packen des Ausgabeverzeichnisses", zap.Error(err))
	}

	// 2. S3-Client erstellen
	client, err := storage.NewS3Client(ctx, cfg.S3URL, cfg.S3Region, cfg.S3Key, cfg.S3Secret)
	if err != nil {
		logger.Fatal("Fehler beim Erstellen des S3-Clients", zap.Error(err))
	}

	// 3. Archiv hochladen
	key := archiveKey(acfg.Prefix, time.Now())
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(cfg.S3Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		logger.Fatal("Fehler beim Hochladen nach S3", zap.Error(err))
	}
	logger.Info("Archiv hochgeladen",
		zap.String("location", fmt.Sprintf("s3://%s/%s", cfg.S3Bucket, key)),
		zap.Int("bytes", len(data)))

	// 4. Alte Archive rotieren
	if _, err := storage.Rotate(ctx, client, cfg.S3Bucket, acfg.Prefix, acfg.KeepArchives, logger); err != nil {
		logger.Fatal("Fehler bei der Rotation alter Archive", zap.Error(err))
	}

	logger.Info("Archivierung erfolgreich abgeschlossen.")
}

func archiveKey(prefix string, now time.Time) string {
	return fmt.Sprintf("%s%s.tar.gz", prefix, now.UTC().Format("2006-01-02T15-04-05Z"))
}

// ledgerFiles liefert die Datenbankdatei des Journals samt SQLite-Begleitdateien.
func ledgerFiles(path string) []string {
	return []string{path, path + "-wal", path + "-shm", path + "-journal"}
}

// createArchive packt alle regulären Dateien unter dir als tar.gz; Pfade sind relativ zu dir.
// Versteckte Dateien und Verzeichnisse (z.B. .env) sowie die Pfade in exclude werden übersprungen.
func createArchive(dir string, exclude ...string) ([]byte, error) {
	skip := make(map[string]struct{}, len(exclude))
	for _, p := range exclude {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		skip[abs] = struct{}{}
	}

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzipWriter)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil {
			if _, ok := skip[abs]; ok {
				return nil
			}
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tarWriter.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tarWriter, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	if err := tarWriter.Close(); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
