package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pdb-harvest/config"
	"pdb-harvest/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ObjectStore ist der Ausschnitt des S3-Clients, den Upload und Rotation benötigen.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// NewS3Client erstellt einen S3-Client für einen S3-kompatiblen Endpunkt.
func NewS3Client(ctx context.Context, endpoint, region, key, secret string) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, r string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               endpoint,
				SigningRegion:     region,
				HostnameImmutable: true,
			}, nil
		},
	)
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
	}
	if endpoint != "" {
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg), nil
}

// Uploader lädt die Ausgabedateien eines Laufs in einen Bucket.
type Uploader struct {
	Client   ObjectStore
	Bucket   string
	Endpoint string
	Logger   *zap.Logger
}

// NewUploader erstellt einen Uploader aus der S3-Konfiguration.
func NewUploader(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Uploader, error) {
	client, err := NewS3Client(ctx, cfg.S3URL, cfg.S3Region, cfg.S3Key, cfg.S3Secret)
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &Uploader{Client: client, Bucket: cfg.S3Bucket, Endpoint: cfg.S3URL, Logger: logger}, nil
}

// Name implementiert services.Sink.
func (u *Uploader) Name() string { return "s3" }

// UploadFile lädt eine lokale Datei unter key hoch und gibt den Link zurück.
func (u *Uploader) UploadFile(ctx context.Context, key, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	_, err = u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(u.Endpoint, "/"), u.Bucket, key), nil
}

// Store lädt alle Ausgabedateien des Laufs unter <Startdatum>/<Dateiname> hoch.
// Der erste fehlgeschlagene Upload bricht ab.
func (u *Uploader) Store(ctx context.Context, run *models.PipelineRun, _ []*models.PdbEntry, _ []models.FastaRecord) error {
	prefix := run.StartedAt.Format("2006-01-02")
	for _, path := range run.OutputFiles {
		link, err := u.UploadFile(ctx, prefix+"/"+filepath.Base(path), path)
		if err != nil {
			return err
		}
		u.Logger.Info("Datei hochgeladen", zap.String("run_id", run.ID), zap.String("link", link))
	}
	return nil
}

// Rotate löscht unter prefix alle Objekte bis auf die keep neuesten.
// Fehler beim Löschen einzelner Objekte werden protokolliert, nicht zurückgegeben.
func Rotate(ctx context.Context, client ObjectStore, bucket, prefix string, keep int, logger *zap.Logger) ([]string, error) {
	output, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
	}
	if len(output.Contents) <= keep {
		logger.Info("Keine Rotation nötig", zap.Int("objects", len(output.Contents)), zap.Int("keep", keep))
		return nil, nil
	}

	objects := output.Contents
	sort.Slice(objects, func(i, j int) bool {
		return aws.ToTime(objects[i].LastModified).After(aws.ToTime(objects[j].LastModified))
	})

	var deleted []string
	for _, obj := range objects[keep:] {
		key := aws.ToString(obj.Key)
		logger.Info("Lösche altes Archiv", zap.String("key", key))
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    obj.Key,
		}); err != nil {
			logger.Warn("Löschen fehlgeschlagen", zap.String("key", key), zap.Error(err))
			continue
		}
		deleted = append(deleted, key)
	}
	return deleted, nil
}
