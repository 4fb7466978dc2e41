package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/platinummonkey/entitle/pkg/observability"
)

// S3API is the subset of the S3 client the archiver uses
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures the archive bucket
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// NewS3Client builds an S3 client, using static credentials when both keys are
// set and the default credential chain otherwise.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Archiver copies entries for a time window into one NDJSON object
type Archiver struct {
	lister Lister
	client S3API
	bucket string
	prefix string
	logger *observability.Logger
	now    func() time.Time
}

// NewArchiver creates an archiver reading from lister
func NewArchiver(lister Lister, client S3API, bucket, prefix string, logger *observability.Logger) *Archiver {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Archiver{
		lister: lister,
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

// ObjectKey returns the key an archive for [since, until) is written to
func (a *Archiver) ObjectKey(since, until time.Time) string {
	name := fmt.Sprintf("%s_%s.ndjson", since.UTC().Format("20060102T150405Z"), until.UTC().Format("20060102T150405Z"))
	return path.Join(a.prefix, since.UTC().Format("2006/01/02"), name)
}

// Archive writes every entry created in [since, until) and returns how many were
// written. An empty window writes nothing.
func (a *Archiver) Archive(ctx context.Context, since, until time.Time) (int, error) {
	entries, err := a.lister.ListAuditEntries(ctx, Filter{Since: since, Until: until})
	if err != nil {
		return 0, fmt.Errorf("failed to list audit entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return 0, fmt.Errorf("failed to encode audit entry %s: %w", entries[i].ID, err)
		}
	}

	key := a.ObjectKey(since, until)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
		Metadata: map[string]string{
			"entry-count": fmt.Sprintf("%d", len(entries)),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload audit archive: %w", err)
	}

	a.logger.WithFields(map[string]interface{}{
		"bucket":  a.bucket,
		"key":     key,
		"entries": len(entries),
	}).Info("Archived audit entries")
	return len(entries), nil
}

// ArchivePreviousDay archives the UTC day before now. Scheduled daily by the server.
func (a *Archiver) ArchivePreviousDay(ctx context.Context) (int, error) {
	until := a.now().UTC().Truncate(24 * time.Hour)
	return a.Archive(ctx, until.Add(-24*time.Hour), until)
}
