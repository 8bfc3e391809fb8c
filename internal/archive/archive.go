// Package archive stores executed maintenance plans in S3, one gzipped
// JSON object per run. Archival is best-effort; the database audit log
// remains the record of truth.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/listkeeper/internal/domain"
)

// s3Putter is the slice of the S3 client the archive needs.
type s3Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PlanArchive writes executed plans to an S3 bucket.
type PlanArchive struct {
	client s3Putter
	bucket string
}

// New creates an S3-backed plan archive.
func New(ctx context.Context, bucket, region string) (*PlanArchive, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for plan archive: %w", err)
	}
	return &PlanArchive{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

type archivedRun struct {
	Log        *domain.MaintenanceLog `json:"log"`
	ArchivedAt time.Time              `json:"archived_at"`
}

func (a *PlanArchive) key(log *domain.MaintenanceLog) string {
	return fmt.Sprintf("maintenance/%s/%s.json.gz",
		log.ExecutedAt.UTC().Format("2006-01-02"), log.ID)
}

// Store archives a completed run's audit record, plans included.
func (a *PlanArchive) Store(ctx context.Context, log *domain.MaintenanceLog) error {
	if a == nil {
		return nil
	}

	payload, err := json.Marshal(archivedRun{Log: log, ArchivedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal archived run: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return fmt.Errorf("failed to compress archived run: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finish compression: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(a.key(log)),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", a.bucket, err)
	}
	return nil
}
