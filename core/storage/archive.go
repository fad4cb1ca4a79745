package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
)

// Archive writes per-cycle reconciliation reports to object storage for
// later audit. Archiving is best-effort; a failed upload never fails a cycle.
type Archive struct {
	client Client
	bucket string
	region string
}

// NewArchive creates an Archive over the given client and ensures the bucket
// exists.
func NewArchive(ctx context.Context, client Client, cfg Config) (*Archive, error) {
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check archive bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create archive bucket: %w", err)
		}
	}
	return &Archive{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// StoreReport uploads a JSON document under reports/<table>/<timestamp>.json
// and returns the object name.
func (a *Archive) StoreReport(ctx context.Context, table string, report any) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	objectName := fmt.Sprintf("reports/%s/%s.json", table, time.Now().UTC().Format("2006-01-02T15-04-05"))
	_, err = a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}
	return objectName, nil
}
