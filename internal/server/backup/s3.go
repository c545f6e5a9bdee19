// Package backup writes point-in-time snapshots of a user's collections to
// S3-compatible object storage. Snapshots are a maintenance safety net, not
// part of the sync protocol.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mpetrenko/homeledger/internal/server/models"
)

// Snapshotter stores one user snapshot. The concrete S3 client hides behind
// this so handler tests can fake it.
type Snapshotter interface {
	Snapshot(ctx context.Context, userID string, data map[string][]models.Document) (string, error)
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Snapshotter writes snapshots to snapshots/{uid}/{timestamp}.json.
type S3Snapshotter struct {
	client s3API
	bucket string
}

func NewS3Snapshotter(ctx context.Context, bucket string) (*S3Snapshotter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Snapshotter{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func (s *S3Snapshotter) Snapshot(ctx context.Context, userID string, data map[string][]models.Document) (string, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := fmt.Sprintf("snapshots/%s/%s.json", userID, time.Now().UTC().Format("20060102T150405Z"))
	contentType := "application/json"

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store snapshot: %w", err)
	}
	return key, nil
}
