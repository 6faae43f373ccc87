// Package export persists negotiation gameplans to object storage so
// the awarding section can pick them up after a negotiation finishes.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Exporter writes JSON gameplan snapshots under a per-tenant prefix.
type Exporter struct {
	client *minio.Client
	bucket string
	logger *log.Logger
}

// Config is the object-store connection for an Exporter.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func New(cfg Config, logger *log.Logger) (*Exporter, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("export: connect %s: %w", cfg.Endpoint, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Exporter{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// EnsureBucket creates the bucket when missing. Safe to call at startup.
func (e *Exporter) EnsureBucket(ctx context.Context) error {
	exists, err := e.client.BucketExists(ctx, e.bucket)
	if err != nil {
		return fmt.Errorf("export: bucket %s: %w", e.bucket, err)
	}
	if exists {
		return nil
	}
	if err := e.client.MakeBucket(ctx, e.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("export: create bucket %s: %w", e.bucket, err)
	}
	return nil
}

// Gameplan uploads one negotiation snapshot and returns its object key.
func (e *Exporter) Gameplan(ctx context.Context, tenantID, chatID string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("export: marshal gameplan %s: %w", chatID, err)
	}
	key := fmt.Sprintf("%s/gameplans/%s/%s.json", tenantID, chatID, time.Now().UTC().Format("20060102T150405Z"))
	_, err = e.client.PutObject(ctx, e.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("export: upload %s: %w", key, err)
	}
	e.logger.Printf("export: gameplan stored at %s/%s", e.bucket, key)
	return key, nil
}
