package gcsuploader

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Service keeps statements in a GCS bucket using one shared client.
// It satisfies pipeline.StorageService.
type Service struct {
	client *storage.Client
	bucket string
}

// NewService creates a storage client. bucket is the default upload target.
func NewService(ctx context.Context, bucket string) (*Service, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Service{client: client, bucket: bucket}, nil
}

// Close releases the storage client.
func (s *Service) Close() error {
	return s.client.Close()
}

// Bucket returns the default bucket.
func (s *Service) Bucket() string {
	return s.bucket
}

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/folder/file.csv" → "file.csv"
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}

	return path.Base(parts[1])
}

// ExtractFilenameFromGCSURI implements pipeline.StorageService.
func (s *Service) ExtractFilenameFromGCSURI(uri string) string {
	return ExtractFilenameFromGCSURI(uri)
}

// ObjectName returns the object path for an owner's uploaded statement:
// statements/<owner>/<yyyy-mm-dd>/<uuid>-<filename>.
func ObjectName(ownerID, filename string, now time.Time) string {
	return path.Join("statements", ownerID, now.UTC().Format("2006-01-02"), uuid.NewString()+"-"+path.Base(filename))
}
