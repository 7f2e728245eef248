package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

const uploadTimeout = 2 * time.Minute

// UploadFile uploads a local file to the bucket under the given object name
// and returns its gs:// URI. It assumes Application Default Credentials are
// configured (gcloud auth application-default login).
func (s *Service) UploadFile(ctx context.Context, bucketName, objectName, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	return s.upload(ctx, bucketName, objectName, f)
}

// UploadBytes stores data in the default bucket and returns its gs:// URI.
func (s *Service) UploadBytes(ctx context.Context, objectName string, data []byte) (string, error) {
	if s.bucket == "" {
		return "", fmt.Errorf("UploadBytes: no bucket configured")
	}
	return s.upload(ctx, s.bucket, objectName, bytes.NewReader(data))
}

func (s *Service) upload(ctx context.Context, bucketName, objectName string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(bucketName).Object(objectName).NewWriter(ctx)

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	return "gs://" + bucketName + "/" + objectName, nil
}
