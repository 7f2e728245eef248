package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dvloznov/statement-import/internal/domain"
)

// StorageService fetches statements kept in object storage.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURI(uri string) string
}

// GCSRequest names a statement stored in GCS.
type GCSRequest struct {
	OwnerID  string
	Provider domain.Provider
	GCSURI   string
	Password string
	Options  Options
}

// ImportFromGCS downloads a statement and imports it.
func (im *Importer) ImportFromGCS(ctx context.Context, storage StorageService, req GCSRequest) (*Report, error) {
	filename := storage.ExtractFilenameFromGCSURI(req.GCSURI)
	kind, err := domain.KindFromFilename(filename)
	if err != nil {
		return nil, &domain.UnsupportedError{File: filename, Provider: req.Provider, Kind: domain.Kind(strings.TrimPrefix(path.Ext(filename), "."))}
	}

	data, err := storage.FetchFromGCS(ctx, req.GCSURI)
	if err != nil {
		return nil, fmt.Errorf("ImportFromGCS: %w", err)
	}

	return im.Import(ctx, Request{
		OwnerID:  req.OwnerID,
		Provider: req.Provider,
		Document: domain.RawDocument{Filename: filename, Kind: kind, Data: data, Password: req.Password},
		Options:  req.Options,
	})
}
