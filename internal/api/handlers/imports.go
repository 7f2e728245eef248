package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dvloznov/statement-import/internal/api/middleware"
	"github.com/dvloznov/statement-import/internal/commit"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/gcsuploader"
	"github.com/dvloznov/statement-import/internal/jobs"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/dvloznov/statement-import/internal/pipeline"
)

// Importer runs synchronous imports.
type Importer interface {
	Import(ctx context.Context, req pipeline.Request) (*pipeline.Report, error)
}

// Uploader archives statements for background imports.
type Uploader interface {
	UploadBytes(ctx context.Context, objectName string, data []byte) (string, error)
}

// ImportsHandler handles import endpoints.
type ImportsHandler struct {
	importer  Importer
	registry  *commit.Registry
	publisher jobs.Publisher
	uploader  Uploader
	maxUpload int64
}

// NewImportsHandler creates an imports handler. publisher and uploader may be
// nil, which disables background imports.
func NewImportsHandler(importer Importer, registry *commit.Registry, publisher jobs.Publisher, uploader Uploader, maxUpload int64) *ImportsHandler {
	return &ImportsHandler{
		importer:  importer,
		registry:  registry,
		publisher: publisher,
		uploader:  uploader,
		maxUpload: maxUpload,
	}
}

// importResponse is the report plus the advisory undo window.
type importResponse struct {
	*pipeline.Report
	UndoWindowMS  int64      `json:"undo_window_ms,omitempty"`
	UndoExpiresAt *time.Time `json:"undo_expires_at,omitempty"`
	Error         string     `json:"error,omitempty"`
	Code          string     `json:"code,omitempty"`
}

// Create handles POST /api/imports
//
// Multipart form fields: file, provider, password, account_id, dry_run and
// async. With async=true the file is stored in GCS and imported by a job.
func (h *ImportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	owner := middleware.OwnerFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form or file too large")
		return
	}

	provider, err := domain.ParseProvider(r.FormValue("provider"))
	if err != nil {
		middleware.WriteCodedError(w, http.StatusBadRequest, domain.CodeUnsupported, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	kind, err := domain.KindFromFilename(filename)
	if err != nil {
		middleware.WriteCodedError(w, http.StatusUnprocessableEntity, domain.CodeUnsupported, err.Error())
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	dryRun, _ := strconv.ParseBool(r.FormValue("dry_run"))
	opts := pipeline.Options{DryRun: dryRun, AccountID: r.FormValue("account_id")}

	if async, _ := strconv.ParseBool(r.FormValue("async")); async {
		h.enqueueUpload(w, r, owner, provider, filename, data, opts)
		return
	}

	report, err := h.importer.Import(ctx, pipeline.Request{
		OwnerID:  owner,
		Provider: provider,
		Document: domain.RawDocument{Filename: filename, Kind: kind, Data: data, Password: r.FormValue("password")},
		Options:  opts,
	})
	if err != nil && report == nil {
		log.Warn().Err(err).Str("file", filename).Msg("Import failed")
		writeImportError(w, err)
		return
	}

	resp := importResponse{Report: report}
	if report.Undo != nil {
		expires := time.Now().Add(report.UndoWindow)
		resp.UndoWindowMS = report.UndoWindow.Milliseconds()
		resp.UndoExpiresAt = &expires
	}

	status := http.StatusOK
	if err != nil {
		// Partial commit: the report describes what is in the ledger.
		code := domain.Code(err)
		resp.Error, resp.Code = err.Error(), code
		status = StatusForCode(code)
	}
	middleware.WriteJSON(w, status, resp)
}

func (h *ImportsHandler) enqueueUpload(w http.ResponseWriter, r *http.Request, owner string, provider domain.Provider, filename string, data []byte, opts pipeline.Options) {
	ctx := r.Context()
	if h.publisher == nil || h.uploader == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "Background imports are not configured")
		return
	}

	uri, err := h.uploader.UploadBytes(ctx, gcsuploader.ObjectName(owner, filename, time.Now()), data)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to upload statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	h.publish(w, r, &jobs.ImportJob{
		OwnerID:   owner,
		Provider:  string(provider),
		GCSURI:    uri,
		Password:  r.FormValue("password"),
		AccountID: opts.AccountID,
		DryRun:    opts.DryRun,
	})
}

// EnqueueGCS handles POST /api/imports/gcs
func (h *ImportsHandler) EnqueueGCS(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "Background imports are not configured")
		return
	}

	var req struct {
		Provider  string `json:"provider"`
		GCSURI    string `json:"gcs_uri"`
		Password  string `json:"password"`
		AccountID string `json:"account_id"`
		DryRun    bool   `json:"dry_run"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := domain.ParseProvider(req.Provider); err != nil {
		middleware.WriteCodedError(w, http.StatusBadRequest, domain.CodeUnsupported, err.Error())
		return
	}
	if _, _, err := gcsuploader.ParseGCSURI(req.GCSURI); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.publish(w, r, &jobs.ImportJob{
		OwnerID:   middleware.OwnerFromContext(r.Context()),
		Provider:  req.Provider,
		GCSURI:    req.GCSURI,
		Password:  req.Password,
		AccountID: req.AccountID,
		DryRun:    req.DryRun,
	})
}

func (h *ImportsHandler) publish(w http.ResponseWriter, r *http.Request, job *jobs.ImportJob) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	if err := h.publisher.PublishImport(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue import job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue import job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("gcs_uri", job.GCSURI).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": job.GCSURI,
		"status":  string(job.Status),
	})
}

// Get handles GET /api/imports/{id}
func (h *ImportsHandler) Get(w http.ResponseWriter, r *http.Request, importID string) {
	s, err := h.registry.Get(middleware.OwnerFromContext(r.Context()), importID)
	if err != nil {
		writeImportError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// Undo handles POST /api/imports/{id}/undo
func (h *ImportsHandler) Undo(w http.ResponseWriter, r *http.Request, importID string) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	s, err := h.registry.Undo(ctx, middleware.OwnerFromContext(ctx), importID)
	if err != nil {
		log.Warn().Err(err).Str("import_id", importID).Msg("Undo failed")
		if s != nil && !errors.Is(err, commit.ErrUndoUnavailable) {
			// The compensating action failed part way and can be retried.
			middleware.WriteCodedError(w, http.StatusServiceUnavailable, domain.CodeStore, fmt.Sprintf("undo incomplete, retry: %v", err))
			return
		}
		writeImportError(w, err)
		return
	}

	log.Info().Str("import_id", importID).Msg("Import undone")
	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}
