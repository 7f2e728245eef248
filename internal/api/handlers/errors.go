package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/statement-import/internal/api/middleware"
	"github.com/dvloznov/statement-import/internal/commit"
	"github.com/dvloznov/statement-import/internal/domain"
)

// StatusForCode maps an import error code to an HTTP status.
func StatusForCode(code string) int {
	switch code {
	case domain.CodeDecode, domain.CodeHeaderNotFound, domain.CodeUnsupported, domain.CodeAuth:
		return http.StatusUnprocessableEntity
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeNoAccount:
		return http.StatusConflict
	case domain.CodeStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeImportError writes err with its import code. Messages of engine
// errors are safe to show; anything else is reported generically.
func writeImportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, commit.ErrSessionNotFound):
		middleware.WriteCodedError(w, http.StatusNotFound, "not_found", "Import not found")
		return
	case errors.Is(err, commit.ErrUndoUnavailable):
		middleware.WriteCodedError(w, http.StatusConflict, "undo_unavailable", err.Error())
		return
	}

	code := domain.Code(err)
	msg := err.Error()
	if code == domain.CodeInternal {
		msg = "Internal error"
	}
	middleware.WriteCodedError(w, StatusForCode(code), code, msg)
}
