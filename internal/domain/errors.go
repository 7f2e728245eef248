package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes exposed to callers. They are stable across releases.
const (
	CodeDecode         = "decode_error"
	CodeAuth           = "auth_error"
	CodeHeaderNotFound = "header_not_found"
	CodeNoAccount      = "no_account"
	CodeStore          = "store_error"
	CodeValidation     = "validation_error"
	CodeUnsupported    = "unsupported_format"
	CodeInternal       = "internal_error"
)

// DecodeError means no candidate encoding produced text containing the expected anchor.
type DecodeError struct {
	File  string
	Tried []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: could not decode file (tried %s); re-export the statement as UTF-8 or another format",
		e.File, strings.Join(e.Tried, ", "))
}

// AuthError means the PDF password was wrong or missing.
type AuthError struct {
	File string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: incorrect or missing password: %v", e.File, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// HeaderNotFoundError means the expected layout was not recognised.
type HeaderNotFoundError struct {
	File     string
	Provider Provider
	Expected string
}

func (e *HeaderNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s header %q not found; the export format or version is not supported",
		e.File, e.Provider, e.Expected)
}

// NoAccountError means the owner has no account to import into.
type NoAccountError struct {
	OwnerID string
}

func (e *NoAccountError) Error() string {
	return fmt.Sprintf("owner %s has no account to import into", e.OwnerID)
}

// StoreError wraps a failure reported by the ledger store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ledger store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ValidationError reports a record that is unusable after normalization.
type ValidationError struct {
	File   string
	Row    int
	Page   int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	loc := fmt.Sprintf("row %d", e.Row)
	if e.Page > 0 {
		loc = fmt.Sprintf("page %d row %d", e.Page, e.Row)
	}
	return fmt.Sprintf("%s: %s: %s: %s", e.File, loc, e.Field, e.Reason)
}

// UnsupportedError means the provider does not accept the file's format.
type UnsupportedError struct {
	File     string
	Provider Provider
	Kind     Kind
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s statements are not accepted as %s", e.File, e.Provider, e.Kind)
}

// Code maps an error from the engine to its stable code.
func Code(err error) string {
	var (
		decodeErr *DecodeError
		authErr   *AuthError
		headerErr *HeaderNotFoundError
		accErr    *NoAccountError
		storeErr  *StoreError
		valErr    *ValidationError
		unsupErr  *UnsupportedError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &authErr):
		return CodeAuth
	case errors.As(err, &decodeErr):
		return CodeDecode
	case errors.As(err, &headerErr):
		return CodeHeaderNotFound
	case errors.As(err, &accErr):
		return CodeNoAccount
	case errors.As(err, &valErr):
		return CodeValidation
	case errors.As(err, &unsupErr):
		return CodeUnsupported
	case errors.As(err, &storeErr):
		return CodeStore
	default:
		return CodeInternal
	}
}
