// Package apperr defines the error taxonomy shared by ingestion, analytics
// and rating sync, and maps it onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups errors by how callers should react to them.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindForbidden   Kind = "forbidden"
	KindConsistency Kind = "consistency"
	KindExtraction  Kind = "extraction"
	KindConflict    Kind = "conflict"
	KindStore       Kind = "store"
	KindFetch       Kind = "fetch"
)

// Error is a structured rejection. Two errors are the same rejection when
// their codes match, so sentinels below work with errors.Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidEventType  = &Error{Kind: KindValidation, Code: "invalid_event_type", Message: "Invalid event_type"}
	ErrMissingTagCode    = &Error{Kind: KindValidation, Code: "missing_tag_code", Message: "Missing nfc_code for nfc_touch"}
	ErrEmptyReviewURL    = &Error{Kind: KindValidation, Code: "empty_review_url", Message: "review_url is empty"}
	ErrPageNotFound      = &Error{Kind: KindNotFound, Code: "page_not_found", Message: "Page not found"}
	ErrTagNotFound       = &Error{Kind: KindNotFound, Code: "tag_not_found", Message: "NFC tag not found"}
	ErrUnresolvableOwner = &Error{Kind: KindConsistency, Code: "unresolvable_owner", Message: "Could not resolve user_id"}
	ErrTagPageMismatch   = &Error{Kind: KindConsistency, Code: "tag_page_mismatch", Message: "Tag does not belong to this page"}
	ErrForbidden         = &Error{Kind: KindForbidden, Code: "forbidden", Message: "forbidden"}
	ErrNoDataFound       = &Error{Kind: KindExtraction, Code: "no_data_found", Message: "rating/reviewCount not found: the page may be behind a captcha or render its data differently"}
	ErrSyncSuperseded    = &Error{Kind: KindConflict, Code: "sync_superseded", Message: "sync superseded by a newer trigger"}
)

// Validation builds an ad-hoc validation error, e.g. for malformed request bodies.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Code: "validation_error", Message: msg}
}

// Store wraps a failure of the underlying data store.
func Store(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindStore, Code: "store_error", Message: "data store error", Err: err}
}

// Fetch wraps a transport or rendering failure of the page fetcher.
func Fetch(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindFetch, Code: "fetch_error", Message: "page fetch failed", Err: err}
}

// KindOf reports the kind of err, or "" for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf reports the code of err, or "internal_error".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}

// HTTPStatus maps err to the status code the HTTP layer answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindConsistency:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
