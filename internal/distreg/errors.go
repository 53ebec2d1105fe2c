// Package distreg implements the Docker Registry HTTP API v2 error taxonomy.
package distreg

import (
	"encoding/json"
	"net/http"
)

// Kind is one of the error codes defined by the Distribution error spec.
type Kind string

const (
	BlobUnknown       Kind = "BLOB_UNKNOWN"
	BlobUploadInvalid Kind = "BLOB_UPLOAD_INVALID"
	BlobUploadUnknown Kind = "BLOB_UPLOAD_UNKNOWN"
	DigestInvalid     Kind = "DIGEST_INVALID"
	ManifestInvalid   Kind = "MANIFEST_INVALID"
	ManifestUnknown   Kind = "MANIFEST_UNKNOWN"
	NameInvalid       Kind = "NAME_INVALID"
	NameUnknown       Kind = "NAME_UNKNOWN"
	RangeInvalid      Kind = "RANGE_INVALID"
	SizeInvalid       Kind = "SIZE_INVALID"
	TagInvalid        Kind = "TAG_INVALID"
	Unauthorized      Kind = "UNAUTHORIZED"
	Denied            Kind = "DENIED"
	Unsupported       Kind = "UNSUPPORTED"
)

var messages = map[Kind]string{
	BlobUnknown:       "blob unknown to registry",
	BlobUploadInvalid: "blob upload invalid",
	BlobUploadUnknown: "blob upload unknown to registry",
	DigestInvalid:     "provided digest did not match uploaded content",
	ManifestInvalid:   "manifest invalid",
	ManifestUnknown:   "manifest unknown",
	NameInvalid:       "invalid repository name",
	NameUnknown:       "repository name not known to registry",
	RangeInvalid:      "invalid content range",
	SizeInvalid:       "provided length did not match content length",
	TagInvalid:        "manifest tag did not match URI",
	Unauthorized:      "authentication required",
	Denied:            "requested access to the resource is denied",
	Unsupported:       "the operation is unsupported",
}

var statuses = map[Kind]int{
	BlobUnknown:       http.StatusNotFound,
	BlobUploadInvalid: http.StatusBadRequest,
	BlobUploadUnknown: http.StatusNotFound,
	DigestInvalid:     http.StatusBadRequest,
	ManifestInvalid:   http.StatusBadRequest,
	ManifestUnknown:   http.StatusNotFound,
	NameInvalid:       http.StatusBadRequest,
	NameUnknown:       http.StatusNotFound,
	RangeInvalid:      http.StatusBadRequest,
	SizeInvalid:       http.StatusBadRequest,
	TagInvalid:        http.StatusBadRequest,
	Unauthorized:      http.StatusUnauthorized,
	Denied:            http.StatusForbidden,
	Unsupported:       http.StatusMethodNotAllowed,
}

// Error is a Distribution-spec error carrying its HTTP status alongside it.
type Error struct {
	Kind    Kind
	Message string
	Detail  interface{}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return messages[e.Kind]
}

// Status returns the HTTP status code this error kind maps to.
func (e *Error) Status() int {
	if s, ok := statuses[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New builds an Error for the given kind, using the canonical message.
func New(kind Kind) *Error {
	return &Error{Kind: kind, Message: messages[kind]}
}

// Newf builds an Error for the given kind with a custom message.
func Newf(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithDetail attaches a detail value (returned verbatim in the JSON body).
func (e *Error) WithDetail(detail interface{}) *Error {
	e.Detail = detail
	return e
}

type errorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail,omitempty"`
}

type errorBody struct {
	Errors []errorDetail `json:"errors"`
}

// WriteHTTP renders err as the Distribution JSON error body at its mapped
// status. If err is not a *Error it is reported as a 500 with code UNKNOWN.
func WriteHTTP(w http.ResponseWriter, err error) {
	regErr, ok := err.(*Error)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errorBody{Errors: []errorDetail{{
			Code:    "UNKNOWN",
			Message: err.Error(),
		}}})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(regErr.Status())
	json.NewEncoder(w).Encode(errorBody{Errors: []errorDetail{{
		Code:    string(regErr.Kind),
		Message: regErr.Error(),
		Detail:  regErr.Detail,
	}}})
}
