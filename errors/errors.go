package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/reframelabs/reframe-api/log"
	"github.com/xeipuuv/gojsonschema"
)

// Kind buckets every failure the engine surfaces so that the job coordinator
// and the HTTP handlers can map errors without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnavailableDependency
	KindInvalidInput
	KindNotFound
	KindDownload
	KindConversion
	KindTranscription
	KindRemoteReasoning
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUnavailableDependency:
		return "unavailable dependency"
	case KindInvalidInput:
		return "invalid input"
	case KindNotFound:
		return "not found"
	case KindDownload:
		return "download failed"
	case KindConversion:
		return "conversion failed"
	case KindTranscription:
		return "transcription failed"
	case KindRemoteReasoning:
		return "remote reasoning failed"
	case KindTimeout:
		return "timed out"
	}
	return "unknown error"
}

type kindError struct {
	kind Kind
	msg  string
	err  error
}

func (e *kindError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.err)
	}
	return e.msg
}

func (e *kindError) Unwrap() error { return e.err }

func newKindError(kind Kind, msg string, err error) error {
	return &kindError{kind: kind, msg: msg, err: err}
}

func NewUnavailableDependencyError(msg string, err error) error {
	return newKindError(KindUnavailableDependency, msg, err)
}

func NewInvalidInputError(msg string, err error) error {
	return newKindError(KindInvalidInput, msg, err)
}

func NewNotFoundError(msg string, err error) error {
	return newKindError(KindNotFound, msg, err)
}

func NewDownloadError(msg string, err error) error {
	return newKindError(KindDownload, msg, err)
}

func NewConversionError(msg string, err error) error {
	return newKindError(KindConversion, msg, err)
}

func NewTranscriptionError(msg string, err error) error {
	return newKindError(KindTranscription, msg, err)
}

func NewRemoteReasoningError(msg string, err error) error {
	return newKindError(KindRemoteReasoning, msg, err)
}

func NewTimeoutError(msg string, err error) error {
	return newKindError(KindTimeout, msg, err)
}

// ErrorKind returns the Kind of the first kindError in err's chain.
func ErrorKind(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return ErrorKind(err) == kind
}

func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

func IsInvalidInput(err error) bool { return IsKind(err, KindInvalidInput) }

func IsUnavailableDependency(err error) bool { return IsKind(err, KindUnavailableDependency) }

func IsTimeout(err error) bool { return IsKind(err, KindTimeout) }

type unretriableError struct{ error }

func (e unretriableError) Unwrap() error { return e.error }

// Unretriable marks an error to stop any backoff.Retry loop it passes
// through and to be recognized by IsUnretriable.
func Unretriable(err error) error {
	return backoff.Permanent(unretriableError{err})
}

// IsUnretriable reports whether the error should short-circuit retry loops.
// Input, auth and missing-resource failures never get better on retry, so
// they count as unretriable without an explicit mark.
func IsUnretriable(err error) bool {
	if ue := (unretriableError{}); errors.As(err, &ue) {
		return true
	}
	switch ErrorKind(err) {
	case KindInvalidInput, KindNotFound, KindUnavailableDependency:
		return true
	}
	return false
}

type apiError struct {
	Msg    string `json:"message"`
	Status int    `json:"status"`
	Err    error  `json:"-"`
}

func writeHttpError(w http.ResponseWriter, msg string, status int, err error) apiError {
	var errorDetail string
	if err != nil {
		errorDetail = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg, "error_detail": errorDetail}); err != nil {
		log.LogNoRequestID("error writing HTTP error", "http_error_msg", msg, "error", err)
	}
	return apiError{msg, status, err}
}

// HTTP Errors
func WriteHTTPUnauthorized(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusUnauthorized, err)
}

func WriteHTTPBadRequest(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusBadRequest, err)
}

func WriteHTTPNotFound(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusNotFound, err)
}

func WriteHTTPUnsupportedMediaType(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusUnsupportedMediaType, err)
}

func WriteHTTPTooManyRequests(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusTooManyRequests, err)
}

func WriteHTTPInternalServerError(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusInternalServerError, err)
}

func WriteHTTPBadBodySchema(where string, w http.ResponseWriter, errors []gojsonschema.ResultError) apiError {
	sb := strings.Builder{}
	sb.WriteString("Body validation error in ")
	sb.WriteString(where)
	sb.WriteString(" ")
	for i := 0; i < len(errors); i++ {
		sb.WriteString(errors[i].String())
		sb.WriteString(" ")
	}
	return writeHttpError(w, sb.String(), http.StatusBadRequest, nil)
}
