package errors

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func TestErrorKind(t *testing.T) {
	err := NewDownloadError("fetching source", fmt.Errorf("connection reset"))
	require.Equal(t, KindDownload, ErrorKind(err))
	require.True(t, IsKind(err, KindDownload))
	require.False(t, IsNotFound(err))

	wrapped := fmt.Errorf("job failed: %w", err)
	require.Equal(t, KindDownload, ErrorKind(wrapped))
}

func TestErrorKindUnknown(t *testing.T) {
	require.Equal(t, KindUnknown, ErrorKind(fmt.Errorf("bar")))
	require.Equal(t, KindUnknown, ErrorKind(nil))
}

func TestKindErrorMessage(t *testing.T) {
	err := NewConversionError("ffmpeg exited", fmt.Errorf("signal: killed"))
	require.Equal(t, "ffmpeg exited: signal: killed", err.Error())

	err = NewNotFoundError("no job for id abc123", nil)
	require.Equal(t, "no job for id abc123", err.Error())
}

func TestUnretriable(t *testing.T) {
	err := Unretriable(fmt.Errorf("bar"))
	require.True(t, IsUnretriable(err))
	var permErr *backoff.PermanentError
	require.True(t, errors.As(err, &permErr))
}

func TestKindsAreUnretriableWithoutMark(t *testing.T) {
	err := NewNotFoundError("foo", fmt.Errorf("bar"))
	require.True(t, IsUnretriable(err))
	var permErr *backoff.PermanentError
	require.False(t, errors.As(err, &permErr))

	require.True(t, IsUnretriable(NewInvalidInputError("quality", nil)))
	require.True(t, IsUnretriable(NewUnavailableDependencyError("ffmpeg", nil)))
	require.False(t, IsUnretriable(NewConversionError("boom", nil)))
	require.False(t, IsUnretriable(fmt.Errorf("bar")))
}

func TestWriteHTTPErrorSetsStatusBeforeBody(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTPBadRequest(rec, "invalid quality", fmt.Errorf("got 4k"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"error": "invalid quality", "error_detail": "got 4k"}`, rec.Body.String())
}
