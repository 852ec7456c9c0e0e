package requests

import (
	"net/http"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// GetRequestID returns the inbound request's id, minting one when the header
// is absent, so every log line produced for a request shares one handle.
// Callers behind a proxy can supply their own id and trace it end to end.
func GetRequestID(req *http.Request) string {
	requestID := req.Header.Get(requestIDHeader)
	if requestID != "" {
		return requestID
	}
	requestID = uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	return requestID
}
