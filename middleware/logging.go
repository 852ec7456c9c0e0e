package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/log"
	"github.com/reframelabs/reframe-api/requests"
)

type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
	rw.wroteHeader = true
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// LogRequest assigns each request an id and logs one line per served
// request. Panics in handlers are recovered here, logged with their stack
// and turned into a 500 instead of killing the process.
func LogRequest() func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)
			requestID := requests.GetRequestID(r)

			defer func() {
				if rec := recover(); rec != nil {
					errors.WriteHTTPInternalServerError(wrapped, "Internal Server Error", nil)
					log.Log(requestID, "panic in request handler", "panic", rec, "trace", string(debug.Stack()))
				}
				log.Log(requestID, "http request served",
					"remote", r.RemoteAddr,
					"method", r.Method,
					"uri", r.URL.RequestURI(),
					"duration", time.Since(start),
					"status", wrapped.status,
				)
			}()

			next(wrapped, r, ps)
		}
	}
}
