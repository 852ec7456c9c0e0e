package middleware

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/julienschmidt/httprouter"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/metrics"
)

// Route classes bounded by the capacity middleware. Cheap reads (status,
// downloads, catalogs) are never gated.
const (
	ClassTransform = "transform"
	ClassClips     = "clips"
)

// Suggested client wait once a class is saturated. Transform workers run for
// minutes, so immediate retries would just burn the budget again.
const retryAfterSeconds = 15

// CapacityMiddleware bounds how many expensive requests run at once, per
// route class. The counters track requests being handled, not cached jobs:
// a dedup hit passes through without consuming worker capacity for long.
type CapacityMiddleware struct {
	transformInFlight atomic.Int64
	clipsInFlight     atomic.Int64
}

// HasCapacity admits the request while the class is under its limit and
// responds 429 with a Retry-After hint otherwise. A zero or negative limit
// means unbounded.
func (c *CapacityMiddleware) HasCapacity(class string, limit int64, next httprouter.Handle) httprouter.Handle {
	counter := c.counter(class)
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		inFlight := counter.Add(1)
		defer counter.Add(-1)
		metrics.Metrics.InFlightRequests.WithLabelValues(class).Inc()
		defer metrics.Metrics.InFlightRequests.WithLabelValues(class).Dec()

		if limit > 0 && inFlight > limit {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
			errors.WriteHTTPTooManyRequests(w, "Too many requests in flight, try again later", nil)
			return
		}

		next(w, r, ps)
	}
}

func (c *CapacityMiddleware) counter(class string) *atomic.Int64 {
	if class == ClassClips {
		return &c.clipsInFlight
	}
	return &c.transformInFlight
}
