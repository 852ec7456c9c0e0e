package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

type Retries struct {
	count          int
	lastStatusCode int
}

// MonitorRequest issues the request through the given client, recording
// duration, retry count and failures against the client's metric set. The
// request's own context is preserved so deadlines keep working.
func MonitorRequest(clientMetrics ClientMetrics, client *http.Client, r *http.Request) (*http.Response, error) {
	retries := &Retries{count: -1}
	req := r.WithContext(context.WithValue(r.Context(), RetriesKey, retries))

	start := time.Now()
	res, err := client.Do(req)
	duration := time.Since(start)

	if retries.lastStatusCode >= 400 {
		clientMetrics.FailureCount.WithLabelValues(req.URL.Host, fmt.Sprint(retries.lastStatusCode)).Inc()
		return res, err
	}

	clientMetrics.RequestDuration.WithLabelValues(req.URL.Host).Observe(duration.Seconds())
	clientMetrics.RetryCount.WithLabelValues(req.URL.Host).Set(float64(retries.count))
	if clientMetrics.RequestCount != nil {
		clientMetrics.RequestCount.WithLabelValues(req.URL.Host).Inc()
	}

	return res, err
}

// HttpRetryHook is a retryablehttp CheckRetry that counts attempts into the
// Retries value MonitorRequest planted on the context, then defers to the
// default retry policy.
func HttpRetryHook(ctx context.Context, res *http.Response, err error) (bool, error) {
	if retries, ok := ctx.Value(RetriesKey).(*Retries); ok {
		if res == nil {
			// TODO: have a better way to represent closed/refused connections and timeouts
			retries.lastStatusCode = 999
		} else {
			retries.lastStatusCode = res.StatusCode
		}
		retries.count++
	}

	return retryablehttp.DefaultRetryPolicy(ctx, res, err)
}
