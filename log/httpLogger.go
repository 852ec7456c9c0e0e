package log

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/hashicorp/go-retryablehttp"
)

var _ retryablehttp.LeveledLogger = retryableHTTPLogger{}

// retryableHTTPLogger adapts hashicorp's leveled logger onto glog verbosity
// gates: failures at -v=3, retries at -v=4 and request traces from -v=5.
// Source URLs can embed credentials, so url values are redacted before they
// reach a log line.
type retryableHTTPLogger struct{}

func NewRetryableHTTPLogger() retryablehttp.LeveledLogger {
	return retryableHTTPLogger{}
}

func (r retryableHTTPLogger) Error(msg string, keysAndValues ...interface{}) {
	r.log(3, msg, keysAndValues)
}

func (r retryableHTTPLogger) Warn(msg string, keysAndValues ...interface{}) {
	r.log(4, msg, keysAndValues)
}

func (r retryableHTTPLogger) Info(msg string, keysAndValues ...interface{}) {
	r.log(5, msg, keysAndValues)
}

func (r retryableHTTPLogger) Debug(msg string, keysAndValues ...interface{}) {
	r.log(6, msg, keysAndValues)
}

func (r retryableHTTPLogger) log(level glog.Level, msg string, keysAndValues []interface{}) {
	if !glog.V(level) {
		return
	}
	LogNoRequestID(msg, redactURLValues(keysAndValues)...)
}

func redactURLValues(keysAndValues []interface{}) []interface{} {
	out := make([]interface{}, len(keysAndValues))
	copy(out, keysAndValues)
	for i := 0; i+1 < len(out); i += 2 {
		if key, ok := out[i].(string); !ok || key != "url" {
			continue
		}
		switch v := out[i+1].(type) {
		case string:
			out[i+1] = RedactURL(v)
		case fmt.Stringer:
			out[i+1] = RedactURL(v.String())
		}
	}
	return out
}
