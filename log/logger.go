package log

import (
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/patrickmn/go-cache"
)

var loggerCache *cache.Cache
var default_logger_cache_expiry = 6 * time.Hour

// Swappable in tests to capture log output
var logDestination io.Writer = os.Stderr

func init() {
	loggerCache = cache.New(default_logger_cache_expiry, 10*time.Minute)
}

// Permanently add context to the logger. Any future logging for this Request ID will include this context
func AddContext(requestID string, keyvals ...interface{}) {
	_ = loggerCache.Add(requestID, kitlog.With(getLogger(requestID), redactKeyvals(keyvals...)...), default_logger_cache_expiry)
}

func Log(requestID string, message string, keyvals ...interface{}) {
	_ = kitlog.With(getLogger(requestID), "msg", message).Log(redactKeyvals(keyvals...)...)
}

// Log in situations where we don't have access to the Request ID.
// Should be used sparingly and with as much context inserted into the message as possible
func LogNoRequestID(message string, keyvals ...interface{}) {
	_ = kitlog.With(newLogger(), "msg", message).Log(redactKeyvals(keyvals...)...)
}

func LogError(requestID string, message string, err error, keyvals ...interface{}) {
	msgLogger := kitlog.With(getLogger(requestID), "msg", message)
	errLogger := kitlog.With(msgLogger, "err", err.Error())
	_ = errLogger.Log(redactKeyvals(keyvals...)...)
}

func getLogger(requestID string) kitlog.Logger {
	logger, found := loggerCache.Get(requestID)
	if found {
		return logger.(kitlog.Logger)
	}

	newLogger := kitlog.With(newLogger(), "request_id", requestID)
	err := loggerCache.Add(requestID, newLogger, default_logger_cache_expiry)
	if err != nil {
		_ = newLogger.Log("msg", "error adding logger to cache", "request_id", requestID)
	}
	return newLogger
}

func newLogger() kitlog.Logger {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(logDestination))
	return kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
}

// Source URLs can arrive with embedded credentials. Strip passwords from any
// URL-shaped string value before it reaches a log line.
func redactKeyvals(keyvals ...interface{}) []interface{} {
	out := make([]interface{}, 0, len(keyvals))
	for _, kv := range keyvals {
		if s, ok := kv.(string); ok {
			out = append(out, RedactURL(s))
			continue
		}
		out = append(out, kv)
	}
	return out
}

func RedactURL(str string) string {
	if !strings.Contains(str, "://") {
		return str
	}
	u, err := url.Parse(str)
	if err != nil {
		// found something URL-ish we couldn't parse, best not to log it at all
		return "REDACTED"
	}
	return u.Redacted()
}
