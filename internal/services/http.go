package services

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"
)

// leveledLogger adapts a [log.Logger] to [retryablehttp.LeveledLogger].
type leveledLogger struct {
	l *log.Logger
}

func (a leveledLogger) Error(msg string, kv ...any) { a.l.Error(msg, kv...) }
func (a leveledLogger) Info(msg string, kv ...any)  { a.l.Info(msg, kv...) }
func (a leveledLogger) Debug(msg string, kv ...any) { a.l.Debug(msg, kv...) }
func (a leveledLogger) Warn(msg string, kv ...any)  { a.l.Warn(msg, kv...) }

// NewHTTPClient builds the content transport: a [retryablehttp.Client] that retries connection
// errors and 5xx responses up to retryMax times, exposed as a standard [http.Client].
func NewHTTPClient(retryMax int, timeout time.Duration, logger *log.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = max(retryMax, 0)
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	if logger != nil {
		rc.Logger = leveledLogger{l: logger}
	} else {
		rc.Logger = nil
	}
	return rc.StandardClient()
}

// NewProbeClient builds the client used for liveness probes. It never retries so an unreachable
// connection fails fast and the next candidate is tried.
func NewProbeClient(timeout time.Duration, logger *log.Logger) *http.Client {
	return NewHTTPClient(0, timeout, logger)
}
