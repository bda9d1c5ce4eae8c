package logger

import (
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

var (
	sentryMu      sync.Mutex
	sentryEnabled bool
)

// InitSentry wires optional error reporting for EXCEPTION-kind engine
// errors. It is a no-op (and never returns an error worth failing
// startup over) when dsn is empty — Sentry is an observability sink,
// not a correctness dependency.
func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	}); err != nil {
		return err
	}
	sentryMu.Lock()
	sentryEnabled = true
	sentryMu.Unlock()
	return nil
}

// ReportException forwards an unexpected per-document processing error
// to Sentry, tagged with the document id, when Sentry is configured.
func ReportException(err error, docID string) {
	if err == nil {
		return
	}
	sentryMu.Lock()
	enabled := sentryEnabled
	sentryMu.Unlock()
	if !enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("doc_id", docID)
		sentry.CaptureException(err)
	})
}

// FlushSentry blocks until buffered Sentry events are sent or the
// timeout elapses. Call during graceful shutdown.
func FlushSentry(timeout time.Duration) {
	sentryMu.Lock()
	enabled := sentryEnabled
	sentryMu.Unlock()
	if !enabled {
		return
	}
	sentry.Flush(timeout)
}
