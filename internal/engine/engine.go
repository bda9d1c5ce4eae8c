// Package engine implements the delivery loop: the tick-based admission
// predicate cascade, state machine, and bounded-concurrency worker pool
// that turns mail documents into SMTP sends.
package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/krultra/smtp-agent/internal/config"
	"github.com/krultra/smtp-agent/internal/fingerprint"
	"github.com/krultra/smtp-agent/internal/mailer"
	"github.com/krultra/smtp-agent/internal/store"
	"github.com/krultra/smtp-agent/internal/version"
	"github.com/krultra/smtp-agent/pkg/logger"
)

// ErrorCode is the tagged error category persisted to lastAttempt.errorCode.
type ErrorCode string

const (
	ErrorNone       ErrorCode = ""
	ErrorValidation ErrorCode = "VALIDATION"
	ErrorSMTP       ErrorCode = "SMTP"
	ErrorException  ErrorCode = "EXCEPTION"
	ErrorSkip       ErrorCode = "SKIP"
)

const maxErrorMessageLen = 300

// MaxConcurrency bounds how many documents are sent concurrently within one tick.
const MaxConcurrency = 8

// Engine owns one delivery loop instance. Multiple Engines (processes)
// may run against the same store concurrently; coordination is
// opportunistic, not leader-elected.
type Engine struct {
	store   store.Adapter
	sender  mailer.Sender
	overlay *config.Overlay
	clock   Clock

	identity string // "<host>:<pid>", written to processing.by
}

// New constructs an Engine. identity defaults to "<hostname>:<pid>" if host is empty.
func New(adapter store.Adapter, sender mailer.Sender, overlay *config.Overlay, clock Clock, host string) *Engine {
	if clock == nil {
		clock = SystemClock
	}
	if host == "" {
		host, _ = os.Hostname()
	}
	return &Engine{
		store:    adapter,
		sender:   sender,
		overlay:  overlay,
		clock:    clock,
		identity: fmt.Sprintf("%s:%d", host, os.Getpid()),
	}
}

// Run drives ticks until ctx is cancelled, sleeping Effective.PollInterval
// between them (capped by the overlay refreshed each iteration).
func (e *Engine) Run(ctx context.Context) {
	for {
		eff, err := e.overlay.Refresh(ctx)
		if err != nil {
			logger.Current().Error("admin config refresh failed", "error", err.Error())
		}

		e.Tick(ctx, eff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(eff.PollInterval):
		}
	}
}

// Tick runs one admission pass over every current candidate.
func (e *Engine) Tick(ctx context.Context, eff config.Effective) {
	candidates, degraded, err := e.store.ListCandidates(ctx, eff.ProcessFromAfter)
	if err != nil {
		logger.Current().Error("list candidates failed", "error", err.Error())
		return
	}
	if degraded {
		logger.Current().Warn("store rejected NOT IN predicate, filtering terminal states in code")
	}

	sem := make(chan struct{}, MaxConcurrency)
	var wg sync.WaitGroup
	seen := make(map[string]struct{})
	var mu sync.Mutex

	for _, c := range candidates {
		mu.Lock()
		if _, dup := seen[c.Ref.ID]; dup {
			mu.Unlock()
			continue
		}
		seen[c.Ref.ID] = struct{}{}
		mu.Unlock()

		if degraded && c.Doc.SmtpAgent.State.Terminal() {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(cand store.Candidate) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					logger.Current().Error("panic processing document", "doc_id", cand.Ref.ID, "panic", fmt.Sprint(r))
					logger.ReportException(fmt.Errorf("panic: %v", r), cand.Ref.ID)
					e.writeError(ctx, cand.Ref, cand.Doc, ErrorException, fmt.Sprintf("panic: %v", r), FixedBackoff())
				}
			}()
			e.process(ctx, cand, eff)
		}(c)
	}
	wg.Wait()
}

// process runs the admission predicate cascade against one candidate
// document: terminal-state check, cutoff, max retries, retry gate,
// payload validation, then admit.
func (e *Engine) process(ctx context.Context, c store.Candidate, eff config.Effective) {
	doc := c.Doc
	now := e.clock.Now()

	if doc.SmtpAgent.State.Terminal() {
		return
	}

	if eff.ProcessFromAfter != nil && doc.CreatedAt != nil && doc.CreatedAt.Before(*eff.ProcessFromAfter) {
		e.writeSkip(ctx, c.Ref, "before_cutoff")
		return
	}

	maxRetry := eff.MaxRetryCount
	if maxRetry <= 0 {
		maxRetry = 5
	}
	if doc.SmtpAgent.Attempts >= int64(maxRetry) {
		e.writeSkip(ctx, c.Ref, "max_retries")
		return
	}

	if doc.SmtpAgent.NextRetryAt != nil && doc.SmtpAgent.NextRetryAt.After(now) {
		return
	}

	if len(doc.To) == 0 || doc.Subject == "" || doc.HTML == "" {
		e.writeErrorResult(ctx, c.Ref, doc, ErrorValidation, "Missing required fields", FixedBackoff())
		return
	}

	e.admit(ctx, c.Ref, doc)
}

// admit writes the PROCESSING marker, sends, and writes the result.
func (e *Engine) admit(ctx context.Context, ref store.DocRef, doc store.MailDocument) {
	now := e.clock.Now()
	leaseExpire := now.Add(5 * time.Minute)

	fields := map[string]store.FieldWrite{
		"smtpAgent.state":                      store.Literal(string(store.StateProcessing)),
		"smtpAgent.version":                    store.Literal(version.Version),
		"smtpAgent.host":                       store.Literal(e.identity),
		"smtpAgent.processing.by":              store.Literal(e.identity),
		"smtpAgent.processing.leaseExpireTime": store.Literal(leaseExpire),
		"smtpAgent.lastUpdatedAt":              store.ServerNow(),
	}
	if err := e.store.SetMerge(ctx, ref, fields); err != nil {
		logger.Current().Error("processing write failed", "doc_id", ref.ID, "error", err.Error())
		return
	}

	fp := fingerprint.Of(doc.Subject, doc.HTML, doc.To)
	success, errMsg := e.sender.Send(ctx, doc.To, doc.Subject, doc.HTML)

	if success {
		e.writeSuccess(ctx, ref, doc, fp)
		return
	}

	nextAttempts := doc.SmtpAgent.Attempts + 1
	e.writeError(ctx, ref, doc, ErrorSMTP, errMsg, SMTPBackoff(nextAttempts))
}

func (e *Engine) writeSuccess(ctx context.Context, ref store.DocRef, doc store.MailDocument, fp string) {
	fields := map[string]store.FieldWrite{
		"smtpAgent.state":                        store.Literal(string(store.StateSent)),
		"smtpAgent.lastSuccessAt":                store.ServerNow(),
		"smtpAgent.nextRetryAt":                  store.Null(),
		"smtpAgent.lastUpdatedAt":                store.ServerNow(),
		"smtpAgent.attempts":                      store.Increment(1),
		"smtpAgent.processing.leaseExpireTime":    store.Null(),
		"smtpAgent.lastAttempt.success":           store.Literal(true),
		"smtpAgent.lastAttempt.errorCode":         store.Null(),
		"smtpAgent.lastAttempt.errorMessage":      store.Null(),
		"smtpAgent.lastAttempt.endTime":           store.ServerNow(),
		"smtpAgent.lastAttempt.toResolved":        store.Literal(doc.To),
		"smtpAgent.idempotency.messageHash":        store.Literal(fp),
		"smtpAgent.idempotency.lastSeenSameHashAt": store.ServerNow(),
	}
	if err := e.store.SetMerge(ctx, ref, fields); err != nil {
		logger.Current().Error("success result write failed", "doc_id", ref.ID, "error", err.Error())
	}
}

// writeErrorResult is writeError for predicate-stage failures (e.g.
// VALIDATION) that never reach admit, so attempts is not yet incremented
// by a prior admit-stage write.
func (e *Engine) writeErrorResult(ctx context.Context, ref store.DocRef, doc store.MailDocument, code ErrorCode, message string, delay time.Duration) {
	e.writeError(ctx, ref, doc, code, message, delay)
}

func (e *Engine) writeError(ctx context.Context, ref store.DocRef, doc store.MailDocument, code ErrorCode, message string, delay time.Duration) {
	now := e.clock.Now()
	fields := map[string]store.FieldWrite{
		"smtpAgent.state":                     store.Literal(string(store.StateError)),
		"smtpAgent.lastUpdatedAt":             store.ServerNow(),
		"smtpAgent.attempts":                   store.Increment(1),
		"smtpAgent.nextRetryAt":                store.Literal(now.Add(delay)),
		"smtpAgent.processing.leaseExpireTime": store.Null(),
		"smtpAgent.lastAttempt.success":        store.Literal(false),
		"smtpAgent.lastAttempt.errorCode":      store.Literal(string(code)),
		"smtpAgent.lastAttempt.errorMessage":   store.Literal(truncate(message, maxErrorMessageLen)),
		"smtpAgent.lastAttempt.endTime":        store.ServerNow(),
	}
	if err := e.store.SetMerge(ctx, ref, fields); err != nil {
		logger.Current().Error("error result write failed", "doc_id", ref.ID, "error", err.Error())
	}
}

func (e *Engine) writeSkip(ctx context.Context, ref store.DocRef, reason string) {
	fields := map[string]store.FieldWrite{
		"smtpAgent.state":                   store.Literal(string(store.StateSkipped)),
		"smtpAgent.lastUpdatedAt":           store.ServerNow(),
		"smtpAgent.lastAttempt.success":     store.Literal(false),
		"smtpAgent.lastAttempt.errorCode":   store.Literal(string(ErrorSkip)),
		"smtpAgent.lastAttempt.errorMessage": store.Literal(reason),
		"smtpAgent.lastAttempt.endTime":     store.ServerNow(),
	}
	if err := e.store.SetMerge(ctx, ref, fields); err != nil {
		logger.Current().Error("skip write failed", "doc_id", ref.ID, "error", err.Error())
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
