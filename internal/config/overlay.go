package config

import (
	"context"
	"sync"
	"time"

	"github.com/krultra/smtp-agent/internal/store"
	"github.com/krultra/smtp-agent/pkg/logger"
)

// Effective is the config actually in force for one tick: the process
// defaults merged with whatever admin/smtpAgentConfig currently holds.
type Effective struct {
	PollInterval        time.Duration
	MaxRetryCount       int
	ProcessFromAfter    *time.Time
	LogLevel            string
	DashboardRefreshSec int
}

// Overlay re-reads admin/smtpAgentConfig on demand and merges it over
// the static Config, field by field, discarding invalid values and
// applying logLevel immediately. The rest take effect on the next
// Refresh call.
type Overlay struct {
	base  Config
	store store.Adapter

	mu      sync.RWMutex
	current Effective
}

func NewOverlay(base Config, adapter store.Adapter) *Overlay {
	return &Overlay{
		base:  base,
		store: adapter,
		current: Effective{
			PollInterval:     base.PollInterval,
			MaxRetryCount:    base.MaxRetryCount,
			ProcessFromAfter: base.ProcessFromAfter,
			LogLevel:         base.LogLevel,
		},
	}
}

// Refresh fetches admin/smtpAgentConfig and returns the new effective
// config, logging at INFO any field whose effective value changed.
func (o *Overlay) Refresh(ctx context.Context) (Effective, error) {
	doc, err := o.store.GetAdminConfig(ctx)
	if err != nil {
		return o.current, err
	}

	next := Effective{
		PollInterval:        o.base.PollInterval,
		MaxRetryCount:       o.base.MaxRetryCount,
		ProcessFromAfter:    o.base.ProcessFromAfter,
		LogLevel:            o.base.LogLevel,
		DashboardRefreshSec: o.current.DashboardRefreshSec,
	}

	if doc.PollIntervalSeconds > 0 {
		next.PollInterval = secondsToDuration(doc.PollIntervalSeconds)
	}
	if doc.MaxRetryCount > 0 {
		next.MaxRetryCount = doc.MaxRetryCount
	}
	if doc.ProcessFromAfter != "" {
		if t := ParseCutoff(doc.ProcessFromAfter); t != nil {
			next.ProcessFromAfter = t
		}
	}
	if isValidLogLevel(doc.LogLevel) {
		next.LogLevel = doc.LogLevel
	}
	if doc.DashboardRefreshSec > 0 {
		next.DashboardRefreshSec = doc.DashboardRefreshSec
	}

	o.logChanges(next)

	if next.LogLevel != o.current.LogLevel {
		logger.SetLevel(logger.ParseLevel(next.LogLevel))
	}

	o.mu.Lock()
	o.current = next
	o.mu.Unlock()
	return next, nil
}

// Current returns the last computed effective config without refreshing.
func (o *Overlay) Current() Effective {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

func (o *Overlay) logChanges(next Effective) {
	log := logger.Current()
	if next.PollInterval != o.current.PollInterval {
		log.Info("effective pollInterval changed", "value", next.PollInterval)
	}
	if next.MaxRetryCount != o.current.MaxRetryCount {
		log.Info("effective maxRetryCount changed", "value", next.MaxRetryCount)
	}
	if next.LogLevel != o.current.LogLevel {
		log.Info("effective logLevel changed", "value", next.LogLevel)
	}
	if !cutoffEqual(next.ProcessFromAfter, o.current.ProcessFromAfter) {
		log.Info("effective processFromAfter changed")
	}
	if next.DashboardRefreshSec != o.current.DashboardRefreshSec {
		log.Info("effective dashboardRefreshSec changed", "value", next.DashboardRefreshSec)
	}
}

func cutoffEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "DEBUG", "INFO", "WARNING", "ERROR":
		return true
	default:
		return false
	}
}
