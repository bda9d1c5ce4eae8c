package store

import (
	"context"
	"time"
)

// MailCollection is the Firestore collection holding outbound-email
// documents.
const MailCollection = "mail"

// AdminConfigPath and AdminStatusPath are the two admin singleton
// document paths (collection "admin", fixed document ids).
const (
	AdminConfigPath = "admin/smtpAgentConfig"
	AdminStatusPath = "admin/smtpAgentStatus"
)

// Adapter is the typed wrapper over the document store's query/update
// API that every other component depends on. ListCandidates reports
// degraded=true when the store rejected the "state NOT IN" predicate
// and the adapter fell back to a createdAt-only query; the engine
// must then filter terminal states in code.
type Adapter interface {
	// ListCandidates returns mail documents with createdAt >= cutoff
	// (if cutoff is non-nil), preferring a query that also excludes
	// SENT/SKIPPED states server-side.
	ListCandidates(ctx context.Context, cutoff *time.Time) (docs []Candidate, degraded bool, err error)

	// ListByStateDescUpdated powers the admin /emails listing: up to
	// limit documents with smtpAgent.state == state, newest
	// smtpAgent.lastUpdatedAt first. An empty state lists all states.
	ListByStateDescUpdated(ctx context.Context, state AgentState, limit int) ([]Candidate, error)

	// Get fetches a single document by id, returning (nil, nil) if absent.
	Get(ctx context.Context, ref DocRef) (*MailDocument, error)

	// SetMerge performs a merge-write of the given dot-path fields
	// (e.g. "smtpAgent.state") onto the document, creating it if absent.
	SetMerge(ctx context.Context, ref DocRef, fields map[string]FieldWrite) error

	// Update performs a merge-write that fails if the document is absent.
	Update(ctx context.Context, ref DocRef, fields map[string]FieldWrite) error

	// GetAdminConfig reads the admin/smtpAgentConfig singleton. Returns
	// a zero-value AdminConfig (not an error) if the document is absent.
	GetAdminConfig(ctx context.Context) (AdminConfig, error)

	// SetAdminConfig writes the admin/smtpAgentConfig singleton.
	SetAdminConfig(ctx context.Context, cfg AdminConfig) error

	// GetAdminStatus reads the admin/smtpAgentStatus singleton.
	GetAdminStatus(ctx context.Context) (AdminStatus, error)

	// ResetAdminStatus sets admin/smtpAgentStatus.statusResetAt = now.
	ResetAdminStatus(ctx context.Context) error

	// ScanUpdatedSince returns every mail document with
	// smtpAgent.lastUpdatedAt >= since, for admin stats aggregation.
	ScanUpdatedSince(ctx context.Context, since time.Time) ([]Candidate, error)

	// Ping performs a minimal reachability probe against the store,
	// used by the admin dashboard's health check.
	Ping(ctx context.Context) error

	// Close releases underlying client resources.
	Close() error
}
