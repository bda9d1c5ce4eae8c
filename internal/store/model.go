// Package store wraps the shared document store that doubles as queue,
// coordination medium, and result log for the delivery engine. The
// production adapter talks to Firestore; internal/store/fakestore
// implements the same Adapter interface in memory for tests.
package store

import "time"

// AgentState is the tagged variant for smtpAgent.state. The zero value,
// StatePending, represents the field's absence in a freshly produced
// mail document — it is never written back to the store explicitly.
type AgentState string

const (
	StatePending    AgentState = ""
	StateProcessing AgentState = "PROCESSING"
	StateSent       AgentState = "SENT"
	StateError      AgentState = "ERROR"
	StateSkipped    AgentState = "SKIPPED"
)

// Terminal reports whether no further transition out of this state is permitted.
func (s AgentState) Terminal() bool {
	return s == StateSent || s == StateSkipped
}

// DocRef identifies a mail document by its store-assigned id.
type DocRef struct {
	ID string
}

// MailDocument is a snapshot of one outbound-email document as read
// from the store. Fields outside SmtpAgent are producer-owned and the
// engine never writes them; SmtpAgent is engine-owned.
type MailDocument struct {
	ID        string
	To        []string // normalized from either a single address or a list
	Subject   string
	HTML      string
	CreatedAt *time.Time // nil if the producer omitted it
	SmtpAgent SmtpAgent
}

// SmtpAgent is the engine-owned subtree of a mail document.
type SmtpAgent struct {
	Version       string
	Host          string
	PID           int
	State         AgentState
	Attempts      int64
	LastUpdatedAt *time.Time
	LastSuccessAt *time.Time
	NextRetryAt   *time.Time
	LastAttempt   LastAttempt
	Processing    Processing
	Idempotency   Idempotency
	SmtpDelivery  *SmtpDelivery
}

// LastAttempt records the outcome of the most recent send attempt.
type LastAttempt struct {
	StartTime    *time.Time
	EndTime      *time.Time
	Success      bool
	ErrorCode    string // "", VALIDATION, SMTP, EXCEPTION, SKIP
	ErrorMessage string // truncated to 300 chars before persisting
	SMTPResponse string
	ToResolved   []string
}

// Processing is the advisory lease marker written on admission. It is
// never consulted by the admission predicate; it is informational only.
type Processing struct {
	By              string // "<host>:<pid>"
	LeaseExpireTime *time.Time
}

// Idempotency carries the post-hoc dedup signal.
type Idempotency struct {
	MessageHash       string
	LastSeenSameHashAt *time.Time
}

// SmtpDelivery is an optional legacy-consumer mirror of the delivery result.
type SmtpDelivery struct {
	Success   bool
	Timestamp *time.Time
	Provider  string
	MessageID string
}

// AdminConfig is the admin/smtpAgentConfig singleton document.
type AdminConfig struct {
	PollIntervalSeconds int
	ProcessFromAfter    string
	MaxRetryCount       int
	LogLevel            string
	DashboardRefreshSec int
	UpdatedAt           *time.Time
}

// AdminStatus is the admin/smtpAgentStatus singleton document.
type AdminStatus struct {
	StatusResetAt *time.Time
}

// Candidate is one document returned by ListCandidates/ListByStateDescUpdated,
// paired with the ref the engine must write results back through.
type Candidate struct {
	Ref DocRef
	Doc MailDocument
}
