// Package fakestore is an in-memory store.Adapter test double used by
// the engine and admin unit tests instead of a real Firestore client.
package fakestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/krultra/smtp-agent/internal/store"
)

// Store is a concurrency-safe in-memory store.Adapter. Tests construct
// one with New, seed it via Put, and drive an engine against it.
type Store struct {
	mu   sync.Mutex
	docs map[string]store.MailDocument
	seq  int

	// FailNotIn, when true, makes ListCandidates behave as if the store
	// rejected the "state NOT IN" predicate: it returns every document
	// regardless of state with degraded=true, exercising the engine's
	// code-side terminal-state filter.
	FailNotIn bool

	cfg    store.AdminConfig
	status store.AdminStatus

	// PingErr, when non-nil, is returned by Ping — used to simulate a
	// store outage for the admin dashboard's health probe.
	PingErr error
}

// New returns an empty Store.
func New() *Store {
	return &Store{docs: map[string]store.MailDocument{}}
}

// Put inserts or replaces a document, assigning an id if ref.ID is empty.
func (s *Store) Put(ref store.DocRef, doc store.MailDocument) store.DocRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref.ID == "" {
		s.seq++
		ref.ID = fmt.Sprintf("doc-%d", s.seq)
	}
	doc.ID = ref.ID
	s.docs[ref.ID] = doc
	return ref
}

// Snapshot returns a copy of the document stored under id, for assertions.
func (s *Store) Snapshot(id string) (store.MailDocument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	return d, ok
}

func (s *Store) ListCandidates(ctx context.Context, cutoff *time.Time) ([]store.Candidate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Candidate
	for id, doc := range s.docs {
		if cutoff != nil && (doc.CreatedAt == nil || doc.CreatedAt.Before(*cutoff)) {
			continue
		}
		if !s.FailNotIn && doc.SmtpAgent.State.Terminal() {
			continue
		}
		out = append(out, store.Candidate{Ref: store.DocRef{ID: id}, Doc: doc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.ID < out[j].Ref.ID })
	return out, s.FailNotIn, nil
}

func (s *Store) ListByStateDescUpdated(ctx context.Context, state store.AgentState, limit int) ([]store.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Candidate
	for id, doc := range s.docs {
		if state != "" && doc.SmtpAgent.State != state {
			continue
		}
		out = append(out, store.Candidate{Ref: store.DocRef{ID: id}, Doc: doc})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].Doc.SmtpAgent.LastUpdatedAt, out[j].Doc.SmtpAgent.LastUpdatedAt
		switch {
		case ai == nil && aj == nil:
			return out[i].Ref.ID < out[j].Ref.ID
		case ai == nil:
			return false
		case aj == nil:
			return true
		default:
			return ai.After(*aj)
		}
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ScanUpdatedSince(ctx context.Context, since time.Time) ([]store.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Candidate
	for id, doc := range s.docs {
		if doc.SmtpAgent.LastUpdatedAt == nil || doc.SmtpAgent.LastUpdatedAt.Before(since) {
			continue
		}
		out = append(out, store.Candidate{Ref: store.DocRef{ID: id}, Doc: doc})
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, ref store.DocRef) (*store.MailDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[ref.ID]
	if !ok {
		return nil, nil
	}
	cp := d
	return &cp, nil
}

func (s *Store) SetMerge(ctx context.Context, ref store.DocRef, fields map[string]store.FieldWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.docs[ref.ID]
	doc.ID = ref.ID
	applyFields(&doc, fields)
	s.docs[ref.ID] = doc
	return nil
}

func (s *Store) Update(ctx context.Context, ref store.DocRef, fields map[string]store.FieldWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[ref.ID]
	if !ok {
		return fmt.Errorf("fakestore: update on absent document %q", ref.ID)
	}
	applyFields(&doc, fields)
	s.docs[ref.ID] = doc
	return nil
}

func (s *Store) GetAdminConfig(ctx context.Context) (store.AdminConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, nil
}

func (s *Store) SetAdminConfig(ctx context.Context, cfg store.AdminConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	cfg.UpdatedAt = &now
	s.cfg = cfg
	return nil
}

func (s *Store) GetAdminStatus(ctx context.Context) (store.AdminStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, nil
}

func (s *Store) ResetAdminStatus(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.status = store.AdminStatus{StatusResetAt: &now}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.PingErr }

func (s *Store) Close() error { return nil }

// applyFields is the in-memory analog of the Firestore sentinel write
// the real adapter performs: it understands the dotted smtpAgent.* paths
// listed below; any other path, top-level ones included, is ignored.
func applyFields(doc *store.MailDocument, fields map[string]store.FieldWrite) {
	now := time.Now()
	for path, fw := range fields {
		switch path {
		case "smtpAgent.state":
			doc.SmtpAgent.State = store.AgentState(fw.Value().(string))
		case "smtpAgent.version":
			doc.SmtpAgent.Version = fw.Value().(string)
		case "smtpAgent.host":
			doc.SmtpAgent.Host = fw.Value().(string)
		case "smtpAgent.pid":
			doc.SmtpAgent.PID = fw.Value().(int)
		case "smtpAgent.attempts":
			if fw.IsIncrement() {
				doc.SmtpAgent.Attempts += fw.Delta()
			} else {
				doc.SmtpAgent.Attempts = fw.Value().(int64)
			}
		case "smtpAgent.lastUpdatedAt":
			doc.SmtpAgent.LastUpdatedAt = timeValue(fw, now)
		case "smtpAgent.lastSuccessAt":
			doc.SmtpAgent.LastSuccessAt = timeValue(fw, now)
		case "smtpAgent.nextRetryAt":
			if fw.IsNull() {
				doc.SmtpAgent.NextRetryAt = nil
			} else {
				doc.SmtpAgent.NextRetryAt = timeValue(fw, now)
			}
		case "smtpAgent.processing.by":
			doc.SmtpAgent.Processing.By = fw.Value().(string)
		case "smtpAgent.processing.leaseExpireTime":
			doc.SmtpAgent.Processing.LeaseExpireTime = timeValue(fw, now)
		case "smtpAgent.idempotency.messageHash":
			doc.SmtpAgent.Idempotency.MessageHash = fw.Value().(string)
		case "smtpAgent.idempotency.lastSeenSameHashAt":
			doc.SmtpAgent.Idempotency.LastSeenSameHashAt = timeValue(fw, now)
		case "smtpAgent.lastAttempt":
			if la, ok := fw.Value().(store.LastAttempt); ok {
				doc.SmtpAgent.LastAttempt = la
			}
		case "smtpAgent.lastAttempt.success":
			doc.SmtpAgent.LastAttempt.Success = fw.Value().(bool)
		case "smtpAgent.lastAttempt.errorCode":
			if fw.IsNull() {
				doc.SmtpAgent.LastAttempt.ErrorCode = ""
			} else {
				doc.SmtpAgent.LastAttempt.ErrorCode = fw.Value().(string)
			}
		case "smtpAgent.lastAttempt.errorMessage":
			if fw.IsNull() {
				doc.SmtpAgent.LastAttempt.ErrorMessage = ""
			} else {
				doc.SmtpAgent.LastAttempt.ErrorMessage = fw.Value().(string)
			}
		case "smtpAgent.lastAttempt.smtpResponse":
			doc.SmtpAgent.LastAttempt.SMTPResponse = fw.Value().(string)
		case "smtpAgent.lastAttempt.toResolved":
			if v, ok := fw.Value().([]string); ok {
				doc.SmtpAgent.LastAttempt.ToResolved = v
			}
		case "smtpAgent.lastAttempt.startTime":
			doc.SmtpAgent.LastAttempt.StartTime = timeValue(fw, now)
		case "smtpAgent.lastAttempt.endTime":
			doc.SmtpAgent.LastAttempt.EndTime = timeValue(fw, now)
		default:
			// Unrecognized paths are accepted as no-ops: the fake only
			// needs to model the fields the engine actually writes.
		}
	}
}

func timeValue(fw store.FieldWrite, now time.Time) *time.Time {
	if fw.IsServerNow() {
		t := now
		return &t
	}
	if t, ok := fw.Value().(time.Time); ok {
		return &t
	}
	return nil
}
