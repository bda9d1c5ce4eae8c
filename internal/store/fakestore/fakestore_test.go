package fakestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krultra/smtp-agent/internal/store"
)

func TestPutAndGet(t *testing.T) {
	s := New()
	ref := s.Put(store.DocRef{}, store.MailDocument{Subject: "hi"})
	assert.NotEmpty(t, ref.ID)

	got, err := s.Get(context.Background(), ref)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hi", got.Subject)
}

func TestSetMerge_AppliesLiteralAndServerNowFields(t *testing.T) {
	s := New()
	ref := s.Put(store.DocRef{ID: "doc-1"}, store.MailDocument{})

	err := s.SetMerge(context.Background(), ref, map[string]store.FieldWrite{
		"smtpAgent.state":         store.Literal(string(store.StateProcessing)),
		"smtpAgent.host":          store.Literal("worker-1"),
		"smtpAgent.pid":           store.Literal(42),
		"smtpAgent.lastUpdatedAt": store.ServerNow(),
	})
	require.NoError(t, err)

	doc, ok := s.Snapshot("doc-1")
	require.True(t, ok)
	assert.Equal(t, store.StateProcessing, doc.SmtpAgent.State)
	assert.Equal(t, "worker-1", doc.SmtpAgent.Host)
	assert.Equal(t, 42, doc.SmtpAgent.PID)
	require.NotNil(t, doc.SmtpAgent.LastUpdatedAt)
	assert.WithinDuration(t, time.Now(), *doc.SmtpAgent.LastUpdatedAt, time.Second)
}

func TestUpdate_Increment(t *testing.T) {
	s := New()
	ref := s.Put(store.DocRef{ID: "doc-1"}, store.MailDocument{
		SmtpAgent: store.SmtpAgent{Attempts: 1},
	})

	err := s.Update(context.Background(), ref, map[string]store.FieldWrite{
		"smtpAgent.attempts": store.Increment(2),
	})
	require.NoError(t, err)

	doc, ok := s.Snapshot("doc-1")
	require.True(t, ok)
	assert.Equal(t, int64(3), doc.SmtpAgent.Attempts)
}

func TestUpdate_NullClearsField(t *testing.T) {
	s := New()
	future := time.Now().Add(time.Hour)
	ref := s.Put(store.DocRef{ID: "doc-1"}, store.MailDocument{
		SmtpAgent: store.SmtpAgent{NextRetryAt: &future},
	})

	err := s.Update(context.Background(), ref, map[string]store.FieldWrite{
		"smtpAgent.nextRetryAt": store.Null(),
	})
	require.NoError(t, err)

	doc, ok := s.Snapshot("doc-1")
	require.True(t, ok)
	assert.Nil(t, doc.SmtpAgent.NextRetryAt)
}

func TestUpdate_AbsentDocumentErrors(t *testing.T) {
	s := New()
	err := s.Update(context.Background(), store.DocRef{ID: "missing"}, map[string]store.FieldWrite{
		"smtpAgent.state": store.Literal(string(store.StateSent)),
	})
	assert.Error(t, err)
}

func TestScanUpdatedSince_ExcludesOlderAndUnset(t *testing.T) {
	s := New()
	now := time.Now()
	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)

	s.Put(store.DocRef{ID: "old"}, store.MailDocument{SmtpAgent: store.SmtpAgent{LastUpdatedAt: &old}})
	s.Put(store.DocRef{ID: "recent"}, store.MailDocument{SmtpAgent: store.SmtpAgent{LastUpdatedAt: &recent}})
	s.Put(store.DocRef{ID: "unset"}, store.MailDocument{})

	out, err := s.ScanUpdatedSince(context.Background(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "recent", out[0].Ref.ID)
}

func TestListCandidates_FiltersTerminalStatesUnlessDegraded(t *testing.T) {
	s := New()
	s.Put(store.DocRef{ID: "sent"}, store.MailDocument{SmtpAgent: store.SmtpAgent{State: store.StateSent}})
	s.Put(store.DocRef{ID: "pending"}, store.MailDocument{SmtpAgent: store.SmtpAgent{State: store.StatePending}})

	out, degraded, err := s.ListCandidates(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, out, 1)
	assert.Equal(t, "pending", out[0].Ref.ID)

	s.FailNotIn = true
	out, degraded, err = s.ListCandidates(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Len(t, out, 2)
}
