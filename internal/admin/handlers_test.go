package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krultra/smtp-agent/internal/config"
	"github.com/krultra/smtp-agent/internal/store"
	"github.com/krultra/smtp-agent/internal/store/fakestore"
)

func newTestServer(t *testing.T) (*Server, *fakestore.Store) {
	t.Helper()
	fs := fakestore.New()
	overlay := config.NewOverlay(config.Config{PollInterval: 30 * time.Second, MaxRetryCount: 3, LogLevel: "INFO"}, fs)
	s := NewServer(fs, overlay, Options{Version: "test"})
	return s, fs
}

func (s *Server) router() http.Handler { return s.httpServer.Handler }

func TestHandleStats_EmptyStore(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "green", body["status"])
	assert.Equal(t, float64(0), body["errorsSinceReset"])
}

func TestHandleStats_CountsSentAndErrorsWithinWindows(t *testing.T) {
	s, fs := newTestServer(t)
	now := time.Now()
	withinHour := now.Add(-10 * time.Minute)
	withinDay := now.Add(-5 * time.Hour)
	outsideDay := now.Add(-48 * time.Hour)

	fs.Put(store.DocRef{ID: "sent-recent"}, store.MailDocument{
		SmtpAgent: store.SmtpAgent{State: store.StateSent, LastUpdatedAt: &withinHour},
	})
	fs.Put(store.DocRef{ID: "sent-day"}, store.MailDocument{
		SmtpAgent: store.SmtpAgent{State: store.StateSent, LastUpdatedAt: &withinDay},
	})
	fs.Put(store.DocRef{ID: "error-recent"}, store.MailDocument{
		SmtpAgent: store.SmtpAgent{State: store.StateError, LastUpdatedAt: &withinHour},
	})
	fs.Put(store.DocRef{ID: "old-sent"}, store.MailDocument{
		SmtpAgent: store.SmtpAgent{State: store.StateSent, LastUpdatedAt: &outsideDay},
	})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	lastHour := body["lastHour"].(map[string]any)
	last24h := body["last24h"].(map[string]any)
	assert.Equal(t, float64(1), lastHour["sent"])
	assert.Equal(t, float64(1), lastHour["errors"])
	assert.Equal(t, float64(2), last24h["sent"])
	assert.Equal(t, float64(1), last24h["errors"])
	assert.Equal(t, "red", body["status"])
	assert.Equal(t, float64(1), body["errorsSinceReset"])
}

func TestHandleStats_SingleScanServesBothStatusAndWindows(t *testing.T) {
	// ResetAdminStatus is called but errorsSinceReset still derives from
	// the one ScanUpdatedSince(now-24h) call, not a second store query
	// anchored on statusResetAt: an error updated before the reset counts
	// in the 24h window but not towards the status.
	s, fs := newTestServer(t)
	beforeReset := time.Now().Add(-2 * time.Hour)
	fs.Put(store.DocRef{ID: "error-before-reset"}, store.MailDocument{
		SmtpAgent: store.SmtpAgent{State: store.StateError, LastUpdatedAt: &beforeReset},
	})
	require.NoError(t, fs.ResetAdminStatus(context.Background()))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "green", body["status"])
	assert.Equal(t, float64(0), body["errorsSinceReset"])
	last24h := body["last24h"].(map[string]any)
	assert.Equal(t, float64(1), last24h["errors"])
}

func TestHandleEmailsList_JSON(t *testing.T) {
	s, fs := newTestServer(t)
	fs.Put(store.DocRef{ID: "doc-1"}, store.MailDocument{Subject: "hi", SmtpAgent: store.SmtpAgent{State: store.StateSent}})

	req := httptest.NewRequest(http.MethodGet, "/emails?format=json", nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	emails := body["emails"].([]any)
	assert.Len(t, emails, 1)
}

func TestHandleEmailsList_FiltersByState(t *testing.T) {
	s, fs := newTestServer(t)
	fs.Put(store.DocRef{ID: "sent"}, store.MailDocument{SmtpAgent: store.SmtpAgent{State: store.StateSent}})
	fs.Put(store.DocRef{ID: "error"}, store.MailDocument{SmtpAgent: store.SmtpAgent{State: store.StateError}})

	req := httptest.NewRequest(http.MethodGet, "/emails?format=json&state=ERROR", nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	emails := body["emails"].([]any)
	require.Len(t, emails, 1)
}

func TestHandleEmailDetail_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/emails/missing?format=json", nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleEmailDetail_Found(t *testing.T) {
	s, fs := newTestServer(t)
	fs.Put(store.DocRef{ID: "doc-1"}, store.MailDocument{Subject: "hi"})

	req := httptest.NewRequest(http.MethodGet, "/emails/doc-1?format=json", nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	email := body["email"].(map[string]any)
	assert.Equal(t, "hi", email["Subject"])
}

func TestHandleConfigGet_JSON(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/config?format=json", nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
}

func TestHandleConfigPost_UpdatesValidFieldsAndIgnoresInvalid(t *testing.T) {
	s, fs := newTestServer(t)

	form := url.Values{
		"pollInterval":  {"45"},
		"maxRetryCount": {"not-a-number"},
		"logLevel":      {"debug"},
	}
	req := httptest.NewRequest(http.MethodPost, "/config", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	cfg, err := fs.GetAdminConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.PollIntervalSeconds)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 0, cfg.MaxRetryCount)
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "test", body["version"])
}

func TestBasicAuth_RejectsWrongCredentials(t *testing.T) {
	fs := fakestore.New()
	overlay := config.NewOverlay(config.Config{}, fs)
	s := NewServer(fs, overlay, Options{Username: "admin", Password: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
