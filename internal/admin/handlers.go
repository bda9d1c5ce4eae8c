package admin

import (
	"bufio"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/krultra/smtp-agent/internal/config"
	"github.com/krultra/smtp-agent/internal/store"
)

const maxEmailsLimit = 200

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	eff := s.overlay.Current()
	storeErr := s.store.Ping(r.Context())
	reachable := storeErr == nil

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":              reachable,
		"version":         s.version,
		"uptimeSeconds":   int(time.Since(s.startedAt).Seconds()),
		"storeReachable":  reachable,
		"effectiveConfig": effectiveConfigJSON(eff),
	})
}

func effectiveConfigJSON(eff config.Effective) map[string]any {
	m := map[string]any{
		"pollIntervalSeconds": int(eff.PollInterval.Seconds()),
		"maxRetryCount":       eff.MaxRetryCount,
		"logLevel":            eff.LogLevel,
	}
	if eff.ProcessFromAfter != nil {
		m["processFromAfter"] = eff.ProcessFromAfter.Format(time.RFC3339)
	}
	return m
}

// windowStats holds the sent/error tallies for one time window.
type windowStats struct {
	Sent   int `json:"sent"`
	Errors int `json:"errors"`
}

// statsResult is everything the dashboard and /stats derive from one
// scan of documents updated in the last 24h.
type statsResult struct {
	hour, day     windowStats
	lastProcessed *time.Time
	status        string
	errorsSince   int
}

// computeStats issues a single ScanUpdatedSince(now-24h) and derives
// the hour/day tallies, the green/red status, and errorsSinceReset all
// from that one result set, the way the original _collect_stats does
// (one bounded Firestore query, errorsSinceReset filtered from it).
func (s *Server) computeStats(r *http.Request) (statsResult, error) {
	now := time.Now()
	since := now.Add(-24 * time.Hour)
	hourCutoff := now.Add(-time.Hour)

	resetAt := since
	if adminStatus, err := s.store.GetAdminStatus(r.Context()); err == nil && adminStatus.StatusResetAt != nil && adminStatus.StatusResetAt.After(since) {
		resetAt = *adminStatus.StatusResetAt
	}

	cands, err := s.store.ScanUpdatedSince(r.Context(), since)
	if err != nil {
		return statsResult{}, err
	}

	var res statsResult
	for _, c := range cands {
		u := c.Doc.SmtpAgent.LastUpdatedAt
		if u == nil {
			continue
		}
		if res.lastProcessed == nil || u.After(*res.lastProcessed) {
			res.lastProcessed = u
		}
		isError := c.Doc.SmtpAgent.State == store.StateError || c.Doc.SmtpAgent.State == store.StateSkipped
		switch {
		case c.Doc.SmtpAgent.State == store.StateSent:
			res.day.Sent++
			if u.After(hourCutoff) {
				res.hour.Sent++
			}
		case isError:
			res.day.Errors++
			if u.After(hourCutoff) {
				res.hour.Errors++
			}
		}
		if isError && u.After(resetAt) {
			res.errorsSince++
		}
	}
	if res.errorsSince == 0 {
		res.status = "green"
	} else {
		res.status = "red"
	}
	return res, nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	res, err := s.computeStats(r)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]any{
		"ok":               true,
		"lastHour":         res.hour,
		"last24h":          res.day,
		"status":           res.status,
		"errorsSinceReset": res.errorsSince,
	}
	if res.lastProcessed != nil {
		resp["lastProcessedAt"] = res.lastProcessed.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatusReset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ResetAdminStatus(r.Context()); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) listEmails(r *http.Request) ([]store.Candidate, error) {
	state := store.AgentState(r.URL.Query().Get("state"))
	limit := maxEmailsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < limit {
			limit = n
		}
	}
	return s.store.ListByStateDescUpdated(r.Context(), state, limit)
}

func (s *Server) handleEmailsList(w http.ResponseWriter, r *http.Request) {
	cands, err := s.listEmails(r)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if r.URL.Query().Get("format") == "json" || r.Header.Get("Accept") == "application/json" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "emails": cands})
		return
	}
	renderEmailsList(w, cands, r.URL.Query().Get("state"))
}

// handleEmailDetail resolves prev/next ids by recomputing the filtered
// window fresh on every request rather than caching a navigation
// session, bounded to maxEmailsLimit.
func (s *Server) handleEmailDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.Get(r.Context(), store.DocRef{ID: id})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc == nil {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}

	cands, err := s.listEmails(r)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var prevID, nextID string
	for i, c := range cands {
		if c.Ref.ID != id {
			continue
		}
		if i > 0 {
			prevID = cands[i-1].Ref.ID
		}
		if i+1 < len(cands) {
			nextID = cands[i+1].Ref.ID
		}
		break
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok": true, "email": doc, "prevId": prevID, "nextId": nextID,
		})
		return
	}
	renderEmailDetail(w, *doc, prevID, nextID)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	lines, err := tailFile(s.logPath, 500)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, l := range lines {
		_, _ = w.Write([]byte(l + "\n"))
	}
}

func tailFile(path string, n int) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, scanner.Err()
}

func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetAdminConfig(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "config": cfg})
		return
	}
	renderConfigForm(w, cfg, "")
}

func (s *Server) handleConfigPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := s.store.GetAdminConfig(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if v := strings.TrimSpace(r.FormValue("pollInterval")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollIntervalSeconds = n
		}
	}
	if v := strings.TrimSpace(r.FormValue("maxRetryCount")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxRetryCount = n
		}
	}
	if v := strings.TrimSpace(r.FormValue("processFromAfter")); v != "" {
		if config.ParseCutoff(v) != nil {
			cfg.ProcessFromAfter = v
		}
	}
	if v := strings.ToUpper(strings.TrimSpace(r.FormValue("logLevel"))); v != "" {
		switch v {
		case "DEBUG", "INFO", "WARNING", "ERROR":
			cfg.LogLevel = v
		}
	}
	if v := strings.TrimSpace(r.FormValue("dashboardRefreshSec")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DashboardRefreshSec = n
		}
	}

	if err := s.store.SetAdminConfig(r.Context(), cfg); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	renderConfigForm(w, cfg, "saved")
}
