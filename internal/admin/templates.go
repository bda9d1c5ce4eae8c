package admin

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/krultra/smtp-agent/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	res, err := s.computeStats(r)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	eff := s.overlay.Current()

	data := map[string]any{
		"Version":          s.version,
		"LastHour":         res.hour,
		"Last24h":          res.day,
		"Status":           res.status,
		"ErrorsSinceReset": res.errorsSince,
		"LastProcessed":    res.lastProcessed,
		"Effective":        eff,
	}
	render(w, "dashboard.html", data)
}

func renderEmailsList(w http.ResponseWriter, cands []store.Candidate, state string) {
	render(w, "emails_list.html", map[string]any{"Emails": cands, "State": state})
}

func renderEmailDetail(w http.ResponseWriter, doc store.MailDocument, prevID, nextID string) {
	render(w, "email_detail.html", map[string]any{"Doc": doc, "PrevID": prevID, "NextID": nextID})
}

func renderConfigForm(w http.ResponseWriter, cfg store.AdminConfig, notice string) {
	render(w, "config.html", map[string]any{"Config": cfg, "Notice": notice})
}

func render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
