package httpapi

import (
	"collab-lab/domain/collab"
	"embed"
	"html/template"
	"net/http"
	"strings"
)

//go:embed inspect.html
var templatesFS embed.FS

var inspectTemplate = template.Must(template.ParseFS(templatesFS, "inspect.html"))

type inspectPage struct {
	Filter    string
	Sessions  []collab.Summary
	Snapshots []snapshotView
	Stats     map[string]any
}

// inspect renders live sessions and archived snapshots for operators.
// ?filter= keeps rows whose id or name contains the given text.
func (s *Server) inspect(w http.ResponseWriter, r *http.Request) {
	filter := strings.ToLower(r.URL.Query().Get("filter"))
	keep := func(id, name string) bool {
		return filter == "" || strings.Contains(strings.ToLower(id), filter) || strings.Contains(strings.ToLower(name), filter)
	}

	page := inspectPage{Filter: filter, Stats: map[string]any{}}
	for _, summary := range s.registry.ListSessions() {
		if keep(summary.ID, summary.Name) {
			page.Sessions = append(page.Sessions, summary)
		}
	}

	archives, err := s.archive.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	for _, view := range toSnapshotViews(archives) {
		if keep(view.SessionID, view.Name) {
			page.Snapshots = append(page.Snapshots, view)
		}
	}

	page.Stats["live sessions"] = len(page.Sessions)
	page.Stats["archived snapshots"] = len(page.Snapshots)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := inspectTemplate.Execute(w, page); err != nil {
		s.log.Debug("Failed to render inspect page", "error", err)
	}
}
