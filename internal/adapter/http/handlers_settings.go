package adapthttp

import (
	"net/http"

	"weightlog/internal/api"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	prefs, err := s.settings.Get(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, api.SettingsFrom(prefs))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body api.SettingsUpdate
	if err := parseJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	upd, err := body.Preferences()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user := userFromContext(r.Context())
	if _, err := s.settings.Update(r.Context(), user.ID, upd); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}
