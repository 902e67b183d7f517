package adapthttp

import (
	"net/http"

	"weightlog/internal/app"
	"weightlog/internal/domain"
)

// handleChartsDaily returns one point per day. Without a unit query the
// user's preferred unit is used.
func (s *Server) handleChartsDaily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)
	days, err := intQuery(r, "days", app.DefaultRangeDays)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var unit domain.Unit
	if q := r.URL.Query().Get("unit"); q != "" {
		if unit, err = domain.ParseUnit(q); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else {
		prefs, err := s.settings.Get(ctx, user.ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		unit = prefs.Unit
	}

	points, err := s.charts.GetDaily(ctx, user.ID, days, unit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeOK(w, map[string]any{
		"days":  app.ClampDays(days),
		"unit":  unit,
		"items": points,
	})
}
