package adapthttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"weightlog/internal/api"
	"weightlog/internal/app"

	"github.com/go-chi/chi/v5"
)

// streamHeartbeat keeps idle event streams open through proxies.
const streamHeartbeat = 25 * time.Second

func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	var body api.AddRecordRequest
	if err := parseJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	day := body.Date
	if day == "" {
		day = s.weight.Today()
	}
	user := userFromContext(r.Context())
	obs, err := s.weight.RecordAt(r.Context(), user.ID, day, body.Weight)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.CounterRecordsSaved.Inc()
	writeOK(w, obs)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)
	q := r.URL.Query()

	start, end := q.Get("startDate"), q.Get("endDate")
	if start != "" || end != "" {
		if start == "" || end == "" {
			s.writeError(w, r, fmt.Errorf("%w: startDate and endDate go together", errBadRequest))
			return
		}
		obs, err := s.weight.Between(ctx, user.ID, start, end)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeOK(w, app.Summarize(obs))
		return
	}

	days, err := intQuery(r, "days", app.DefaultRangeDays)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.weight.Summary(ctx, user.ID, days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, sum)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	obs, err := s.weight.ByDay(r.Context(), user.ID, chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, obs)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "key"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, fmt.Errorf("%w: record id must be a positive integer", errBadRequest))
		return
	}
	user := userFromContext(r.Context())
	if err := s.weight.Delete(r.Context(), user.ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.CounterRecordsDeleted.Inc()
	writeOK(w, nil)
}

type streamEvent struct {
	sum *app.Summary
	err error
}

// handleRecordStream sends the trailing window as a server-sent event now and
// after every change, until the client goes away.
func (s *Server) handleRecordStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeEnvelope(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}
	days, err := intQuery(r, "days", app.DefaultRangeDays)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	user := userFromContext(ctx)

	events := make(chan streamEvent)
	sub := s.weight.Subscribe(ctx, user.ID, days, func(sum *app.Summary, err error) {
		select {
		case events <- streamEvent{sum: sum, err: err}:
		case <-ctx.Done():
		}
	})
	defer sub.Cancel()

	s.metrics.GaugeStreams.Inc()
	defer s.metrics.GaugeStreams.Dec()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-events:
			env := envelope{Code: 0, Message: "ok", Data: ev.sum}
			if ev.err != nil {
				s.log.WithError(ev.err).WithField("user_id", user.ID).Error("stream snapshot failed")
				env = envelope{Code: http.StatusInternalServerError, Message: "internal error"}
			}
			if err := writeEvent(w, "snapshot", env); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "event: %s\ndata: ", name)
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return err
	}
	// Encode terminates the data line; one more newline ends the event.
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
