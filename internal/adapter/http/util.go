package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"weightlog/internal/app"
	"weightlog/internal/domain"
)

var errBadRequest = errors.New("bad request")

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	status := code
	if code == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, envelope{Code: code, Message: message, Data: data})
}

func writeOK(w http.ResponseWriter, data any) {
	writeEnvelope(w, 0, "ok", data)
}

// writeError maps err to an application code. Internal failures are logged
// and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errorCode(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		msg = "internal error"
	}
	writeEnvelope(w, code, msg, nil)
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidWeight),
		errors.Is(err, domain.ErrInvalidUnit),
		errors.Is(err, domain.ErrInvalidDay),
		errors.Is(err, domain.ErrInvalidPreferences),
		errors.Is(err, app.ErrPasswordMismatch),
		errors.Is(err, app.ErrWeakPassword),
		errors.Is(err, app.ErrInvalidUsername):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrTokenInvalid),
		errors.Is(err, app.ErrSessionNotFound),
		errors.Is(err, app.ErrSessionExpired),
		errors.Is(err, app.ErrUserNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrUsernameTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json: %v", errBadRequest, err)
	}
	return nil
}

func intQuery(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errBadRequest, key)
	}
	return n, nil
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
