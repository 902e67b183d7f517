package adapthttp

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"weightlog/internal/app"
	"weightlog/internal/domain"
	"weightlog/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func newBareServer() (*Server, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return &Server{log: logger, metrics: metrics.NewTestManager()}, hook
}

func TestLoggingMiddleware(t *testing.T) {
	s, hook := newBareServer()
	handler := s.loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("OK"))
	}))

	req := httptest.NewRequest("GET", "/test-path", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, w.Code)
	}
	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no log entry")
	}
	if entry.Data["method"] != "GET" || entry.Data["path"] != "/test-path" || entry.Data["status"] != http.StatusTeapot {
		t.Errorf("log entry missing expected fields. Got: %v", entry.Data)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	s, hook := newBareServer()
	handler := s.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if got := testutil.ToFloat64(s.metrics.CounterHandleRequestPanic); got != 1 {
		t.Errorf("panic counter = %v, want 1", got)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.ErrorLevel {
		t.Errorf("expected an error log entry, got %v", entry)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	s, _ := newBareServer()
	handler := s.metricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/x", nil))

	if got := testutil.ToFloat64(s.metrics.CounterRequests.WithLabelValues("DELETE", "404")); got != 1 {
		t.Errorf("request counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.metrics.GaugeRequests); got != 0 {
		t.Errorf("in-flight gauge = %v, want 0", got)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"bearer", "Bearer abc", "", "abc"},
		{"lowercase scheme", "bearer abc", "", "abc"},
		{"basic", "Basic abc", "", ""},
		{"query", "", "?access_token=xyz", "xyz"},
		{"header wins", "Bearer abc", "?access_token=xyz", "abc"},
		{"none", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/weight/records"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(req); got != tt.want {
				t.Errorf("bearerToken = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: days", errBadRequest), 400},
		{domain.ErrInvalidWeight, 400},
		{fmt.Errorf("wrapped: %w", domain.ErrInvalidDay), 400},
		{app.ErrPasswordMismatch, 400},
		{app.ErrTokenInvalid, 401},
		{app.ErrSessionExpired, 401},
		{domain.ErrNotFound, 404},
		{app.ErrUsernameTaken, 409},
		{errors.New("disk on fire"), 500},
	}
	for _, tt := range tests {
		if got := errorCode(tt.err); got != tt.want {
			t.Errorf("errorCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	s, hook := newBareServer()
	w := httptest.NewRecorder()
	s.writeError(w, httptest.NewRequest("GET", "/api/x", nil), errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
	if body := w.Body.String(); body != "{\"code\":500,\"message\":\"internal error\",\"data\":null}\n" {
		t.Errorf("body = %q", body)
	}
	if len(hook.Entries) != 1 {
		t.Errorf("expected the failure to be logged once, got %d entries", len(hook.Entries))
	}
}
