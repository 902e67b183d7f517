package adapthttp_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	adapthttp "weightlog/internal/adapter/http"
	"weightlog/internal/adapter/memory"
	"weightlog/internal/api"
	"weightlog/internal/app"
	"weightlog/internal/domain"
	"weightlog/internal/metrics"

	"github.com/sirupsen/logrus/hooks/test"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// testNow is a Tuesday morning; records for later days are rejected.
var testNow = time.Date(2026, 2, 10, 9, 0, 0, 0, time.Local)

type testEnv struct {
	srv *httptest.Server
	hub *app.Hub
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	db := memory.New()
	hub := app.NewHub()
	issuer, err := app.NewTokenIssuer([]byte("test-secret-0123456789"), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	clock := func() time.Time { return testNow }

	m, reg := metrics.NewTestManagerAndRegistry()
	logger, _ := test.NewNullLogger()

	s := adapthttp.New(adapthttp.Services{
		Weight:   app.NewWeightService(db, hub, nil).WithClock(clock),
		Settings: app.NewSettingsService(db, nil),
		Charts:   app.NewChartsService(db).WithClock(clock),
		Auth:     app.NewAuthService(db, db.NewSessionRepo(), issuer),
	}, adapthttp.WithMetrics(m, reg), adapthttp.WithLogger(logger))

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, api.Envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			rd = strings.NewReader(s)
		} else {
			b, err := json.Marshal(body)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			rd = bytes.NewReader(b)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var env api.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp, env
}

func decodeData(t *testing.T, env api.Envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func expectCode(t *testing.T, resp *http.Response, env api.Envelope, code int) {
	t.Helper()
	if env.Code != code {
		t.Fatalf("code = %d (%s), want %d", env.Code, env.Message, code)
	}
	want := code
	if code == 0 {
		want = http.StatusOK
	}
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d", resp.StatusCode, want)
	}
}

func (e *testEnv) register(t *testing.T, username string) api.AuthData {
	t.Helper()
	resp, env := e.do(t, http.MethodPost, "/api/auth/register", "", api.RegisterRequest{
		Username: username, Password: "secret1", ConfirmPassword: "secret1",
	})
	expectCode(t, resp, env, 0)
	var auth api.AuthData
	decodeData(t, env, &auth)
	if auth.Token == "" {
		t.Fatal("register returned no token")
	}
	return auth
}

func (e *testEnv) addRecord(t *testing.T, token, day string, kg float64) domain.WeightObservation {
	t.Helper()
	resp, env := e.do(t, http.MethodPost, "/api/weight/record", token, api.AddRecordRequest{Date: day, Weight: kg})
	expectCode(t, resp, env, 0)
	var obs domain.WeightObservation
	decodeData(t, env, &obs)
	return obs
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	e := newTestServer(t)
	resp, env := e.do(t, http.MethodGet, "/api/health", "", nil)
	expectCode(t, resp, env, 0)

	var h api.Health
	decodeData(t, env, &h)
	if !h.OK {
		t.Errorf("ok = false")
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth_StoreDown(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := adapthttp.New(adapthttp.Services{}, adapthttp.WithPinger(downPinger{}), adapthttp.WithLogger(logger))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	e := &testEnv{srv: srv}

	resp, env := e.do(t, http.MethodGet, "/api/health", "", nil)
	expectCode(t, resp, env, http.StatusServiceUnavailable)
	var h api.Health
	decodeData(t, env, &h)
	if h.OK {
		t.Error("ok = true with the store down")
	}
	if len(hook.AllEntries()) == 0 {
		t.Error("expected the failed ping to be logged")
	}
}

func TestAuthRequired(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := e.do(t, http.MethodGet, "/api/weight/records", tt.token, nil)
			expectCode(t, resp, env, http.StatusUnauthorized)
			if string(env.Data) != "null" {
				t.Errorf("data = %s, want null", env.Data)
			}
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	e := newTestServer(t)
	auth := e.register(t, "alice")
	if auth.Username != "alice" || auth.UserID == "" || auth.ExpiresIn != 3600 {
		t.Errorf("unexpected auth data %+v", auth)
	}

	tests := []struct {
		name string
		path string
		body any
		code int
	}{
		{"mismatch", "/api/auth/register", api.RegisterRequest{Username: "bob", Password: "secret1", ConfirmPassword: "secret2"}, http.StatusBadRequest},
		{"short password", "/api/auth/register", api.RegisterRequest{Username: "bob", Password: "abc", ConfirmPassword: "abc"}, http.StatusBadRequest},
		{"taken", "/api/auth/register", api.RegisterRequest{Username: "alice", Password: "secret1", ConfirmPassword: "secret1"}, http.StatusConflict},
		{"bad json", "/api/auth/login", `{"username":`, http.StatusBadRequest},
		{"unknown field", "/api/auth/login", `{"user":"alice"}`, http.StatusBadRequest},
		{"wrong password", "/api/auth/login", api.LoginRequest{Username: "alice", Password: "nope123"}, http.StatusUnauthorized},
		{"unknown user", "/api/auth/login", api.LoginRequest{Username: "carol", Password: "secret1"}, http.StatusUnauthorized},
		{"ok", "/api/auth/login", api.LoginRequest{Username: "alice", Password: "secret1"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := e.do(t, http.MethodPost, tt.path, "", tt.body)
			expectCode(t, resp, env, tt.code)
		})
	}
}

func TestRefreshAndLogout(t *testing.T) {
	e := newTestServer(t)
	old := e.register(t, "alice").Token

	resp, env := e.do(t, http.MethodPost, "/api/auth/refresh", old, nil)
	expectCode(t, resp, env, 0)
	var fresh api.AuthData
	decodeData(t, env, &fresh)
	if fresh.Token == "" || fresh.Token == old {
		t.Fatalf("refresh returned %q", fresh.Token)
	}

	resp, env = e.do(t, http.MethodGet, "/api/user/settings", old, nil)
	expectCode(t, resp, env, http.StatusUnauthorized)

	resp, env = e.do(t, http.MethodPost, "/api/auth/logout", fresh.Token, nil)
	expectCode(t, resp, env, 0)

	resp, env = e.do(t, http.MethodGet, "/api/user/settings", fresh.Token, nil)
	expectCode(t, resp, env, http.StatusUnauthorized)
}

func TestChangePassword(t *testing.T) {
	e := newTestServer(t)
	token := e.register(t, "alice").Token

	resp, env := e.do(t, http.MethodPut, "/api/auth/password", token, api.ChangePasswordRequest{OldPassword: "wrong!", NewPassword: "newsecret"})
	expectCode(t, resp, env, http.StatusBadRequest)

	resp, env = e.do(t, http.MethodPut, "/api/auth/password", token, api.ChangePasswordRequest{OldPassword: "secret1", NewPassword: "newsecret"})
	expectCode(t, resp, env, 0)

	resp, env = e.do(t, http.MethodPost, "/api/auth/login", "", api.LoginRequest{Username: "alice", Password: "newsecret"})
	expectCode(t, resp, env, 0)
}

func TestRecordUpsertsPerDay(t *testing.T) {
	e := newTestServer(t)
	token := e.register(t, "alice").Token

	first := e.addRecord(t, token, "2026-02-09", 70.5)
	second := e.addRecord(t, token, "2026-02-09", 71)
	if first.ID != second.ID {
		t.Errorf("second save created id %d, want %d", second.ID, first.ID)
	}

	resp, env := e.do(t, http.MethodGet, "/api/weight/record/2026-02-09", token, nil)
	expectCode(t, resp, env, 0)
	var obs domain.WeightObservation
	decodeData(t, env, &obs)
	if obs.WeightKg != 71 || obs.Day != "2026-02-09" {
		t.Errorf("got %+v", obs)
	}

	resp, env = e.do(t, http.MethodGet, "/api/weight/records?days=7", token, nil)
	expectCode(t, resp, env, 0)
	var sum api.RecordsResponse
	decodeData(t, env, &sum)
	if len(sum.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(sum.Records))
	}
	if sum.Statistics == nil || sum.Statistics.LatestWeight != 71 {
		t.Errorf("statistics = %+v", sum.Statistics)
	}
}

func TestRecordDefaultsToToday(t *testing.T) {
	e := newTestServer(t)
	token := e.register(t, "alice").Token

	obs := e.addRecord(t, token, "", 68)
	if obs.Day != "2026-02-10" {
		t.Errorf("day = %s, want 2026-02-10", obs.Day)
	}
}

func TestRecordValidation(t *testing.T) {
	e := newTestServer(t)
	token := e.register(t, "alice").Token

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"future day", http.MethodPost, "/api/weight/record", api.AddRecordRequest{Date: "2026-02-11", Weight: 70}, http.StatusBadRequest},
		{"zero weight", http.MethodPost, "/api/weight/record", api.AddRecordRequest{Date: "2026-02-09", Weight: 0}, http.StatusBadRequest},
		{"bad day", http.MethodPost, "/api/weight/record", api.AddRecordRequest{Date: "09/02/2026", Weight: 70}, http.StatusBadRequest},
		{"missing day", http.MethodGet, "/api/weight/record/2026-01-01", nil, http.StatusNotFound},
		{"malformed day", http.MethodGet, "/api/weight/record/yesterday", nil, http.StatusBadRequest},
		{"bad days", http.MethodGet, "/api/weight/records?days=-3", nil, http.StatusBadRequest},
		{"half range", http.MethodGet, "/api/weight/records?startDate=2026-02-01", nil, http.StatusBadRequest},
		{"reversed range", http.MethodGet, "/api/weight/records?startDate=2026-02-09&endDate=2026-02-01", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := e.do(t, tt.method, tt.path, token, tt.body)
			expectCode(t, resp, env, tt.code)
		})
	}
}

func TestListRecordsByDateRange(t *testing.T) {
	e := newTestServer(t)
	token := e.register(t, "alice").Token
	for i, day := range []string{"2026-02-01", "2026-02-05", "2026-02-09"} {
		e.addRecord(t, token, day, 70+float64(i))
	}

	resp, env := e.do(t, http.MethodGet, "/api/weight/records?startDate=2026-02-02&endDate=2026-02-09", token, nil)
	expectCode(t, resp, env, 0)
	var sum api.RecordsResponse
	decodeData(t, env, &sum)
	if len(sum.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(sum.Records))
	}
	if sum.Records[0].Day != "2026-02-05" || sum.Records[1].Day != "2026-02-09" {
		t.Errorf("unexpected order %s, %s", sum.Records[0].Day, sum.Records[1].Day)
	}
	if sum.Statistics.Change != 1 {
		t.Errorf("change = %v, want 1", sum.Statistics.Change)
	}
}

func TestListRecordsEmpty(t *testing.T) {
	e := newTestServer(t)
	token := e.register(t, "alice").Token

	resp, env := e.do(t, http.MethodGet, "/api/weight/records", token, nil)
	expectCode(t, resp, env, 0)
	if !strings.Contains(string(env.Data), `"records":[]`) || !strings.Contains(string(env.Data), `"statistics":null`) {
		t.Errorf("data = %s", env.Data)
	}
}

func TestRecordsAreIsolatedPerUser(t *testing.T) {
	e := newTestServer(t)
	alice := e.register(t, "alice").Token
	bob := e.register(t, "bob").Token
	obs := e.addRecord(t, alice, "2026-02-09", 70)

	resp, env := e.do(t, http.MethodGet, "/api/weight/record/2026-02-09", bob, nil)
	expectCode(t, resp, env, http.StatusNotFound)

	resp, env = e.do(t, http.MethodDelete, fmt.Sprintf("/api/weight/record/%d", obs.ID), bob, nil)
	expectCode(t, resp, env, 0)

	resp, env = e.do(t, http.MethodGet, "/api/weight/record/2026-02-09", alice, nil)
	expectCode(t, resp, env, 0)
}

func TestDeleteRecord(t *testing.T) {
	e := newTestServer(t)
	token := e.register(t, "alice").Token
	obs := e.addRecord(t, token, "2026-02-09", 70)

	resp, env := e.do(t, http.MethodDelete, fmt.Sprintf("/api/weight/record/%d", obs.ID), token, nil)
	expectCode(t, resp, env, 0)
	if string(env.Data) != "null" {
		t.Errorf("data = %s, want null", env.Data)
	}

	resp, env = e.do(t, http.MethodGet, "/api/weight/record/2026-02-09", token, nil)
	expectCode(t, resp, env, http.StatusNotFound)

	// Unknown ids succeed.
	resp, env = e.do(t, http.MethodDelete, "/api/weight/record/9999", token, nil)
	expectCode(t, resp, env, 0)

	resp, env = e.do(t, http.MethodDelete, "/api/weight/record/abc", token, nil)
	expectCode(t, resp, env, http.StatusBadRequest)
}

func TestSettings(t *testing.T) {
	e := newTestServer(t)
	token := e.register(t, "alice").Token

	resp, env := e.do(t, http.MethodGet, "/api/user/settings", token, nil)
	expectCode(t, resp, env, 0)
	var got api.Settings
	decodeData(t, env, &got)
	want := api.Settings{WeightUnit: "KG", ReminderTime: "08:00"}
	if got != want {
		t.Errorf("defaults = %+v, want %+v", got, want)
	}

	resp, env = e.do(t, http.MethodPut, "/api/user/settings", token,
		`{"height":175,"weightUnit":"jin","reminderEnabled":true,"reminderTime":"07:30"}`)
	expectCode(t, resp, env, 0)

	_, env = e.do(t, http.MethodGet, "/api/user/settings", token, nil)
	decodeData(t, env, &got)
	want = api.Settings{Height: 175, WeightUnit: "JIN", ReminderEnabled: true, ReminderTime: "07:30"}
	if got != want {
		t.Errorf("after update = %+v, want %+v", got, want)
	}

	tests := []struct {
		name string
		body string
	}{
		{"bad time", `{"reminderTime":"25:00"}`},
		{"bad unit", `{"weightUnit":"lb"}`},
		{"bad height", `{"height":-1}`},
		{"unknown field", `{"theme":"dark"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := e.do(t, http.MethodPut, "/api/user/settings", token, tt.body)
			expectCode(t, resp, env, http.StatusBadRequest)
		})
	}
}

func TestChartsDaily(t *testing.T) {
	e := newTestServer(t)
	token := e.register(t, "alice").Token
	e.addRecord(t, token, "2026-02-10", 70)
	e.addRecord(t, token, "2026-02-08", 71)

	resp, env := e.do(t, http.MethodPut, "/api/user/settings", token, `{"weightUnit":"JIN"}`)
	expectCode(t, resp, env, 0)

	resp, env = e.do(t, http.MethodGet, "/api/charts/daily?days=3", token, nil)
	expectCode(t, resp, env, 0)

	var body struct {
		Days  int            `json:"days"`
		Unit  string         `json:"unit"`
		Items []api.DayPoint `json:"items"`
	}
	decodeData(t, env, &body)
	if body.Unit != "JIN" || body.Days != 3 || len(body.Items) != 3 {
		t.Fatalf("unexpected chart %+v", body)
	}
	if body.Items[0].Day != "2026-02-08" || body.Items[0].Weight == nil || *body.Items[0].Weight != 142 {
		t.Errorf("first point = %+v", body.Items[0])
	}
	if body.Items[1].Weight != nil {
		t.Errorf("gap day has weight %v", *body.Items[1].Weight)
	}
	if *body.Items[2].Weight != 140 {
		t.Errorf("today = %v, want 140", *body.Items[2].Weight)
	}

	resp, env = e.do(t, http.MethodGet, "/api/charts/daily?unit=lb", token, nil)
	expectCode(t, resp, env, http.StatusBadRequest)
}

func TestSSODisabled(t *testing.T) {
	e := newTestServer(t)
	for _, path := range []string{"/api/auth/sso/login", "/api/auth/sso/callback"} {
		resp, env := e.do(t, http.MethodGet, path, "", nil)
		expectCode(t, resp, env, http.StatusNotFound)
	}
}

func TestUnknownRoute(t *testing.T) {
	e := newTestServer(t)
	resp, env := e.do(t, http.MethodGet, "/api/water/today", "", nil)
	expectCode(t, resp, env, http.StatusNotFound)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestServer(t)
	e.do(t, http.MethodGet, "/api/health", "", nil)

	// The counter is incremented after the response is written.
	want := `weightlog_test_server_request{method="GET",status="200"}`
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(e.srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics: %v", err)
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close() //nolint:errcheck
		if strings.Contains(string(b), want) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics output missing request counter:\n%s", b)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readEvent(t *testing.T, br *bufio.Reader) api.Envelope {
	t.Helper()
	var data string
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && data != "":
			var env api.Envelope
			if err := json.Unmarshal([]byte(data), &env); err != nil {
				t.Fatalf("decode event %q: %v", data, err)
			}
			return env
		}
	}
}

func TestRecordStream(t *testing.T) {
	e := newTestServer(t)
	token := e.register(t, "alice").Token

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.srv.URL+"/api/weight/records/stream?days=7&access_token="+token, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	br := bufio.NewReader(resp.Body)

	var sum api.RecordsResponse
	decodeData(t, readEvent(t, br), &sum)
	if len(sum.Records) != 0 {
		t.Fatalf("initial snapshot has %d records", len(sum.Records))
	}

	e.addRecord(t, token, "2026-02-09", 70)

	sum = api.RecordsResponse{}
	decodeData(t, readEvent(t, br), &sum)
	if len(sum.Records) != 1 || sum.Records[0].WeightKg != 70 {
		t.Fatalf("snapshot after save = %+v", sum.Records)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for e.hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription still registered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
