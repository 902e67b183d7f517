// Package client is a Go client for the weightlog HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"weightlog/internal/api"
	"weightlog/internal/domain"

	"go.uber.org/multierr"
)

// DefaultTimeout bounds every request made by a Client.
const DefaultTimeout = 30 * time.Second

// CodeNetwork is the APIError code of transport failures.
const CodeNetwork = -1

// APIError is returned for transport failures and non-zero result codes.
type APIError struct {
	Code    int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (code %d): %v", e.Message, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

func (e *APIError) Unwrap() error { return e.Err }

// Client talks to one weightlog server and owns its token cache.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client with its DefaultTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenStore sets where credentials are kept. The default is in memory.
func WithTokenStore(ts TokenStore) Option {
	return func(c *Client) { c.tokens = ts }
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     &MemoryTokenStore{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Credentials returns the stored credentials.
func (c *Client) Credentials() (Credentials, error) {
	return c.tokens.Load()
}

// LoggedIn reports whether an unexpired token is stored.
func (c *Client) LoggedIn() bool {
	creds, err := c.tokens.Load()
	return err == nil && creds.Token != "" && c.now().Before(creds.ExpiresAt)
}

func (c *Client) Register(ctx context.Context, username, password, confirmPassword string) (*api.AuthData, error) {
	req := api.RegisterRequest{Username: username, Password: password, ConfirmPassword: confirmPassword}
	return c.authenticate(ctx, "/auth/register", req, false, "registration failed")
}

func (c *Client) Login(ctx context.Context, username, password string) (*api.AuthData, error) {
	req := api.LoginRequest{Username: username, Password: password}
	return c.authenticate(ctx, "/auth/login", req, false, "login failed")
}

// Refresh exchanges the stored token for a new one.
func (c *Client) Refresh(ctx context.Context) (*api.AuthData, error) {
	return c.authenticate(ctx, "/auth/refresh", nil, true, "failed to refresh token")
}

func (c *Client) authenticate(ctx context.Context, path string, in any, auth bool, fallback string) (*api.AuthData, error) {
	var out api.AuthData
	if err := c.call(ctx, http.MethodPost, path, nil, in, &out, auth, fallback); err != nil {
		return nil, err
	}
	creds := Credentials{
		Token:     out.Token,
		UserID:    out.UserID,
		Username:  out.Username,
		ExpiresAt: c.now().Add(time.Duration(out.ExpiresIn) * time.Second),
	}
	if err := c.tokens.Save(creds); err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}
	return &out, nil
}

// Logout revokes the token on the server and clears it locally, even when
// the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	creds, err := c.tokens.Load()
	if err != nil || creds.Token == "" {
		return multierr.Append(err, c.tokens.Clear())
	}
	callErr := c.call(ctx, http.MethodPost, "/auth/logout", nil, nil, nil, true, "logout failed")
	return multierr.Append(callErr, c.tokens.Clear())
}

func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	req := api.ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	return c.call(ctx, http.MethodPut, "/auth/password", nil, req, nil, true, "failed to change password")
}

func (c *Client) Settings(ctx context.Context) (*api.Settings, error) {
	var out api.Settings
	if err := c.call(ctx, http.MethodGet, "/user/settings", nil, nil, &out, true, "failed to fetch settings"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSettings(ctx context.Context, upd api.SettingsUpdate) error {
	return c.call(ctx, http.MethodPut, "/user/settings", nil, upd, nil, true, "failed to update settings")
}

// AddRecord stores weightKg for day (YYYY-MM-DD); an empty day means today.
func (c *Client) AddRecord(ctx context.Context, day string, weightKg float64) (*domain.WeightObservation, error) {
	var out domain.WeightObservation
	req := api.AddRecordRequest{Date: day, Weight: weightKg}
	if err := c.call(ctx, http.MethodPost, "/weight/record", nil, req, &out, true, "failed to add record"); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordsQuery selects either a trailing window of Days or the inclusive
// range From..To.
type RecordsQuery struct {
	Days     int
	From, To string
}

func (c *Client) Records(ctx context.Context, q RecordsQuery) (*api.RecordsResponse, error) {
	v := url.Values{}
	switch {
	case q.From != "" || q.To != "":
		v.Set("startDate", q.From)
		v.Set("endDate", q.To)
	case q.Days > 0:
		v.Set("days", strconv.Itoa(q.Days))
	}
	var out api.RecordsResponse
	if err := c.call(ctx, http.MethodGet, "/weight/records", v, nil, &out, true, "failed to fetch records"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecordByDate(ctx context.Context, day string) (*domain.WeightObservation, error) {
	var out domain.WeightObservation
	path := "/weight/record/" + url.PathEscape(day)
	if err := c.call(ctx, http.MethodGet, path, nil, nil, &out, true, "failed to fetch record"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteRecord(ctx context.Context, id int64) error {
	path := "/weight/record/" + strconv.FormatInt(id, 10)
	return c.call(ctx, http.MethodDelete, path, nil, nil, nil, true, "failed to delete record")
}

// ChartSeries is the body of the daily chart endpoint.
type ChartSeries struct {
	Days  int            `json:"days"`
	Unit  domain.Unit    `json:"unit"`
	Items []api.DayPoint `json:"items"`
}

// DailyChart returns one point per day. An empty unit selects the user's
// preferred unit.
func (c *Client) DailyChart(ctx context.Context, days int, unit domain.Unit) (*ChartSeries, error) {
	v := url.Values{}
	if days > 0 {
		v.Set("days", strconv.Itoa(days))
	}
	if unit != "" {
		v.Set("unit", string(unit))
	}
	var out ChartSeries
	if err := c.call(ctx, http.MethodGet, "/charts/daily", v, nil, &out, true, "failed to fetch chart"); err != nil {
		return nil, err
	}
	return &out, nil
}

// call sends one request under /api and decodes the envelope's data into
// out. A non-zero code becomes an *APIError carrying the server message, or
// fallback when the server gave none.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out any, auth bool, fallback string) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	u := c.baseURL + "/api" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		creds, err := c.tokens.Load()
		if err != nil {
			return fmt.Errorf("load credentials: %w", err)
		}
		if creds.Token == "" {
			return &APIError{Code: api.CodeUnauthorized, Message: "not logged in"}
		}
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Code: CodeNetwork, Message: "network error", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	var env api.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		code := resp.StatusCode
		if code < 400 {
			code = CodeNetwork
		}
		return &APIError{Code: code, Message: fallback, Err: err}
	}
	if env.Code != api.CodeOK {
		msg := env.Message
		if msg == "" {
			msg = fallback
		}
		return &APIError{Code: env.Code, Message: msg}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &APIError{Code: CodeNetwork, Message: fallback, Err: err}
	}
	return nil
}
