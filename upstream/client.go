// Package upstream is the HTTP client for the fleet collection API of record.
package upstream

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

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Upstream endpoint paths, relative to the base URL.
const (
	PathLogin              = "/auth/login"
	PathRefresh            = "/auth/refresh"
	PathAssignments        = "/assignments"
	PathAssignmentsConfirm = "/assignments/confirm"
	PathCrew               = "/crew"
	PathVehicles           = "/vehicles"
	PathDashboard          = "/dashboard"
)

const maxBodyBytes = 4 << 20

// Client talks to the upstream API. The zero value is not usable; call New.
type Client struct {
	baseURL *url.URL
	bare    *http.Client
	authed  *http.Client
	logger  zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.bare = h
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.bare.Timeout = d
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing upstream base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream base url %q must be http or https", baseURL)
	}
	c := &Client{
		baseURL: u,
		bare:    &http.Client{Timeout: 30 * time.Second},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.authed = c.bare
	return c, nil
}

// WithTokenSource returns a copy of the client whose data calls carry the
// Bearer token supplied by ts. Login and Refresh stay unauthenticated.
func (c *Client) WithTokenSource(ts oauth2.TokenSource) *Client {
	cp := *c
	base := c.bare.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	cp.authed = &http.Client{
		Timeout:   c.bare.Timeout,
		Transport: &oauth2.Transport{Source: ts, Base: base},
	}
	return &cp
}

// Login exchanges credentials for a token pair and user profile.
func (c *Client) Login(ctx context.Context, username, passPhrase string) (*LoginResponse, error) {
	status, body, err := c.do(ctx, c.bare, http.MethodPost, PathLogin, nil, LoginRequest{Username: username, PassPhrase: passPhrase})
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Code: status, Message: errorMessage(body)}
	}
	var out LoginResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return nil, fmt.Errorf("login response missing tokens")
	}
	return &out, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	status, body, err := c.do(ctx, c.bare, http.MethodPost, PathRefresh, nil, RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Code: status, Message: errorMessage(body)}
	}
	var out RefreshResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding refresh response: %w", err)
	}
	if out.Status != "success" {
		msg := out.Message
		if msg == "" {
			msg = errorMessage(body)
		}
		return nil, &RefreshRejectedError{Status: out.Status, Message: msg}
	}
	if out.Token == "" {
		return nil, &RefreshRejectedError{Status: out.Status, Message: "response carried no token"}
	}
	return &out, nil
}

// Assign links a vehicle to crew members. Both 2xx and 409 replies are
// returned as an AssignResponse; anything else is a *StatusError.
func (c *Client) Assign(ctx context.Context, vehicleID int64, crewIDs []int64) (*AssignResponse, error) {
	status, body, err := c.do(ctx, c.authed, http.MethodPost, PathAssignments, nil, AssignRequest{VehicleID: vehicleID, CrewID: crewIDs})
	if err != nil {
		return nil, err
	}
	if (status < 200 || status > 299) && status != http.StatusConflict {
		return nil, &StatusError{Code: status, Message: errorMessage(body)}
	}
	out := AssignResponse{StatusCode: status}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decoding assign response: %w", err)
		}
	}
	return &out, nil
}

// ConfirmAssignments finalises pending assignments.
func (c *Client) ConfirmAssignments(ctx context.Context, ids []int64) (*MessageResponse, error) {
	return c.resolve(ctx, http.MethodPost, ids)
}

// CancelAssignments discards pending assignments.
func (c *Client) CancelAssignments(ctx context.Context, ids []int64) (*MessageResponse, error) {
	return c.resolve(ctx, http.MethodDelete, ids)
}

func (c *Client) resolve(ctx context.Context, method string, ids []int64) (*MessageResponse, error) {
	status, body, err := c.do(ctx, c.authed, method, PathAssignmentsConfirm, nil, ConfirmRequest{AssignmentIDs: ids})
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Code: status, Message: errorMessage(body)}
	}
	var out MessageResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decoding assignment resolution: %w", err)
		}
	}
	return &out, nil
}

// ListCrew returns the raw crew list body for a company.
func (c *Client) ListCrew(ctx context.Context, companyID int64) ([]byte, error) {
	return c.list(ctx, PathCrew, companyID)
}

// ListVehicles returns the raw vehicle list body for a company.
func (c *Client) ListVehicles(ctx context.Context, companyID int64) ([]byte, error) {
	return c.list(ctx, PathVehicles, companyID)
}

// Dashboard returns the raw dashboard stats body for a company.
func (c *Client) Dashboard(ctx context.Context, companyID int64) ([]byte, error) {
	return c.list(ctx, PathDashboard, companyID)
}

func (c *Client) list(ctx context.Context, path string, companyID int64) ([]byte, error) {
	query := url.Values{}
	if companyID > 0 {
		query.Set("company_id", strconv.FormatInt(companyID, 10))
	}
	status, body, err := c.do(ctx, c.authed, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Code: status, Message: errorMessage(body)}
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, payload any) (int, []byte, error) {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("upstream request failed")
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading %s %s: %w", method, path, err)
	}
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("upstream request")
	return resp.StatusCode, body, nil
}
