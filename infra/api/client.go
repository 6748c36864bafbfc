package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve/dispatch/auth"
	"github.com/fieldserve/dispatch/core/logger"
	"github.com/fieldserve/dispatch/core/model"
	infralogger "github.com/fieldserve/dispatch/infra/logger"
)

// Config holds the REST client settings.
type Config struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 15
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	return nil
}

// StatusError is a non-2xx backend response. Message carries the backend's
// own error text so workflows can surface it verbatim.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Client talks to the dispatch backend over JSON/HTTPS. It implements the
// API surfaces required by the board loader and both workflows.
type Client struct {
	base  string
	http  *http.Client
	creds auth.TokenProvider
	log   logger.Logger
}

// NewClient creates a REST client. creds supplies the bearer token on every
// request.
func NewClient(cfg Config, creds auth.TokenProvider) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, fmt.Errorf("api: nil token provider")
	}
	return &Client{
		base:  cfg.BaseURL,
		http:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		creds: creds,
		log:   infralogger.New("api_client"),
	}, nil
}

// do executes one request and decodes the JSON response into out (skipped
// when out is nil). Mutating requests carry a correlation id so retries can
// be traced server-side.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	if err := c.creds.SetAuthHeader(req); err != nil {
		return fmt.Errorf("failed to set auth header: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Errorf("close response body: %v", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Message: backendMessage(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// backendMessage extracts the human-readable error the backend returned.
func backendMessage(raw []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}

// FetchQueue pulls the unassigned queue and the assigned-today list.
func (c *Client) FetchQueue(ctx context.Context, date string) (unassigned, assignedToday []model.Job, err error) {
	var out struct {
		Unassigned    []model.Job `json:"unassigned"`
		AssignedToday []model.Job `json:"assigned_today"`
	}
	q := url.Values{"date": {date}}
	if err := c.do(ctx, http.MethodGet, "/dispatch/queue", q, nil, &out); err != nil {
		return nil, nil, fmt.Errorf("fetch queue: %w", err)
	}
	return out.Unassigned, out.AssignedToday, nil
}

// FetchTechnicians pulls the technician roster.
func (c *Client) FetchTechnicians(ctx context.Context, activeOnly bool) ([]model.Technician, error) {
	var out []model.Technician
	q := url.Values{"active_only": {strconv.FormatBool(activeOnly)}}
	if err := c.do(ctx, http.MethodGet, "/technicians", q, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch technicians: %w", err)
	}
	return out, nil
}

// FetchStats pulls aggregate job counts for the viewed day.
func (c *Client) FetchStats(ctx context.Context, date string) (model.DispatchStats, error) {
	var out model.DispatchStats
	q := url.Values{"date": {date}}
	if err := c.do(ctx, http.MethodGet, "/dispatch/stats", q, nil, &out); err != nil {
		return model.DispatchStats{}, fmt.Errorf("fetch stats: %w", err)
	}
	return out, nil
}

// FetchWeekSchedule pulls per-date route entries for one week.
func (c *Client) FetchWeekSchedule(ctx context.Context, weekStart string) (model.WeekSchedule, error) {
	var out model.WeekSchedule
	q := url.Values{"week_start": {weekStart}}
	if err := c.do(ctx, http.MethodGet, "/schedule/weekly", q, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch week schedule: %w", err)
	}
	return out, nil
}

// SuggestTechnicians requests the ranked candidate list for one job.
func (c *Client) SuggestTechnicians(ctx context.Context, jobID, date string) ([]model.AssignmentSuggestion, error) {
	var out struct {
		Suggestions []model.AssignmentSuggestion `json:"suggestions"`
	}
	q := url.Values{"date": {date}}
	path := "/dispatch/jobs/" + url.PathEscape(jobID) + "/suggest-tech"
	if err := c.do(ctx, http.MethodPost, path, q, nil, &out); err != nil {
		return nil, fmt.Errorf("suggest technicians: %w", err)
	}
	return out.Suggestions, nil
}

// AssignJob commits one assignment.
func (c *Client) AssignJob(ctx context.Context, req model.AssignRequest) error {
	return c.do(ctx, http.MethodPost, "/schedule/assign", nil, req, nil)
}

// FetchRoute pulls a technician's ordered stop list for one day.
func (c *Client) FetchRoute(ctx context.Context, techID, date string) (model.RouteData, error) {
	var out model.RouteData
	q := url.Values{"tech_id": {techID}, "date": {date}}
	if err := c.do(ctx, http.MethodGet, "/dispatch/route", q, nil, &out); err != nil {
		return model.RouteData{}, fmt.Errorf("fetch route: %w", err)
	}
	return out, nil
}

// OptimizeRoute requests a candidate reordering for one technician/day.
func (c *Client) OptimizeRoute(ctx context.Context, techID, date string) (model.OptimizeResult, error) {
	var out model.OptimizeResult
	body := map[string]string{"tech_id": techID, "date": date}
	if err := c.do(ctx, http.MethodPost, "/schedule/optimize", nil, body, &out); err != nil {
		return model.OptimizeResult{}, fmt.Errorf("optimize route: %w", err)
	}
	return out, nil
}

// ApplyOptimizedRoute commits a candidate order by id list.
func (c *Client) ApplyOptimizedRoute(ctx context.Context, techID, date string, order []string) error {
	body := struct {
		TechID         string   `json:"tech_id"`
		Date           string   `json:"date"`
		OptimizedOrder []string `json:"optimized_order"`
	}{TechID: techID, Date: date, OptimizedOrder: order}
	return c.do(ctx, http.MethodPost, "/schedule/optimize/apply", nil, body, nil)
}
