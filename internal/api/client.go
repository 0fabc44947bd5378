package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/sirupsen/logrus"

	"linkboard/internal/domain"
	"linkboard/internal/metrics"
)

const linksPath = "/api/links"

// ListQuery selects the links returned by GET /api/links.
type ListQuery struct {
	// ManagementSiteID scopes the list to one customer site. Empty means the
	// default (unscoped) list.
	ManagementSiteID string
	Filters          domain.FilterState
	// Date filters by date_added (YYYY-MM-DD). Empty disables it.
	Date string
	// NoCache adds the _t nonce and no-cache headers.
	NoCache bool
}

// Client talks to the link-management REST API.
type Client struct {
	baseURL string
	http    *http.Client
	metrics metrics.Recorder
	nonce   *nonceSource
	log     logrus.FieldLogger
}

// Option customizes a Client.
type Option func(*Client)

// WithMetrics sets the request recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) { c.metrics = r }
}

// WithClock overrides the time source used for cache-busting nonces.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.nonce.now = now }
}

// NewClient creates a client for the API rooted at baseURL. A zero timeout
// leaves requests bounded only by their context.
func NewClient(baseURL string, timeout time.Duration, logger logrus.FieldLogger, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	c := &Client{
		baseURL: u.String(),
		http: &http.Client{
			Timeout:   timeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		},
		metrics: metrics.Noop{},
		nonce:   &nonceSource{now: time.Now},
		log:     logger.WithField("component", "api_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListLinks fetches the link list.
func (c *Client) ListLinks(ctx context.Context, q ListQuery) ([]domain.Link, error) {
	params := url.Values{}
	if q.ManagementSiteID != "" {
		params.Set("management_site_id", q.ManagementSiteID)
	}
	if q.NoCache {
		params.Set("_t", strconv.FormatInt(c.nonce.Next(), 10))
	}
	params.Set("platform", orAll(q.Filters.Platform))
	params.Set("user", orAll(q.Filters.User))
	params.Set("like", orAll(q.Filters.Like))
	params.Set("guarantee", orAll(q.Filters.Guarantee))
	if q.Date != "" {
		params.Set("date", q.Date)
	}

	req, err := c.newRequest(ctx, http.MethodGet, linksPath, params, nil)
	if err != nil {
		return nil, err
	}
	if q.NoCache {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	}
	return c.doList(req, "list")
}

// DebugLinks fetches the unfiltered list with the debug flag set.
func (c *Client) DebugLinks(ctx context.Context) ([]domain.Link, error) {
	params := url.Values{}
	params.Set("_debug", "1")
	req, err := c.newRequest(ctx, http.MethodGet, linksPath, params, nil)
	if err != nil {
		return nil, err
	}
	return c.doList(req, "debug")
}

// CreateLink posts a new link. An incomplete payload is refused without a
// request. The server's envelope is returned as-is; a success=false answer is
// not an error here, callers decide how to surface it.
func (c *Client) CreateLink(ctx context.Context, managementSiteID string, payload domain.CreateLinkRequest) (domain.Result, error) {
	if err := payload.Validate(); err != nil {
		return domain.Result{}, err
	}
	var params url.Values
	if managementSiteID != "" {
		params = url.Values{}
		params.Set("management_site_id", managementSiteID)
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, linksPath, params, payload)
	if err != nil {
		return domain.Result{}, err
	}
	return c.doResult(req, "create")
}

// UpdateLink applies one action to an existing link.
func (c *Client) UpdateLink(ctx context.Context, id int64, action domain.LinkAction) error {
	if err := action.Validate(); err != nil {
		return err
	}
	req, err := c.newJSONRequest(ctx, http.MethodPut, linkPath(id), nil, action)
	if err != nil {
		return err
	}
	return c.checkResult(req, "update")
}

// DeleteLink removes a link.
func (c *Client) DeleteLink(ctx context.Context, id int64) error {
	req, err := c.newRequest(ctx, http.MethodDelete, linkPath(id), nil, nil)
	if err != nil {
		return err
	}
	return c.checkResult(req, "delete")
}

func (c *Client) checkResult(req *http.Request, endpoint string) error {
	res, err := c.doResult(req, endpoint)
	if err != nil {
		return err
	}
	if !res.Success {
		return &RejectedError{Message: res.Error}
	}
	return nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, params url.Values, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := c.newRequest(ctx, method, path, params, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// do sends req and reads the whole body. Status checks are left to callers
// because the write endpoints report failures in the body.
func (c *Client) do(req *http.Request, endpoint string) (int, []byte, error) {
	log := c.log.WithFields(logrus.Fields{
		"endpoint":   endpoint,
		"method":     req.Method,
		"url":        req.URL.String(),
		"request_id": req.Header.Get("X-Request-ID"),
	})

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, 0, time.Since(start))
		log.WithError(err).Error("Link API request failed")
		return 0, nil, fmt.Errorf("failed to %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		log.WithError(err).Error("Failed to read link API response")
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.WithField("status", resp.StatusCode).Debug("Link API response received")
	return resp.StatusCode, body, nil
}

func (c *Client) doList(req *http.Request, endpoint string) ([]domain.Link, error) {
	status, body, err := c.do(req, endpoint)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}

	var links []domain.Link
	if err := json.Unmarshal(body, &links); err != nil {
		return nil, fmt.Errorf("failed to decode link list: %w", err)
	}
	if links == nil {
		links = []domain.Link{}
	}
	return links, nil
}

func (c *Client) doResult(req *http.Request, endpoint string) (domain.Result, error) {
	status, body, err := c.do(req, endpoint)
	if err != nil {
		return domain.Result{}, err
	}

	var res domain.Result
	if err := json.Unmarshal(body, &res); err != nil {
		return domain.Result{}, fmt.Errorf("failed to decode response (status %d): %w", status, err)
	}
	return res, nil
}

func linkPath(id int64) string {
	return linksPath + "/" + strconv.FormatInt(id, 10)
}

func orAll(v string) string {
	if v == "" {
		return domain.FilterAll
	}
	return v
}
