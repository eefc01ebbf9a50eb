// Package todoist implements the remote task service over the Todoist REST API.
package todoist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/todoembed/internal/app"
	"github.com/hylla/todoembed/internal/domain"
)

// DefaultBaseURL is the Todoist REST endpoint root.
const DefaultBaseURL = "https://api.todoist.com/rest/v1/"

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 4 << 10

// ErrMissingToken reports a client built without a bearer token.
var ErrMissingToken = errors.New("todoist token is required")

// Config configures one Client.
type Config struct {
	Token      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the Todoist REST API with a bearer token.
type Client struct {
	token      string
	baseURL    *url.URL
	httpClient *http.Client
}

var _ app.RemoteTaskService = (*Client)(nil)

// NewClient validates cfg and builds a client.
func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, ErrMissingToken
	}
	rawBase := strings.TrimSpace(cfg.BaseURL)
	if rawBase == "" {
		rawBase = DefaultBaseURL
	}
	if !strings.HasSuffix(rawBase, "/") {
		rawBase += "/"
	}
	base, err := url.Parse(rawBase)
	if err != nil {
		return nil, fmt.Errorf("parse todoist base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("todoist base url %q must be absolute", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{token: token, baseURL: base, httpClient: httpClient}, nil
}

// FetchTasks lists the active tasks selected by q.
func (c *Client) FetchTasks(ctx context.Context, q app.Query) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := c.getJSON(ctx, "list tasks", "tasks", q.Values(), &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

// ListProjects lists every project of the account.
func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	if err := c.getJSON(ctx, "list projects", "projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// ListSections lists every section of the account.
func (c *Client) ListSections(ctx context.Context) ([]domain.Section, error) {
	var sections []domain.Section
	if err := c.getJSON(ctx, "list sections", "sections", nil, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// ListLabels lists every label of the account.
func (c *Client) ListLabels(ctx context.Context) ([]domain.Label, error) {
	var labels []domain.Label
	if err := c.getJSON(ctx, "list labels", "labels", nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// CloseTask completes a task.
func (c *Client) CloseTask(ctx context.Context, id int64) error {
	_, err := c.request(ctx, "close task", http.MethodPost, "tasks/"+strconv.FormatInt(id, 10)+"/close", nil)
	return err
}

// ReopenTask uncompletes a task.
func (c *Client) ReopenTask(ctx context.Context, id int64) error {
	_, err := c.request(ctx, "reopen task", http.MethodPost, "tasks/"+strconv.FormatInt(id, 10)+"/reopen", nil)
	return err
}

// getJSON issues a GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	body, err := c.request(ctx, op, http.MethodGet, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &domain.RemoteError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// request sends one authenticated request and returns the response body.
// Transport failures and non-2xx responses become *domain.RemoteError.
func (c *Client) request(ctx context.Context, op, method, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), nil)
	if err != nil {
		return nil, &domain.RemoteError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.RemoteError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RemoteError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	return body, nil
}
