// ABOUTME: HTTP client for the tasks REST API implementing the engine record store
// ABOUTME: Maps policy and auth status codes back to model sentinel errors

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2389/tasksync/internal/model"
)

// Errors surfaced by the client besides model.ErrPolicyViolation.
var (
	// ErrUnauthorized is model.ErrUnauthorized, re-exported for callers that
	// only import this package.
	ErrUnauthorized = model.ErrUnauthorized
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
)

const tasksPath = "/rest/v1/tasks"

// ErrorResponse is the JSON error body returned by the server.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusError is a non-success response that maps to no sentinel.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// Client talks to the REST API.
type Client struct {
	baseURL string
	token   func() string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a client for baseURL. token is called before every
// request; an empty result sends no Authorization header.
func NewClient(baseURL string, token func() string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Insert creates a task and returns the stored row.
func (c *Client) Insert(ctx context.Context, t model.Task) (model.Task, error) {
	var created model.Task
	if err := c.do(ctx, http.MethodPost, tasksPath, t, &created); err != nil {
		return model.Task{}, err
	}
	return created, nil
}

// Update applies a patch to task id.
func (c *Client) Update(ctx context.Context, id int64, patch model.TaskPatch) error {
	return c.do(ctx, http.MethodPatch, taskPath(id), patch, nil)
}

// Delete removes task id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

// QueryAll returns every task ordered by id.
func (c *Client) QueryAll(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.do(ctx, http.MethodGet, tasksPath, nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// Get returns a single task.
func (c *Client) Get(ctx context.Context, id int64) (model.Task, error) {
	var t model.Task
	if err := c.do(ctx, http.MethodGet, taskPath(id), nil, &t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// Health checks the server's readiness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health/ready", nil, nil)
}

func taskPath(id int64) string {
	return tasksPath + "/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// errorFromResponse maps a non-2xx response onto the client's error sentinels.
func errorFromResponse(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body ErrorResponse
	if json.Unmarshal(data, &body) != nil || (body.Code == "" && body.Message == "") {
		body.Message = strings.TrimSpace(string(data))
	}

	switch {
	case resp.StatusCode == http.StatusForbidden && body.Code == model.PolicyViolationCode:
		return fmt.Errorf("%w: %s", model.ErrPolicyViolation, body.Message)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", model.ErrUnauthorized, body.Message)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, body.Message)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, body.Message)
	}
	return &StatusError{Status: resp.StatusCode, Code: body.Code, Message: body.Message}
}
