package agentrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnauthorized is returned when the Controller rejects the client's
// bearer token.
var ErrUnauthorized = errUnauthorized

// Client is the Agent-side HTTP client for one backend's RPC session
// with the Controller (spec.md §4.5).
type Client struct {
	httpClient *http.Client
	baseURL    string
	backend    string
	token      string
}

// NewClient builds a Client that polls baseURL for backend, authenticated
// with token (see IssueToken). baseURL should not have a trailing slash.
func NewClient(baseURL, backend, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		backend:    backend,
		token:      token,
	}
}

// ListTasks fetches the backend's currently active tasks.
func (c *Client) ListTasks(ctx context.Context) ([]TaskDTO, error) {
	url := fmt.Sprintf("%s/%s/tasks/", c.baseURL, c.backend)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("agentrpc: building list-tasks request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out TasksResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("agentrpc: decoding list-tasks response: %w", err)
	}
	return out.Tasks, nil
}

// UpdateTask reports progress or completion for a task. The payload is
// carried as a form-encoded "payload" field, not a raw JSON body.
func (c *Client) UpdateTask(ctx context.Context, req TaskUpdateRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("agentrpc: marshalling task update: %w", err)
	}
	form := url.Values{"payload": {string(payload)}}

	reqURL := fmt.Sprintf("%s/%s/task/update/", c.baseURL, c.backend)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("agentrpc: building task update request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// do attaches the bearer token, executes req, and turns non-2xx
// responses into errors. Only 401 becomes ErrUnauthorized — 404 means
// the backend itself is unrecognised (a distinct, non-auth condition),
// and an unknown task id surfaces as a 500, not a 404.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agentrpc: request failed: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}

	body, _ := io.ReadAll(resp.Body)
	return nil, fmt.Errorf("agentrpc: request failed with status %d: %s", resp.StatusCode, string(body))
}
