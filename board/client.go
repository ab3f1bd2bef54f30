package board

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/bytedance/sonic"

	"taskboard-api/domain"
)

// Client is a cookie-jar HTTP client for the taskboard API. Login captures
// the session cookie; every later call carries it automatically. Client
// satisfies the board API interface.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
	}, nil
}

// RequestError is a non-2xx API response.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := sonic.ConfigStd.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = sonic.ConfigStd.Unmarshal(data, &msg)
		return &RequestError{Status: resp.StatusCode, Message: msg.Message}
	}
	if out == nil {
		return nil
	}
	return sonic.ConfigStd.Unmarshal(data, out)
}

// Login authenticates and stores the session cookie in the jar.
func (c *Client) Login(ctx context.Context, email, password string) (domain.Profile, error) {
	var resp struct {
		User domain.Profile `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return domain.Profile{}, err
	}
	return resp.User, nil
}

// Logout ends the session server-side and drops the cookie.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// ListTasks fetches the caller's tasks, newest first.
func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var resp struct {
		Tasks []domain.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// CreateTask persists a new task.
func (c *Client) CreateTask(ctx context.Context, title, description string, priority domain.Priority) (domain.Task, error) {
	var resp struct {
		Task domain.Task `json:"task"`
	}
	body := map[string]string{"title": title, "description": description, "priority": string(priority)}
	if err := c.do(ctx, http.MethodPost, "/tasks", body, &resp); err != nil {
		return domain.Task{}, err
	}
	return resp.Task, nil
}

// UpdateTask applies a partial update.
func (c *Client) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	var resp struct {
		Task domain.Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPut, "/tasks/"+id, patch, &resp); err != nil {
		return domain.Task{}, err
	}
	return resp.Task, nil
}

// UpdateStatus issues the status-only patch used by drag-and-drop moves.
func (c *Client) UpdateStatus(ctx context.Context, id string, status domain.Status) (domain.Task, error) {
	return c.UpdateTask(ctx, id, domain.TaskPatch{Status: &status})
}

// DeleteTask removes a task permanently.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+id, nil, nil)
}
