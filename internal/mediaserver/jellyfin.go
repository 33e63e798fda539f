package mediaserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tidesync/internal/config"
)

// HTTPDoer describes the HTTP client used by the Jellyfin client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// JellyfinClient talks to the Jellyfin ScheduledTasks API.
type JellyfinClient struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// NewJellyfinClient constructs a client for the given server. A nil doer
// falls back to a default client with a request timeout.
func NewJellyfinClient(serverURL, apiKey string, client HTTPDoer) *JellyfinClient {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &JellyfinClient{
		baseURL: strings.TrimRight(strings.TrimSpace(serverURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
	}
}

// NewFromConfig builds a client from Jellyfin configuration.
func NewFromConfig(cfg config.JellyfinConfig) *JellyfinClient {
	return NewJellyfinClient(cfg.ServerURL, cfg.APIKey, nil)
}

type scheduledTask struct {
	ID                        string  `json:"Id"`
	Key                       string  `json:"Key"`
	Name                      string  `json:"Name"`
	Description               string  `json:"Description"`
	IsHidden                  bool    `json:"IsHidden"`
	State                     string  `json:"State"`
	CurrentProgressPercentage float64 `json:"CurrentProgressPercentage"`
}

// ListTasks implements Client.
func (c *JellyfinClient) ListTasks(ctx context.Context, includeHidden bool) ([]Task, error) {
	resp, err := c.do(ctx, http.MethodGet, "/ScheduledTasks")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError("list scheduled tasks", resp)
	}

	var raw []scheduledTask
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode scheduled tasks: %w", err)
	}

	tasks := make([]Task, 0, len(raw))
	for _, task := range raw {
		if !includeHidden && task.IsHidden {
			continue
		}
		key := task.Key
		if key == "" {
			key = task.ID
		}
		tasks = append(tasks, Task{
			ID:          task.ID,
			Key:         key,
			Name:        task.Name,
			Description: task.Description,
			Hidden:      task.IsHidden,
		})
	}
	return tasks, nil
}

// TriggerTask implements Client.
func (c *JellyfinClient) TriggerTask(ctx context.Context, taskID string) error {
	resp, err := c.do(ctx, http.MethodPost, "/ScheduledTasks/Running/"+url.PathEscape(taskID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return responseError("trigger task", resp)
	}
	return nil
}

// PollTask implements Client. A 404 is treated as completed: Jellyfin drops
// finished one-shot executions from the running list.
func (c *JellyfinClient) PollTask(ctx context.Context, taskID string) (TaskStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/ScheduledTasks/"+url.PathEscape(taskID))
	if err != nil {
		return TaskStatus{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return TaskStatus{Progress: 100, State: "Completed"}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return TaskStatus{}, responseError("poll task", resp)
	}

	var raw scheduledTask
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return TaskStatus{}, fmt.Errorf("decode task status: %w", err)
	}
	state := raw.State
	if state == "" {
		state = "Unknown"
	}
	return TaskStatus{Progress: raw.CurrentProgressPercentage, State: state}, nil
}

func (c *JellyfinClient) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build jellyfin request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jellyfin request %s %s: %w", method, path, err)
	}
	return resp, nil
}

func responseError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Errorf("%s: jellyfin returned %d", op, resp.StatusCode)
	}
	return fmt.Errorf("%s: jellyfin returned %d: %s", op, resp.StatusCode, trimmed)
}

func normalizeState(state string) string {
	return strings.ToLower(strings.TrimSpace(state))
}
