package taskdecksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Taskdeck HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "api/v1",
		Timeout:  10 * time.Second,
	}
}

// Assignment is one task roster entry.
type Assignment struct {
	UserID       string  `json:"user_id"`
	Role         string  `json:"role"`
	PlannedLabor float64 `json:"planned_labor"`
	ActualLabor  float64 `json:"actual_labor"`
	Version      int64   `json:"version"`
}

// Task represents the API task model.
type Task struct {
	ID             string       `json:"id"`
	Description    string       `json:"description"`
	Priority       string       `json:"priority"`
	Status         string       `json:"status"`
	StartDate      string       `json:"start_date,omitempty"`
	CompletionDate string       `json:"completion_date,omitempty"`
	PlannedLabor   float64      `json:"planned_labor"`
	ActualLabor    float64      `json:"actual_labor"`
	WorkSize       float64      `json:"work_size"`
	Roadmap        string       `json:"roadmap,omitempty"`
	TeamID         string       `json:"team_id,omitempty"`
	CreatorID      string       `json:"creator_id"`
	Assignments    []Assignment `json:"assignments"`
}

// Bucket is one day of aggregated labor.
type Bucket struct {
	Date           string   `json:"date"`
	PlannedLabor   float64  `json:"planned_labor"`
	ActualLabor    float64  `json:"actual_labor"`
	RemainingLabor float64  `json:"remaining_labor"`
	TaskIDs        []string `json:"task_ids"`
}

// UserPlan is one member's ranked queue and daily distribution.
type UserPlan struct {
	UserID            string   `json:"user_id"`
	UserName          string   `json:"user_name"`
	OrderedTasks      []Task   `json:"ordered_tasks"`
	DailyDistribution []Bucket `json:"daily_distribution"`
	TotalPlanned      float64  `json:"total_planned"`
	TotalActual       float64  `json:"total_actual"`
	TotalRemaining    float64  `json:"total_remaining"`
}

// OptimizeResult is the full planning response.
type OptimizeResult struct {
	Strategy    string     `json:"strategy"`
	GeneratedAt string     `json:"generated_at"`
	Plans       []UserPlan `json:"plans"`
}

// HistoryEntry is one audit-trail row.
type HistoryEntry struct {
	ID      int64  `json:"id"`
	Kind    string `json:"kind"`
	TaskID  string `json:"task_id"`
	ActorID string `json:"actor_id"`
	Note    string `json:"note,omitempty"`
	TS      string `json:"ts"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a task; body follows the create-task request
// schema.
func (c *Client) CreateTask(ctx context.Context, body map[string]any) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// UpdateTask applies a partial update; a "note" entry is required
// when anything changes.
func (c *Client) UpdateTask(ctx context.Context, id string, body map[string]any) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, "tasks/"+url.PathEscape(id), body, &resp)
	return resp, err
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(id), nil, nil)
}

// LogEffort records the caller's worked hours on a task.
func (c *Client) LogEffort(ctx context.Context, taskID string, actualLabor float64, expectedVersion *int64) (Task, error) {
	body := map[string]any{"actual_labor": actualLabor}
	if expectedVersion != nil {
		body["expected_version"] = *expectedVersion
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/effort", body, &resp)
	return resp, err
}

// TaskHistory returns a task's audit trail, newest first.
func (c *Client) TaskHistory(ctx context.Context, taskID string, limit int) ([]HistoryEntry, error) {
	endpoint := "tasks/" + url.PathEscape(taskID) + "/history"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []HistoryEntry
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// OptimizeUser plans one user's workload.
func (c *Client) OptimizeUser(ctx context.Context, userID, strategy string) (OptimizeResult, error) {
	return c.optimize(ctx, map[string]any{"user_id": userID, "strategy": strategy})
}

// OptimizeTeam plans a whole team, one plan per member.
func (c *Client) OptimizeTeam(ctx context.Context, teamID, strategy string) (OptimizeResult, error) {
	return c.optimize(ctx, map[string]any{"team_id": teamID, "strategy": strategy})
}

func (c *Client) optimize(ctx context.Context, body map[string]any) (OptimizeResult, error) {
	if s, ok := body["strategy"].(string); ok && s == "" {
		delete(body, "strategy")
	}
	var resp OptimizeResult
	err := c.do(ctx, http.MethodPost, "optimize", body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.Trim(c.BasePath, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
