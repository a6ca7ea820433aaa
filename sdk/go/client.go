package shiftflowsdk

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

// Client is a minimal Shiftflow HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Assignment represents the API assignment model (partial).
type Assignment struct {
	ID          string         `json:"id"`
	TemplateID  string         `json:"template_id"`
	Name        string         `json:"name"`
	AssignedTo  string         `json:"assigned_to"`
	Status      string         `json:"status"`
	DueDate     string         `json:"due_date"`
	CompletedAt *string        `json:"completed_at,omitempty"`
	Tasks       []TaskInstance `json:"tasks,omitempty"`
}

// TaskInstance represents one checklist item of an assignment.
type TaskInstance struct {
	ID             string `json:"id"`
	AssignmentID   string `json:"assignment_id"`
	Title          string `json:"title"`
	Required       bool   `json:"required"`
	Status         string `json:"status"`
	AssignedTo     string `json:"assigned_to"`
	CompletionNote string `json:"completion_note,omitempty"`
	ActualMinutes  *int   `json:"actual_minutes,omitempty"`
}

// TransferRequest represents a task handoff in flight.
type TransferRequest struct {
	ID           string `json:"id"`
	TaskID       string `json:"task_id"`
	FromEmployee string `json:"from_employee"`
	ToEmployee   string `json:"to_employee"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	RejectReason string `json:"reject_reason,omitempty"`
}

// WeeklyReport represents one closed business week.
type WeeklyReport struct {
	WeekEnding     string  `json:"week_ending"`
	WeekStart      string  `json:"week_start"`
	TotalAssigned  int     `json:"total_assigned"`
	TotalCompleted int     `json:"total_completed"`
	CompletionRate float64 `json:"completion_rate"`
	TopPerformer   string  `json:"top_performer,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateAssignment creates an ad hoc assignment from a template.
func (c *Client) CreateAssignment(ctx context.Context, templateID, assignedTo string) (Assignment, error) {
	body := map[string]any{
		"template_id": templateID,
		"assigned_to": assignedTo,
	}
	var resp Assignment
	err := c.do(ctx, http.MethodPost, "v0/assignments", body, &resp)
	return resp, err
}

// Assignment fetches an assignment with its tasks.
func (c *Client) Assignment(ctx context.Context, id string) (Assignment, error) {
	var resp Assignment
	endpoint := fmt.Sprintf("v0/assignments/%s", url.PathEscape(id))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Assignments lists assignments, optionally filtered by assignee and status.
func (c *Client) Assignments(ctx context.Context, assignedTo, status string) ([]Assignment, error) {
	q := url.Values{}
	if assignedTo != "" {
		q.Set("assigned_to", assignedTo)
	}
	if status != "" {
		q.Set("status", status)
	}
	endpoint := "v0/assignments"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Assignment
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// StartAssignment moves a pending assignment to in_progress.
func (c *Client) StartAssignment(ctx context.Context, id string) (Assignment, error) {
	var resp Assignment
	endpoint := fmt.Sprintf("v0/assignments/%s/start", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// CompleteAssignment completes an assignment once its required tasks are done.
func (c *Client) CompleteAssignment(ctx context.Context, id string) (Assignment, error) {
	var resp Assignment
	endpoint := fmt.Sprintf("v0/assignments/%s/complete", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// CompleteTask marks a task instance completed with an optional note.
func (c *Client) CompleteTask(ctx context.Context, taskID, note string) (TaskInstance, error) {
	body := map[string]any{"status": "completed"}
	if note != "" {
		body["completion_note"] = note
	}
	var resp TaskInstance
	endpoint := fmt.Sprintf("v0/tasks/%s", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// RequestTransfer opens a handoff of a task to another employee.
func (c *Client) RequestTransfer(ctx context.Context, taskID, toEmployee, reason string) (TransferRequest, error) {
	body := map[string]any{
		"task_id":     taskID,
		"to_employee": toEmployee,
		"reason":      reason,
	}
	var resp TransferRequest
	err := c.do(ctx, http.MethodPost, "v0/transfers", body, &resp)
	return resp, err
}

// RespondTransfer accepts or declines a handoff as the proposed recipient.
func (c *Client) RespondTransfer(ctx context.Context, id string, accept bool, reason string) (TransferRequest, error) {
	body := map[string]any{"accept": accept, "reason": reason}
	var resp TransferRequest
	endpoint := fmt.Sprintf("v0/transfers/%s/respond", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// DecideTransfer approves or rejects an accepted handoff as manager.
func (c *Client) DecideTransfer(ctx context.Context, id string, approve bool, reason string) (TransferRequest, error) {
	body := map[string]any{"approve": approve, "reason": reason}
	var resp TransferRequest
	endpoint := fmt.Sprintf("v0/transfers/%s/decide", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// WeeklyReports lists closed weeks, newest first.
func (c *Client) WeeklyReports(ctx context.Context) ([]WeeklyReport, error) {
	var resp []WeeklyReport
	err := c.do(ctx, http.MethodGet, "v0/reports/weekly", nil, &resp)
	return resp, err
}

// WeeklyReportFor fetches the report for a specific week ending date
// (YYYY-MM-DD).
func (c *Client) WeeklyReportFor(ctx context.Context, weekEnding string) (WeeklyReport, error) {
	var resp WeeklyReport
	endpoint := fmt.Sprintf("v0/reports/weekly/%s", url.PathEscape(weekEnding))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
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
