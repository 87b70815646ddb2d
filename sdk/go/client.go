// Package crusadesdk is a minimal HTTP client for the Task Crusader API.
package crusadesdk

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

// Client talks to a running crusade server.
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

// Campaign is the API campaign model.
type Campaign struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Task is the API task model.
type Task struct {
	ID          string   `json:"id"`
	CampaignID  string   `json:"campaign_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	DependsOn   []string `json:"depends_on,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// Progress is the derived campaign completion summary.
type Progress struct {
	CampaignID      string `json:"campaign_id"`
	Total           int    `json:"total"`
	Pending         int    `json:"pending"`
	InProgress      int    `json:"in_progress"`
	Blocked         int    `json:"blocked"`
	Done            int    `json:"done"`
	Cancelled       int    `json:"cancelled"`
	PercentComplete int    `json:"percent_complete"`
}

// Attachment is one memory entry hanging off a task or campaign.
type Attachment struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	TaskID     *string `json:"task_id,omitempty"`
	CampaignID *string `json:"campaign_id,omitempty"`
	Content    string  `json:"content"`
	Met        *bool   `json:"met,omitempty"`
	Result     *string `json:"result,omitempty"`
	OrderIndex int     `json:"order_index"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateCampaign creates a campaign.
func (c *Client) CreateCampaign(ctx context.Context, name, description, priority string) (Campaign, error) {
	body := map[string]any{"name": name}
	if description != "" {
		body["description"] = description
	}
	if priority != "" {
		body["priority"] = priority
	}
	var resp Campaign
	err := c.do(ctx, http.MethodPost, "v0/campaigns", body, &resp)
	return resp, err
}

// ListCampaigns lists campaigns, optionally filtered by status.
func (c *Client) ListCampaigns(ctx context.Context, status string) ([]Campaign, error) {
	endpoint := "v0/campaigns"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp struct {
		Items []Campaign `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Progress returns the campaign's completion summary.
func (c *Client) Progress(ctx context.Context, campaignID string) (Progress, error) {
	var resp Progress
	err := c.do(ctx, http.MethodGet, c.campaignPath(campaignID, "progress"), nil, &resp)
	return resp, err
}

// NextActionableTask returns the best task to start now, or nil.
func (c *Client) NextActionableTask(ctx context.Context, campaignID string) (*Task, error) {
	var resp struct {
		Task *Task `json:"task"`
	}
	err := c.do(ctx, http.MethodGet, c.campaignPath(campaignID, "tasks/next"), nil, &resp)
	return resp.Task, err
}

// CreateTask creates a task in a campaign.
func (c *Client) CreateTask(ctx context.Context, campaignID, title string, dependsOn []string) (Task, error) {
	body := map[string]any{"title": title}
	if len(dependsOn) > 0 {
		body["depends_on"] = dependsOn
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, c.campaignPath(campaignID, "tasks"), body, &resp)
	return resp, err
}

// CompleteTask marks an in-progress task done.
func (c *Client) CompleteTask(ctx context.Context, taskID string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/complete", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// UpdateTaskStatus moves a task to a new status.
func (c *Client) UpdateTaskStatus(ctx context.Context, taskID, status string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// AddCriterion attaches an acceptance criterion to a task.
func (c *Client) AddCriterion(ctx context.Context, taskID, content string) (Attachment, error) {
	var resp Attachment
	endpoint := fmt.Sprintf("v0/tasks/%s/criteria", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"content": content}, &resp)
	return resp, err
}

// MarkCriterionMet flips a criterion to met.
func (c *Client) MarkCriterionMet(ctx context.Context, criterionID string) (Attachment, error) {
	var resp Attachment
	endpoint := fmt.Sprintf("v0/criteria/%s/met", url.PathEscape(criterionID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
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

func (c *Client) campaignPath(campaignID, p string) string {
	return fmt.Sprintf("v0/campaigns/%s/%s", url.PathEscape(campaignID), strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
