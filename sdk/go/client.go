package checklinesdk

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

// Client is a minimal Checkline HTTP API client.
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

// Item is one entry of a checklist template.
type Item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// Checklist represents the API checklist model.
type Checklist struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Items       []Item `json:"items"`
	Category    string `json:"category"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Assignment represents the API assignment model.
type Assignment struct {
	ID                string  `json:"id"`
	ChecklistID       string  `json:"checklist_id"`
	ChecklistTitle    string  `json:"checklist_title"`
	CollaboratorEmail string  `json:"collaborator_email"`
	CollaboratorName  string  `json:"collaborator_name"`
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	DueDate           *string `json:"due_date,omitempty"`
	Priority          string  `json:"priority"`
	Status            string  `json:"status"`
	AssignedBy        string  `json:"assigned_by"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

// Response is one answered item. Value carries the raw JSON answer so falsy
// values round-trip untouched.
type Response struct {
	ItemID string          `json:"item_id"`
	Value  json.RawMessage `json:"value"`
}

// Location pins an execution update to coordinates.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Execution represents one run of an assignment.
type Execution struct {
	ID                string     `json:"id"`
	AssignmentID      string     `json:"assignment_id"`
	AssignmentTitle   string     `json:"assignment_title"`
	ChecklistID       string     `json:"checklist_id"`
	CollaboratorEmail string     `json:"collaborator_email"`
	CollaboratorName  string     `json:"collaborator_name"`
	Responses         []Response `json:"responses"`
	Notes             string     `json:"notes,omitempty"`
	Location          *Location  `json:"location,omitempty"`
	Status            string     `json:"status"`
	StartedAt         string     `json:"started_at"`
	CompletedAt       *string    `json:"completed_at,omitempty"`
	CreatedAt         string     `json:"created_at"`
	UpdatedAt         string     `json:"updated_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateChecklist creates a checklist template.
func (c *Client) CreateChecklist(ctx context.Context, title, category string, items []Item) (Checklist, error) {
	body := map[string]any{
		"title": title,
		"items": items,
	}
	if category != "" {
		body["category"] = category
	}
	var resp Checklist
	err := c.do(ctx, http.MethodPost, "v0/checklists", body, &resp)
	return resp, err
}

// ListChecklists returns checklists, optionally filtered by category.
func (c *Client) ListChecklists(ctx context.Context, category string) ([]Checklist, error) {
	endpoint := "v0/checklists"
	if category != "" {
		endpoint += "?category=" + url.QueryEscape(category)
	}
	var resp []Checklist
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetChecklist fetches a checklist by id.
func (c *Client) GetChecklist(ctx context.Context, id string) (Checklist, error) {
	var resp Checklist
	err := c.do(ctx, http.MethodGet, "v0/checklists/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateAssignment delegates a checklist to a collaborator.
func (c *Client) CreateAssignment(ctx context.Context, checklistID, collaboratorEmail, title string, opts map[string]any) (Assignment, error) {
	body := map[string]any{
		"checklist_id":       checklistID,
		"collaborator_email": collaboratorEmail,
		"title":              title,
	}
	for k, v := range opts {
		body[k] = v
	}
	var resp Assignment
	err := c.do(ctx, http.MethodPost, "v0/assignments", body, &resp)
	return resp, err
}

// ListAssignments returns assignments filtered by collaborator and status.
func (c *Client) ListAssignments(ctx context.Context, collaboratorEmail, status string) ([]Assignment, error) {
	q := url.Values{}
	if collaboratorEmail != "" {
		q.Set("collaborator_email", collaboratorEmail)
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

// GetAssignment fetches an assignment by id.
func (c *Client) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	var resp Assignment
	err := c.do(ctx, http.MethodGet, "v0/assignments/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// StartExecution opens an execution for an assignment.
func (c *Client) StartExecution(ctx context.Context, assignmentID string) (Execution, error) {
	body := map[string]any{"assignment_id": assignmentID}
	var resp Execution
	err := c.do(ctx, http.MethodPost, "v0/executions", body, &resp)
	return resp, err
}

// UpdateExecution saves partial progress.
func (c *Client) UpdateExecution(ctx context.Context, id string, responses []Response, notes string, loc *Location) (Execution, error) {
	body := map[string]any{}
	if responses != nil {
		body["responses"] = responses
	}
	if notes != "" {
		body["notes"] = notes
	}
	if loc != nil {
		body["location"] = loc
	}
	var resp Execution
	err := c.do(ctx, http.MethodPatch, "v0/executions/"+url.PathEscape(id), body, &resp)
	return resp, err
}

// CompleteExecution finalizes an execution. Responses must be non-nil; an
// empty slice records a round with nothing to report.
func (c *Client) CompleteExecution(ctx context.Context, id string, responses []Response, notes string, loc *Location) (Execution, error) {
	if responses == nil {
		responses = []Response{}
	}
	body := map[string]any{"responses": responses}
	if notes != "" {
		body["notes"] = notes
	}
	if loc != nil {
		body["location"] = loc
	}
	var resp Execution
	err := c.do(ctx, http.MethodPost, "v0/executions/"+url.PathEscape(id)+"/complete", body, &resp)
	return resp, err
}

// ListExecutions returns executions filtered by assignment.
func (c *Client) ListExecutions(ctx context.Context, assignmentID string) ([]Execution, error) {
	endpoint := "v0/executions"
	if assignmentID != "" {
		endpoint += "?assignment_id=" + url.QueryEscape(assignmentID)
	}
	var resp []Execution
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetExecution fetches an execution by id.
func (c *Client) GetExecution(ctx context.Context, id string) (Execution, error) {
	var resp Execution
	err := c.do(ctx, http.MethodGet, "v0/executions/"+url.PathEscape(id), nil, &resp)
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
