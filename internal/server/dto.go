package server

import (
	"checkline/internal/domain"
	"checkline/internal/engine"
)

// Request payloads

type ItemRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Type string `json:"type" enum:"checkbox,text,number,select"`
}

type CreateChecklistRequest struct {
	Title       string        `json:"title"`
	Description *string       `json:"description,omitempty"`
	Items       []ItemRequest `json:"items"`
	Category    *string       `json:"category,omitempty"`
}

type UpdateChecklistRequest struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Items       []ItemRequest `json:"items,omitempty"`
	Category    *string       `json:"category,omitempty"`
}

type CreateAssignmentRequest struct {
	ChecklistID       string  `json:"checklist_id"`
	CollaboratorEmail string  `json:"collaborator_email"`
	CollaboratorName  *string `json:"collaborator_name,omitempty"`
	Title             string  `json:"title"`
	Description       *string `json:"description,omitempty"`
	DueDate           *string `json:"due_date,omitempty"`
	Priority          *string `json:"priority,omitempty" enum:"low,medium,high"`
}

type UpdateAssignmentRequest struct {
	CollaboratorEmail *string `json:"collaborator_email,omitempty"`
	CollaboratorName  *string `json:"collaborator_name,omitempty"`
	Title             *string `json:"title,omitempty"`
	Description       *string `json:"description,omitempty"`
	DueDate           *string `json:"due_date,omitempty"`
	Priority          *string `json:"priority,omitempty" enum:"low,medium,high"`
	Status            *string `json:"status,omitempty" enum:"pending,in_progress,completed,reviewed"`
}

type StartExecutionRequest struct {
	AssignmentID string `json:"assignment_id"`
}

type LocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// UpdateExecutionRequest distinguishes an omitted field from an empty one
// through pointers; a pointer to an empty responses slice clears the saved
// answers.
type UpdateExecutionRequest struct {
	Responses *[]domain.Response `json:"responses,omitempty"`
	Notes     *string            `json:"notes,omitempty"`
	Location  *LocationRequest   `json:"location,omitempty"`
	Status    *string            `json:"status,omitempty" enum:"in_progress,completed,reviewed"`
}

type CompleteExecutionRequest struct {
	Responses *[]domain.Response `json:"responses"`
	Notes     *string            `json:"notes,omitempty"`
	Location  *LocationRequest   `json:"location,omitempty"`
}

type CreateAPIKeyRequest struct {
	Email string  `json:"email"`
	Name  *string `json:"name,omitempty"`
	Role  string  `json:"role" enum:"supervisor,collaborator"`
}

// Response payloads

type ChecklistResponse struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Items       []ItemRequest `json:"items"`
	Category    string        `json:"category"`
	CreatedBy   string        `json:"created_by"`
	CreatedAt   string        `json:"created_at" format:"date-time"`
	UpdatedAt   string        `json:"updated_at" format:"date-time"`
}

type AssignmentResponse struct {
	ID                string  `json:"id"`
	ChecklistID       string  `json:"checklist_id"`
	ChecklistTitle    string  `json:"checklist_title"`
	CollaboratorEmail string  `json:"collaborator_email"`
	CollaboratorName  string  `json:"collaborator_name"`
	Title             string  `json:"title"`
	Description       string  `json:"description,omitempty"`
	DueDate           *string `json:"due_date,omitempty" format:"date-time"`
	Priority          string  `json:"priority" enum:"low,medium,high"`
	Status            string  `json:"status" enum:"pending,in_progress,completed,reviewed"`
	AssignedBy        string  `json:"assigned_by"`
	CreatedAt         string  `json:"created_at" format:"date-time"`
	UpdatedAt         string  `json:"updated_at" format:"date-time"`
}

type ExecutionResponse struct {
	ID                string            `json:"id"`
	AssignmentID      string            `json:"assignment_id"`
	AssignmentTitle   string            `json:"assignment_title"`
	ChecklistID       string            `json:"checklist_id"`
	CollaboratorEmail string            `json:"collaborator_email"`
	CollaboratorName  string            `json:"collaborator_name"`
	Responses         []domain.Response `json:"responses"`
	Notes             string            `json:"notes,omitempty"`
	Location          *domain.Location  `json:"location,omitempty"`
	Status            string            `json:"status" enum:"in_progress,completed,reviewed"`
	StartedAt         string            `json:"started_at" format:"date-time"`
	CompletedAt       *string           `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt         string            `json:"created_at" format:"date-time"`
	UpdatedAt         string            `json:"updated_at" format:"date-time"`
}

// APIKeyResponse never echoes the hash; the plaintext key appears only in
// CreatedAPIKeyResponse, once.
type APIKeyResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role" enum:"supervisor,collaborator"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type CreatedAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

type MeResponse struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role" enum:"supervisor,collaborator"`
	Source string `json:"source"`
}

// Mapping

func itemsFromRequest(items []ItemRequest) []domain.ChecklistItem {
	out := make([]domain.ChecklistItem, len(items))
	for i, it := range items {
		out[i] = domain.ChecklistItem{ID: it.ID, Text: it.Text, Type: it.Type}
	}
	return out
}

func itemsResponse(items []domain.ChecklistItem) []ItemRequest {
	out := make([]ItemRequest, len(items))
	for i, it := range items {
		out[i] = ItemRequest{ID: it.ID, Text: it.Text, Type: it.Type}
	}
	return out
}

func checklistResponse(c domain.Checklist) ChecklistResponse {
	return ChecklistResponse{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Items:       itemsResponse(c.Items),
		Category:    c.Category,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func mapChecklists(items []domain.Checklist) []ChecklistResponse {
	out := make([]ChecklistResponse, len(items))
	for i, c := range items {
		out[i] = checklistResponse(c)
	}
	return out
}

func assignmentResponse(a domain.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:                a.ID,
		ChecklistID:       a.ChecklistID,
		ChecklistTitle:    a.ChecklistTitle,
		CollaboratorEmail: a.CollaboratorEmail,
		CollaboratorName:  a.CollaboratorName,
		Title:             a.Title,
		Description:       a.Description,
		DueDate:           a.DueDate,
		Priority:          a.Priority,
		Status:            a.Status,
		AssignedBy:        a.AssignedBy,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func mapAssignments(items []domain.Assignment) []AssignmentResponse {
	out := make([]AssignmentResponse, len(items))
	for i, a := range items {
		out[i] = assignmentResponse(a)
	}
	return out
}

func executionResponse(e domain.Execution) ExecutionResponse {
	responses := e.Responses
	if responses == nil {
		responses = []domain.Response{}
	}
	return ExecutionResponse{
		ID:                e.ID,
		AssignmentID:      e.AssignmentID,
		AssignmentTitle:   e.AssignmentTitle,
		ChecklistID:       e.ChecklistID,
		CollaboratorEmail: e.CollaboratorEmail,
		CollaboratorName:  e.CollaboratorName,
		Responses:         responses,
		Notes:             e.Notes,
		Location:          e.Location,
		Status:            e.Status,
		StartedAt:         e.StartedAt,
		CompletedAt:       e.CompletedAt,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func mapExecutions(items []domain.Execution) []ExecutionResponse {
	out := make([]ExecutionResponse, len(items))
	for i, e := range items {
		out[i] = executionResponse(e)
	}
	return out
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		Email:     k.Email,
		Name:      k.Name,
		Role:      k.Role,
		CreatedAt: k.CreatedAt,
	}
}

func mapAPIKeys(items []domain.APIKey) []APIKeyResponse {
	out := make([]APIKeyResponse, len(items))
	for i, k := range items {
		out[i] = apiKeyResponse(k)
	}
	return out
}

func locationPatch(l *LocationRequest) *engine.LocationPatch {
	if l == nil {
		return nil
	}
	return &engine.LocationPatch{Latitude: l.Latitude, Longitude: l.Longitude}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
