package domain

import "encoding/json"

type ChecklistItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Type string `json:"type" enum:"checkbox,text,number,select"`
}

type Checklist struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Items       []ChecklistItem `json:"items"`
	Category    string          `json:"category"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
	UpdatedAt   string          `json:"updated_at" format:"date-time"`
}

type Assignment struct {
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

// Response records one answered checklist item. Value keeps the raw JSON so
// that false, 0 and "" survive as deliberate answers; an absent value is nil.
type Response struct {
	ItemID string          `json:"item_id"`
	Value  json.RawMessage `json:"value"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

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
	Status            string     `json:"status" enum:"in_progress,completed,reviewed"`
	StartedAt         string     `json:"started_at" format:"date-time"`
	CompletedAt       *string    `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt         string     `json:"created_at" format:"date-time"`
	UpdatedAt         string     `json:"updated_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role" enum:"supervisor,collaborator"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
