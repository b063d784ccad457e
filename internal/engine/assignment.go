package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"checkline/internal/domain"
	"checkline/internal/repo"
	"checkline/internal/validate"
)

// AssignmentCreateOptions are parameters for delegating a checklist to a
// collaborator.
type AssignmentCreateOptions struct {
	ChecklistID       string
	CollaboratorEmail string
	CollaboratorName  string
	Title             string
	Description       string
	DueDate           string
	Priority          string
	AssignedBy        string
}

func (e Engine) CreateAssignment(ctx context.Context, opts AssignmentCreateOptions) (domain.Assignment, error) {
	if opts.ChecklistID == "" || opts.CollaboratorEmail == "" || opts.Title == "" {
		return domain.Assignment{}, ValidationError{"checklist_id, collaborator_email and title are required"}
	}
	if !validate.Email(opts.CollaboratorEmail) {
		return domain.Assignment{}, ValidationError{"invalid email format"}
	}
	cl, err := e.Repo.GetChecklist(ctx, opts.ChecklistID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Assignment{}, NotFoundError{"checklist not found"}
		}
		return domain.Assignment{}, err
	}
	var dueDate *string
	if opts.DueDate != "" {
		t, ok := validate.Date(opts.DueDate)
		if !ok {
			return domain.Assignment{}, ValidationError{"invalid due date"}
		}
		if validate.Past(t, e.now()) {
			return domain.Assignment{}, ValidationError{"due date cannot be in the past"}
		}
		s := t.UTC().Format(time.RFC3339)
		dueDate = &s
	}
	priority := opts.Priority
	if priority == "" {
		priority = e.defaultPriority()
	} else if !validate.Priority(priority) {
		return domain.Assignment{}, ValidationError{"invalid priority: must be low, medium or high"}
	}
	name := opts.CollaboratorName
	if name == "" {
		name = opts.CollaboratorEmail
	}
	now := e.nowString()
	a := domain.Assignment{
		ID:                uuid.New().String(),
		ChecklistID:       opts.ChecklistID,
		ChecklistTitle:    cl.Title,
		CollaboratorEmail: opts.CollaboratorEmail,
		CollaboratorName:  name,
		Title:             opts.Title,
		Description:       opts.Description,
		DueDate:           dueDate,
		Priority:          priority,
		Status:            "pending",
		AssignedBy:        opts.AssignedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := e.Repo.InsertAssignment(ctx, a); err != nil {
		return domain.Assignment{}, err
	}
	return a, nil
}

// AssignmentUpdateOptions encapsulates allowed updates. ID, ChecklistID,
// AssignedBy and CreatedAt are not part of it on purpose; status accepts any
// recognized value, an administrative override distinct from the
// execution-driven transitions.
type AssignmentUpdateOptions struct {
	CollaboratorEmail *string
	CollaboratorName  *string
	Title             *string
	Description       *string
	DueDate           *string
	Priority          *string
	Status            *string
}

func (e Engine) UpdateAssignment(ctx context.Context, id string, opts AssignmentUpdateOptions) (domain.Assignment, error) {
	a, err := e.Repo.GetAssignment(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return a, NotFoundError{"assignment not found"}
		}
		return a, err
	}
	if opts.Priority != nil && !validate.Priority(*opts.Priority) {
		return a, ValidationError{"invalid priority: must be low, medium or high"}
	}
	if opts.Status != nil && !validate.AssignmentStatus(*opts.Status) {
		return a, ValidationError{"invalid status: must be pending, in_progress, completed or reviewed"}
	}
	if opts.DueDate != nil {
		// Validity only; the past check applies at creation time.
		t, ok := validate.Date(*opts.DueDate)
		if !ok {
			return a, ValidationError{"invalid due date"}
		}
		s := t.UTC().Format(time.RFC3339)
		a.DueDate = &s
	}
	if opts.CollaboratorEmail != nil {
		a.CollaboratorEmail = *opts.CollaboratorEmail
	}
	if opts.CollaboratorName != nil {
		a.CollaboratorName = *opts.CollaboratorName
	}
	if opts.Title != nil {
		a.Title = *opts.Title
	}
	if opts.Description != nil {
		a.Description = *opts.Description
	}
	if opts.Priority != nil {
		a.Priority = *opts.Priority
	}
	if opts.Status != nil {
		a.Status = *opts.Status
	}
	a.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateAssignment(ctx, a); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return a, NotFoundError{"assignment not found"}
		}
		return a, err
	}
	return a, nil
}

func (e Engine) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	a, err := e.Repo.GetAssignment(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return a, NotFoundError{"assignment not found"}
	}
	return a, err
}

func (e Engine) ListAssignments(ctx context.Context, f repo.AssignmentFilters) ([]domain.Assignment, error) {
	return e.Repo.ListAssignments(ctx, f)
}

// DeleteAssignment is an administrative operation; the state machines never
// delete.
func (e Engine) DeleteAssignment(ctx context.Context, id string) error {
	err := e.Repo.DeleteAssignment(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError{"assignment not found"}
	}
	return err
}
