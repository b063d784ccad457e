package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"checkline/internal/domain"
	"checkline/internal/repo"
	"checkline/internal/validate"
)

// StartExecution opens an execution for an assignment and moves the
// assignment to in_progress, both inside one transaction. Only the assigned
// collaborator may start; an assignment carries at most one active execution
// at a time, guarded twice: an advisory lookup here for the friendly error,
// and the partial unique index for the race the lookup cannot close.
func (e Engine) StartExecution(ctx context.Context, assignmentID, callerEmail, callerName string) (domain.Execution, error) {
	if assignmentID == "" {
		return domain.Execution{}, ValidationError{"assignment_id is required"}
	}
	a, err := e.Repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Execution{}, NotFoundError{"assignment not found"}
		}
		return domain.Execution{}, err
	}
	if a.CollaboratorEmail != callerEmail {
		return domain.Execution{}, PermissionError{"not authorized to execute this assignment"}
	}
	if a.Status == "completed" || a.Status == "reviewed" {
		return domain.Execution{}, ConflictError{"assignment already completed"}
	}
	active, err := e.Repo.HasActiveExecution(ctx, assignmentID)
	if err != nil {
		return domain.Execution{}, err
	}
	if active {
		return domain.Execution{}, ConflictError{"an execution is already in progress for this assignment"}
	}
	name := callerName
	if name == "" {
		name = a.CollaboratorName
	}
	now := e.nowString()
	ex := domain.Execution{
		ID:                uuid.New().String(),
		AssignmentID:      a.ID,
		AssignmentTitle:   a.Title,
		ChecklistID:       a.ChecklistID,
		CollaboratorEmail: callerEmail,
		CollaboratorName:  name,
		Responses:         []domain.Response{},
		Status:            "in_progress",
		StartedAt:         now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Execution{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertExecutionTx(ctx, tx, ex); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.Execution{}, ConflictError{"an execution is already in progress for this assignment"}
		}
		return domain.Execution{}, err
	}
	if err := e.Repo.UpdateAssignmentStatusTx(ctx, tx, a.ID, "in_progress", now); err != nil {
		return domain.Execution{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Execution{}, err
	}
	return ex, nil
}

// LocationPatch carries the coordinates of an update; both must be present
// together.
type LocationPatch struct {
	Latitude  *float64
	Longitude *float64
}

// ExecutionUpdateOptions encapsulates allowed updates to a running
// execution. The snapshot fields are not part of it on purpose. Status
// accepts any recognized value, an administrative override; the canonical
// completion path is CompleteExecution, which also stamps completedAt and
// pushes the assignment.
type ExecutionUpdateOptions struct {
	Responses *[]domain.Response
	Notes     *string
	Location  *LocationPatch
	Status    *string
}

func (e Engine) UpdateExecution(ctx context.Context, id string, opts ExecutionUpdateOptions, callerEmail string) (domain.Execution, error) {
	ex, err := e.loadOwnedExecution(ctx, id, callerEmail)
	if err != nil {
		return domain.Execution{}, err
	}
	if ex.Status == "completed" || ex.Status == "reviewed" {
		return domain.Execution{}, ConflictError{"cannot update a completed execution"}
	}
	if opts.Status != nil {
		if !validate.ExecutionStatus(*opts.Status) {
			return domain.Execution{}, ValidationError{"invalid status: must be in_progress, completed or reviewed"}
		}
		ex.Status = *opts.Status
	}
	if opts.Responses != nil {
		if !validate.Responses(*opts.Responses) {
			return domain.Execution{}, ValidationError{"each response needs item_id and value"}
		}
		ex.Responses = *opts.Responses
	}
	if opts.Notes != nil {
		ex.Notes = *opts.Notes
	}
	if opts.Location != nil {
		if !validate.LocationShape(opts.Location.Latitude, opts.Location.Longitude) {
			return domain.Execution{}, ValidationError{"location needs both latitude and longitude"}
		}
		ex.Location = &domain.Location{Latitude: *opts.Location.Latitude, Longitude: *opts.Location.Longitude}
	}
	ex.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateExecution(ctx, ex); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Execution{}, NotFoundError{"execution not found"}
		}
		return domain.Execution{}, err
	}
	return ex, nil
}

// ExecutionCompleteOptions carries the final state of an execution.
// Responses is mandatory; an empty list is a deliberate "nothing to report".
type ExecutionCompleteOptions struct {
	Responses *[]domain.Response
	Notes     *string
	Location  *LocationPatch
}

// CompleteExecution finalizes an execution and moves its assignment to
// completed, both inside one transaction.
func (e Engine) CompleteExecution(ctx context.Context, id string, opts ExecutionCompleteOptions, callerEmail string) (domain.Execution, error) {
	ex, err := e.loadOwnedExecution(ctx, id, callerEmail)
	if err != nil {
		return domain.Execution{}, err
	}
	if ex.Status == "completed" || ex.Status == "reviewed" {
		return domain.Execution{}, ConflictError{"execution already completed"}
	}
	if opts.Responses == nil {
		return domain.Execution{}, ValidationError{"responses are required to complete an execution"}
	}
	if !validate.Responses(*opts.Responses) {
		return domain.Execution{}, ValidationError{"each response needs item_id and value"}
	}
	ex.Responses = *opts.Responses
	if opts.Notes != nil {
		ex.Notes = *opts.Notes
	}
	if opts.Location != nil {
		if !validate.LocationShape(opts.Location.Latitude, opts.Location.Longitude) {
			return domain.Execution{}, ValidationError{"location needs both latitude and longitude"}
		}
		ex.Location = &domain.Location{Latitude: *opts.Location.Latitude, Longitude: *opts.Location.Longitude}
	}
	now := e.nowString()
	ex.Status = "completed"
	ex.CompletedAt = &now
	ex.UpdatedAt = now
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Execution{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.CompleteExecutionTx(ctx, tx, ex); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Execution{}, NotFoundError{"execution not found"}
		}
		return domain.Execution{}, err
	}
	if err := e.Repo.UpdateAssignmentStatusTx(ctx, tx, ex.AssignmentID, "completed", now); err != nil {
		return domain.Execution{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Execution{}, err
	}
	return ex, nil
}

func (e Engine) GetExecution(ctx context.Context, id string) (domain.Execution, error) {
	ex, err := e.Repo.GetExecution(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ex, NotFoundError{"execution not found"}
	}
	return ex, err
}

func (e Engine) ListExecutions(ctx context.Context, f repo.ExecutionFilters) ([]domain.Execution, error) {
	return e.Repo.ListExecutions(ctx, f)
}

func (e Engine) loadOwnedExecution(ctx context.Context, id, callerEmail string) (domain.Execution, error) {
	ex, err := e.Repo.GetExecution(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Execution{}, NotFoundError{"execution not found"}
		}
		return domain.Execution{}, err
	}
	if ex.CollaboratorEmail != callerEmail {
		return domain.Execution{}, PermissionError{"not authorized to modify this execution"}
	}
	return ex, nil
}
