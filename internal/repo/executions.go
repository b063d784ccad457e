package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"checkline/internal/domain"
)

const executionColumns = `id,assignment_id,assignment_title,checklist_id,collaborator_email,collaborator_name,responses_json,notes,latitude,longitude,status,started_at,completed_at,created_at,updated_at`

func (r Repo) InsertExecutionTx(ctx context.Context, tx *sql.Tx, e domain.Execution) error {
	responses, err := json.Marshal(e.Responses)
	if err != nil {
		return err
	}
	var lat, lng any
	if e.Location != nil {
		lat, lng = e.Location.Latitude, e.Location.Longitude
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO executions(id,assignment_id,assignment_title,checklist_id,collaborator_email,collaborator_name,responses_json,notes,latitude,longitude,status,started_at,completed_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.AssignmentID, e.AssignmentTitle, e.ChecklistID, e.CollaboratorEmail, e.CollaboratorName,
		string(responses), nullable(e.Notes), lat, lng, e.Status, e.StartedAt, nullableStringPtr(e.CompletedAt),
		e.CreatedAt, e.UpdatedAt)
	return err
}

func scanExecution(scan func(dest ...any) error) (domain.Execution, error) {
	var e domain.Execution
	var notes, completedAt sql.NullString
	var lat, lng sql.NullFloat64
	var responsesJSON string
	err := scan(&e.ID, &e.AssignmentID, &e.AssignmentTitle, &e.ChecklistID, &e.CollaboratorEmail, &e.CollaboratorName,
		&responsesJSON, &notes, &lat, &lng, &e.Status, &e.StartedAt, &completedAt, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	if notes.Valid {
		e.Notes = notes.String
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.String
	}
	if lat.Valid && lng.Valid {
		e.Location = &domain.Location{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	if err := json.Unmarshal([]byte(responsesJSON), &e.Responses); err != nil {
		return e, err
	}
	return e, nil
}

func (r Repo) GetExecution(ctx context.Context, id string) (domain.Execution, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE id=?`, id)
	return scanExecution(row.Scan)
}

type ExecutionFilters struct {
	AssignmentID      string
	CollaboratorEmail string
}

func (r Repo) ListExecutions(ctx context.Context, f ExecutionFilters) ([]domain.Execution, error) {
	var clauses []string
	var args []any
	if f.AssignmentID != "" {
		clauses = append(clauses, "assignment_id=?")
		args = append(args, f.AssignmentID)
	}
	if f.CollaboratorEmail != "" {
		clauses = append(clauses, "collaborator_email=?")
		args = append(args, f.CollaboratorEmail)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + executionColumns + ` FROM executions ` + where + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// HasActiveExecution reports whether the assignment already has an
// in-progress execution.
func (r Repo) HasActiveExecution(ctx context.Context, assignmentID string) (bool, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT 1 FROM executions WHERE assignment_id=? AND status='in_progress' LIMIT 1`, assignmentID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) UpdateExecution(ctx context.Context, e domain.Execution) error {
	responses, err := json.Marshal(e.Responses)
	if err != nil {
		return err
	}
	var lat, lng any
	if e.Location != nil {
		lat, lng = e.Location.Latitude, e.Location.Longitude
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE executions SET responses_json=?, notes=?, latitude=?, longitude=?, status=?, updated_at=? WHERE id=?`,
		string(responses), nullable(e.Notes), lat, lng, e.Status, e.UpdatedAt, e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteExecutionTx finalizes an execution as part of the caller's
// transaction.
func (r Repo) CompleteExecutionTx(ctx context.Context, tx *sql.Tx, e domain.Execution) error {
	responses, err := json.Marshal(e.Responses)
	if err != nil {
		return err
	}
	var lat, lng any
	if e.Location != nil {
		lat, lng = e.Location.Latitude, e.Location.Longitude
	}
	res, err := tx.ExecContext(ctx, `UPDATE executions SET responses_json=?, notes=?, latitude=?, longitude=?, status=?, completed_at=?, updated_at=? WHERE id=?`,
		string(responses), nullable(e.Notes), lat, lng, e.Status, nullableStringPtr(e.CompletedAt), e.UpdatedAt, e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
