package repo

import (
	"context"
	"database/sql"
	"strings"

	"checkline/internal/domain"
)

func (r Repo) InsertAssignment(ctx context.Context, a domain.Assignment) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO assignments(id,checklist_id,checklist_title,collaborator_email,collaborator_name,title,description,due_date,priority,status,assigned_by,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.ChecklistID, a.ChecklistTitle, a.CollaboratorEmail, a.CollaboratorName, a.Title, nullable(a.Description),
		nullableStringPtr(a.DueDate), a.Priority, a.Status, a.AssignedBy, a.CreatedAt, a.UpdatedAt)
	return err
}

func scanAssignment(scan func(dest ...any) error) (domain.Assignment, error) {
	var a domain.Assignment
	var description, dueDate sql.NullString
	err := scan(&a.ID, &a.ChecklistID, &a.ChecklistTitle, &a.CollaboratorEmail, &a.CollaboratorName, &a.Title,
		&description, &dueDate, &a.Priority, &a.Status, &a.AssignedBy, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if description.Valid {
		a.Description = description.String
	}
	if dueDate.Valid {
		a.DueDate = &dueDate.String
	}
	return a, nil
}

const assignmentColumns = `id,checklist_id,checklist_title,collaborator_email,collaborator_name,title,description,due_date,priority,status,assigned_by,created_at,updated_at`

func (r Repo) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id=?`, id)
	return scanAssignment(row.Scan)
}

type AssignmentFilters struct {
	CollaboratorEmail string
	Status            string
}

func (r Repo) ListAssignments(ctx context.Context, f AssignmentFilters) ([]domain.Assignment, error) {
	var clauses []string
	var args []any
	if f.CollaboratorEmail != "" {
		clauses = append(clauses, "collaborator_email=?")
		args = append(args, f.CollaboratorEmail)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + assignmentColumns + ` FROM assignments ` + where + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) UpdateAssignment(ctx context.Context, a domain.Assignment) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE assignments SET collaborator_email=?, collaborator_name=?, title=?, description=?, due_date=?, priority=?, status=?, updated_at=? WHERE id=?`,
		a.CollaboratorEmail, a.CollaboratorName, a.Title, nullable(a.Description), nullableStringPtr(a.DueDate),
		a.Priority, a.Status, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAssignmentStatusTx pushes the execution-driven status transition as
// part of the caller's transaction.
func (r Repo) UpdateAssignmentStatusTx(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE assignments SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteAssignment(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM assignments WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
