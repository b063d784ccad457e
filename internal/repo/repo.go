package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"checkline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertChecklist(ctx context.Context, c domain.Checklist) error {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO checklists(id,title,description,items_json,category,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.Title, nullable(c.Description), string(items), c.Category, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetChecklist(ctx context.Context, id string) (domain.Checklist, error) {
	var c domain.Checklist
	var description sql.NullString
	var itemsJSON string
	err := r.DB.QueryRowContext(ctx, `SELECT id,title,description,items_json,category,created_by,created_at,updated_at FROM checklists WHERE id=?`, id).
		Scan(&c.ID, &c.Title, &description, &itemsJSON, &c.Category, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if description.Valid {
		c.Description = description.String
	}
	if err := json.Unmarshal([]byte(itemsJSON), &c.Items); err != nil {
		return c, err
	}
	return c, nil
}

type ChecklistFilters struct {
	Title    string
	Category string
}

func (r Repo) ListChecklists(ctx context.Context, f ChecklistFilters) ([]domain.Checklist, error) {
	var clauses []string
	var args []any
	if f.Title != "" {
		clauses = append(clauses, "title LIKE ? COLLATE NOCASE")
		args = append(args, "%"+f.Title+"%")
	}
	if f.Category != "" {
		clauses = append(clauses, "category LIKE ? COLLATE NOCASE")
		args = append(args, "%"+f.Category+"%")
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,title,description,items_json,category,created_by,created_at,updated_at FROM checklists ` + where + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Checklist
	for rows.Next() {
		var c domain.Checklist
		var description sql.NullString
		var itemsJSON string
		if err := rows.Scan(&c.ID, &c.Title, &description, &itemsJSON, &c.Category, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			c.Description = description.String
		}
		if err := json.Unmarshal([]byte(itemsJSON), &c.Items); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateChecklist(ctx context.Context, c domain.Checklist) error {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE checklists SET title=?, description=?, items_json=?, category=?, updated_at=? WHERE id=?`,
		c.Title, nullable(c.Description), string(items), c.Category, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteChecklist(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM checklists WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
