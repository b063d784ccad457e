package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"checkline/internal/domain"
	"checkline/internal/repo"
	"checkline/internal/validate"
)

// ChecklistCreateOptions are parameters for creating a checklist template.
type ChecklistCreateOptions struct {
	Title       string
	Description string
	Items       []domain.ChecklistItem
	Category    string
	CreatedBy   string
}

func (e Engine) CreateChecklist(ctx context.Context, opts ChecklistCreateOptions) (domain.Checklist, error) {
	if opts.Title == "" || len(opts.Items) == 0 {
		return domain.Checklist{}, ValidationError{"title and a non-empty items list are required"}
	}
	if err := e.checkItems(opts.Items); err != nil {
		return domain.Checklist{}, err
	}
	category := opts.Category
	if category == "" {
		category = e.defaultCategory()
	}
	if e.Config != nil && !e.Config.KnownCategory(category) {
		return domain.Checklist{}, ValidationError{fmt.Sprintf("unknown category %s", category)}
	}
	now := e.nowString()
	c := domain.Checklist{
		ID:          uuid.New().String(),
		Title:       opts.Title,
		Description: opts.Description,
		Items:       opts.Items,
		Category:    category,
		CreatedBy:   opts.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertChecklist(ctx, c); err != nil {
		return domain.Checklist{}, err
	}
	return c, nil
}

// ChecklistUpdateOptions encapsulates allowed updates. ID, CreatedBy and
// CreatedAt are not part of it on purpose.
type ChecklistUpdateOptions struct {
	Title       *string
	Description *string
	Items       []domain.ChecklistItem
	Category    *string
}

func (e Engine) UpdateChecklist(ctx context.Context, id string, opts ChecklistUpdateOptions) (domain.Checklist, error) {
	c, err := e.Repo.GetChecklist(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return c, NotFoundError{"checklist not found"}
		}
		return c, err
	}
	if opts.Title != nil {
		c.Title = *opts.Title
	}
	if opts.Description != nil {
		c.Description = *opts.Description
	}
	if opts.Items != nil {
		if err := e.checkItems(opts.Items); err != nil {
			return c, err
		}
		c.Items = opts.Items
	}
	if opts.Category != nil {
		if e.Config != nil && !e.Config.KnownCategory(*opts.Category) {
			return c, ValidationError{fmt.Sprintf("unknown category %s", *opts.Category)}
		}
		c.Category = *opts.Category
	}
	c.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateChecklist(ctx, c); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return c, NotFoundError{"checklist not found"}
		}
		return c, err
	}
	return c, nil
}

func (e Engine) GetChecklist(ctx context.Context, id string) (domain.Checklist, error) {
	c, err := e.Repo.GetChecklist(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return c, NotFoundError{"checklist not found"}
	}
	return c, err
}

func (e Engine) ListChecklists(ctx context.Context, f repo.ChecklistFilters) ([]domain.Checklist, error) {
	return e.Repo.ListChecklists(ctx, f)
}

func (e Engine) DeleteChecklist(ctx context.Context, id string) error {
	err := e.Repo.DeleteChecklist(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError{"checklist not found"}
	}
	return err
}

func (e Engine) checkItems(items []domain.ChecklistItem) error {
	if len(items) == 0 {
		return ValidationError{"items must be a non-empty list"}
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if !validate.Item(it) {
			return ValidationError{"each item needs id, text and a type of checkbox, text, number or select"}
		}
		if seen[it.ID] {
			return ValidationError{fmt.Sprintf("duplicate item id %s", it.ID)}
		}
		seen[it.ID] = true
	}
	return nil
}
