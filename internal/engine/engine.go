package engine

import (
	"database/sql"
	"time"

	"checkline/internal/config"
	"checkline/internal/repo"
)

// Engine owns the assignment/execution lifecycle rules. Cross-entity
// integrity lives here; the storage layer enforces nothing beyond the
// single-active-execution index.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) defaultPriority() string {
	if e.Config != nil && e.Config.Defaults.Priority != "" {
		return e.Config.Defaults.Priority
	}
	return "medium"
}

func (e Engine) defaultCategory() string {
	if e.Config != nil && e.Config.Defaults.Category != "" {
		return e.Config.Defaults.Category
	}
	return "general"
}
