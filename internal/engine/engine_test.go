package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"checkline/internal/config"
	"checkline/internal/db"
	"checkline/internal/domain"
	"checkline/internal/engine"
	"checkline/internal/migrate"
	"checkline/internal/repo"
)

type testEnv struct {
	engine engine.Engine
	ctx    context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return &testEnv{engine: e, ctx: context.Background()}
}

func (env *testEnv) mustChecklist(t *testing.T) domain.Checklist {
	t.Helper()
	c, err := env.engine.CreateChecklist(env.ctx, engine.ChecklistCreateOptions{
		Title: "Daily safety round",
		Items: []domain.ChecklistItem{
			{ID: "extinguisher", Text: "Fire extinguisher charged", Type: "checkbox"},
			{ID: "exits", Text: "Emergency exits clear", Type: "checkbox"},
			{ID: "remarks", Text: "Remarks", Type: "text"},
		},
		Category:  "safety",
		CreatedBy: "boss@example.com",
	})
	if err != nil {
		t.Fatalf("create checklist: %v", err)
	}
	return c
}

func (env *testEnv) mustAssignment(t *testing.T, checklistID string) domain.Assignment {
	t.Helper()
	a, err := env.engine.CreateAssignment(env.ctx, engine.AssignmentCreateOptions{
		ChecklistID:       checklistID,
		CollaboratorEmail: "worker@example.com",
		Title:             "Morning round, hall B",
		AssignedBy:        "boss@example.com",
	})
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	return a
}

func raw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func TestCreateChecklistValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.CreateChecklist(env.ctx, engine.ChecklistCreateOptions{Title: "No items"})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = env.engine.CreateChecklist(env.ctx, engine.ChecklistCreateOptions{
		Title: "Dup items",
		Items: []domain.ChecklistItem{
			{ID: "a", Text: "one", Type: "checkbox"},
			{ID: "a", Text: "two", Type: "checkbox"},
		},
	})
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for duplicate item ids, got %v", err)
	}

	_, err = env.engine.CreateChecklist(env.ctx, engine.ChecklistCreateOptions{
		Title: "Bad type",
		Items: []domain.ChecklistItem{{ID: "a", Text: "one", Type: "slider"}},
	})
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for unknown item type, got %v", err)
	}
}

func TestCreateChecklistDefaultsCategory(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.engine.CreateChecklist(env.ctx, engine.ChecklistCreateOptions{
		Title: "Untyped",
		Items: []domain.ChecklistItem{{ID: "a", Text: "one", Type: "checkbox"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Category != "general" {
		t.Fatalf("category = %q, want general", c.Category)
	}
}

func TestChecklistUpdateLeavesProvenanceAlone(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustChecklist(t)

	title := "Daily safety round v2"
	got, err := env.engine.UpdateChecklist(env.ctx, c.ID, engine.ChecklistUpdateOptions{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.ID != c.ID || got.CreatedBy != c.CreatedBy || got.CreatedAt != c.CreatedAt {
		t.Fatalf("identity fields changed: %+v", got)
	}
	if got.Title != title {
		t.Fatalf("title = %q, want %q", got.Title, title)
	}
}

func TestCreateAssignmentDefaultsAndSnapshot(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustChecklist(t)
	a := env.mustAssignment(t, c.ID)

	if a.Status != "pending" {
		t.Fatalf("status = %q, want pending", a.Status)
	}
	if a.Priority != "medium" {
		t.Fatalf("priority = %q, want medium", a.Priority)
	}
	if a.CollaboratorName != "worker@example.com" {
		t.Fatalf("collaborator name = %q, want email fallback", a.CollaboratorName)
	}
	if a.ChecklistTitle != c.Title {
		t.Fatalf("checklist title snapshot = %q, want %q", a.ChecklistTitle, c.Title)
	}
}

func TestCreateAssignmentUnknownChecklist(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.CreateAssignment(env.ctx, engine.AssignmentCreateOptions{
		ChecklistID:       "missing",
		CollaboratorEmail: "worker@example.com",
		Title:             "Ghost round",
	})
	var nfe engine.NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	list, err := env.engine.ListAssignments(env.ctx, repo.AssignmentFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no assignments persisted, got %d", len(list))
	}
}

func TestCreateAssignmentRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustChecklist(t)

	var ve engine.ValidationError
	_, err := env.engine.CreateAssignment(env.ctx, engine.AssignmentCreateOptions{
		ChecklistID:       c.ID,
		CollaboratorEmail: "not-an-email",
		Title:             "Bad email",
	})
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for email, got %v", err)
	}

	_, err = env.engine.CreateAssignment(env.ctx, engine.AssignmentCreateOptions{
		ChecklistID:       c.ID,
		CollaboratorEmail: "worker@example.com",
		Title:             "Bad priority",
		Priority:          "urgent",
	})
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for priority, got %v", err)
	}

	_, err = env.engine.CreateAssignment(env.ctx, engine.AssignmentCreateOptions{
		ChecklistID:       c.ID,
		CollaboratorEmail: "worker@example.com",
		Title:             "Past due",
		DueDate:           "2023-06-01",
	})
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for past due date, got %v", err)
	}
}

func TestUpdateAssignmentSkipsPastCheck(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustChecklist(t)
	a := env.mustAssignment(t, c.ID)

	// A due date in the past is accepted on update so overdue work can be
	// backfilled.
	due := "2023-06-01"
	got, err := env.engine.UpdateAssignment(env.ctx, a.ID, engine.AssignmentUpdateOptions{DueDate: &due})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.DueDate == nil || *got.DueDate != "2023-06-01T00:00:00Z" {
		t.Fatalf("due date = %v", got.DueDate)
	}

	bad := "not-a-date"
	_, err = env.engine.UpdateAssignment(env.ctx, a.ID, engine.AssignmentUpdateOptions{DueDate: &bad})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateAssignmentStatusOverride(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustChecklist(t)
	a := env.mustAssignment(t, c.ID)

	status := "reviewed"
	got, err := env.engine.UpdateAssignment(env.ctx, a.ID, engine.AssignmentUpdateOptions{Status: &status})
	if err != nil {
		t.Fatalf("override to reviewed: %v", err)
	}
	if got.Status != "reviewed" {
		t.Fatalf("status = %q", got.Status)
	}

	bogus := "archived"
	_, err = env.engine.UpdateAssignment(env.ctx, a.ID, engine.AssignmentUpdateOptions{Status: &bogus})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestStartExecutionOwnership(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustChecklist(t)
	a := env.mustAssignment(t, c.ID)

	_, err := env.engine.StartExecution(env.ctx, a.ID, "intruder@example.com", "")
	var pe engine.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected permission error, got %v", err)
	}
	list, err := env.engine.ListExecutions(env.ctx, repo.ExecutionFilters{AssignmentID: a.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no executions persisted, got %d", len(list))
	}
	got, _ := env.engine.GetAssignment(env.ctx, a.ID)
	if got.Status != "pending" {
		t.Fatalf("assignment status = %q, want pending", got.Status)
	}
}

func TestStartExecutionSingleActive(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustChecklist(t)
	a := env.mustAssignment(t, c.ID)

	_, err := env.engine.StartExecution(env.ctx, a.ID, "worker@example.com", "Sam")
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	_, err = env.engine.StartExecution(env.ctx, a.ID, "worker@example.com", "Sam")
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict on second start, got %v", err)
	}
}

func TestExecutionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustChecklist(t)
	a := env.mustAssignment(t, c.ID)

	ex, err := env.engine.StartExecution(env.ctx, a.ID, "worker@example.com", "Sam")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if ex.Status != "in_progress" {
		t.Fatalf("execution status = %q", ex.Status)
	}
	if ex.AssignmentTitle != a.Title || ex.ChecklistID != c.ID {
		t.Fatalf("snapshot fields wrong: %+v", ex)
	}
	got, _ := env.engine.GetAssignment(env.ctx, a.ID)
	if got.Status != "in_progress" {
		t.Fatalf("assignment status = %q, want in_progress", got.Status)
	}

	// Partial save mid-round.
	partial := []domain.Response{{ItemID: "extinguisher", Value: raw(true)}}
	notes := "hall B done first"
	ex, err = env.engine.UpdateExecution(env.ctx, ex.ID, engine.ExecutionUpdateOptions{
		Responses: &partial,
		Notes:     &notes,
	}, "worker@example.com")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(ex.Responses) != 1 || ex.Notes != notes {
		t.Fatalf("partial save lost: %+v", ex)
	}

	final := []domain.Response{
		{ItemID: "extinguisher", Value: raw(true)},
		{ItemID: "exits", Value: raw(false)},
		{ItemID: "remarks", Value: raw("")},
	}
	lat, lng := 48.8566, 2.3522
	ex, err = env.engine.CompleteExecution(env.ctx, ex.ID, engine.ExecutionCompleteOptions{
		Responses: &final,
		Location:  &engine.LocationPatch{Latitude: &lat, Longitude: &lng},
	}, "worker@example.com")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if ex.Status != "completed" || ex.CompletedAt == nil {
		t.Fatalf("completion state wrong: %+v", ex)
	}
	if ex.Location == nil || ex.Location.Latitude != lat {
		t.Fatalf("location lost: %+v", ex.Location)
	}
	got, _ = env.engine.GetAssignment(env.ctx, a.ID)
	if got.Status != "completed" {
		t.Fatalf("assignment status = %q, want completed", got.Status)
	}

	// Round-trip through storage keeps falsy values as answers.
	stored, err := env.engine.GetExecution(env.ctx, ex.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(stored.Responses) != 3 {
		t.Fatalf("responses = %d, want 3", len(stored.Responses))
	}
	if string(stored.Responses[1].Value) != "false" || string(stored.Responses[2].Value) != `""` {
		t.Fatalf("falsy values mangled: %v %v", string(stored.Responses[1].Value), string(stored.Responses[2].Value))
	}

	_, err = env.engine.CompleteExecution(env.ctx, ex.ID, engine.ExecutionCompleteOptions{
		Responses: &final,
	}, "worker@example.com")
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict on double complete, got %v", err)
	}
	_, err = env.engine.UpdateExecution(env.ctx, ex.ID, engine.ExecutionUpdateOptions{Notes: &notes}, "worker@example.com")
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict updating completed execution, got %v", err)
	}
}

func TestStartExecutionOnCompletedAssignment(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustChecklist(t)
	a := env.mustAssignment(t, c.ID)

	ex, err := env.engine.StartExecution(env.ctx, a.ID, "worker@example.com", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	responses := []domain.Response{}
	if _, err := env.engine.CompleteExecution(env.ctx, ex.ID, engine.ExecutionCompleteOptions{Responses: &responses}, "worker@example.com"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = env.engine.StartExecution(env.ctx, a.ID, "worker@example.com", "")
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict starting completed assignment, got %v", err)
	}
}

func TestCompleteExecutionRequiresResponses(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustChecklist(t)
	a := env.mustAssignment(t, c.ID)

	ex, err := env.engine.StartExecution(env.ctx, a.ID, "worker@example.com", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err = env.engine.CompleteExecution(env.ctx, ex.ID, engine.ExecutionCompleteOptions{}, "worker@example.com")
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for missing responses, got %v", err)
	}

	// An empty list is a deliberate answer and passes.
	empty := []domain.Response{}
	if _, err := env.engine.CompleteExecution(env.ctx, ex.ID, engine.ExecutionCompleteOptions{Responses: &empty}, "worker@example.com"); err != nil {
		t.Fatalf("complete with empty responses: %v", err)
	}
}

func TestUpdateExecutionStatusOverride(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustChecklist(t)
	a := env.mustAssignment(t, c.ID)

	ex, err := env.engine.StartExecution(env.ctx, a.ID, "worker@example.com", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	bogus := "archived"
	_, err = env.engine.UpdateExecution(env.ctx, ex.ID, engine.ExecutionUpdateOptions{Status: &bogus}, "worker@example.com")
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}

	status := "reviewed"
	got, err := env.engine.UpdateExecution(env.ctx, ex.ID, engine.ExecutionUpdateOptions{Status: &status}, "worker@example.com")
	if err != nil {
		t.Fatalf("override to reviewed: %v", err)
	}
	if got.Status != "reviewed" {
		t.Fatalf("status = %q, want reviewed", got.Status)
	}
	stored, err := env.engine.GetExecution(env.ctx, ex.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != "reviewed" {
		t.Fatalf("stored status = %q, want reviewed", stored.Status)
	}

	// A reviewed execution is closed to further edits, like a completed one.
	notes := "too late"
	_, err = env.engine.UpdateExecution(env.ctx, ex.ID, engine.ExecutionUpdateOptions{Notes: &notes}, "worker@example.com")
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict updating reviewed execution, got %v", err)
	}
}

func TestUpdateExecutionRejectsBadShapes(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustChecklist(t)
	a := env.mustAssignment(t, c.ID)

	ex, err := env.engine.StartExecution(env.ctx, a.ID, "worker@example.com", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	var ve engine.ValidationError
	missingValue := []domain.Response{{ItemID: "extinguisher"}}
	_, err = env.engine.UpdateExecution(env.ctx, ex.ID, engine.ExecutionUpdateOptions{Responses: &missingValue}, "worker@example.com")
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for missing value, got %v", err)
	}

	lat := 48.8566
	_, err = env.engine.UpdateExecution(env.ctx, ex.ID, engine.ExecutionUpdateOptions{
		Location: &engine.LocationPatch{Latitude: &lat},
	}, "worker@example.com")
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for half a location, got %v", err)
	}

	var pe engine.PermissionError
	notes := "drive-by"
	_, err = env.engine.UpdateExecution(env.ctx, ex.ID, engine.ExecutionUpdateOptions{Notes: &notes}, "intruder@example.com")
	if !errors.As(err, &pe) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestDeleteReportsMissing(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustChecklist(t)
	a := env.mustAssignment(t, c.ID)

	if err := env.engine.DeleteAssignment(env.ctx, a.ID); err != nil {
		t.Fatalf("delete assignment: %v", err)
	}
	_, err := env.engine.GetAssignment(env.ctx, a.ID)
	var nfe engine.NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := env.engine.DeleteAssignment(env.ctx, a.ID); !errors.As(err, &nfe) {
		t.Fatalf("expected not found on double delete, got %v", err)
	}

	if err := env.engine.DeleteChecklist(env.ctx, c.ID); err != nil {
		t.Fatalf("delete checklist: %v", err)
	}
	if _, err := env.engine.GetChecklist(env.ctx, c.ID); !errors.As(err, &nfe) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
