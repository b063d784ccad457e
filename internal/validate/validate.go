// Package validate holds the pure predicates shared by the assignment and
// execution state machines. Each returns pass/fail; callers decide which
// error kind a failure maps to.
package validate

import (
	"regexp"
	"time"

	"checkline/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	priorities         = []string{"low", "medium", "high"}
	assignmentStatuses = []string{"pending", "in_progress", "completed", "reviewed"}
	executionStatuses  = []string{"in_progress", "completed", "reviewed"}
	itemTypes          = []string{"checkbox", "text", "number", "select"}
	roles              = []string{"supervisor", "collaborator"}
)

func Email(s string) bool {
	return emailPattern.MatchString(s)
}

func Priority(s string) bool {
	return member(priorities, s)
}

func AssignmentStatus(s string) bool {
	return member(assignmentStatuses, s)
}

func ExecutionStatus(s string) bool {
	return member(executionStatuses, s)
}

func ItemType(s string) bool {
	return member(itemTypes, s)
}

func Role(s string) bool {
	return member(roles, s)
}

// Date parses s as RFC3339 or a bare calendar date.
func Date(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Past reports whether t is strictly before now.
func Past(t, now time.Time) bool {
	return t.Before(now)
}

// ResponseShape checks that a response carries an item id and a present
// value. A value of false, 0, "" or null is present; a missing field is not.
func ResponseShape(r domain.Response) bool {
	return r.ItemID != "" && len(r.Value) > 0
}

// Responses checks every entry of a response sequence.
func Responses(rs []domain.Response) bool {
	for _, r := range rs {
		if !ResponseShape(r) {
			return false
		}
	}
	return true
}

// LocationShape requires both coordinates.
func LocationShape(latitude, longitude *float64) bool {
	return latitude != nil && longitude != nil
}

// Item checks a checklist item's shape. Sequence-level rules (non-empty
// list, unique ids) live with the checklist logic, which needs per-item
// error messages.
func Item(it domain.ChecklistItem) bool {
	return it.ID != "" && it.Text != "" && ItemType(it.Type)
}

func member(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
