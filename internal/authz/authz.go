// Package authz decides what a user may do to a task. Levels are
// recomputed per (user, task) pair and never stored.
package authz

import (
	"fmt"

	"taskdeck/internal/domain"
)

// Level is the permission granted to a user on one task.
type Level string

const (
	// Full: the task's creator, or a manager of the task's team. May
	// mutate every field and replace the assignment roster.
	Full Level = "full"
	// Self: holds an assignee or partner assignment. May mutate only
	// the task status and their own assignment's actual labor.
	Self Level = "self"
	// None: no access; no draft may even be constructed.
	None Level = "none"
)

// PermissionError reports a denied mutation.
type PermissionError struct {
	Level Level
	Field string
}

func (e PermissionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("permission %s does not allow editing %s", e.Level, e.Field)
	}
	return "no permission to modify this task"
}

// LevelFor computes the permission level of user on task.
func LevelFor(user domain.User, task domain.Task) Level {
	if task.CreatorID == user.ID {
		return Full
	}
	if user.Role == domain.RoleManager && user.TeamID != "" && user.TeamID == task.TeamID {
		return Full
	}
	if task.AssignmentFor(user.ID) != nil {
		return Self
	}
	return None
}

// Mutable task fields, named as they appear on the wire.
const (
	FieldDescription    = "description"
	FieldPriority       = "priority"
	FieldStatus         = "status"
	FieldStartDate      = "start_date"
	FieldCompletionDate = "completion_date"
	FieldPlannedLabor   = "planned_labor"
	FieldWorkSize       = "work_size"
	FieldRoadmap        = "roadmap"
	FieldTeamID         = "team_id"
	FieldAssignments    = "assignees"
	FieldOwnActualLabor = "own_actual_labor"
)

// allowedFields is the single place the permission-to-field mapping
// lives; mutation paths consult it instead of scattering per-field
// checks.
var allowedFields = map[Level]map[string]bool{
	Full: {
		FieldDescription:    true,
		FieldPriority:       true,
		FieldStatus:         true,
		FieldStartDate:      true,
		FieldCompletionDate: true,
		FieldPlannedLabor:   true,
		FieldWorkSize:       true,
		FieldRoadmap:        true,
		FieldTeamID:         true,
		FieldAssignments:    true,
		FieldOwnActualLabor: true,
	},
	Self: {
		FieldStatus:         true,
		FieldOwnActualLabor: true,
	},
	None: {},
}

// FieldAllowed reports whether level may touch field.
func FieldAllowed(level Level, field string) bool {
	return allowedFields[level][field]
}

// CheckFields returns a PermissionError naming the first field the
// level may not touch. Fields are checked in the order supplied so
// rejections are reproducible.
func CheckFields(level Level, fields []string) error {
	if level == None {
		return PermissionError{Level: level}
	}
	for _, f := range fields {
		if !FieldAllowed(level, f) {
			return PermissionError{Level: level, Field: f}
		}
	}
	return nil
}
