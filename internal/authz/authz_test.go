package authz

import (
	"errors"
	"testing"

	"taskdeck/internal/domain"
)

func testTask() domain.Task {
	return domain.Task{
		ID:        "t1",
		TeamID:    "team-1",
		CreatorID: "creator",
		Assignments: []domain.Assignment{
			{UserID: "worker", Role: domain.AssignmentAssignee},
			{UserID: "helper", Role: domain.AssignmentPartner},
			{UserID: "watcher", Role: domain.AssignmentNotified},
		},
	}
}

func TestLevelForCreator(t *testing.T) {
	u := domain.User{ID: "creator", Role: domain.RoleEmployee, TeamID: "team-1"}
	if got := LevelFor(u, testTask()); got != Full {
		t.Fatalf("creator should be full, got %s", got)
	}
}

func TestLevelForTeamManager(t *testing.T) {
	u := domain.User{ID: "boss", Role: domain.RoleManager, TeamID: "team-1"}
	if got := LevelFor(u, testTask()); got != Full {
		t.Fatalf("team manager should be full, got %s", got)
	}
}

func TestLevelForOtherTeamManager(t *testing.T) {
	u := domain.User{ID: "boss", Role: domain.RoleManager, TeamID: "team-2"}
	if got := LevelFor(u, testTask()); got != None {
		t.Fatalf("manager of another team should be none, got %s", got)
	}
}

func TestLevelForAssigneeAndPartner(t *testing.T) {
	for _, id := range []string{"worker", "helper"} {
		u := domain.User{ID: id, Role: domain.RoleEmployee, TeamID: "team-1"}
		if got := LevelFor(u, testTask()); got != Self {
			t.Fatalf("%s should be self, got %s", id, got)
		}
	}
}

func TestLevelForNotifiedIsNone(t *testing.T) {
	u := domain.User{ID: "watcher", Role: domain.RoleEmployee, TeamID: "team-1"}
	if got := LevelFor(u, testTask()); got != None {
		t.Fatalf("notified user should be none, got %s", got)
	}
}

func TestSelfAllowList(t *testing.T) {
	if !FieldAllowed(Self, FieldStatus) || !FieldAllowed(Self, FieldOwnActualLabor) {
		t.Fatalf("self must allow status and own actual labor")
	}
	for _, f := range []string{FieldDescription, FieldPriority, FieldPlannedLabor, FieldAssignments, FieldTeamID, FieldRoadmap} {
		if FieldAllowed(Self, f) {
			t.Fatalf("self must not allow %s", f)
		}
	}
}

func TestCheckFieldsReportsFirstDenied(t *testing.T) {
	err := CheckFields(Self, []string{FieldStatus, FieldPriority, FieldDescription})
	var perr PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
	if perr.Field != FieldPriority {
		t.Fatalf("expected first denied field priority, got %s", perr.Field)
	}
}

func TestCheckFieldsNone(t *testing.T) {
	if err := CheckFields(None, nil); err == nil {
		t.Fatalf("none level must always be rejected")
	}
}
