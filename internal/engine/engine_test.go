package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"taskdeck/internal/authz"
	"taskdeck/internal/config"
	"taskdeck/internal/db"
	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
	"taskdeck/internal/history"
	"taskdeck/internal/migrate"
	"taskdeck/internal/repo"
	"taskdeck/internal/validate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	if err := eng.Repo.InsertTeam(ctx, domain.Team{ID: "team-1", Name: "Platform", CreatedAt: "2025-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("seed team: %v", err)
	}
	if err := eng.Repo.InsertTeam(ctx, domain.Team{ID: "team-2", Name: "Design", CreatedAt: "2025-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("seed team: %v", err)
	}
	seed := []domain.User{
		{ID: "mgr", Name: "Maya", Email: "maya@example.com", Role: domain.RoleManager, TeamID: "team-1"},
		{ID: "emp-1", Name: "Evan", Email: "evan@example.com", Role: domain.RoleEmployee, TeamID: "team-1"},
		{ID: "emp-2", Name: "Rita", Email: "rita@example.com", Role: domain.RoleEmployee, TeamID: "team-1"},
		{ID: "outsider", Name: "Omar", Email: "omar@example.com", Role: domain.RoleManager, TeamID: "team-2"},
	}
	for _, u := range seed {
		u.CreatedAt = "2025-01-01T00:00:00Z"
		if err := eng.Repo.InsertUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func roadmap() string {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "step %d\n", i+1)
	}
	return b.String()
}

func createOpts() engine.TaskCreateOptions {
	return engine.TaskCreateOptions{
		Description:  "ship the quarterly report",
		Priority:     domain.PriorityHigh,
		Status:       domain.StatusInProgress,
		StartDate:    "2025-03-10",
		PlannedLabor: 8,
		WorkSize:     3,
		Roadmap:      roadmap(),
		Assignments: []domain.Assignment{
			{UserID: "emp-1", Role: domain.AssignmentAssignee, PlannedLabor: 6},
			{UserID: "emp-2", Role: domain.AssignmentPartner, PlannedLabor: 2},
		},
		ActorID: "mgr",
	}
}

func TestCreateTaskPersistsRosterAndHistory(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, createOpts())
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	got, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.TeamID != "team-1" {
		t.Fatalf("expected creator's team inherited, got %q", got.TeamID)
	}
	if len(got.Assignments) != 2 || got.Assignee() == nil || got.Assignee().UserID != "emp-1" {
		t.Fatalf("unexpected roster %+v", got.Assignments)
	}
	entries, err := env.Engine.Repo.ListTaskHistory(env.Ctx, task.ID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != history.KindCreated {
		t.Fatalf("expected one created entry, got %+v", entries)
	}
}

func TestCreateTaskRejectsInvalidRoster(t *testing.T) {
	env := newTestEnv(t)
	opts := createOpts()
	opts.Assignments = append(opts.Assignments,
		domain.Assignment{UserID: "emp-2", Role: domain.AssignmentAssignee, PlannedLabor: 1})
	_, err := env.Engine.CreateTask(env.Ctx, opts)
	var v *validate.Violation
	if !errors.As(err, &v) || v.Code != validate.CodeSingleAssignee {
		t.Fatalf("expected single_assignee violation, got %v", err)
	}
}

func TestCreateTaskRejectsShortRoadmap(t *testing.T) {
	env := newTestEnv(t)
	opts := createOpts()
	opts.Roadmap = "one line"
	_, err := env.Engine.CreateTask(env.Ctx, opts)
	var v *validate.Violation
	if !errors.As(err, &v) || v.Code != validate.CodeRoadmapTooShort {
		t.Fatalf("expected roadmap_too_short violation, got %v", err)
	}
}

func TestUpdateTaskFullAccess(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, createOpts())
	if err != nil {
		t.Fatal(err)
	}
	priority := domain.PriorityLow
	got, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID:       task.ID,
		Priority: &priority,
		Note:     "descoped after planning",
		ActorID:  "mgr",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Priority != domain.PriorityLow {
		t.Fatalf("priority not updated: %q", got.Priority)
	}
	entries, _ := env.Engine.Repo.ListTaskHistory(env.Ctx, task.ID, 0)
	if len(entries) != 2 || entries[0].Note != "descoped after planning" {
		t.Fatalf("expected update history with note, got %+v", entries)
	}
}

func TestUpdateTaskSelfAllowsStatusOnly(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, createOpts())
	if err != nil {
		t.Fatal(err)
	}
	status := domain.StatusPaused
	got, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID:      task.ID,
		Status:  &status,
		Note:    "waiting on review",
		ActorID: "emp-1",
	})
	if err != nil {
		t.Fatalf("assignee status update: %v", err)
	}
	if got.Status != domain.StatusPaused {
		t.Fatalf("status not updated: %q", got.Status)
	}
	priority := domain.PriorityLow
	_, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID:       task.ID,
		Priority: &priority,
		Note:     "trying it on",
		ActorID:  "emp-2",
	})
	var perm authz.PermissionError
	if !errors.As(err, &perm) || perm.Field != authz.FieldPriority {
		t.Fatalf("expected priority permission error, got %v", err)
	}
}

func TestUpdateTaskDeniedForOutsider(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, createOpts())
	if err != nil {
		t.Fatal(err)
	}
	status := domain.StatusPaused
	_, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID:      task.ID,
		Status:  &status,
		Note:    "should not work",
		ActorID: "outsider",
	})
	var perm authz.PermissionError
	if !errors.As(err, &perm) || perm.Level != authz.None {
		t.Fatalf("expected none-level denial, got %v", err)
	}
}

func TestUpdateTaskRequiresNote(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, createOpts())
	if err != nil {
		t.Fatal(err)
	}
	status := domain.StatusPaused
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID:      task.ID,
		Status:  &status,
		ActorID: "mgr",
	}); err == nil {
		t.Fatal("expected missing-note error")
	}
}

func TestUpdateTaskNoChangesIsNoop(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, createOpts())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, ActorID: "mgr"}); err != nil {
		t.Fatalf("no-op update should pass without a note: %v", err)
	}
	entries, _ := env.Engine.Repo.ListTaskHistory(env.Ctx, task.ID, 0)
	if len(entries) != 1 {
		t.Fatalf("no-op update must not append history, got %d entries", len(entries))
	}
}

func TestLogEffortSumsOntoTask(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, createOpts())
	if err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.LogEffort(env.Ctx, engine.EffortOptions{
		TaskID: task.ID, ActorID: "emp-1", ActualLabor: 4,
	})
	if err != nil {
		t.Fatalf("log effort: %v", err)
	}
	if got.ActualLabor != 4 {
		t.Fatalf("task actual labor not rolled up: %v", got.ActualLabor)
	}
	got, err = env.Engine.LogEffort(env.Ctx, engine.EffortOptions{
		TaskID: task.ID, ActorID: "emp-2", ActualLabor: 1.5,
	})
	if err != nil {
		t.Fatalf("partner effort: %v", err)
	}
	if got.ActualLabor != 5.5 {
		t.Fatalf("expected 5.5 total, got %v", got.ActualLabor)
	}
	a := got.AssignmentFor("emp-1")
	if a == nil || a.ActualLabor != 4 || a.Version != 1 {
		t.Fatalf("unexpected assignment row %+v", a)
	}
}

func TestLogEffortVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, createOpts())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.LogEffort(env.Ctx, engine.EffortOptions{
		TaskID: task.ID, ActorID: "emp-1", ActualLabor: 2,
	}); err != nil {
		t.Fatal(err)
	}
	stale := int64(0)
	_, err = env.Engine.LogEffort(env.Ctx, engine.EffortOptions{
		TaskID: task.ID, ActorID: "emp-1", ActualLabor: 3, ExpectedVersion: &stale,
	})
	if !errors.Is(err, repo.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestDeleteTaskRequiresFull(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, createOpts())
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteTask(env.Ctx, task.ID, "emp-1"); err == nil {
		t.Fatal("assignee must not delete the task")
	}
	if err := env.Engine.DeleteTask(env.Ctx, task.ID, "mgr"); err != nil {
		t.Fatalf("manager delete: %v", err)
	}
	if _, err := env.Engine.Repo.GetTask(env.Ctx, task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestOptimizeTeamProducesPlanPerMember(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateTask(env.Ctx, createOpts()); err != nil {
		t.Fatal(err)
	}
	second := createOpts()
	second.Description = "retire the legacy exporter"
	second.Priority = domain.PriorityLow
	second.StartDate = "2025-03-12"
	second.Assignments = []domain.Assignment{
		{UserID: "emp-2", Role: domain.AssignmentAssignee, PlannedLabor: 5},
	}
	if _, err := env.Engine.CreateTask(env.Ctx, second); err != nil {
		t.Fatal(err)
	}
	out, err := env.Engine.Optimize(env.Ctx, engine.OptimizeOptions{TeamID: "team-1"})
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if len(out.Plans) != 3 {
		t.Fatalf("expected a plan per member, got %d", len(out.Plans))
	}
	byUser := map[string]engine.UserPlan{}
	for _, p := range out.Plans {
		byUser[p.User.ID] = p
	}
	if n := len(byUser["emp-1"].Result.OrderedTasks); n != 1 {
		t.Fatalf("emp-1 should see 1 task, got %d", n)
	}
	if n := len(byUser["emp-2"].Result.OrderedTasks); n != 2 {
		t.Fatalf("emp-2 is on both tasks, got %d", n)
	}
	if n := len(byUser["mgr"].Result.OrderedTasks); n != 0 {
		t.Fatalf("mgr has no assignments, got %d", n)
	}
}

func TestOptimizeRejectsAmbiguousScope(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.Optimize(env.Ctx, engine.OptimizeOptions{}); err == nil {
		t.Fatal("expected scope error")
	}
	if _, err := env.Engine.Optimize(env.Ctx, engine.OptimizeOptions{UserID: "emp-1", TeamID: "team-1"}); err == nil {
		t.Fatal("expected scope error")
	}
}

func TestTeamPerformance(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, createOpts())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.LogEffort(env.Ctx, engine.EffortOptions{TaskID: task.ID, ActorID: "emp-1", ActualLabor: 4}); err != nil {
		t.Fatal(err)
	}
	stats, err := env.Engine.TeamPerformance(env.Ctx, "team-1")
	if err != nil {
		t.Fatalf("team performance: %v", err)
	}
	byUser := map[string]engine.MemberStats{}
	for _, s := range stats {
		byUser[s.User.ID] = s
	}
	if s := byUser["emp-1"]; s.TaskCount != 1 || s.PlannedLabor != 6 || s.ActualLabor != 4 {
		t.Fatalf("unexpected emp-1 stats %+v", s)
	}
	if s := byUser["mgr"]; s.TaskCount != 0 {
		t.Fatalf("mgr should have no assigned tasks, got %+v", s)
	}
}
