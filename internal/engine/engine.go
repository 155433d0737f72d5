// Package engine is the service layer: it loads state through the
// repo, runs authorization and invariant checks, and commits every
// mutation together with its history entry in one transaction.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskdeck/internal/authz"
	"taskdeck/internal/config"
	"taskdeck/internal/domain"
	"taskdeck/internal/history"
	"taskdeck/internal/repo"
	"taskdeck/internal/validate"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	History history.Writer
	Config  *config.Config
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		History: history.Writer{DB: db},
		Config:  cfg,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID             string
	Description    string
	Priority       string
	Status         string
	StartDate      string
	CompletionDate string
	PlannedLabor   float64
	WorkSize       float64
	Roadmap        string
	TeamID         string
	Assignments    []domain.Assignment
	ActorID        string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Description == "" {
		return domain.Task{}, errors.New("description is required")
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	if opts.Status == "" {
		opts.Status = domain.StatusNotStarted
	}
	if !domain.ValidPriority(opts.Priority) {
		return domain.Task{}, fmt.Errorf("unknown priority %q", opts.Priority)
	}
	if !domain.ValidStatus(opts.Status) {
		return domain.Task{}, fmt.Errorf("unknown status %q", opts.Status)
	}
	creator, err := e.Repo.GetUser(ctx, opts.ActorID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("load creator: %w", err)
	}
	teamID := opts.TeamID
	if teamID == "" {
		teamID = creator.TeamID
	}
	id := opts.ID
	now := e.nowRFC3339()
	if id == "" {
		id = uuid.NewString()
	}
	t := domain.Task{
		ID:             id,
		Description:    opts.Description,
		Priority:       opts.Priority,
		Status:         opts.Status,
		StartDate:      opts.StartDate,
		CompletionDate: opts.CompletionDate,
		PlannedLabor:   opts.PlannedLabor,
		WorkSize:       opts.WorkSize,
		Roadmap:        opts.Roadmap,
		TeamID:         teamID,
		CreatorID:      creator.ID,
		Assignments:    normalizeRoster(id, opts.Assignments),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if v := validate.Check(validate.Draft{
		Task:        t,
		CreatorID:   creator.ID,
		CreatorRole: creator.Role,
		AtCreation:  true,
	}); v != nil {
		return domain.Task{}, v
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.History.Append(ctx, tx, history.KindCreated, t.ID, creator.ID, "", history.Payload{
		"description": t.Description,
		"priority":    t.Priority,
		"status":      t.Status,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func normalizeRoster(taskID string, roster []domain.Assignment) []domain.Assignment {
	out := make([]domain.Assignment, len(roster))
	for i, a := range roster {
		a.TaskID = taskID
		out[i] = a
	}
	return out
}

// TaskUpdateOptions carries a partial update: nil pointers leave the
// field alone. Note is the caller's history note for the audit trail
// and is required when anything actually changes.
type TaskUpdateOptions struct {
	ID             string
	Description    *string
	Priority       *string
	Status         *string
	StartDate      *string
	CompletionDate *string
	PlannedLabor   *float64
	WorkSize       *float64
	Roadmap        *string
	TeamID         *string
	Assignments    []domain.Assignment
	Note           string
	ActorID        string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return t, err
	}
	actor, err := e.Repo.GetUser(ctx, opts.ActorID)
	if err != nil {
		return t, fmt.Errorf("load actor: %w", err)
	}
	level := authz.LevelFor(actor, t)

	var changed []string
	apply := func(field string, dst *string, src *string) {
		if src != nil && *src != *dst {
			changed = append(changed, field)
			*dst = *src
		}
	}
	applyF := func(field string, dst *float64, src *float64) {
		if src != nil && *src != *dst {
			changed = append(changed, field)
			*dst = *src
		}
	}
	apply(authz.FieldDescription, &t.Description, opts.Description)
	apply(authz.FieldPriority, &t.Priority, opts.Priority)
	apply(authz.FieldStatus, &t.Status, opts.Status)
	apply(authz.FieldStartDate, &t.StartDate, opts.StartDate)
	apply(authz.FieldCompletionDate, &t.CompletionDate, opts.CompletionDate)
	applyF(authz.FieldPlannedLabor, &t.PlannedLabor, opts.PlannedLabor)
	applyF(authz.FieldWorkSize, &t.WorkSize, opts.WorkSize)
	apply(authz.FieldRoadmap, &t.Roadmap, opts.Roadmap)
	apply(authz.FieldTeamID, &t.TeamID, opts.TeamID)
	if opts.Assignments != nil {
		changed = append(changed, authz.FieldAssignments)
		t.Assignments = normalizeRoster(t.ID, opts.Assignments)
	}
	if len(changed) == 0 {
		return t, nil
	}
	if err := authz.CheckFields(level, changed); err != nil {
		return t, err
	}
	if opts.Note == "" {
		return t, errors.New("a history note is required when updating a task")
	}
	if opts.Priority != nil && !domain.ValidPriority(t.Priority) {
		return t, fmt.Errorf("unknown priority %q", t.Priority)
	}
	if opts.Status != nil && !domain.ValidStatus(t.Status) {
		return t, fmt.Errorf("unknown status %q", t.Status)
	}
	if v := validate.Check(validate.Draft{
		Task:        t,
		CreatorID:   t.CreatorID,
		CreatorRole: creatorRole(ctx, e, t, actor),
	}); v != nil {
		return t, v
	}
	t.UpdatedAt = e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.History.Append(ctx, tx, history.KindUpdated, t.ID, actor.ID, opts.Note, history.Payload{
		"fields": changed,
		"status": t.Status,
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return e.Repo.GetTask(ctx, t.ID)
}

// creatorRole resolves the role the roster rules key on. A deleted
// creator falls back to the acting user's role.
func creatorRole(ctx context.Context, e Engine, t domain.Task, actor domain.User) string {
	if t.CreatorID == actor.ID {
		return actor.Role
	}
	creator, err := e.Repo.GetUser(ctx, t.CreatorID)
	if err != nil {
		return actor.Role
	}
	return creator.Role
}

// EffortOptions records worked hours on the caller's own assignment.
type EffortOptions struct {
	TaskID          string
	ActorID         string
	ActualLabor     float64
	ExpectedVersion *int64
	Note            string
}

func (e Engine) LogEffort(ctx context.Context, opts EffortOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, opts.TaskID)
	if err != nil {
		return t, err
	}
	actor, err := e.Repo.GetUser(ctx, opts.ActorID)
	if err != nil {
		return t, fmt.Errorf("load actor: %w", err)
	}
	level := authz.LevelFor(actor, t)
	if err := authz.CheckFields(level, []string{authz.FieldOwnActualLabor}); err != nil {
		return t, err
	}
	if t.AssignmentFor(actor.ID) == nil {
		// Full access without an assignment: there is no own row to
		// write hours onto.
		return t, fmt.Errorf("user %s is not assigned to task %s", actor.ID, t.ID)
	}
	if opts.ActualLabor < 0 {
		return t, errors.New("actual labor cannot be negative")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()

	if err := e.Repo.LogEffortTx(ctx, tx, t.ID, actor.ID, opts.ActualLabor, opts.ExpectedVersion); err != nil {
		return t, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET actual_labor=(SELECT COALESCE(SUM(actual_labor),0) FROM assignments WHERE task_id=?), updated_at=? WHERE id=?`,
		t.ID, e.nowRFC3339(), t.ID); err != nil {
		return t, err
	}
	if err := e.History.Append(ctx, tx, history.KindEffortLogged, t.ID, actor.ID, opts.Note, history.Payload{
		"actual_labor": opts.ActualLabor,
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return e.Repo.GetTask(ctx, t.ID)
}

func (e Engine) DeleteTask(ctx context.Context, taskID, actorID string) error {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	actor, err := e.Repo.GetUser(ctx, actorID)
	if err != nil {
		return fmt.Errorf("load actor: %w", err)
	}
	if authz.LevelFor(actor, t) != authz.Full {
		return authz.PermissionError{Level: authz.LevelFor(actor, t)}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteTaskTx(ctx, tx, taskID); err != nil {
		return err
	}
	if err := e.History.Append(ctx, tx, history.KindDeleted, taskID, actor.ID, "", history.Payload{
		"description": t.Description,
	}); err != nil {
		return err
	}
	return tx.Commit()
}
