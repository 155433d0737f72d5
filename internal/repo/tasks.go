package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"taskdeck/internal/domain"
)

const taskColumns = `id,description,priority,status,COALESCE(start_date,'') AS start_date,COALESCE(completion_date,'') AS completion_date,planned_labor,actual_labor,work_size,roadmap,COALESCE(team_id,'') AS team_id,creator_id,created_at,updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	err := scan(&t.ID, &t.Description, &t.Priority, &t.Status, &t.StartDate, &t.CompletionDate,
		&t.PlannedLabor, &t.ActualLabor, &t.WorkSize, &t.Roadmap, &t.TeamID, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,description,priority,status,start_date,completion_date,planned_labor,actual_labor,work_size,roadmap,team_id,creator_id,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Description, t.Priority, t.Status, nullable(t.StartDate), nullable(t.CompletionDate),
		t.PlannedLabor, t.ActualLabor, t.WorkSize, t.Roadmap, nullable(t.TeamID), t.CreatorID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return err
	}
	return r.replaceAssignments(ctx, tx, t.ID, t.Assignments, false)
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id).Scan)
	if err != nil {
		return t, err
	}
	byID, err := r.assignmentsFor(ctx, r.DB, []string{id})
	if err != nil {
		return t, err
	}
	t.Assignments = byID[id]
	return t, nil
}

// TaskFilter narrows ListTasks. UserID keeps tasks the user is
// assigned to in any role; the other fields match columns directly.
type TaskFilter struct {
	TeamID string
	UserID string
	Status string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilter) ([]domain.Task, error) {
	var (
		clauses []string
		args    []any
	)
	if f.TeamID != "" {
		clauses = append(clauses, "team_id=?")
		args = append(args, f.TeamID)
	}
	if f.UserID != "" {
		clauses = append(clauses, "id IN (SELECT task_id FROM assignments WHERE user_id=?)")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, id"
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	var ids []string
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	byID, err := r.assignmentsFor(ctx, r.DB, ids)
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Assignments = byID[res[i].ID]
	}
	return res, nil
}

func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET description=?,priority=?,status=?,start_date=?,completion_date=?,planned_labor=?,actual_labor=?,work_size=?,roadmap=?,updated_at=? WHERE id=?`,
		t.Description, t.Priority, t.Status, nullable(t.StartDate), nullable(t.CompletionDate),
		t.PlannedLabor, t.ActualLabor, t.WorkSize, t.Roadmap, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return r.replaceAssignments(ctx, tx, t.ID, t.Assignments, true)
}

func (r Repo) DeleteTaskTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// replaceAssignments rewrites the roster. Versions of surviving
// assignments carry over so effort conflict checks keep working
// across roster edits.
func (r Repo) replaceAssignments(ctx context.Context, tx *sql.Tx, taskID string, roster []domain.Assignment, keepVersions bool) error {
	prior := map[string]int64{}
	if keepVersions {
		rows, err := tx.QueryContext(ctx, `SELECT user_id,version FROM assignments WHERE task_id=?`, taskID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var userID string
			var version int64
			if err := rows.Scan(&userID, &version); err != nil {
				rows.Close()
				return err
			}
			prior[userID] = version
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE task_id=?`, taskID); err != nil {
		return err
	}
	for _, a := range roster {
		version := a.Version
		if v, ok := prior[a.UserID]; ok && v > version {
			version = v
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO assignments(task_id,user_id,role,planned_labor,actual_labor,version) VALUES (?,?,?,?,?,?)`,
			taskID, a.UserID, a.Role, a.PlannedLabor, a.ActualLabor, version)
		if err != nil {
			return fmt.Errorf("insert assignment %s/%s: %w", taskID, a.UserID, err)
		}
	}
	return nil
}

// LogEffortTx sets the caller's own actual labor on one assignment
// and bumps its version. expectedVersion, when non-nil, must match
// the stored version or ErrVersionConflict is returned.
func (r Repo) LogEffortTx(ctx context.Context, tx *sql.Tx, taskID, userID string, actualLabor float64, expectedVersion *int64) error {
	var current int64
	err := tx.QueryRowContext(ctx, `SELECT version FROM assignments WHERE task_id=? AND user_id=?`, taskID, userID).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if expectedVersion != nil && *expectedVersion != current {
		return ErrVersionConflict
	}
	_, err = tx.ExecContext(ctx, `UPDATE assignments SET actual_labor=?, version=version+1 WHERE task_id=? AND user_id=?`,
		actualLabor, taskID, userID)
	return err
}

func (r Repo) assignmentsFor(ctx context.Context, q execer, taskIDs []string) (map[string][]domain.Assignment, error) {
	res := map[string][]domain.Assignment{}
	if len(taskIDs) == 0 {
		return res, nil
	}
	placeholders := strings.Repeat("?,", len(taskIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(taskIDs))
	for i, id := range taskIDs {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx, `SELECT task_id,user_id,role,planned_labor,actual_labor,version FROM assignments WHERE task_id IN (`+placeholders+`) ORDER BY task_id, role, user_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.TaskID, &a.UserID, &a.Role, &a.PlannedLabor, &a.ActualLabor, &a.Version); err != nil {
			return nil, err
		}
		res[a.TaskID] = append(res[a.TaskID], a)
	}
	return res, rows.Err()
}
