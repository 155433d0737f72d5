package repo

import (
	"context"

	"taskdeck/internal/domain"
)

func (r Repo) ListTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.HistoryEntry, error) {
	query := `SELECT id,kind,task_id,actor_id,COALESCE(note,'') AS note,payload_json,ts FROM task_history WHERE task_id=? ORDER BY id DESC`
	args := []any{taskID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryHistory(ctx, query, args...)
}

// ListHistorySince returns entries newer than afterID in insertion
// order. The notify dispatcher polls with this.
func (r Repo) ListHistorySince(ctx context.Context, afterID int64, limit int) ([]domain.HistoryEntry, error) {
	query := `SELECT id,kind,task_id,actor_id,COALESCE(note,'') AS note,payload_json,ts FROM task_history WHERE id>? ORDER BY id`
	args := []any{afterID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryHistory(ctx, query, args...)
}

func (r Repo) queryHistory(ctx context.Context, query string, args ...any) ([]domain.HistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HistoryEntry
	for rows.Next() {
		var h domain.HistoryEntry
		if err := rows.Scan(&h.ID, &h.Kind, &h.TaskID, &h.ActorID, &h.Note, &h.Payload, &h.TS); err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}
