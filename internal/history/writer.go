// Package history records the audit trail of task mutations. Entries
// are appended inside the caller's transaction so a task change and
// its history row commit or roll back together.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Payload map[string]any

const (
	KindCreated      = "task.created"
	KindUpdated      = "task.updated"
	KindEffortLogged = "task.effort_logged"
	KindDeleted      = "task.deleted"
)

func (w Writer) Append(ctx context.Context, tx *sql.Tx, kind, taskID, actorID, note string, payload Payload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal history payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO task_history(ts,kind,task_id,actor_id,note,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, kind, taskID, actorID, nullable(note), string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
