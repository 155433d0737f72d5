// Package notify posts task history entries to configured webhooks.
// Delivery is at-least-once per hook: each hook keeps its own cursor
// into the history table and retries from the failed entry on the
// next tick.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"taskdeck/internal/config"
	"taskdeck/internal/domain"
	"taskdeck/internal/repo"
)

const (
	defaultInterval = 2 * time.Second
	defaultTimeout  = 5 * time.Second
	defaultBatch    = 100
)

type Dispatcher struct {
	Repo     repo.Repo
	Webhooks []config.Webhook
	Log      zerolog.Logger
	Interval time.Duration

	client  *http.Client
	mu      sync.Mutex
	cursors map[int]int64
}

// Start begins polling in a goroutine; it stops when ctx is done.
// Returns false when no webhooks are configured.
func (d *Dispatcher) Start(ctx context.Context) bool {
	if len(d.Webhooks) == 0 {
		return false
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: defaultTimeout}
	}
	if d.Interval <= 0 {
		d.Interval = defaultInterval
	}
	d.cursors = make(map[int]int64)
	go d.run(ctx)
	return true
}

func (d *Dispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()
	for {
		d.dispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) dispatchAll(ctx context.Context) {
	for i, hook := range d.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchHook(ctx, i, hook)
	}
}

func (d *Dispatcher) dispatchHook(ctx context.Context, idx int, hook config.Webhook) {
	cursor := d.cursorFor(ctx, idx)
	entries, err := d.Repo.ListHistorySince(ctx, cursor, defaultBatch)
	if err != nil {
		d.Log.Error().Err(err).Msg("webhook: fetch history failed")
		return
	}
	filter := newKindFilter(hook.Kinds)
	for _, entry := range entries {
		if !filter.match(entry.Kind) {
			d.setCursor(idx, entry.ID)
			continue
		}
		if err := d.post(ctx, hook, entry); err != nil {
			d.Log.Error().Err(err).Str("url", hook.URL).Msg("webhook: delivery failed")
			return
		}
		d.setCursor(idx, entry.ID)
	}
}

// cursorFor starts a new hook at the current end of the history so
// it only sees entries written after startup.
func (d *Dispatcher) cursorFor(ctx context.Context, idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	var cur int64
	err := d.Repo.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM task_history`).Scan(&cur)
	if err != nil {
		d.Log.Error().Err(err).Msg("webhook: init cursor failed")
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *Dispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type delivery struct {
	ID      int64           `json:"id"`
	Kind    string          `json:"kind"`
	TaskID  string          `json:"task_id"`
	ActorID string          `json:"actor_id"`
	Note    string          `json:"note,omitempty"`
	TS      string          `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

func (d *Dispatcher) post(ctx context.Context, hook config.Webhook, entry domain.HistoryEntry) error {
	payload := json.RawMessage([]byte("{}"))
	if entry.Payload != "" && json.Valid([]byte(entry.Payload)) {
		payload = json.RawMessage([]byte(entry.Payload))
	}
	data, err := json.Marshal(delivery{
		ID:      entry.ID,
		Kind:    entry.Kind,
		TaskID:  entry.TaskID,
		ActorID: entry.ActorID,
		Note:    entry.Note,
		TS:      entry.TS,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Taskdeck-Kind", entry.Kind)
	req.Header.Set("X-Taskdeck-Delivery", fmt.Sprintf("%d", entry.ID))
	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type kindFilter struct {
	all bool
	set map[string]struct{}
}

func newKindFilter(kinds []string) kindFilter {
	if len(kinds) == 0 {
		return kindFilter{all: true}
	}
	set := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return kindFilter{all: true}
	}
	return kindFilter{set: set}
}

func (f kindFilter) match(kind string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[kind]
	return ok
}
