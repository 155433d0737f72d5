package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"taskdeck/internal/config"
	"taskdeck/internal/db"
	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
	"taskdeck/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if err := e.Repo.InsertTeam(ctx, domain.Team{ID: "team-1", Name: "Platform", CreatedAt: "2025-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("seed team: %v", err)
	}
	seed := []domain.User{
		{ID: "mgr", Name: "Maya", Email: "maya@example.com", Role: domain.RoleManager, TeamID: "team-1"},
		{ID: "emp-1", Name: "Evan", Email: "evan@example.com", Role: domain.RoleEmployee, TeamID: "team-1"},
		{ID: "emp-2", Name: "Rita", Email: "rita@example.com", Role: domain.RoleEmployee, TeamID: "team-1"},
	}
	for _, u := range seed {
		u.CreatedAt = "2025-01-01T00:00:00Z"
		if err := e.Repo.InsertUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/api/v1",
		Auth:     AuthConfig{DevUserHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asManager() map[string]string {
	return map[string]string{"X-User-ID": "mgr"}
}

func testRoadmap() string {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "step %d\n", i+1)
	}
	return b.String()
}

func createTaskBody() map[string]any {
	return map[string]any{
		"description":   "ship the quarterly report",
		"priority":      "High",
		"status":        "In Progress",
		"start_date":    "2025-03-10",
		"planned_labor": 8,
		"work_size":     3,
		"roadmap":       testRoadmap(),
		"assignments": []map[string]any{
			{"user_id": "emp-1", "role": "assignee", "planned_labor": 6},
			{"user_id": "emp-2", "role": "partner", "planned_labor": 2},
		},
	}
}

func TestTaskLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/tasks", createTaskBody(), asManager())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", res.StatusCode, string(data))
	}
	var created TaskResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if created.TeamID != "team-1" || len(created.Assignments) != 2 {
		t.Fatalf("unexpected created task: %+v", created)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/api/v1/tasks/"+created.ID, map[string]any{
		"priority": "Low",
		"note":     "descoped after planning",
	}, asManager())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %s", res.StatusCode, string(data))
	}
	var updated TaskResponse
	_ = json.Unmarshal(data, &updated)
	if updated.Priority != "Low" {
		t.Fatalf("priority not updated: %s", updated.Priority)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/tasks/"+created.ID+"/history", nil, asManager())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %s", res.StatusCode, string(data))
	}
	var entries []HistoryEntryResponse
	_ = json.Unmarshal(data, &entries)
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/api/v1/tasks/"+created.ID, nil, asManager())
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/tasks/"+created.ID, nil, asManager())
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", res.StatusCode)
	}
}

func TestCreateTaskInvariantViolation(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	body := createTaskBody()
	body["assignments"] = []map[string]any{
		{"user_id": "emp-1", "role": "assignee", "planned_labor": 6},
		{"user_id": "emp-2", "role": "assignee", "planned_labor": 2},
	}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/tasks", body, asManager())
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "single_assignee" {
		t.Fatalf("expected single_assignee code, got %s (%s)", envelope.Error.Code, string(data))
	}
}

func TestUpdateTaskForbiddenField(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/tasks", createTaskBody(), asManager())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", res.StatusCode, string(data))
	}
	var created TaskResponse
	_ = json.Unmarshal(data, &created)

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/api/v1/tasks/"+created.ID, map[string]any{
		"priority": "Low",
		"note":     "trying it on",
	}, map[string]string{"X-User-ID": "emp-1"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "forbidden" || envelope.Error.Details["field"] != "priority" {
		t.Fatalf("unexpected envelope: %s", string(data))
	}
}

func TestEffortAndOptimize(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/tasks", createTaskBody(), asManager())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", res.StatusCode, string(data))
	}
	var created TaskResponse
	_ = json.Unmarshal(data, &created)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/tasks/"+created.ID+"/effort", map[string]any{
		"actual_labor": 4,
	}, map[string]string{"X-User-ID": "emp-1"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("effort: %d %s", res.StatusCode, string(data))
	}
	var after TaskResponse
	_ = json.Unmarshal(data, &after)
	if after.ActualLabor != 4 {
		t.Fatalf("actual labor not rolled up: %v", after.ActualLabor)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/optimize", map[string]any{
		"team_id": "team-1",
	}, asManager())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("optimize: %d %s", res.StatusCode, string(data))
	}
	var plan OptimizeResponse
	if err := json.Unmarshal(data, &plan); err != nil {
		t.Fatalf("unmarshal plan: %v", err)
	}
	if plan.Strategy != "priority" {
		t.Fatalf("expected default strategy priority, got %s", plan.Strategy)
	}
	if len(plan.Plans) != 3 {
		t.Fatalf("expected plan per member, got %d", len(plan.Plans))
	}
	for _, p := range plan.Plans {
		if p.UserID != "emp-1" {
			continue
		}
		if len(p.OrderedTasks) != 1 || len(p.DailyDistribution) != 1 {
			t.Fatalf("unexpected emp-1 plan: %+v", p)
		}
		if p.DailyDistribution[0].Date != "2025-03-10" {
			t.Fatalf("unexpected bucket date %s", p.DailyDistribution[0].Date)
		}
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/tasks", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health must be open, got %d", res.StatusCode)
	}
}
