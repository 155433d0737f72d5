package server

import (
	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
	"taskdeck/internal/optimize"
)

// Request payloads

type AssignmentRequest struct {
	UserID       string  `json:"user_id"`
	Role         string  `json:"role" enum:"assignee,partner,notified"`
	PlannedLabor float64 `json:"planned_labor,omitempty"`
}

type CreateTaskRequest struct {
	ID             *string             `json:"id,omitempty"`
	Description    string              `json:"description"`
	Priority       string              `json:"priority,omitempty" enum:"High,Medium,Low"`
	Status         string              `json:"status,omitempty" enum:"Not Started,In Progress,Paused,Completed,Cancelled"`
	StartDate      string              `json:"start_date,omitempty"`
	CompletionDate string              `json:"completion_date,omitempty"`
	PlannedLabor   float64             `json:"planned_labor,omitempty"`
	WorkSize       float64             `json:"work_size,omitempty"`
	Roadmap        string              `json:"roadmap"`
	TeamID         *string             `json:"team_id,omitempty"`
	Assignments    []AssignmentRequest `json:"assignments"`
}

type UpdateTaskRequest struct {
	Description    *string             `json:"description,omitempty"`
	Priority       *string             `json:"priority,omitempty" enum:"High,Medium,Low"`
	Status         *string             `json:"status,omitempty" enum:"Not Started,In Progress,Paused,Completed,Cancelled"`
	StartDate      *string             `json:"start_date,omitempty"`
	CompletionDate *string             `json:"completion_date,omitempty"`
	PlannedLabor   *float64            `json:"planned_labor,omitempty"`
	WorkSize       *float64            `json:"work_size,omitempty"`
	Roadmap        *string             `json:"roadmap,omitempty"`
	TeamID         *string             `json:"team_id,omitempty"`
	Assignments    []AssignmentRequest `json:"assignments,omitempty"`
	Note           string              `json:"note,omitempty"`
}

type LogEffortRequest struct {
	ActualLabor     float64 `json:"actual_labor" minimum:"0"`
	ExpectedVersion *int64  `json:"expected_version,omitempty"`
	Note            string  `json:"note,omitempty"`
}

type OptimizeRequest struct {
	Strategy  string `json:"strategy,omitempty" enum:"priority,work_size,completion_date"`
	UserID    string `json:"user_id,omitempty"`
	TeamID    string `json:"team_id,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

type CreateUserRequest struct {
	ID     *string `json:"id,omitempty"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Role   string  `json:"role" enum:"manager,employee"`
	TeamID string  `json:"team_id,omitempty"`
}

type CreateTeamRequest struct {
	ID   *string `json:"id,omitempty"`
	Name string  `json:"name"`
}

type CreateAPIKeyRequest struct {
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Response payloads

type AssignmentResponse struct {
	UserID       string  `json:"user_id"`
	Role         string  `json:"role" enum:"assignee,partner,notified"`
	PlannedLabor float64 `json:"planned_labor"`
	ActualLabor  float64 `json:"actual_labor"`
	Version      int64   `json:"version"`
}

type TaskResponse struct {
	ID             string               `json:"id"`
	Description    string               `json:"description"`
	Priority       string               `json:"priority" enum:"High,Medium,Low"`
	Status         string               `json:"status" enum:"Not Started,In Progress,Paused,Completed,Cancelled"`
	StartDate      string               `json:"start_date,omitempty"`
	CompletionDate string               `json:"completion_date,omitempty"`
	PlannedLabor   float64              `json:"planned_labor"`
	ActualLabor    float64              `json:"actual_labor"`
	WorkSize       float64              `json:"work_size"`
	Roadmap        string               `json:"roadmap,omitempty"`
	TeamID         string               `json:"team_id,omitempty"`
	CreatorID      string               `json:"creator_id"`
	Assignments    []AssignmentResponse `json:"assignments"`
	CreatedAt      string               `json:"created_at" format:"date-time"`
	UpdatedAt      string               `json:"updated_at" format:"date-time"`
}

type BucketResponse struct {
	Date           string   `json:"date"`
	PlannedLabor   float64  `json:"planned_labor"`
	ActualLabor    float64  `json:"actual_labor"`
	RemainingLabor float64  `json:"remaining_labor"`
	TaskIDs        []string `json:"task_ids"`
}

type UserPlanResponse struct {
	UserID            string           `json:"user_id"`
	UserName          string           `json:"user_name"`
	OrderedTasks      []TaskResponse   `json:"ordered_tasks"`
	DailyDistribution []BucketResponse `json:"daily_distribution"`
	TotalPlanned      float64          `json:"total_planned"`
	TotalActual       float64          `json:"total_actual"`
	TotalRemaining    float64          `json:"total_remaining"`
}

type OptimizeResponse struct {
	Strategy    string             `json:"strategy" enum:"priority,work_size,completion_date"`
	GeneratedAt string             `json:"generated_at" format:"date-time"`
	Plans       []UserPlanResponse `json:"plans"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role" enum:"manager,employee"`
	TeamID    string `json:"team_id,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type TeamResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type MemberStatsResponse struct {
	UserID         string  `json:"user_id"`
	UserName       string  `json:"user_name"`
	TaskCount      int     `json:"task_count"`
	CompletedCount int     `json:"completed_count"`
	PlannedLabor   float64 `json:"planned_labor"`
	ActualLabor    float64 `json:"actual_labor"`
}

type HistoryEntryResponse struct {
	ID      int64  `json:"id"`
	Kind    string `json:"kind"`
	TaskID  string `json:"task_id"`
	ActorID string `json:"actor_id"`
	Note    string `json:"note,omitempty"`
	TS      string `json:"ts" format:"date-time"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Mapping helpers

func toTaskResponse(t domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:             t.ID,
		Description:    t.Description,
		Priority:       t.Priority,
		Status:         t.Status,
		StartDate:      t.StartDate,
		CompletionDate: t.CompletionDate,
		PlannedLabor:   t.PlannedLabor,
		ActualLabor:    t.ActualLabor,
		WorkSize:       t.WorkSize,
		Roadmap:        t.Roadmap,
		TeamID:         t.TeamID,
		CreatorID:      t.CreatorID,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		Assignments:    []AssignmentResponse{},
	}
	for _, a := range t.Assignments {
		resp.Assignments = append(resp.Assignments, AssignmentResponse{
			UserID:       a.UserID,
			Role:         a.Role,
			PlannedLabor: a.PlannedLabor,
			ActualLabor:  a.ActualLabor,
			Version:      a.Version,
		})
	}
	return resp
}

func toUserResponse(u domain.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, TeamID: u.TeamID, CreatedAt: u.CreatedAt}
}

func toBucketResponse(b optimize.Bucket) BucketResponse {
	resp := BucketResponse{
		Date:           b.Date,
		PlannedLabor:   b.PlannedLabor,
		ActualLabor:    b.ActualLabor,
		RemainingLabor: b.RemainingLabor,
		TaskIDs:        []string{},
	}
	for _, t := range b.Tasks {
		resp.TaskIDs = append(resp.TaskIDs, t.ID)
	}
	return resp
}

func toUserPlanResponse(p engine.UserPlan) UserPlanResponse {
	resp := UserPlanResponse{
		UserID:            p.User.ID,
		UserName:          p.User.Name,
		OrderedTasks:      []TaskResponse{},
		DailyDistribution: []BucketResponse{},
		TotalPlanned:      p.Result.TotalPlanned,
		TotalActual:       p.Result.TotalActual,
		TotalRemaining:    p.Result.TotalRemaining,
	}
	for _, t := range p.Result.OrderedTasks {
		resp.OrderedTasks = append(resp.OrderedTasks, toTaskResponse(t))
	}
	for _, b := range p.Result.Buckets {
		resp.DailyDistribution = append(resp.DailyDistribution, toBucketResponse(b))
	}
	return resp
}

func assignmentsFromRequest(reqs []AssignmentRequest) []domain.Assignment {
	if reqs == nil {
		return nil
	}
	out := make([]domain.Assignment, 0, len(reqs))
	for _, a := range reqs {
		out = append(out, domain.Assignment{
			UserID:       a.UserID,
			Role:         a.Role,
			PlannedLabor: a.PlannedLabor,
		})
	}
	return out
}
