package engine

import (
	"context"
	"fmt"
	"time"

	"taskdeck/internal/domain"
	"taskdeck/internal/optimize"
	"taskdeck/internal/repo"
)

// OptimizeOptions selects the workload to plan. Exactly one of
// UserID or TeamID must be set; a team run produces one plan per
// member.
type OptimizeOptions struct {
	Strategy  string
	UserID    string
	TeamID    string
	StartDate string
	EndDate   string
}

// UserPlan is one member's ranked queue and daily distribution.
type UserPlan struct {
	User   domain.User
	Result optimize.Result
}

type OptimizeOutcome struct {
	Strategy    optimize.Strategy
	GeneratedAt time.Time
	Plans       []UserPlan
}

func (e Engine) Optimize(ctx context.Context, opts OptimizeOptions) (OptimizeOutcome, error) {
	strategy := optimize.Strategy(opts.Strategy)
	if opts.Strategy == "" && e.Config != nil {
		strategy = optimize.Strategy(e.Config.Optimize.DefaultStrategy)
	}
	if strategy == "" {
		strategy = optimize.StrategyPriority
	}
	if !optimize.ValidStrategy(strategy) {
		return OptimizeOutcome{}, fmt.Errorf("unknown strategy %q", opts.Strategy)
	}
	if (opts.UserID == "") == (opts.TeamID == "") {
		return OptimizeOutcome{}, fmt.Errorf("exactly one of user or team must be given")
	}
	now := e.now().UTC()
	out := OptimizeOutcome{Strategy: strategy, GeneratedAt: now}

	var users []domain.User
	if opts.UserID != "" {
		u, err := e.Repo.GetUser(ctx, opts.UserID)
		if err != nil {
			return out, err
		}
		users = []domain.User{u}
	} else {
		if _, err := e.Repo.GetTeam(ctx, opts.TeamID); err != nil {
			return out, err
		}
		var err error
		users, err = e.Repo.ListUsers(ctx, opts.TeamID)
		if err != nil {
			return out, err
		}
	}

	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilter{TeamID: opts.TeamID, UserID: opts.UserID})
	if err != nil {
		return out, err
	}
	for _, u := range users {
		scope := optimize.Scope{
			UserID:    u.ID,
			StartDate: opts.StartDate,
			EndDate:   opts.EndDate,
		}
		out.Plans = append(out.Plans, UserPlan{
			User:   u,
			Result: optimize.Optimize(tasks, strategy, now, scope),
		})
	}
	return out, nil
}

// MemberStats summarizes one member's workload.
type MemberStats struct {
	User           domain.User
	TaskCount      int
	CompletedCount int
	PlannedLabor   float64
	ActualLabor    float64
}

// TeamPerformance aggregates planned versus actual labor per member
// from each member's own assignment rows.
func (e Engine) TeamPerformance(ctx context.Context, teamID string) ([]MemberStats, error) {
	if _, err := e.Repo.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	users, err := e.Repo.ListUsers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilter{TeamID: teamID})
	if err != nil {
		return nil, err
	}
	var res []MemberStats
	for _, u := range users {
		stats := MemberStats{User: u}
		for _, t := range tasks {
			a := t.AssignmentFor(u.ID)
			if a == nil || a.Role == domain.AssignmentNotified {
				continue
			}
			stats.TaskCount++
			if t.Status == domain.StatusCompleted {
				stats.CompletedCount++
			}
			stats.PlannedLabor += a.PlannedLabor
			stats.ActualLabor += a.ActualLabor
		}
		res = append(res, stats)
	}
	return res, nil
}
