package optimize

import (
	"time"

	"taskdeck/internal/domain"
)

// Scope narrows the task set before ranking: either one user's tasks
// (held assignee or partner assignments) or one team's, optionally
// windowed by task start date. The window filters which tasks are
// considered; it does not change how buckets are grouped.
type Scope struct {
	UserID    string
	TeamID    string
	StartDate string
	EndDate   string
}

func (s Scope) includes(t domain.Task) bool {
	if s.UserID != "" && t.AssignmentFor(s.UserID) == nil {
		return false
	}
	if s.TeamID != "" && t.TeamID != s.TeamID {
		return false
	}
	if s.StartDate != "" || s.EndDate != "" {
		start, ok := ParseDate(t.StartDate)
		if !ok {
			return false
		}
		if from, ok := ParseDate(s.StartDate); ok && start.Before(from) {
			return false
		}
		if to, ok := ParseDate(s.EndDate); ok && start.After(to.Add(24*time.Hour-time.Nanosecond)) {
			return false
		}
	}
	return true
}

// Result is a derived view, recomputed fresh on every request and
// never persisted.
type Result struct {
	OrderedTasks   []domain.Task
	Buckets        []Bucket
	TotalPlanned   float64
	TotalActual    float64
	TotalRemaining float64
}

// Optimize is the engine facade: it filters by scope, ranks by the
// strategy's weight table, and aggregates daily labor buckets.
// Identical inputs, including now, always yield an identical result.
func Optimize(tasks []domain.Task, strategy Strategy, now time.Time, scope Scope) Result {
	var scoped []domain.Task
	for _, t := range tasks {
		if scope.includes(t) {
			scoped = append(scoped, t)
		}
	}
	ranked := Rank(scoped, strategy, now)
	buckets := SortedBuckets(Distribute(ranked))

	res := Result{
		OrderedTasks: ranked,
		Buckets:      buckets,
	}
	for _, b := range buckets {
		res.TotalPlanned += b.PlannedLabor
		res.TotalActual += b.ActualLabor
		res.TotalRemaining += b.RemainingLabor
	}
	return res
}
