package optimize

import (
	"math"
	"time"

	"taskdeck/internal/domain"
)

// Strategy selects the weight table used to combine partial scores.
type Strategy string

const (
	StrategyPriority       Strategy = "priority"
	StrategyWorkSize       Strategy = "work_size"
	StrategyCompletionDate Strategy = "completion_date"
)

func ValidStrategy(s Strategy) bool {
	switch s {
	case StrategyPriority, StrategyWorkSize, StrategyCompletionDate:
		return true
	}
	return false
}

var priorityWeights = map[string]float64{
	domain.PriorityHigh:   1000,
	domain.PriorityMedium: 100,
	domain.PriorityLow:    10,
}

var statusWeights = map[string]float64{
	domain.StatusInProgress: 500,
	domain.StatusNotStarted: 400,
	domain.StatusPaused:     300,
	domain.StatusCancelled:  -500,
}

// completionWeight is zero: the completion ratio is computed but no
// strategy weighs it yet.
const completionWeight = 0

// Scored pairs a task with its final score.
type Scored struct {
	Task        domain.Task
	Score       float64
	IsCompleted bool
}

type factors struct {
	priority   float64
	status     float64
	deadline   float64
	workSize   float64
	completion float64
}

// Score computes the multi-factor score of one task at the given
// instant. now must be supplied by the caller; the function never
// reads the clock, so identical inputs always score identically.
func Score(t domain.Task, now time.Time, strategy Strategy) Scored {
	f := partialScores(t, now)

	var combined float64
	switch strategy {
	case StrategyPriority:
		combined = f.priority*3 + f.deadline*0.5 + f.workSize*0.3
	case StrategyWorkSize:
		combined = f.workSize*3 + f.priority*0.5 + f.deadline*0.3
	case StrategyCompletionDate:
		combined = f.deadline*3 + f.priority*0.5 + f.workSize*0.3
	default:
		combined = f.priority + f.deadline + f.workSize
	}
	combined += f.completion * completionWeight

	// Status modifier is applied after combination and is identical
	// under every strategy.
	final := combined + f.status

	return Scored{
		Task:        t,
		Score:       final,
		IsCompleted: t.Status == domain.StatusCompleted,
	}
}

func partialScores(t domain.Task, now time.Time) factors {
	var f factors
	f.priority = priorityWeights[t.Priority]
	f.status = statusWeights[t.Status]

	// Tasks due today or overdue saturate at 1000; urgency does not
	// grow past the deadline.
	if due, ok := ParseDate(t.CompletionDate); ok {
		days := daysUntil(now, due)
		if days < 0 {
			days = 0
		}
		f.deadline = math.Max(0, 1000-float64(days)*10)
	}

	f.workSize = t.WorkSize * 100

	// Percentage of planned labor already spent, inverted. A zero
	// plan means 0% of an undefined plan, not a division by zero.
	if t.PlannedLabor > 0 {
		pct := t.ActualLabor / t.PlannedLabor * 100
		f.completion = math.Max(0, 1000-pct*10)
	}
	return f
}

func daysUntil(now, due time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate parses the date formats accepted on task records.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// DayKey reduces a task date to calendar-day granularity.
func DayKey(ts time.Time) string {
	return ts.Format("2006-01-02")
}
