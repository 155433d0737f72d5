package optimize

import (
	"testing"
	"time"

	"taskdeck/internal/domain"
)

func sampleTasks() []domain.Task {
	return []domain.Task{
		{
			ID: "a", Priority: domain.PriorityHigh, Status: domain.StatusInProgress,
			WorkSize: 5, PlannedLabor: 10, ActualLabor: 2,
			StartDate: "2025-03-10", CompletionDate: dateAfter(1), TeamID: "team-1",
			Assignments: []domain.Assignment{{UserID: "u1", Role: domain.AssignmentAssignee}},
		},
		{
			ID: "b", Priority: domain.PriorityLow, Status: domain.StatusNotStarted,
			WorkSize: 1, PlannedLabor: 5, ActualLabor: 5,
			StartDate: "2025-03-11", CompletionDate: dateAfter(10), TeamID: "team-1",
			Assignments: []domain.Assignment{{UserID: "u2", Role: domain.AssignmentAssignee}},
		},
		{
			ID: "c", Priority: domain.PriorityHigh, Status: domain.StatusCompleted,
			WorkSize: 5, PlannedLabor: 10, ActualLabor: 2,
			StartDate: "2025-03-10", CompletionDate: dateAfter(1), TeamID: "team-1",
			Assignments: []domain.Assignment{{UserID: "u1", Role: domain.AssignmentAssignee}},
		},
	}
}

func TestRankCompletedLast(t *testing.T) {
	ranked := Rank(sampleTasks(), StrategyPriority, testNow)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(ranked))
	}
	if ranked[0].ID != "a" || ranked[1].ID != "b" || ranked[2].ID != "c" {
		t.Fatalf("unexpected order: %s, %s, %s", ranked[0].ID, ranked[1].ID, ranked[2].ID)
	}
}

func TestRankStableOnEqualScores(t *testing.T) {
	twin := func(id string) domain.Task {
		return domain.Task{
			ID: id, Priority: domain.PriorityMedium, Status: domain.StatusNotStarted,
			WorkSize: 2, PlannedLabor: 4, CompletionDate: dateAfter(3), StartDate: "2025-03-10",
		}
	}
	ranked := Rank([]domain.Task{twin("first"), twin("second"), twin("third")}, StrategyWorkSize, testNow)
	if ranked[0].ID != "first" || ranked[1].ID != "second" || ranked[2].ID != "third" {
		t.Fatalf("stable sort broke input order: %v", []string{ranked[0].ID, ranked[1].ID, ranked[2].ID})
	}
}

func TestDistributeConservation(t *testing.T) {
	tasks := sampleTasks()
	buckets := Distribute(Rank(tasks, StrategyPriority, testNow))

	var wantPlanned, wantActual float64
	for _, task := range tasks {
		wantPlanned += task.PlannedLabor
		wantActual += task.ActualLabor
	}
	var gotPlanned, gotActual float64
	for _, b := range buckets {
		gotPlanned += b.PlannedLabor
		gotActual += b.ActualLabor
		if !almostEqual(b.RemainingLabor, b.PlannedLabor-b.ActualLabor) {
			t.Fatalf("bucket %s: remaining %v != planned %v - actual %v", b.Date, b.RemainingLabor, b.PlannedLabor, b.ActualLabor)
		}
	}
	if !almostEqual(gotPlanned, wantPlanned) || !almostEqual(gotActual, wantActual) {
		t.Fatalf("labor not conserved: planned %v/%v actual %v/%v", gotPlanned, wantPlanned, gotActual, wantActual)
	}
}

func TestDistributeNegativeRemaining(t *testing.T) {
	overrun := domain.Task{
		ID: "d", Priority: domain.PriorityLow, Status: domain.StatusInProgress,
		WorkSize: 1, PlannedLabor: 0, ActualLabor: 3,
		StartDate: "2025-03-12", CompletionDate: dateAfter(2),
	}
	buckets := Distribute([]domain.Task{overrun})
	b, ok := buckets["2025-03-12"]
	if !ok {
		t.Fatalf("expected bucket for 2025-03-12")
	}
	if !almostEqual(b.RemainingLabor, -3) {
		t.Fatalf("expected remaining -3, got %v", b.RemainingLabor)
	}
}

func TestSortedBucketsAscending(t *testing.T) {
	buckets := Distribute(Rank(sampleTasks(), StrategyPriority, testNow))
	sorted := SortedBuckets(buckets)
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Date > sorted[i].Date {
			t.Fatalf("buckets not ascending: %s before %s", sorted[i-1].Date, sorted[i].Date)
		}
	}
}

func TestBucketPreservesRankOrder(t *testing.T) {
	tasks := sampleTasks()
	// a and c share a start date; a (active) must precede c (completed).
	buckets := Distribute(Rank(tasks, StrategyPriority, testNow))
	b := buckets["2025-03-10"]
	if b == nil || len(b.Tasks) != 2 {
		t.Fatalf("expected two tasks on 2025-03-10")
	}
	if b.Tasks[0].ID != "a" || b.Tasks[1].ID != "c" {
		t.Fatalf("bucket lost rank order: %s, %s", b.Tasks[0].ID, b.Tasks[1].ID)
	}
}

func TestOptimizeUserScope(t *testing.T) {
	res := Optimize(sampleTasks(), StrategyPriority, testNow, Scope{UserID: "u2"})
	if len(res.OrderedTasks) != 1 || res.OrderedTasks[0].ID != "b" {
		t.Fatalf("expected only u2's task, got %d tasks", len(res.OrderedTasks))
	}
}

func TestOptimizeTeamWindow(t *testing.T) {
	scope := Scope{TeamID: "team-1", StartDate: "2025-03-11", EndDate: "2025-03-11"}
	res := Optimize(sampleTasks(), StrategyPriority, testNow, scope)
	if len(res.OrderedTasks) != 1 || res.OrderedTasks[0].ID != "b" {
		t.Fatalf("window should keep only task b, got %d tasks", len(res.OrderedTasks))
	}
}

func TestOptimizeTotals(t *testing.T) {
	res := Optimize(sampleTasks(), StrategyPriority, testNow, Scope{TeamID: "team-1"})
	if !almostEqual(res.TotalPlanned, 25) || !almostEqual(res.TotalActual, 9) || !almostEqual(res.TotalRemaining, 16) {
		t.Fatalf("totals planned=%v actual=%v remaining=%v", res.TotalPlanned, res.TotalActual, res.TotalRemaining)
	}
}

func TestOptimizeReproducible(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	first := Optimize(sampleTasks(), StrategyCompletionDate, now, Scope{TeamID: "team-1"})
	second := Optimize(sampleTasks(), StrategyCompletionDate, now, Scope{TeamID: "team-1"})
	if len(first.OrderedTasks) != len(second.OrderedTasks) {
		t.Fatalf("result sizes differ")
	}
	for i := range first.OrderedTasks {
		if first.OrderedTasks[i].ID != second.OrderedTasks[i].ID {
			t.Fatalf("order differs at %d", i)
		}
	}
}
