package optimize

import (
	"sort"
	"time"

	"taskdeck/internal/domain"
)

// Rank scores and orders tasks descending by final score. Completed
// tasks always rank after every active task regardless of score; each
// partition is sorted with a stable sort so equal scores keep their
// input order.
func Rank(tasks []domain.Task, strategy Strategy, now time.Time) []domain.Task {
	var active, completed []Scored
	for _, t := range tasks {
		s := Score(t, now, strategy)
		if s.IsCompleted {
			completed = append(completed, s)
		} else {
			active = append(active, s)
		}
	}
	sortDescending(active)
	sortDescending(completed)

	out := make([]domain.Task, 0, len(tasks))
	for _, s := range active {
		out = append(out, s.Task)
	}
	for _, s := range completed {
		out = append(out, s.Task)
	}
	return out
}

func sortDescending(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
}
