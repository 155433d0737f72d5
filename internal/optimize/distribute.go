package optimize

import (
	"sort"

	"taskdeck/internal/domain"
)

// Bucket accumulates labor for every task starting on one calendar
// day. RemainingLabor can go negative on overrun.
type Bucket struct {
	Date           string
	PlannedLabor   float64
	ActualLabor    float64
	RemainingLabor float64
	Tasks          []domain.Task
}

// Distribute groups a ranked task list into per-day buckets keyed by
// each task's start date. Time of day is discarded. Task order inside
// a bucket preserves the incoming rank order.
func Distribute(ranked []domain.Task) map[string]*Bucket {
	buckets := make(map[string]*Bucket)
	for _, t := range ranked {
		key := ""
		if ts, ok := ParseDate(t.StartDate); ok {
			key = DayKey(ts)
		}
		b, exists := buckets[key]
		if !exists {
			b = &Bucket{Date: key}
			buckets[key] = b
		}
		b.PlannedLabor += t.PlannedLabor
		b.ActualLabor += t.ActualLabor
		b.RemainingLabor += t.PlannedLabor - t.ActualLabor
		b.Tasks = append(b.Tasks, t)
	}
	return buckets
}

// SortedBuckets orders buckets ascending by date for display
// consumers. The bucket map itself carries no order.
func SortedBuckets(buckets map[string]*Bucket) []Bucket {
	out := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
