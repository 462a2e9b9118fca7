// Package analysis derives wait-time statistics from retained queue rows.
// Matched entries are never deleted, so the time between enqueue and match
// is always recoverable.
package analysis

import (
	"dailymatch/backend/internal/models"
	"slices"
	"time"
)

// RankWaitStats summarises waits of matched entries of one rank.
type RankWaitStats struct {
	Rank    string        `json:"rank"`
	Matched int           `json:"matched"`
	Average time.Duration `json:"average_ns"`
	Median  time.Duration `json:"median_ns"`
	Max     time.Duration `json:"max_ns"`
}

// WaitTime returns how long entry waited before being matched.
// It returns 0 for entries that were never matched.
func WaitTime(entry models.QueueEntry) time.Duration {
	if entry.Status != models.QueueStatusMatched {
		return 0
	}
	return entry.UpdatedAt.Sub(entry.CreatedAt)
}

// WaitTimesByRank groups matched entries by rank, sorted by rank name.
func WaitTimesByRank(entries []models.QueueEntry) []RankWaitStats {
	waits := make(map[string][]time.Duration)
	for _, e := range entries {
		if e.Status != models.QueueStatusMatched {
			continue
		}
		waits[e.Rank] = append(waits[e.Rank], WaitTime(e))
	}

	stats := make([]RankWaitStats, 0, len(waits))
	for rank, ds := range waits {
		slices.Sort(ds)

		var total time.Duration
		for _, d := range ds {
			total += d
		}

		stats = append(stats, RankWaitStats{
			Rank:    rank,
			Matched: len(ds),
			Average: total / time.Duration(len(ds)),
			Median:  median(ds),
			Max:     ds[len(ds)-1],
		})
	}

	slices.SortFunc(stats, func(a, b RankWaitStats) int {
		switch {
		case a.Rank < b.Rank:
			return -1
		case a.Rank > b.Rank:
			return 1
		}
		return 0
	})
	return stats
}

// median expects sorted, non-empty input.
func median(sorted []time.Duration) time.Duration {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
