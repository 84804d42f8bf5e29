// Package rank turns a pool of scored candidates into a bounded, ordered
// shortlist.
package rank

import (
	"sort"

	"contentagent/internal/domain"
)

// Ranker filters and orders curated records by score.
type Ranker struct{}

// New returns a Ranker.
func New() *Ranker {
	return &Ranker{}
}

// FilterAndRank keeps records with score >= minScore, sorts them descending
// by score (ties keep input order), truncates to topK, and assigns ranks
// 1..len(result). An empty result is not an error.
func (r *Ranker) FilterAndRank(items []domain.CuratedRecord, minScore, topK int) []domain.CuratedRecord {
	qualified := make([]domain.CuratedRecord, 0, len(items))
	for _, item := range items {
		if item.Score >= minScore {
			qualified = append(qualified, item)
		}
	}

	if len(qualified) == 0 {
		return []domain.CuratedRecord{}
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		return qualified[i].Score > qualified[j].Score
	})

	if len(qualified) > topK {
		qualified = qualified[:topK]
	}

	for i := range qualified {
		qualified[i].Rank = i + 1
	}

	return qualified
}

// Statistics summarizes the unfiltered candidate pool: count, mean/max/min
// score, and a fixed four-bucket histogram. Observability only.
type Statistics struct {
	Total    int            `json:"total"`
	AvgScore float64        `json:"avg_score"`
	MaxScore int            `json:"max_score"`
	MinScore int            `json:"min_score"`
	Buckets  map[string]int `json:"score_distribution"`
}

// GetStatistics computes Statistics over the given records.
func (r *Ranker) GetStatistics(items []domain.CuratedRecord) Statistics {
	stats := Statistics{
		Buckets: map[string]int{"90-100": 0, "75-89": 0, "60-74": 0, "0-59": 0},
	}
	if len(items) == 0 {
		return stats
	}

	stats.Total = len(items)
	stats.MaxScore = items[0].Score
	stats.MinScore = items[0].Score

	sum := 0
	for _, item := range items {
		s := item.Score
		sum += s
		if s > stats.MaxScore {
			stats.MaxScore = s
		}
		if s < stats.MinScore {
			stats.MinScore = s
		}

		switch {
		case s >= 90:
			stats.Buckets["90-100"]++
		case s >= 75:
			stats.Buckets["75-89"]++
		case s >= 60:
			stats.Buckets["60-74"]++
		default:
			stats.Buckets["0-59"]++
		}
	}

	stats.AvgScore = float64(sum) / float64(len(items))
	return stats
}
