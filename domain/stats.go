package domain

import "sort"

// HeatmapBucket is the per-date completion count feeding the heatmap view.
type HeatmapBucket struct {
	Date      string `json:"date"`
	Completed int    `json:"completed"`
}

// Heatmap buckets persisted records into per-date completion counts for the
// window [from, to]. Both bounds are inclusive date strings; an empty bound
// leaves that side of the window open. Buckets are sorted ascending by date.
func Heatmap(records []DayRecord, from, to string) []HeatmapBucket {
	buckets := make([]HeatmapBucket, 0, len(records))
	for _, rec := range records {
		if from != "" && rec.Date < from {
			continue
		}
		if to != "" && rec.Date > to {
			continue
		}
		buckets = append(buckets, HeatmapBucket{Date: rec.Date, Completed: rec.CompletedCount()})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date < buckets[j].Date })
	return buckets
}

// TaskStat summarizes one fixed task across all persisted days.
type TaskStat struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Completions int     `json:"completions"`
	Rate        float64 `json:"rate"`
}

// TaskStats computes per-task completion totals and rates over the given
// records. Rate is completions divided by the number of persisted days; with
// no records all rates are zero.
func TaskStats(records []DayRecord, catalog []FixedTask) []TaskStat {
	stats := make([]TaskStat, 0, len(catalog))
	for _, task := range catalog {
		stat := TaskStat{ID: task.ID, Name: task.Name}
		for _, rec := range records {
			if rec.Tasks[task.ID].Completed {
				stat.Completions++
			}
		}
		if len(records) > 0 {
			stat.Rate = float64(stat.Completions) / float64(len(records))
		}
		stats = append(stats, stat)
	}
	return stats
}
