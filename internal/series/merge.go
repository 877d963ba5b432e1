// Package series combines chronologically overlapping or adjacent bar
// sequences into a single sorted, duplicate-free series.
package series

import (
	"time"

	"github.com/tkarsten/tickersync/internal/models"
)

// Merge combines the input series into one sorted series with unique dates.
// Each input must itself be sorted; inputs may overlap in date range. When
// the same date appears in more than one input, the bar from the
// later-supplied input wins, so freshly fetched remote data overrides stale
// local data for the same day. Merge is associative and idempotent: merging
// a series with itself yields the same series.
func Merge(inputs ...models.Series) models.Series {
	total := 0
	for _, in := range inputs {
		total += len(in)
	}
	if total == 0 {
		return models.Series{}
	}

	byDate := make(map[time.Time]models.Bar, total)
	for _, in := range inputs {
		for _, bar := range in {
			byDate[bar.Date] = bar
		}
	}

	merged := make(models.Series, 0, len(byDate))
	for _, bar := range byDate {
		merged = append(merged, bar)
	}
	merged.Sort()
	return merged
}
