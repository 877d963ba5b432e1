package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarsten/tickersync/internal/models"
)

func date(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func bar(day, close string) models.Bar {
	return models.Bar{
		Date:     date(day),
		Open:     close,
		High:     close,
		Low:      close,
		Close:    close,
		AdjClose: close,
		Volume:   "1000",
		Ticker:   "TEST",
	}
}

func closes(s models.Series) []string {
	out := make([]string, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

func TestMergeEmpty(t *testing.T) {
	assert.Empty(t, Merge())
	assert.Empty(t, Merge(models.Series{}, models.Series{}))
	assert.Empty(t, Merge(nil, models.Series{}))
}

func TestMergeDisjoint(t *testing.T) {
	early := models.Series{bar("2024-01-01", "10"), bar("2024-01-02", "11")}
	late := models.Series{bar("2024-01-05", "15"), bar("2024-01-06", "16")}

	merged := Merge(early, late)
	require.Len(t, merged, 4)
	assert.True(t, merged.IsSorted())

	// Disjoint inputs merge the same regardless of argument order.
	assert.Equal(t, merged, Merge(late, early))
}

func TestMergeIdempotent(t *testing.T) {
	s := models.Series{bar("2024-01-01", "10"), bar("2024-01-02", "11"), bar("2024-01-03", "12")}

	merged := Merge(s, s)
	assert.Equal(t, s, merged)

	assert.Equal(t, s, Merge(s))
}

func TestMergeLaterInputWins(t *testing.T) {
	stale := models.Series{bar("2024-01-02", "99"), bar("2024-01-03", "98")}
	fresh := models.Series{bar("2024-01-01", "10"), bar("2024-01-02", "11")}

	merged := Merge(stale, fresh)
	require.Len(t, merged, 3)
	require.True(t, merged.IsSorted())

	// 2024-01-02 came from both inputs; the later input's bar survives.
	assert.Equal(t, []string{"10", "11", "98"}, closes(merged))
}

func TestMergeOverlappingAdjacent(t *testing.T) {
	// Gap fetches share an anchor day with existing coverage; the shared
	// date must collapse to a single bar.
	local := models.Series{bar("2024-01-03", "13"), bar("2024-01-04", "14")}
	fetchedLeading := models.Series{bar("2024-01-01", "11"), bar("2024-01-02", "12"), bar("2024-01-03", "13")}

	merged := Merge(local, fetchedLeading)
	require.Len(t, merged, 4)
	assert.True(t, merged.IsSorted())
	assert.Equal(t, []string{"11", "12", "13", "14"}, closes(merged))
}

func TestMergeAssociative(t *testing.T) {
	a := models.Series{bar("2024-01-01", "1")}
	b := models.Series{bar("2024-01-02", "2")}
	c := models.Series{bar("2024-01-01", "3"), bar("2024-01-03", "4")}

	assert.Equal(t, Merge(Merge(a, b), c), Merge(a, Merge(b, c)))
}
