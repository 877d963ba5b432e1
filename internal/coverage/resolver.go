// Package coverage computes the minimal set of missing date ranges that must
// be fetched remotely to satisfy a requested interval against the local
// cache's known coverage.
package coverage

import "github.com/tkarsten/tickersync/internal/models"

// Resolve returns the gap intervals that must be fetched to cover the
// requested interval, in chronological order (earlier gap first).
//
// With no local coverage (cov == nil) the whole requested interval is the
// single gap. Otherwise a leading gap [req.Start, cov.Min] is emitted when
// the request starts before coverage, and a trailing gap [cov.Max, req.End]
// when it ends after coverage. The gap endpoints deliberately include the
// nearest cached day so the merge has an anchor point; duplicate collapse in
// the merger absorbs the overlap.
//
// A request entirely outside current coverage (on either side) falls out of
// the same two-sided rule: the gap runs from the requested edge to the
// nearest cached edge. That over-fetches the span between them, but the
// merge is idempotent and the cache ends up contiguous, which keeps later
// coverage queries a simple min/max.
func Resolve(req models.Interval, cov *models.Coverage) ([]models.Interval, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if cov == nil {
		return []models.Interval{req}, nil
	}

	var gaps []models.Interval
	if req.Start.Before(cov.Min) {
		gaps = append(gaps, models.Interval{Start: req.Start, End: cov.Min})
	}
	if req.End.After(cov.Max) {
		gaps = append(gaps, models.Interval{Start: cov.Max, End: req.End})
	}
	return gaps, nil
}
