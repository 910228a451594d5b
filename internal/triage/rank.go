package triage

import (
	"cmp"
	"slices"
)

// RankBySeverity sorts results by severity rating, highest first. A missing
// rating sorts as 0; equal keys keep their input order. The input is sorted in
// place and returned.
func RankBySeverity(results []*Result) []*Result {
	slices.SortStableFunc(results, func(a, b *Result) int {
		return cmp.Compare(sortKey(b), sortKey(a))
	})
	return results
}

func sortKey(r *Result) float64 {
	if r.SeverityRating == nil {
		return 0
	}
	return *r.SeverityRating
}
