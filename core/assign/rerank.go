package assign

import (
	"sort"

	"github.com/fieldserve/dispatch/core/model"
)

// Rerank pins the drag-target technician to the front of a freshly fetched
// suggestion list.
//
// Contract: the backend's ordering is trusted as the primary ranking. When
// the incoming list is already score-descending, every non-target entry keeps
// its backend-relative position. Only when the backend order is NOT
// score-descending does descending score kick in as a secondary key for the
// non-target entries. The sort is stable either way, so equal-priority
// entries never swap between refreshes.
func Rerank(suggs []model.AssignmentSuggestion, targetTechID string) []model.AssignmentSuggestion {
	out := append([]model.AssignmentSuggestion(nil), suggs...)
	backendSorted := sort.SliceIsSorted(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].TechID == targetTechID, out[j].TechID == targetTechID
		if ti != tj {
			return ti
		}
		if backendSorted {
			return false // keep backend order
		}
		return out[i].Score > out[j].Score
	})
	return out
}
