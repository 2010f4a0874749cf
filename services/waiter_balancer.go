package services

import "sort"

// WaiterLoad is a waiter and the number of tables currently assigned to them.
type WaiterLoad struct {
	WaiterID uint
	Tables   int
}

// PickLeastLoaded returns the waiter with the fewest tables. Ties go to the
// waiter listed first. ok is false when loads is empty.
func PickLeastLoaded(loads []WaiterLoad) (uint, bool) {
	if len(loads) == 0 {
		return 0, false
	}
	sorted := make([]WaiterLoad, len(loads))
	copy(sorted, loads)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Tables < sorted[j].Tables
	})
	return sorted[0].WaiterID, true
}
