package rxtdb

// Nearest picks the stored timestamp an approximate query for q resolves to:
// the latest timestamp at or before q, or the earliest stored timestamp when
// every stored timestamp is after q. It reports false only for an empty set.
func Nearest(stored []int64, q int64) (int64, bool) {
	if len(stored) == 0 {
		return 0, false
	}

	earliest := stored[0]
	var latest int64
	found := false
	for _, t := range stored {
		if t < earliest {
			earliest = t
		}
		if t <= q && (!found || t > latest) {
			latest = t
			found = true
		}
	}

	if found {
		return latest, true
	}
	return earliest, true
}
