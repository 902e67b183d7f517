package domain

import "sort"

// DedupeByDay collapses rows sharing a user and local calendar day down to the
// row with the latest timestamp (the higher id on a tie). Day keys are
// recomputed from timestamps and the result is ascending by timestamp.
// Applying it to its own output returns the same rows.
func DedupeByDay(rows []WeightObservation) []WeightObservation {
	type key struct {
		user int64
		day  string
	}
	keep := make(map[key]WeightObservation, len(rows))
	for _, r := range rows {
		r.Day = DayKey(r.Timestamp)
		k := key{r.UserID, r.Day}
		cur, ok := keep[k]
		if !ok || r.Timestamp.After(cur.Timestamp) || (r.Timestamp.Equal(cur.Timestamp) && r.ID > cur.ID) {
			keep[k] = r
		}
	}

	out := make([]WeightObservation, 0, len(keep))
	for _, r := range keep {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
