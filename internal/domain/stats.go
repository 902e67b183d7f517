package domain

// Statistics summarises a run of observations ordered by time.
type Statistics struct {
	MaxWeight    float64 `json:"maxWeight"`
	MinWeight    float64 `json:"minWeight"`
	AvgWeight    float64 `json:"avgWeight"`
	LatestWeight float64 `json:"latestWeight"`
	Change       float64 `json:"change"`
}

// ComputeStatistics reduces obs, which must be in ascending time order. It
// reports false and computes nothing when obs is empty.
func ComputeStatistics(obs []WeightObservation) (Statistics, bool) {
	if len(obs) == 0 {
		return Statistics{}, false
	}
	first := obs[0].WeightKg
	st := Statistics{MaxWeight: first, MinWeight: first}
	var sum float64
	for _, o := range obs {
		if o.WeightKg > st.MaxWeight {
			st.MaxWeight = o.WeightKg
		}
		if o.WeightKg < st.MinWeight {
			st.MinWeight = o.WeightKg
		}
		sum += o.WeightKg
	}
	st.AvgWeight = sum / float64(len(obs))
	st.LatestWeight = obs[len(obs)-1].WeightKg
	st.Change = st.LatestWeight - first
	return st, true
}

// In returns a copy of s converted to unit.
func (s Statistics) In(unit Unit) Statistics {
	return Statistics{
		MaxWeight:    Convert(s.MaxWeight, unit),
		MinWeight:    Convert(s.MinWeight, unit),
		AvgWeight:    Convert(s.AvgWeight, unit),
		LatestWeight: Convert(s.LatestWeight, unit),
		Change:       Convert(s.Change, unit),
	}
}

// Progress returns how many kilograms latestKg is above targetKg. ok is false
// when no target is set.
func Progress(latestKg, targetKg float64) (remaining float64, ok bool) {
	if targetKg <= 0 {
		return 0, false
	}
	return latestKg - targetKg, true
}
