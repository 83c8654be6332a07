package grading

import "sort"

// GradeBand assigns Grade to every result whose percentile is at most
// MaxPercentile and above the previous band's limit.
type GradeBand struct {
	Grade         string  `json:"grade"`
	MaxPercentile float64 `json:"max_percentile"`
}

func sortBands(bands []GradeBand) []GradeBand {
	if len(bands) == 0 {
		return nil
	}
	out := append([]GradeBand(nil), bands...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MaxPercentile < out[j].MaxPercentile
	})
	return out
}

// gradeFor expects bands sorted ascending. A percentile beyond the last band
// falls into the last band.
func gradeFor(bands []GradeBand, percentile float64) string {
	if len(bands) == 0 {
		return ""
	}
	for _, b := range bands {
		if percentile <= b.MaxPercentile {
			return b.Grade
		}
	}
	return bands[len(bands)-1].Grade
}

// ValidateBands reports whether every band has a grade and a limit in (0, 100].
func ValidateBands(bands []GradeBand) bool {
	for _, b := range bands {
		if b.Grade == "" || b.MaxPercentile <= 0 || b.MaxPercentile > 100 {
			return false
		}
	}
	return true
}
