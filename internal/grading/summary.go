package grading

import "sort"

// Summarize aggregates calculated results of one exam. Items nobody missed are
// absent from MissedCounts. When totalItems is positive, missed item numbers
// outside 1..totalItems are ignored.
func Summarize(results []Result, totalItems int) Summary {
	s := Summary{MissedCounts: make(map[int]int)}
	if len(results) == 0 {
		return s
	}

	s.TotalStudents = len(results)
	s.HighestScore = results[0].Score
	s.LowestScore = results[0].Score

	sum := 0.0
	flagged := 0
	for _, r := range results {
		sum += r.Score
		if r.Score > s.HighestScore {
			s.HighestScore = r.Score
		}
		if r.Score < s.LowestScore {
			s.LowestScore = r.Score
		}
		for _, item := range r.MissedItems {
			if totalItems > 0 && (item < 1 || item > totalItems) {
				continue
			}
			s.MissedCounts[item]++
		}
		if r.Passed != nil {
			flagged++
			if *r.Passed {
				s.PassedCount++
			}
		}
	}
	s.Average = sum / float64(len(results))
	if flagged > 0 {
		s.PassRate = floatPtr(float64(s.PassedCount) / float64(flagged) * 100)
	}
	return s
}

// Breakdown groups results by school and sorts the groups by average score,
// best first. Results without a school are grouped under the empty name.
func Breakdown(results []Result) []SchoolSummary {
	type acc struct {
		sum   float64
		max   float64
		count int
	}

	groups := make(map[string]*acc)
	for _, r := range results {
		g, ok := groups[r.School]
		if !ok {
			g = &acc{max: r.Score}
			groups[r.School] = g
		}
		g.sum += r.Score
		g.count++
		if r.Score > g.max {
			g.max = r.Score
		}
	}

	out := make([]SchoolSummary, 0, len(groups))
	for school, g := range groups {
		out = append(out, SchoolSummary{
			School:        school,
			Average:       g.sum / float64(g.count),
			HighestScore:  g.max,
			TotalStudents: g.count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Average != out[j].Average {
			return out[i].Average > out[j].Average
		}
		return out[i].School < out[j].School
	})
	return out
}
