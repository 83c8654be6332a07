package grading

import "sort"

// Calculate ranks every score entry of exam and annotates it with roster
// details, percentile, percentage, pass flag and grade.
//
// Results are ordered by rank; entries with equal scores share a rank and keep
// their input order. An empty exam yields an empty slice.
func Calculate(exam Exam, roster Roster) []Result {
	n := len(exam.Scores)
	out := make([]Result, 0, n)
	if n == 0 {
		return out
	}

	students := roster.index()
	scores := make([]float64, n)
	for i, e := range exam.Scores {
		scores[i] = e.Score
	}
	order, ranks := rankScores(scores)

	maxScore := MaxScore(exam.Mode)
	bands := sortBands(exam.GradeBands)

	for _, i := range order {
		e := exam.Scores[i]
		r := Result{
			StudentID:  e.StudentID,
			Name:       UnknownName,
			Score:      e.Score,
			Rank:       ranks[i],
			Percentile: positionalPercentile(ranks[i], n),
		}
		if s, ok := students[e.StudentID]; ok {
			r.Name = s.Name
			r.School = s.School
			r.Note = s.Note
		}
		if pct, ok := Percent(e.Score, maxScore); ok {
			r.Percentage = floatPtr(pct)
		}
		if exam.PassThreshold != nil {
			r.Passed = boolPtr(e.Score >= *exam.PassThreshold)
		}
		if len(e.MissedItems) > 0 {
			r.MissedItems = append([]int(nil), e.MissedItems...)
		}
		r.Grade = gradeFor(bands, r.Percentile)
		out = append(out, r)
	}
	return out
}

// CalculateBySchool is Calculate plus a second, independent ranking pass inside
// each school. Students without a school form their own group.
func CalculateBySchool(exam Exam, roster Roster) []Result {
	out := Calculate(exam, roster)

	groups := make(map[string][]int)
	for i, r := range out {
		groups[r.School] = append(groups[r.School], i)
	}
	for _, members := range groups {
		scores := make([]float64, len(members))
		for j, i := range members {
			scores[j] = out[i].Score
		}
		_, ranks := rankScores(scores)
		for j, i := range members {
			out[i].SchoolRank = ranks[j]
			out[i].SchoolPercentile = positionalPercentile(ranks[j], len(members))
		}
	}
	return out
}

// rankScores orders scores descending and assigns competition ranks: each rank
// is one plus the number of strictly greater scores. order holds indexes into
// scores in ranked order; ranks is indexed like scores.
func rankScores(scores []float64) (order []int, ranks []int) {
	order = make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	ranks = make([]int, len(scores))
	rank := 0
	for pos, i := range order {
		if pos == 0 || scores[i] < scores[order[pos-1]] {
			rank = pos + 1
		}
		ranks[i] = rank
	}
	return order, ranks
}

func positionalPercentile(rank, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(rank) / float64(total) * 100
}
