package exam

import (
	"sort"
	"strings"

	"academy/internal/grading"
)

type SheetResult struct {
	Score      float64 `json:"score"`
	Correct    int     `json:"correct"`
	Missed     []int   `json:"missed_items"`
	Unanswered []int   `json:"unanswered_items"`
}

// ScoreSheet checks a student's literal answers against an answer key.
//
// Answers are compared case-insensitively after trimming. A key listing several
// options ("A,C") requires exactly that set. Point exams earn the item weight
// (1 when unweighted) per correct item; other modes count correct items.
// Answers to items outside the key are ignored.
func ScoreSheet(mode grading.ModeKind, key map[int]string, weights map[int]float64, answers map[int]string) SheetResult {
	items := make([]int, 0, len(key))
	for item := range key {
		items = append(items, item)
	}
	sort.Ints(items)

	res := SheetResult{Missed: make([]int, 0), Unanswered: make([]int, 0)}
	for _, item := range items {
		correct := parseOptions(key[item])
		if len(correct) == 0 {
			continue
		}
		selected := parseOptions(answers[item])
		if len(selected) == 0 {
			res.Unanswered = append(res.Unanswered, item)
			res.Missed = append(res.Missed, item)
			continue
		}
		if !equalSet(selected, correct) {
			res.Missed = append(res.Missed, item)
			continue
		}

		res.Correct++
		if mode == grading.KindPoints {
			w, ok := weights[item]
			if !ok {
				w = 1
			}
			res.Score += w
		} else {
			res.Score++
		}
	}
	return res
}

func parseOptions(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '|' || r == ';'
	})
	return normalizeStringSet(fields)
}

func normalizeStringSet(in []string) []string {
	set := map[string]struct{}{}
	for _, v := range in {
		s := strings.ToUpper(strings.TrimSpace(v))
		if s == "" {
			continue
		}
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// equalSet expects both inputs normalized and sorted.
func equalSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
