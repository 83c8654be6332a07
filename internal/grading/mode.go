package grading

import "strings"

// ModeKind is the persisted name of an exam mode.
type ModeKind string

const (
	KindPoints ModeKind = "points"
	KindCount  ModeKind = "count"
	KindSimple ModeKind = "simple"
)

// Mode describes how an exam's raw score relates to its maximum.
// The set of implementations is closed: PointMode, CountMode and SimpleMode.
type Mode interface {
	Kind() ModeKind
	mode()
}

// PointMode scores are literal point totals. Weights maps item number to points;
// when present their sum is expected to equal MaxScore.
type PointMode struct {
	MaxScore float64
	Weights  map[int]float64
}

// CountMode scores are the number of correctly answered items.
type CountMode struct {
	TotalItems int
}

// SimpleMode scores are a bare correct count without per-item detail.
type SimpleMode struct {
	TotalItems int
}

func (PointMode) Kind() ModeKind  { return KindPoints }
func (CountMode) Kind() ModeKind  { return KindCount }
func (SimpleMode) Kind() ModeKind { return KindSimple }

func (PointMode) mode()  {}
func (CountMode) mode()  {}
func (SimpleMode) mode() {}

// ParseModeKind accepts the persisted mode names, case-insensitively.
func ParseModeKind(v string) (ModeKind, bool) {
	switch ModeKind(strings.ToLower(strings.TrimSpace(v))) {
	case KindPoints:
		return KindPoints, true
	case KindCount:
		return KindCount, true
	case KindSimple:
		return KindSimple, true
	default:
		return "", false
	}
}

// MaxScore returns the best achievable raw score for mode, or 0 when unknown.
func MaxScore(mode Mode) float64 {
	switch m := mode.(type) {
	case PointMode:
		if m.MaxScore > 0 {
			return m.MaxScore
		}
		return WeightSum(m.Weights)
	case CountMode:
		return float64(m.TotalItems)
	case SimpleMode:
		return float64(m.TotalItems)
	default:
		return 0
	}
}

// TotalItems returns the declared item count for mode. Point mode without
// weights has no item count and returns 0.
func TotalItems(mode Mode) int {
	switch m := mode.(type) {
	case PointMode:
		n := 0
		for item := range m.Weights {
			if item > n {
				n = item
			}
		}
		return n
	case CountMode:
		return m.TotalItems
	case SimpleMode:
		return m.TotalItems
	default:
		return 0
	}
}

func WeightSum(weights map[int]float64) float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	return sum
}
