package grading

import "testing"

func TestParseModeKind(t *testing.T) {
	tests := []struct {
		in   string
		want ModeKind
		ok   bool
	}{
		{in: "points", want: KindPoints, ok: true},
		{in: " COUNT ", want: KindCount, ok: true},
		{in: "Simple", want: KindSimple, ok: true},
		{in: "", ok: false},
		{in: "percent", ok: false},
	}

	for _, tc := range tests {
		got, ok := ParseModeKind(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseModeKind(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMaxScoreAndTotalItems(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		max   float64
		items int
	}{
		{name: "points declared", mode: PointMode{MaxScore: 100}, max: 100, items: 0},
		{name: "points weights", mode: PointMode{Weights: map[int]float64{1: 1.5, 2: 2.5, 4: 1}}, max: 5, items: 4},
		{name: "count", mode: CountMode{TotalItems: 30}, max: 30, items: 30},
		{name: "simple", mode: SimpleMode{TotalItems: 12}, max: 12, items: 12},
		{name: "nil", mode: nil, max: 0, items: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MaxScore(tc.mode); !approx(got, tc.max) {
				t.Fatalf("MaxScore = %v, want %v", got, tc.max)
			}
			if got := TotalItems(tc.mode); got != tc.items {
				t.Fatalf("TotalItems = %d, want %d", got, tc.items)
			}
		})
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		places int
		want   float64
	}{
		{v: 33.333333, places: 2, want: 33.33},
		{v: 2.675, places: 1, want: 2.7},
		{v: -1.25, places: 1, want: -1.3},
		{v: 7.5, places: -1, want: 8},
	}

	for _, tc := range tests {
		if got := Round(tc.v, tc.places); !approx(got, tc.want) {
			t.Fatalf("Round(%v,%d) = %v, want %v", tc.v, tc.places, got, tc.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if _, ok := Percent(5, 0); ok {
		t.Fatalf("expected zero whole to be rejected")
	}
	if got, ok := Percent(3, 4); !ok || got != 75 {
		t.Fatalf("expected 75, got %v %v", got, ok)
	}
}

func TestValidateBands(t *testing.T) {
	if !ValidateBands(nil) {
		t.Fatalf("no bands is valid")
	}
	if !ValidateBands([]GradeBand{{Grade: "1", MaxPercentile: 4}, {Grade: "2", MaxPercentile: 100}}) {
		t.Fatalf("expected valid bands")
	}
	if ValidateBands([]GradeBand{{Grade: "", MaxPercentile: 10}}) {
		t.Fatalf("empty grade must be rejected")
	}
	if ValidateBands([]GradeBand{{Grade: "A", MaxPercentile: 120}}) {
		t.Fatalf("limit above 100 must be rejected")
	}
}
