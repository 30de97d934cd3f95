package spindle_test

import (
	"testing"

	"github.com/mitosis-data/spindle.report/internal/spindle"
)

func seq(from, n int) []int {
	ts := make([]int, n)
	for k := range ts {
		ts[k] = from + k
	}
	return ts
}

func TestCongressionRunExcursionNotMerged(t *testing.T) {
	// Two tracks overlapping frames [10, 20): an above-threshold excursion
	// in the middle splits the congression into two runs of four. The
	// result is the longer run, never the 8-sample total.
	times := seq(10, 10)
	dists := []float64{3, 3, 2, 2, 6, 6, 2, 2, 2, 2}
	if got := spindle.CongressionRun(times, dists, 4); got != 4 {
		t.Errorf("CongressionRun = %d, want 4", got)
	}
}

func TestCongressionRunSplitNeverSums(t *testing.T) {
	// Breaking a run of 6 with an above-threshold pair must return the
	// longer sub-run, not the sum of the two.
	times := seq(0, 6)
	dists := []float64{1, 1, 1, 1, 1, 1}
	if got := spindle.CongressionRun(times, dists, 2); got != 6 {
		t.Fatalf("unbroken run = %d, want 6", got)
	}
	times = seq(0, 8)
	dists = []float64{1, 1, 1, 1, 9, 9, 1, 1}
	if got := spindle.CongressionRun(times, dists, 2); got != 4 {
		t.Errorf("broken run = %d, want 4 (longer sub-run)", got)
	}
}

func TestCongressionRunGapTerminates(t *testing.T) {
	// Frame 3 is a coverage gap; even though distances on both sides are
	// under threshold the two runs must not merge.
	times := []int{0, 1, 2, 4, 5}
	dists := []float64{1, 1, 1, 1, 1}
	if got := spindle.CongressionRun(times, dists, 2); got != 3 {
		t.Errorf("CongressionRun = %d, want 3", got)
	}
}

func TestCongressionRunEdgeCases(t *testing.T) {
	cases := []struct {
		name      string
		times     []int
		dists     []float64
		threshold float64
		want      int
	}{
		{"empty", nil, nil, 4, 0},
		{"single below", []int{7}, []float64{1}, 4, 1},
		{"single above", []int{7}, []float64{9}, 4, 0},
		{"single at threshold", []int{7}, []float64{4}, 4, 0},
		{"all above", seq(0, 5), []float64{9, 9, 9, 9, 9}, 4, 0},
		{"all below", seq(0, 5), []float64{1, 1, 1, 1, 1}, 4, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := spindle.CongressionRun(tc.times, tc.dists, tc.threshold); got != tc.want {
				t.Errorf("CongressionRun = %d, want %d", got, tc.want)
			}
		})
	}
}
