package spindle_test

import (
	"errors"
	"math"
	"testing"

	"github.com/mitosis-data/spindle.report/internal/spindle"
)

func TestTrackDistancesOverlapWindow(t *testing.T) {
	// A spans [0, 5), B spans [3, 10): the overlap window is [3, 5).
	a := spindle.NewArena()
	straightTrack(a, 1, 0, 5, 48)
	straightTrack(a, 2, 3, 10, 52)

	s, err := spindle.TrackDistances(a, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{3, 4}; len(s.Times) != 2 || s.Times[0] != want[0] || s.Times[1] != want[1] {
		t.Errorf("times = %v, want %v", s.Times, want)
	}
	for k, d := range s.Dists {
		if math.Abs(d-4) > 1e-12 {
			t.Errorf("dist[%d] = %v, want 4", k, d)
		}
	}
}

func TestTrackDistancesNoOverlap(t *testing.T) {
	a := spindle.NewArena()
	straightTrack(a, 1, 0, 5, 48)
	straightTrack(a, 2, 7, 10, 52)

	_, err := spindle.TrackDistances(a, 1, 2)
	if !errors.Is(err, spindle.ErrNoOverlap) {
		t.Fatalf("err = %v, want ErrNoOverlap", err)
	}

	// Touching windows ([0,5) and [5,10)) are also no overlap.
	straightTrack(a, 3, 5, 10, 52)
	if _, err := spindle.TrackDistances(a, 1, 3); !errors.Is(err, spindle.ErrNoOverlap) {
		t.Fatalf("touching windows: err = %v, want ErrNoOverlap", err)
	}
}

func TestTrackDistancesEmptySeriesIsNotError(t *testing.T) {
	// The windows overlap on [2, 6) but track 2 has no detections inside
	// it: the series is empty, which is distinct from ErrNoOverlap.
	a := spindle.NewArena()
	straightTrack(a, 1, 0, 6, 48)
	addTrack(a, 2, 2, 8, map[int]spindle.Vec3{
		6: {X: 52, Y: 50},
		7: {X: 52, Y: 50},
	})

	s, err := spindle.TrackDistances(a, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}
}

func TestTrackDistancesSkipsGaps(t *testing.T) {
	a := spindle.NewArena()
	straightTrack(a, 1, 0, 6, 48)
	// Track 2 misses frame 2 entirely.
	addTrack(a, 2, 0, 6, map[int]spindle.Vec3{
		0: {X: 52, Y: 50},
		1: {X: 52, Y: 50},
		3: {X: 52, Y: 50},
		4: {X: 52, Y: 50},
		5: {X: 52, Y: 50},
	})

	s, err := spindle.TrackDistances(a, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 1, 3, 4, 5}
	if len(s.Times) != len(want) {
		t.Fatalf("times = %v, want %v", s.Times, want)
	}
	for k := range want {
		if s.Times[k] != want[k] {
			t.Fatalf("times = %v, want %v", s.Times, want)
		}
	}
}

func TestTrackDistancesCentersAndNormals(t *testing.T) {
	a := spindle.NewArena()
	addTrack(a, 1, 0, 2, map[int]spindle.Vec3{
		0: {X: 40, Y: 50},
		1: {X: 40, Y: 50},
	})
	addTrack(a, 2, 0, 2, map[int]spindle.Vec3{
		0: {X: 46, Y: 50},
		1: {X: 46, Y: 50},
	})

	s, err := spindle.TrackDistances(a, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	if c := s.Centers[0]; c != (spindle.Vec3{X: 43, Y: 50}) {
		t.Errorf("center = %+v, want (43, 50, 0)", c)
	}
	// Normal points from track 2's spot toward track 1's and is unit length.
	if n := s.Normals[0]; n != (spindle.Vec3{X: -1}) {
		t.Errorf("normal = %+v, want (-1, 0, 0)", n)
	}
}
