package spindle_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitosis-data/spindle.report/internal/spindle"
)

func TestPairerConfigValidate(t *testing.T) {
	require.NoError(t, testConfig().Validate())

	for name, mutate := range map[string]func(*spindle.PairerConfig){
		"zero min overlap":     func(c *spindle.PairerConfig) { c.MinOverlap = 0 },
		"negative min overlap": func(c *spindle.PairerConfig) { c.MinOverlap = -1 },
		"zero max dist":        func(c *spindle.PairerConfig) { c.MaxDist = 0 },
		"zero min dist":        func(c *spindle.PairerConfig) { c.MinDist = 0 },
		"zero cong dist":       func(c *spindle.PairerConfig) { c.MaxCongDist = 0 },
		"zero frame interval":  func(c *spindle.PairerConfig) { c.FrameInterval = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFindPairsRejectsBadBounds(t *testing.T) {
	a := spindle.NewArena()
	_, err := spindle.FindPairs(a, spindle.Bounds{}, testConfig(), zerolog.Nop())
	require.Error(t, err)
}

func TestSelectTracksBorderAndDuration(t *testing.T) {
	a := spindle.NewArena()
	straightTrack(a, 1, 0, 20, 50) // fine
	straightTrack(a, 2, 0, 20, 0)  // mean position exactly on left border
	straightTrack(a, 3, 0, 5, 50)  // too short
	a.SummarizeTracks()

	var buf bytes.Buffer
	ids := spindle.SelectTracks(a, testBounds, testConfig(), zerolog.New(&buf))
	assert.Equal(t, []int{1}, ids)

	log := buf.String()
	assert.Contains(t, log, "outside border")
	assert.Contains(t, log, "duration less than min overlap")
}

func TestFindPairsHappyPath(t *testing.T) {
	a := spindle.NewArena()
	straightTrack(a, 3, 0, 20, 48)
	straightTrack(a, 7, 0, 20, 51) // constant distance 3, under both thresholds
	a.SummarizeTracks()

	cells, err := spindle.FindPairs(a, testBounds, testConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, cells, 1)

	c := cells[0]
	assert.Equal(t, 3, c.CentIDI)
	assert.Equal(t, 7, c.CentIDJ)
	assert.InDelta(t, 20.0, c.TOverlap, 1e-12)
	assert.InDelta(t, 3.0, c.SLI, 1e-12)
	assert.InDelta(t, 3.0, c.SLF, 1e-12)
	assert.InDelta(t, 3.0, c.SLMin, 1e-12)
	assert.InDelta(t, 3.0, c.SLMax, 1e-12)
	// 20 consecutive frames under the congression threshold at 1s/frame.
	assert.InDelta(t, 20.0, c.TCong, 1e-12)
	// Constant geometry: no center or normal jitter.
	assert.InDelta(t, 0.0, c.CenterStdev, 1e-12)
	assert.InDelta(t, 0.0, c.NormalStdev, 1e-12)
	assert.InDelta(t, 49.5, c.Center.X, 1e-12)
	// Cell center (49.5, 50) sits 49.5 from the nearest border.
	assert.InDelta(t, 49.5, c.DistToBorder, 1e-12)
	// Photometrics are the means of the two parent tracks' summaries.
	assert.InDelta(t, 2.0, c.Diameter, 1e-12)
	assert.InDelta(t, 0.5, c.Contrast, 1e-12)
	assert.InDelta(t, 100.0, c.Intensity, 1e-12)
}

func TestFindPairsExtremesOrdering(t *testing.T) {
	// Distance ramps 2..5 then back down to 2: check sl_i/f/min/max
	// relationships on a non-constant series.
	a := spindle.NewArena()
	straightTrack(a, 1, 0, 12, 50)
	pos := map[int]spindle.Vec3{}
	offsets := []float64{2, 3, 4, 5, 5, 4, 3, 2, 2, 2, 2, 2}
	for t := 0; t < 12; t++ {
		pos[t] = spindle.Vec3{X: 50 + offsets[t], Y: 50}
	}
	addTrack(a, 2, 0, 12, pos)
	a.SummarizeTracks()

	cells, err := spindle.FindPairs(a, testBounds, testConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, cells, 1)

	c := cells[0]
	assert.InDelta(t, 2.0, c.SLI, 1e-12)
	assert.InDelta(t, 2.0, c.SLF, 1e-12)
	assert.InDelta(t, 2.0, c.SLMin, 1e-12)
	assert.InDelta(t, 5.0, c.SLMax, 1e-12)
	assert.LessOrEqual(t, c.SLMin, c.SLI)
	assert.LessOrEqual(t, c.SLMin, c.SLF)
	assert.LessOrEqual(t, c.SLMin, c.SLMax)
	assert.GreaterOrEqual(t, c.SLMax, c.SLI)
	assert.GreaterOrEqual(t, c.SLMax, c.SLF)
}

func TestFindPairsOverlapFilter(t *testing.T) {
	// A spans [0, 5), B spans [3, 10): overlap is 2, under minOverlap 3.
	a := spindle.NewArena()
	straightTrack(a, 1, 0, 5, 48)
	straightTrack(a, 2, 3, 10, 51)
	a.SummarizeTracks()

	cfg := testConfig()
	cfg.MinOverlap = 3

	var buf bytes.Buffer
	cells, err := spindle.FindPairs(a, testBounds, cfg, zerolog.New(&buf))
	require.NoError(t, err)
	assert.Empty(t, cells)
	assert.Contains(t, buf.String(), "overlap time too short")
}

func TestFindPairsSampleCountFilter(t *testing.T) {
	// Overlap window is long enough but only one frame has both tracks.
	a := spindle.NewArena()
	straightTrack(a, 1, 0, 20, 48)
	pos := map[int]spindle.Vec3{5: {X: 51, Y: 50}}
	addTrack(a, 2, 0, 20, pos)
	a.Tracks[2].Pos = spindle.Vec3{X: 51, Y: 50}
	a.SummarizeTracks()

	var buf bytes.Buffer
	cells, err := spindle.FindPairs(a, testBounds, testConfig(), zerolog.New(&buf))
	require.NoError(t, err)
	assert.Empty(t, cells)
	assert.Contains(t, buf.String(), "fewer than 2 overlapping samples")
}

func TestFindPairsMeanDistanceFilter(t *testing.T) {
	a := spindle.NewArena()
	straightTrack(a, 1, 0, 20, 40)
	straightTrack(a, 2, 0, 20, 53) // constant distance 13 > maxDist 11
	a.SummarizeTracks()

	var buf bytes.Buffer
	cells, err := spindle.FindPairs(a, testBounds, testConfig(), zerolog.New(&buf))
	require.NoError(t, err)
	assert.Empty(t, cells)
	assert.Contains(t, buf.String(), "too far away")

	// Relaxing maxDist (and minDist, which would reject next) admits the
	// pair previously rejected at this stage.
	cfg := testConfig()
	cfg.MaxDist = 14
	cfg.MinDist = 14
	cells, err = spindle.FindPairs(a, testBounds, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, cells, 1)
}

func TestFindPairsMinDistanceFilter(t *testing.T) {
	// Mean distance passes (6 < 11) but the tracks are never closer than
	// minDist 4: rejected at the final stage.
	a := spindle.NewArena()
	straightTrack(a, 1, 0, 20, 46)
	straightTrack(a, 2, 0, 20, 52)
	a.SummarizeTracks()

	var buf bytes.Buffer
	cells, err := spindle.FindPairs(a, testBounds, testConfig(), zerolog.New(&buf))
	require.NoError(t, err)
	assert.Empty(t, cells)
	assert.Contains(t, buf.String(), "min distance filter")

	cfg := testConfig()
	cfg.MinDist = 7
	cells, err = spindle.FindPairs(a, testBounds, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, cells, 1)
}

func TestFindPairsCanonicalOrder(t *testing.T) {
	// Exactly one candidate per unordered pair, with ids in ascending
	// order, regardless of map iteration order.
	a := spindle.NewArena()
	straightTrack(a, 9, 0, 20, 48)
	straightTrack(a, 4, 0, 20, 51)
	a.SummarizeTracks()

	for run := 0; run < 5; run++ {
		cells, err := spindle.FindPairs(a, testBounds, testConfig(), zerolog.Nop())
		require.NoError(t, err)
		require.Len(t, cells, 1)
		assert.Equal(t, 4, cells[0].CentIDI)
		assert.Equal(t, 9, cells[0].CentIDJ)
	}
}

func TestFindPairsParallelMatchesSequential(t *testing.T) {
	a := spindle.NewArena()
	for id := 1; id <= 8; id++ {
		straightTrack(a, id, 0, 30, 40+float64(id)*2)
	}
	a.SummarizeTracks()

	seqCells, err := spindle.FindPairs(a, testBounds, testConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.NotEmpty(t, seqCells)

	cfg := testConfig()
	cfg.Workers = 4
	parCells, err := spindle.FindPairs(a, testBounds, cfg, zerolog.Nop())
	require.NoError(t, err)

	if diff := cmp.Diff(seqCells, parCells); diff != "" {
		t.Errorf("parallel output differs from sequential (-seq +par):\n%s", diff)
	}
}
