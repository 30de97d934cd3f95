package spindle

import (
	"errors"
	"fmt"
	"sort"
)

// Pair names an accepted track pair, usually read back from the
// classifier's predictions.
type Pair struct {
	I int
	J int
}

// DedupePairs removes reversed duplicates: when both (i, j) and (j, i) are
// present only the first occurrence survives. Order is otherwise preserved.
func DedupePairs(pairs []Pair) []Pair {
	seen := make(map[Pair]bool, len(pairs))
	out := pairs[:0]
	for _, p := range pairs {
		if seen[Pair{p.J, p.I}] || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// LinkSpots walks each listed track over [Start, Stop) and collects the spot
// ids it visits, returning both directions of the association: track id ->
// spot ids (in frame order) and spot id -> track id.
func LinkSpots(a *Arena, trackIDs []int) (map[int][]int, map[int]int, error) {
	track2spot := make(map[int][]int, len(trackIDs))
	spot2track := make(map[int]int)
	for _, id := range trackIDs {
		trk, ok := a.Tracks[id]
		if !ok {
			return nil, nil, fmt.Errorf("unknown track %d", id)
		}
		track2spot[id] = nil
		for t := int(trk.Start); float64(t) < trk.Stop; t++ {
			s, ok := a.SpotAt(id, t)
			if !ok {
				continue
			}
			track2spot[id] = append(track2spot[id], s.ID)
			spot2track[s.ID] = id
		}
	}
	return track2spot, spot2track, nil
}

// SpotRow is one member spot of an accepted pair, labelled for export. The
// two sides of cell n are labelled "Cent_<n>a" and "Cent_<n>b".
type SpotRow struct {
	Label        string
	SpotID       int
	TrackID      int
	Frame        int
	Pos          Vec3
	Diameter     float64
	MaxIntensity float64
	Contrast     float64
}

// SpotRowsForPairs expands accepted pairs into their member spots for the
// per-spot export. Reversed duplicates are collapsed first; rows come out
// grouped by cell, side a before side b, frames ascending.
func SpotRowsForPairs(a *Arena, pairs []Pair) ([]SpotRow, error) {
	pairs = DedupePairs(pairs)
	if len(pairs) == 0 {
		return nil, nil
	}

	ids := make([]int, 0, len(pairs)*2)
	seen := make(map[int]bool)
	for _, p := range pairs {
		for _, id := range []int{p.I, p.J} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	track2spot, _, err := LinkSpots(a, ids)
	if err != nil {
		return nil, err
	}

	var rows []SpotRow
	for n, p := range pairs {
		labelI := fmt.Sprintf("Cent_%da", n+1)
		labelJ := fmt.Sprintf("Cent_%db", n+1)
		rows = append(rows, trackSpotRows(a, labelI, p.I, track2spot[p.I])...)
		rows = append(rows, trackSpotRows(a, labelJ, p.J, track2spot[p.J])...)
	}
	return rows, nil
}

func trackSpotRows(a *Arena, label string, trackID int, spotIDs []int) []SpotRow {
	idx := a.Index[trackID]
	// Invert the time index once so each row carries its frame.
	frameOf := make(map[int]int, len(idx))
	for t, spotID := range idx {
		frameOf[spotID] = t
	}
	rows := make([]SpotRow, 0, len(spotIDs))
	for _, spotID := range spotIDs {
		s, ok := a.Spots[spotID]
		if !ok {
			continue
		}
		rows = append(rows, SpotRow{
			Label:        label,
			SpotID:       s.ID,
			TrackID:      trackID,
			Frame:        frameOf[s.ID],
			Pos:          s.Pos,
			Diameter:     s.Diameter,
			MaxIntensity: s.MaxIntensity,
			Contrast:     s.Contrast,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Frame < rows[j].Frame })
	return rows
}

// CenterRow is the mean position of an accepted pair at one frame where both
// member tracks were detected.
type CenterRow struct {
	Cell  string
	Frame int
	Pos   Vec3
}

// PairedCenters emits, per accepted pair, the center-of-mass coordinates for
// every frame with detections on both sides. Cells are numbered in input
// order ("Cell_1", "Cell_2", ...).
func PairedCenters(a *Arena, pairs []Pair) ([]CenterRow, error) {
	pairs = DedupePairs(pairs)
	var rows []CenterRow
	for n, p := range pairs {
		series, err := TrackDistances(a, p.I, p.J)
		if errors.Is(err, ErrNoOverlap) {
			continue
		}
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("Cell_%d", n+1)
		for k, t := range series.Times {
			rows = append(rows, CenterRow{Cell: name, Frame: t, Pos: series.Centers[k]})
		}
	}
	return rows, nil
}
