package trackmate

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mitosis-data/spindle.report/internal/spindle"
)

// ReadPredictions reads the classifier's output CSV (or the raw feature
// table) and returns the track pairs it names. When a Predicted_Label
// column is present only rows labelled 1 are kept; without one every row is
// treated as accepted, so the raw features.csv works too.
func ReadPredictions(r io.Reader) ([]spindle.Pair, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read predictions header: %w", err)
	}

	colI, colJ, colLabel := -1, -1, -1
	for k, name := range header {
		switch name {
		case "centID_i":
			colI = k
		case "centID_j":
			colJ = k
		case "Predicted_Label":
			colLabel = k
		}
	}
	if colI < 0 || colJ < 0 {
		return nil, fmt.Errorf("predictions csv is missing centID_i/centID_j columns")
	}

	var pairs []spindle.Pair
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read predictions line %d: %w", line, err)
		}
		if colLabel >= 0 {
			label, err := strconv.Atoi(rec[colLabel])
			if err != nil {
				return nil, fmt.Errorf("predictions line %d: bad label %q", line, rec[colLabel])
			}
			if label != 1 {
				continue
			}
		}
		i, err := strconv.ParseFloat(rec[colI], 64)
		if err != nil {
			return nil, fmt.Errorf("predictions line %d: bad centID_i %q", line, rec[colI])
		}
		j, err := strconv.ParseFloat(rec[colJ], 64)
		if err != nil {
			return nil, fmt.Errorf("predictions line %d: bad centID_j %q", line, rec[colJ])
		}
		pairs = append(pairs, spindle.Pair{I: int(i), J: int(j)})
	}
	return pairs, nil
}

// ReadPredictionsFile is ReadPredictions over a file on disk.
func ReadPredictionsFile(path string) ([]spindle.Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open predictions csv: %w", err)
	}
	defer f.Close()
	return ReadPredictions(f)
}
