package spindle

import (
	"strconv"

	"gonum.org/v1/gonum/floats"
)

// FeatureColumns is the canonical column order of the exported feature
// table. The downstream classifier depends on this order; never reorder.
var FeatureColumns = []string{
	"centID_i",
	"centID_j",
	"t_overlap",
	"sl_i",
	"sl_f",
	"sl_min",
	"sl_max",
	"center_stdev",
	"normal_stdev",
	"t_cong",
	"contrast",
	"intensity",
	"diameter",
}

// FeatureTable is the flat, classifier-ready view of a batch of cells: one
// row per candidate, columns in FeatureColumns order. Row order matches the
// input cell order.
type FeatureTable struct {
	Rows [][]float64
}

// Len returns the number of rows.
func (t *FeatureTable) Len() int { return len(t.Rows) }

// BuildFeatureTable converts cells into the tabular feature set. The
// contrast and intensity columns are min-max scaled into [0, 1] using the
// batch's observed range; every other column stays in physical units. A
// batch where a scaled column has no spread (one row, or all values equal)
// maps that column to 0 rather than dividing by zero.
func BuildFeatureTable(cells []Cell) *FeatureTable {
	t := &FeatureTable{Rows: make([][]float64, len(cells))}
	for k, c := range cells {
		t.Rows[k] = []float64{
			float64(c.CentIDI),
			float64(c.CentIDJ),
			c.TOverlap,
			c.SLI,
			c.SLF,
			c.SLMin,
			c.SLMax,
			c.CenterStdev,
			c.NormalStdev,
			c.TCong,
			c.Contrast,
			c.Intensity,
			c.Diameter,
		}
	}
	t.scaleColumn(colIndex("contrast"))
	t.scaleColumn(colIndex("intensity"))
	return t
}

// scaleColumn min-max normalizes one column in place.
func (t *FeatureTable) scaleColumn(col int) {
	if len(t.Rows) == 0 {
		return
	}
	vals := make([]float64, len(t.Rows))
	for k, row := range t.Rows {
		vals[k] = row[col]
	}
	lo, hi := floats.Min(vals), floats.Max(vals)
	span := hi - lo
	for _, row := range t.Rows {
		if span == 0 {
			row[col] = 0
			continue
		}
		row[col] = (row[col] - lo) / span
	}
}

// Records renders the table as CSV-ready string records, header first. The
// two id columns print as integers, everything else with full float
// precision.
func (t *FeatureTable) Records() [][]string {
	recs := make([][]string, 0, len(t.Rows)+1)
	recs = append(recs, FeatureColumns)
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for c, v := range row {
			if c < 2 {
				rec[c] = strconv.Itoa(int(v))
				continue
			}
			rec[c] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		recs = append(recs, rec)
	}
	return recs
}

func colIndex(name string) int {
	for k, c := range FeatureColumns {
		if c == name {
			return k
		}
	}
	panic("unknown feature column " + name)
}
