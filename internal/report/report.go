// Package report renders pairing results for human review. It produces an
// HTML page of per-pair distance charts with go-echarts and, for offline
// inspection, PNG plots with gonum/plot.
package report

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/mitosis-data/spindle.report/internal/spindle"
)

// Reporter renders charts for one pairing run. The arena is needed to
// recompute per-frame distance series for the selected pairs.
type Reporter struct {
	arena *spindle.Arena
	cfg   spindle.PairerConfig
}

func New(arena *spindle.Arena, cfg spindle.PairerConfig) *Reporter {
	return &Reporter{arena: arena, cfg: cfg}
}

// RenderHTML writes a single HTML page with a centre-position overview
// scatter followed by one distance-over-time chart per candidate pair.
func (r *Reporter) RenderHTML(w io.Writer, cells []spindle.Cell) error {
	page := components.NewPage()
	page.AddCharts(r.centerScatter(cells))

	for _, c := range cells {
		series, err := spindle.TrackDistances(r.arena, c.CentIDI, c.CentIDJ)
		if err != nil {
			return fmt.Errorf("distance series for pair %d/%d: %w", c.CentIDI, c.CentIDJ, err)
		}
		page.AddCharts(r.distanceLine(c, series))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report page: %w", err)
	}
	return nil
}

// centerScatter plots each candidate's mean centre position, colored by
// congression time so settled pairs stand out.
func (r *Reporter) centerScatter(cells []spindle.Cell) *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(cells))
	maxCong := 0.0
	for _, c := range cells {
		if c.TCong > maxCong {
			maxCong = c.TCong
		}
		data = append(data, opts.ScatterData{
			Value: []interface{}{c.Center.X, c.Center.Y, c.TCong},
			Name:  fmt.Sprintf("%d/%d", c.CentIDI, c.CentIDJ),
		})
	}
	if maxCong == 0 {
		maxCong = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Spindle Pair Candidates", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Candidate Centres", Subtitle: fmt.Sprintf("pairs=%d", len(cells))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (um)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (um)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxCong),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("candidates", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	return scatter
}

// distanceLine charts the inter-centrosome distance for one pair over its
// overlap window, with a marker line at the congression threshold.
func (r *Reporter) distanceLine(c spindle.Cell, series *spindle.PairSeries) *charts.Line {
	frames := make([]string, series.Len())
	dists := make([]opts.LineData, series.Len())
	for k, t := range series.Times {
		frames[k] = fmt.Sprintf("%d", t)
		dists[k] = opts.LineData{Value: series.Dists[k]}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Pair %d/%d", c.CentIDI, c.CentIDJ),
			Subtitle: fmt.Sprintf("overlap=%.0f frames t_cong=%.1f", c.TOverlap, c.TCong),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Distance (um)"}),
	)
	line.SetXAxis(frames).
		AddSeries("distance", dists).
		SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
			charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{
				Name:  "congression threshold",
				YAxis: r.cfg.MaxCongDist,
			}),
		)
	return line
}

// SavePlots writes one PNG per pair into outputDir and returns the number
// of plots generated.
func (r *Reporter) SavePlots(outputDir string, cells []spindle.Cell) (int, error) {
	if len(cells) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	count := 0
	for _, c := range cells {
		series, err := spindle.TrackDistances(r.arena, c.CentIDI, c.CentIDJ)
		if err != nil {
			return count, fmt.Errorf("distance series for pair %d/%d: %w", c.CentIDI, c.CentIDJ, err)
		}
		file := filepath.Join(outputDir, fmt.Sprintf("pair_%04d_%04d_distance.png", c.CentIDI, c.CentIDJ))
		if err := r.savePairPlot(file, c, series); err != nil {
			return count, fmt.Errorf("pair %d/%d: %w", c.CentIDI, c.CentIDJ, err)
		}
		count++
	}
	return count, nil
}

func (r *Reporter) savePairPlot(file string, c spindle.Cell, series *spindle.PairSeries) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Pair %d/%d - Inter-centrosome Distance", c.CentIDI, c.CentIDJ)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Distance (um)"

	pts := make(plotter.XYs, 0, series.Len())
	minT, maxT := math.Inf(1), math.Inf(-1)
	for k, t := range series.Times {
		pts = append(pts, plotter.XY{X: float64(t), Y: series.Dists[k]})
		minT = math.Min(minT, float64(t))
		maxT = math.Max(maxT, float64(t))
	}

	distLine, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	distLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	distLine.Width = vg.Points(1)
	p.Add(distLine)
	p.Legend.Add("distance", distLine)

	threshold, err := plotter.NewLine(plotter.XYs{
		{X: minT, Y: r.cfg.MaxCongDist},
		{X: maxT, Y: r.cfg.MaxCongDist},
	})
	if err != nil {
		return err
	}
	threshold.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	threshold.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(threshold)
	p.Legend.Add("congression threshold", threshold)

	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(10*vg.Inch, 4*vg.Inch, file); err != nil {
		return fmt.Errorf("save distance plot: %w", err)
	}
	return nil
}
