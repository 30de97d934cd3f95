package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitosis-data/spindle.report/internal/config"
	"github.com/mitosis-data/spindle.report/internal/pairdb"
	"github.com/mitosis-data/spindle.report/internal/register"
	"github.com/mitosis-data/spindle.report/internal/report"
	"github.com/mitosis-data/spindle.report/internal/spindle"
	"github.com/mitosis-data/spindle.report/internal/trackmate"
	"github.com/mitosis-data/spindle.report/internal/version"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "pair":
		handlePair(log, args)
	case "export-spots":
		handleExportSpots(log, args)
	case "runs":
		handleRuns(log, args)
	case "report":
		handleReport(log, args)
	case "version":
		fmt.Printf("spindle-report version %s (%s, built %s)\n",
			version.Version, version.GitSHA, version.BuildTime)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`spindle-report - spindle pair candidate detection for TrackMate exports

Usage: spindle-report <command> [options]

Commands:
  pair          Detect candidate centrosome pairs and write the feature CSV
  export-spots  Expand classified pairs into per-spot and per-centre CSVs
  runs          List pairing runs stored in a run database
  report        Render an HTML report (and optional PNG plots) for a run
  version       Show spindle-report version
  help          Show this help message

Common Flags:
  --xml <file>      TrackMate XML export to analyse
  --config <file>   Tuning config (JSON); defaults apply when omitted
  --roi <files>     Comma-separated registration ROI CSVs, chained in order
  --quiet           Suppress per-pair rejection diagnostics`)
}

// pipeline bundles everything the pair and report commands share: parse the
// XML, resolve thresholds and border bounds, run the pairing cascade.
type pipeline struct {
	arena  *spindle.Arena
	meta   trackmate.Meta
	cfg    spindle.PairerConfig
	bounds spindle.Bounds
	cells  []spindle.Cell
}

func runPipeline(log zerolog.Logger, xmlPath, configPath, roiList string, workers int) (*pipeline, error) {
	if xmlPath == "" {
		return nil, fmt.Errorf("--xml is required")
	}

	arena, meta, err := trackmate.ParseFile(xmlPath)
	if err != nil {
		return nil, err
	}
	log.Info().Str("xml", xmlPath).
		Int("tracks", len(arena.Tracks)).Int("spots", len(arena.Spots)).
		Float64("frame_interval", meta.FrameInterval).
		Msg("parsed trackmate export")

	tuning := config.EmptyTuningConfig()
	if configPath != "" {
		tuning, err = config.LoadTuningConfig(configPath)
		if err != nil {
			return nil, err
		}
	}
	cfg := tuning.PairerConfig(meta.FrameInterval)
	if workers > 0 {
		cfg.Workers = workers
	}

	bounds, err := resolveBounds(tuning, meta, roiList)
	if err != nil {
		return nil, err
	}

	cells, err := spindle.FindPairs(arena, bounds, cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info().Int("cells", len(cells)).Msg("pairing complete")

	return &pipeline{arena: arena, meta: meta, cfg: cfg, bounds: bounds, cells: cells}, nil
}

// resolveBounds picks the valid-pixel border box: an explicit box in the
// tuning config wins, then the region common to all registration ROIs, and
// finally the full image.
func resolveBounds(tuning *config.TuningConfig, meta trackmate.Meta, roiList string) (spindle.Bounds, error) {
	if b, ok := tuning.GetBounds(); ok {
		return b, nil
	}

	if roiList != "" {
		var segments [][]register.Translation
		for _, path := range strings.Split(roiList, ",") {
			ts, err := register.ReadROIFile(strings.TrimSpace(path))
			if err != nil {
				return spindle.Bounds{}, err
			}
			segments = append(segments, ts)
		}
		return register.CroppedBounds(
			float64(meta.Width), float64(meta.Height), meta.PixelWidth,
			register.Combine(segments...))
	}

	return spindle.Bounds{
		Top:    0,
		Bottom: float64(meta.Height) * meta.PixelWidth,
		Left:   0,
		Right:  float64(meta.Width) * meta.PixelWidth,
	}, nil
}

func handlePair(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("pair", flag.ExitOnError)
	xmlPath := fs.String("xml", "", "TrackMate XML export")
	configPath := fs.String("config", "", "tuning config (JSON)")
	roiList := fs.String("roi", "", "comma-separated registration ROI CSVs")
	out := fs.String("out", "cand_cells.csv", "feature CSV output path")
	dbPath := fs.String("db", "", "run database; when set the run is recorded")
	workers := fs.Int("workers", 0, "parallel pair workers (0 = config value)")
	quiet := fs.Bool("quiet", false, "suppress rejection diagnostics")
	fs.Parse(args)

	if *quiet {
		log = log.Level(zerolog.WarnLevel)
	}

	started := time.Now().UTC()
	p, err := runPipeline(log, *xmlPath, *configPath, *roiList, *workers)
	if err != nil {
		log.Fatal().Err(err).Msg("pairing failed")
	}

	table := spindle.BuildFeatureTable(p.cells)
	if err := writeCSV(*out, table.Records()); err != nil {
		log.Fatal().Err(err).Msg("failed to write feature CSV")
	}
	log.Info().Str("out", *out).Int("rows", table.Len()).Msg("wrote feature CSV")

	if *dbPath != "" {
		db, err := pairdb.Open(*dbPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open run database")
		}
		defer db.Close()

		run := pairdb.NewRun(*xmlPath, p.cfg, p.bounds)
		run.StartedAt = started
		run.FinishedAt = time.Now().UTC()
		run.TrackCount = len(p.arena.Tracks)
		run.CellCount = len(p.cells)
		if err := db.SaveRun(run, p.cells); err != nil {
			log.Fatal().Err(err).Msg("failed to record run")
		}
		log.Info().Str("run_id", run.ID).Msg("recorded run")
	}
}

func handleExportSpots(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("export-spots", flag.ExitOnError)
	xmlPath := fs.String("xml", "", "TrackMate XML export")
	predPath := fs.String("pred", "", "prediction CSV with centID_i/centID_j columns")
	spotsOut := fs.String("spots", "spots.csv", "per-spot CSV output path")
	centersOut := fs.String("centers", "centers.csv", "per-centre CSV output path")
	fs.Parse(args)

	if *xmlPath == "" || *predPath == "" {
		log.Fatal().Msg("--xml and --pred are required")
	}

	arena, _, err := trackmate.ParseFile(*xmlPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse trackmate export")
	}
	pairs, err := trackmate.ReadPredictionsFile(*predPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read predictions")
	}
	log.Info().Int("pairs", len(pairs)).Msg("read accepted pairs")

	rows, err := spindle.SpotRowsForPairs(arena, pairs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to link spots")
	}
	records := [][]string{{"Label", "ID", "TRACK_ID", "FRAME",
		"POSITION_X", "POSITION_Y", "POSITION_Z",
		"ESTIMATED_DIAMETER", "MAX_INTENSITY", "CONTRAST"}}
	for _, r := range rows {
		records = append(records, []string{
			r.Label, strconv.Itoa(r.SpotID), strconv.Itoa(r.TrackID), strconv.Itoa(r.Frame),
			formatFloat(r.Pos.X), formatFloat(r.Pos.Y), formatFloat(r.Pos.Z),
			formatFloat(r.Diameter), formatFloat(r.MaxIntensity), formatFloat(r.Contrast),
		})
	}
	if err := writeCSV(*spotsOut, records); err != nil {
		log.Fatal().Err(err).Msg("failed to write spot CSV")
	}
	log.Info().Str("out", *spotsOut).Int("rows", len(rows)).Msg("wrote spot CSV")

	centers, err := spindle.PairedCenters(arena, pairs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to compute pair centres")
	}
	records = [][]string{{"Cell", "FRAME", "POSITION_X", "POSITION_Y", "POSITION_Z"}}
	for _, c := range centers {
		records = append(records, []string{
			c.Cell, strconv.Itoa(c.Frame),
			formatFloat(c.Pos.X), formatFloat(c.Pos.Y), formatFloat(c.Pos.Z),
		})
	}
	if err := writeCSV(*centersOut, records); err != nil {
		log.Fatal().Err(err).Msg("failed to write centre CSV")
	}
	log.Info().Str("out", *centersOut).Int("rows", len(centers)).Msg("wrote centre CSV")
}

func handleRuns(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dbPath := fs.String("db", "", "run database path")
	fs.Parse(args)

	if *dbPath == "" {
		log.Fatal().Msg("--db is required")
	}
	db, err := pairdb.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open run database")
	}
	defer db.Close()

	runs, err := db.ListRuns()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list runs")
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return
	}
	fmt.Printf("%-36s  %-20s  %6s  %5s  %s\n", "RUN", "STARTED", "TRACKS", "CELLS", "SOURCE")
	for _, r := range runs {
		fmt.Printf("%-36s  %-20s  %6d  %5d  %s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"),
			r.TrackCount, r.CellCount, r.SourceXML)
	}
}

func handleReport(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	xmlPath := fs.String("xml", "", "TrackMate XML export")
	configPath := fs.String("config", "", "tuning config (JSON)")
	roiList := fs.String("roi", "", "comma-separated registration ROI CSVs")
	out := fs.String("out", "report.html", "HTML report output path")
	plotsDir := fs.String("plots", "", "when set, also write per-pair PNG plots here")
	workers := fs.Int("workers", 0, "parallel pair workers (0 = config value)")
	fs.Parse(args)

	// Rejection diagnostics are noise when the goal is the rendered report.
	p, err := runPipeline(log.Level(zerolog.WarnLevel), *xmlPath, *configPath, *roiList, *workers)
	if err != nil {
		log.Fatal().Err(err).Msg("pairing failed")
	}

	rep := report.New(p.arena, p.cfg)

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create report file")
	}
	defer f.Close()
	if err := rep.RenderHTML(f, p.cells); err != nil {
		log.Fatal().Err(err).Msg("failed to render report")
	}
	log.Info().Str("out", *out).Int("cells", len(p.cells)).Msg("wrote HTML report")

	if *plotsDir != "" {
		n, err := rep.SavePlots(*plotsDir, p.cells)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to write plots")
		}
		log.Info().Str("dir", *plotsDir).Int("plots", n).Msg("wrote distance plots")
	}
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
