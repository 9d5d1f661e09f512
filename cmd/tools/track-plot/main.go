// track-plot renders a recorded lap's track model as an interactive HTML
// chart: centerline colored by curvature, corner spans, and the reference
// brake points. Useful for sanity-checking corner detection thresholds
// before a session.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/apex-data/coach.report/internal/config"
	"github.com/apex-data/coach.report/internal/reference"
	"github.com/apex-data/coach.report/internal/storage/sqlite"
	"github.com/apex-data/coach.report/internal/telemetry"
	"github.com/apex-data/coach.report/internal/track"
)

var (
	dbPath     = flag.String("db", "laps.db", "Path to the lap database")
	lapID      = flag.String("lap", "", "Lap ID to plot")
	replayPath = flag.String("replay", "", "Plot from a recorded frame file instead of the database")
	tuningPath = flag.String("tuning", "", "Tuning config file (default: built-in candidate paths)")
	outPath    = flag.String("out", "track.html", "Output HTML file")
)

func main() {
	flag.Parse()

	cfg := loadTuning(*tuningPath)
	samples := loadSamples()

	model, err := track.Build(samples, track.ParamsFromTuning(cfg))
	if err != nil {
		log.Fatalf("build track model: %v", err)
	}
	ref, err := reference.BuildLap(samples, model, reference.ParamsFromTuning(cfg))
	if err != nil {
		log.Fatalf("resample lap: %v", err)
	}

	if err := render(model, ref, *outPath); err != nil {
		log.Fatalf("render: %v", err)
	}
	log.Printf("wrote %s: %.0f m, %d corners", *outPath, model.Length(), len(model.Corners()))
}

func loadTuning(path string) *config.TuningConfig {
	if path == "" {
		return config.MustLoadDefaultConfig()
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		log.Fatalf("load tuning config: %v", err)
	}
	return cfg
}

func loadSamples() []telemetry.TelemetrySample {
	if *replayPath != "" {
		f, err := os.Open(*replayPath)
		if err != nil {
			log.Fatalf("open replay: %v", err)
		}
		defer f.Close()
		frames, err := telemetry.ReadFrames(f)
		if err != nil {
			log.Fatalf("read replay: %v", err)
		}
		norm := telemetry.NewNormalizer()
		var samples []telemetry.TelemetrySample
		for i := range frames {
			if smp, ok := norm.Normalize(&frames[i]); ok {
				samples = append(samples, smp)
			}
		}
		return samples
	}

	if *lapID == "" {
		log.Fatal("pick a lap: -lap <id> or -replay <file>")
	}
	db, err := sqlite.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("open lap database: %v", err)
	}
	defer db.Close()
	samples, err := db.LoadLapSamples(*lapID)
	if err != nil {
		log.Fatalf("load lap %s: %v", *lapID, err)
	}
	return samples
}

func render(model *track.Model, ref *reference.Lap, path string) error {
	pts := model.Points()

	centerline := make([]opts.ScatterData, 0, len(pts))
	var maxCurv float64
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		centerline = append(centerline, opts.ScatterData{Value: []interface{}{p.X, p.Y, math.Abs(p.Curvature)}})
		maxCurv = math.Max(maxCurv, math.Abs(p.Curvature))
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	pad := 20.0

	apexes := make([]opts.ScatterData, 0, len(model.Corners()))
	for _, c := range model.Corners() {
		x, y := worldAt(pts, c.ApexS)
		apexes = append(apexes, opts.ScatterData{
			Name:  c.String(),
			Value: []interface{}{x, y, maxCurv},
		})
	}

	var brakes []opts.ScatterData
	for _, c := range model.Corners() {
		s, ok := ref.BrakePointFor(c.ID)
		if !ok {
			continue
		}
		x, y := worldAt(pts, s)
		brakes = append(brakes, opts.ScatterData{
			Name:  fmt.Sprintf("brake for corner %d at s=%.0f", c.ID, s),
			Value: []interface{}{x, y, maxCurv},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Track Model", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Track Model",
			Subtitle: fmt.Sprintf("length=%.0fm corners=%d", model.Length(), len(model.Corners())),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: minX - pad, Max: maxX + pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: minY - pad, Max: maxY + pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxCurv),
			InRange:    &opts.VisualMapInRange{Color: []string{"#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("centerline", centerline, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	scatter.AddSeries("apexes", apexes, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}))
	scatter.AddSeries("brake points", brakes, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return scatter.Render(f)
}

// worldAt finds the centerline coordinate nearest an arc length.
func worldAt(pts []track.Point, s float64) (float64, float64) {
	best := 0
	bestD := math.Inf(1)
	for i, p := range pts {
		if d := math.Abs(p.S - s); d < bestD {
			best, bestD = i, d
		}
	}
	return pts[best].X, pts[best].Y
}
