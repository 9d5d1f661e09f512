// coach runs the live coaching session: it loads a reference lap from the
// lap database, builds the track model, and streams cues while driving.
// It also carries the lap-database maintenance commands (import, listing,
// reference selection, migrations).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/apex-data/coach.report/internal/config"
	"github.com/apex-data/coach.report/internal/hotpath"
	"github.com/apex-data/coach.report/internal/reference"
	"github.com/apex-data/coach.report/internal/storage/sqlite"
	"github.com/apex-data/coach.report/internal/telemetry"
	"github.com/apex-data/coach.report/internal/track"
	"github.com/apex-data/coach.report/internal/units"
)

var (
	dbPath     = flag.String("db", "laps.db", "Path to the lap database")
	sessionID  = flag.String("session", "", "Session identifier")
	refLapID   = flag.String("reference-lap", "", "Reference lap ID (default: the session's marked reference)")
	cuesOn     = flag.Bool("cues", true, "Emit coaching cues (false runs the pipeline silent)")
	udpAddr    = flag.String("udp", "", "Listen for live telemetry on this UDP address (e.g. :9555)")
	replayPath = flag.String("replay", "", "Drive the session from a recorded frame file instead of UDP")
	tuningPath = flag.String("tuning", "", "Tuning config file (default: built-in candidate paths)")
	pollHz     = flag.Float64("hz", 0, "Override the source polling rate")
	speedUnits = flag.String("units", units.KPH, "Display units for speeds ("+units.GetValidUnitsString()+")")

	importPath  = flag.String("import", "", "Import a recorded frame file into the lap database, split by lap, then exit")
	trackName   = flag.String("track", "", "Track name recorded with imported laps")
	carName     = flag.String("car", "", "Car name recorded with imported laps")
	listLaps    = flag.Bool("list-laps", false, "List the session's recorded laps, then exit")
	setRef      = flag.String("set-reference", "", "Mark this lap ID as the session reference, then exit")
	autoRef     = flag.Bool("auto-reference", false, "Mark the session's fastest lap as reference, then exit")
	migrateCmd  = flag.String("migrate", "", "Run a migration command (up, down, version), then exit")
	migrateDir  = flag.String("migrations", "migrations", "Migrations directory")
	debugStream = flag.String("debug", "", "Comma-separated debug streams to stderr (ops, diag, trace)")
)

func main() {
	flag.Parse()

	if !units.IsValid(*speedUnits) {
		log.Fatalf("invalid units %q (valid: %s)", *speedUnits, units.GetValidUnitsString())
	}
	setupDebugStreams(*debugStream)

	cfg := loadTuning(*tuningPath)
	if *pollHz > 0 {
		cfg.PollHz = pollHz
	}

	db, err := sqlite.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("open lap database %s: %v", *dbPath, err)
	}
	defer db.Close()

	if ran := runMaintenance(db); ran {
		return
	}

	if *sessionID == "" {
		log.Fatal("a live session needs -session")
	}
	if (*udpAddr == "") == (*replayPath == "") {
		log.Fatal("pick exactly one telemetry source: -udp or -replay")
	}

	runSession(db, cfg)
}

// runMaintenance handles the run-and-exit commands. Reports whether one ran.
func runMaintenance(db *sqlite.DB) bool {
	switch {
	case *migrateCmd != "":
		runMigration(db, *migrateCmd)
	case *importPath != "":
		importReplay(db, *importPath)
	case *listLaps:
		requireSession()
		laps, err := db.ListLaps(*sessionID)
		if err != nil {
			log.Fatalf("list laps: %v", err)
		}
		if len(laps) == 0 {
			fmt.Printf("no laps recorded for session %s\n", *sessionID)
			return true
		}
		for _, lap := range laps {
			fmt.Println(lap)
		}
	case *setRef != "":
		if err := db.SetReference(*setRef); err != nil {
			log.Fatalf("set reference: %v", err)
		}
		log.Printf("reference lap set to %s", *setRef)
	case *autoRef:
		requireSession()
		meta, err := db.AutoSetReference(*sessionID)
		if err != nil {
			log.Fatalf("auto reference: %v", err)
		}
		log.Printf("reference: %s", meta)
	default:
		return false
	}
	return true
}

func requireSession() {
	if *sessionID == "" {
		log.Fatal("this command needs -session")
	}
}

func runMigration(db *sqlite.DB, cmd string) {
	switch cmd {
	case "up":
		if err := db.MigrateUp(*migrateDir); err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		log.Println("migrations applied")
	case "down":
		if err := db.MigrateDown(*migrateDir); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		log.Println("rolled back one migration")
	case "version":
		version, dirty, err := db.MigrateVersion(*migrateDir)
		if err != nil {
			log.Fatalf("migrate version: %v", err)
		}
		fmt.Printf("version %d dirty=%v\n", version, dirty)
	default:
		log.Fatalf("unknown migrate command %q (up, down, version)", cmd)
	}
}

// importReplay splits a recorded frame file on the sim's lap counter and
// records each complete lap.
func importReplay(db *sqlite.DB, path string) {
	requireSession()
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open replay: %v", err)
	}
	defer f.Close()

	frames, err := telemetry.ReadFrames(f)
	if err != nil {
		log.Fatalf("read replay: %v", err)
	}

	norm := telemetry.NewNormalizer()
	byLap := make(map[int][]telemetry.TelemetrySample)
	var lapOrder []int
	for i := range frames {
		smp, ok := norm.Normalize(&frames[i])
		if !ok {
			continue
		}
		if _, seen := byLap[smp.LapNumber]; !seen {
			lapOrder = append(lapOrder, smp.LapNumber)
		}
		byLap[smp.LapNumber] = append(byLap[smp.LapNumber], smp)
	}
	if dropped := norm.TotalDrops(); dropped > 0 {
		log.Printf("dropped %d invalid frames during import", dropped)
	}

	for _, lapNum := range lapOrder {
		samples := byLap[lapNum]
		lapID, err := db.RecordLap(*sessionID, lapNum, *trackName, *carName, samples)
		if err != nil {
			log.Fatalf("record lap %d: %v", lapNum, err)
		}
		log.Printf("imported lap %d: %d samples as %s", lapNum, len(samples), lapID)
	}
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

// loadReference pulls the reference lap's samples and builds the immutable
// session data: track model, spatial index, resampled reference lap.
func loadReference(db *sqlite.DB, cfg *config.TuningConfig) (*track.Model, *reference.Lap) {
	var meta sqlite.LapMeta
	var samples []telemetry.TelemetrySample
	var err error
	if *refLapID != "" {
		meta, err = db.GetLap(*refLapID)
		if err != nil {
			log.Fatalf("reference lap: %v", err)
		}
		samples, err = db.LoadLapSamples(*refLapID)
	} else {
		meta, samples, err = db.LoadReferenceLap(*sessionID)
	}
	if err != nil {
		log.Fatalf("load reference lap: %v", err)
	}
	log.Printf("reference: %s", meta)

	model, err := track.Build(samples, track.ParamsFromTuning(cfg))
	if err != nil {
		log.Fatalf("build track model: %v", err)
	}
	log.Printf("track model: %.0f m, %d corners", model.Length(), len(model.Corners()))

	ref, err := reference.BuildLap(samples, model, reference.ParamsFromTuning(cfg))
	if err != nil {
		log.Fatalf("resample reference lap: %v", err)
	}
	return model, ref
}

func openSource() telemetry.SourceAdapter {
	if *replayPath != "" {
		src, err := telemetry.NewReplaySourceFromFile(*replayPath)
		if err != nil {
			log.Fatalf("open replay: %v", err)
		}
		return src
	}
	src, err := telemetry.NewUDPSource(*udpAddr)
	if err != nil {
		log.Fatalf("listen UDP: %v", err)
	}
	return src
}

func runSession(db *sqlite.DB, cfg *config.TuningConfig) {
	model, ref := loadReference(db, cfg)

	source := openSource()
	defer source.Close()

	tracker := hotpath.NewTracker(model, track.NewIndex(model), hotpath.TrackerParamsFromTuning(cfg))
	engine := hotpath.NewEngine(tracker, model, hotpath.EngineParamsFromTuning(cfg))
	rules := []hotpath.Rule{
		hotpath.NewBrakePointRule(ref, hotpath.BrakeRuleParamsFromTuning(cfg)),
		hotpath.NewLockAlertRule(hotpath.LockRuleParamsFromTuning(cfg)),
	}

	var sink hotpath.Sink
	if *cuesOn {
		sink = hotpath.NewLogSink(os.Stdout, *speedUnits)
	}

	pipeline := hotpath.NewPipeline(source, engine, rules, sink, hotpath.PipelineParamsFromTuning(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("session %s running", *sessionID)
	pipeline.Run(ctx)

	printSummary(pipeline)
}

func printSummary(p *hotpath.Pipeline) {
	st := p.StatsSnapshot()
	fmt.Printf("\nsession summary\n")
	fmt.Printf("  frames received:  %d\n", st.FramesIn)
	fmt.Printf("  queue drops:      %d\n", st.QueueDrops)
	for reason, n := range st.NormalizerDrops {
		if n > 0 {
			fmt.Printf("  dropped (%s): %d\n", reason, n)
		}
	}
	fmt.Printf("  events produced:  %d\n", st.EventsProduced)
	fmt.Printf("  cues emitted:     %d\n", st.CuesEmitted)
	if st.SinkErrors > 0 {
		fmt.Printf("  sink errors:      %d\n", st.SinkErrors)
	}
}

// setupDebugStreams routes the named hotpath debug streams to stderr.
func setupDebugStreams(spec string) {
	if spec == "" {
		return
	}
	var ops, diag, trace bool
	for _, name := range strings.Split(spec, ",") {
		switch strings.TrimSpace(name) {
		case "ops":
			ops = true
		case "diag":
			diag = true
		case "trace":
			trace = true
		case "all":
			ops, diag, trace = true, true, true
		default:
			log.Fatalf("unknown debug stream %q (ops, diag, trace, all)", name)
		}
	}
	pick := func(on bool) io.Writer {
		if on {
			return os.Stderr
		}
		return nil
	}
	hotpath.SetLogWriters(pick(ops), pick(diag), pick(trace))
}
