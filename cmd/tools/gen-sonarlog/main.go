// Command gen-sonarlog writes a synthetic .sonlog recording for testing
// replay: a fixed pillar and a target sweeping across the fan.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/recorder"
	"github.com/banshee-data/fanbeam/internal/sonar/synthetic"
	"github.com/banshee-data/fanbeam/internal/sonardb"
	"github.com/banshee-data/fanbeam/internal/timeutil"
	"github.com/banshee-data/fanbeam/internal/version"
)

func main() {
	def := synthetic.DefaultConfig()
	output := flag.String("o", "", "output directory (default: ./sonar_<start time>.sonlog)")
	frames := flag.Int("n", def.Frames, "number of frames")
	beams := flag.Int("beams", def.Beams, "beams per frame")
	bins := flag.Int("bins", def.RangeBins, "range bins per frame")
	swath := flag.Float64("swath", def.SwathDeg, "swath angle in degrees")
	maxRange := flag.Float64("range", def.MaxRange, "maximum range in metres")
	fps := flag.Float64("fps", def.FPS, "frame rate")
	is16bit := flag.Bool("16bit", false, "generate 16-bit samples")
	noise := flag.Float64("noise", 0, "background noise as a fraction of full scale")
	seed := flag.Int64("seed", 1, "noise seed")
	dbFile := flag.String("db", "", "catalogue the recording in this SQLite database")
	versionFlag := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.String("gen-sonarlog"))
		return
	}

	cfg := def
	cfg.Frames, cfg.Beams, cfg.RangeBins = *frames, *beams, *bins
	cfg.SwathDeg, cfg.MaxRange, cfg.FPS = *swath, *maxRange, *fps
	cfg.Noise, cfg.Seed = *noise, *seed
	if *is16bit {
		cfg.Depth = sonar.Depth16
	}
	gen, err := synthetic.New(cfg)
	if err != nil {
		log.Fatalf("Invalid generator settings: %v", err)
	}

	// Wall-clock stamps advance at the frame rate instead of sleeping.
	clock := timeutil.NewMockClock(time.Now())
	path := *output
	if path == "" {
		path = recorder.DefaultPath(".", clock.Now())
	}
	rec, err := recorder.NewRecorder(path, recorder.Options{
		Source:   "synthetic",
		SwathDeg: cfg.SwathDeg,
		MaxRange: cfg.MaxRange,
		FPS:      gen.FPS(),
		Clock:    clock,
	})
	if err != nil {
		log.Fatalf("Failed to create recorder: %v", err)
	}

	step := time.Duration(float64(time.Second) / gen.FPS())
	for i := 0; i < cfg.Frames; i++ {
		f, err := gen.Frame(i)
		if err != nil {
			log.Fatalf("Frame %d: %v", i, err)
		}
		if err := rec.Record(f); err != nil {
			log.Fatalf("Record frame %d: %v", i, err)
		}
		clock.Advance(step)
		if (i+1)%100 == 0 {
			log.Printf("%d/%d frames", i+1, cfg.Frames)
		}
	}
	if err := rec.Close(); err != nil {
		log.Fatalf("Failed to finish recording: %v", err)
	}

	if *dbFile != "" {
		db, err := sonardb.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		if _, err := db.CatalogRecording(path); err != nil {
			log.Fatalf("Failed to catalogue %s: %v", path, err)
		}
	}
	log.Printf("✓ Created: %s (%d frames, session %s)", path, cfg.Frames, rec.SessionID())
}
