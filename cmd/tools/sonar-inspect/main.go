// Command sonar-inspect summarises the intensity content of a sonar source
// and writes a JSON report plus histogram, range profile and per-frame
// plots.
//
// Usage:
//
//	sonar-inspect -source sonar_2025-05-03_14-02-11.250.sonlog -out report/
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/fanbeam/internal/sonar/inspect"
	"github.com/banshee-data/fanbeam/internal/sonar/recorder"
	"github.com/banshee-data/fanbeam/internal/sonar/sources"
	"github.com/banshee-data/fanbeam/internal/version"
)

// ReportFile is the JSON summary written next to the plots.
const ReportFile = "report.json"

func main() {
	source := flag.String("source", "", "source to inspect (recording, .pcap, .raw?beams=N&bins=N, synthetic:)")
	outDir := flag.String("out", ".", "output directory for the report and plots")
	stride := flag.Int("stride", 1, "analyse every n-th frame")
	maxFrames := flag.Int("max-frames", 0, "stop after this many analysed frames (0 = all)")
	histBins := flag.Int("hist-bins", inspect.DefaultHistogramBins, "intensity histogram bins")
	maxRange := flag.Float64("range", 0, "maximum range in metres for the profile axis (default: from the recording header)")
	noPlots := flag.Bool("no-plots", false, "write the JSON report only")
	versionFlag := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.String("sonar-inspect"))
		return
	}
	if *source == "" {
		flag.Usage()
		os.Exit(2)
	}

	src, err := sources.Open(*source, sources.Options{})
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *source, err)
	}
	defer src.Close()
	if r, ok := src.(*recorder.Replayer); ok && *maxRange == 0 {
		*maxRange = r.Header().MaxRange
	}

	rep, err := inspect.Analyze(src, inspect.Options{
		Stride:        *stride,
		MaxFrames:     *maxFrames,
		HistogramBins: *histBins,
	})
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create %s: %v", *outDir, err)
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode report: %v", err)
	}
	reportPath := filepath.Join(*outDir, ReportFile)
	if err := os.WriteFile(reportPath, data, 0644); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}

	log.Printf("%d/%d frames analysed, %dx%d %s @ %.2f fps, %.1fs", rep.Analysed, rep.Frames, rep.RangeBins, rep.Beams, rep.Depth, rep.FPS, rep.Duration)
	log.Printf("intensity mean %.2f std %.2f, peak range bin %d", rep.MeanIntensity, rep.StdDevIntensity, rep.PeakRangeBin())
	log.Printf("frame interval mean %.4fs std %.4fs", rep.MeanFrameInterval, rep.StdDevFrameInterval)
	log.Printf("✓ Report: %s", reportPath)

	if *noPlots {
		return
	}
	paths, err := inspect.WritePlots(rep, *outDir, *maxRange)
	if err != nil {
		log.Fatalf("Failed to write plots: %v", err)
	}
	for _, p := range paths {
		log.Printf("✓ Plot: %s", p)
	}
}
