// Command piv-tiling runs synthetic image pairs through the adaptive
// interrogation-area refinement and reports the resulting velocity fields.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/banshee-data/velocity.piv/internal/config"
	"github.com/banshee-data/velocity.piv/internal/fsutil"
	"github.com/banshee-data/velocity.piv/internal/monitoring"
	"github.com/banshee-data/velocity.piv/internal/piv/diagstore"
	"github.com/banshee-data/velocity.piv/internal/piv/inherit"
	"github.com/banshee-data/velocity.piv/internal/piv/pipeline"
	"github.com/banshee-data/velocity.piv/internal/piv/render"
	"github.com/banshee-data/velocity.piv/internal/piv/synthetic"
	"github.com/banshee-data/velocity.piv/internal/piv/tiling"
	"github.com/banshee-data/velocity.piv/internal/units"
	"github.com/banshee-data/velocity.piv/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to a run configuration JSON file (default: built-in defaults)")
	frameCount = flag.Int("frames", 8, "Number of synthetic frames to process")
	workers    = flag.Int("workers", 0, "Frame workers (0: use the configuration)")
	flowName   = flag.String("flow", "vortex", "Synthetic flow: uniform, shear or vortex")
	gain       = flag.Float64("gain", 1, "Correlator gain; values below 1 exercise stability re-iteration")
	plotDir    = flag.String("plot-dir", "", "Write a PNG vector plot and an HTML report per frame to this directory")
	diagDB     = flag.String("diag-db", "", "Record clipping and inheritance diagnostics to this SQLite file")
	speedUnits = flag.String("units", units.MPS, "Velocity units: "+units.GetValidUnitsString())
	verbose    = flag.Bool("v", false, "Log level geometry and per-level pass counts")
	trace      = flag.Bool("trace", false, "Log every clipping record and traced tile")
	showVer    = flag.Bool("version", false, "Print the build version and exit")
)

// options is the parsed command line.
type options struct {
	ConfigPath string
	Frames     int
	Workers    int
	Flow       string
	Gain       float64
	PlotDir    string
	DiagDB     string
	Units      string

	// FS receives the plot files; nil writes to the host filesystem.
	FS fsutil.FileSystem
}

func main() {
	flag.Parse()
	if *showVer {
		fmt.Printf("piv-tiling %s\n", version.String())
		return
	}

	var diag, tr io.Writer
	if *verbose || *trace {
		diag = os.Stderr
	}
	if *trace {
		tr = os.Stderr
	}
	tiling.SetLogWriters(os.Stderr, diag, tr)
	pipeline.SetLogWriters(os.Stderr, diag, tr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		ConfigPath: *configPath,
		Frames:     *frameCount,
		Workers:    *workers,
		Flow:       *flowName,
		Gain:       *gain,
		PlotDir:    *plotDir,
		DiagDB:     *diagDB,
		Units:      *speedUnits,
	}
	if err := run(ctx, opts, os.Stdout, *trace); err != nil {
		log.Fatalf("piv-tiling: %v", err)
	}
}

func loadConfig(path string) (*config.RunConfig, error) {
	if path == "" {
		return config.EmptyRunConfig(), nil
	}
	return config.LoadRunConfig(path)
}

func run(ctx context.Context, opts options, out io.Writer, logTraces bool) error {
	if opts.Frames < 1 {
		return fmt.Errorf("frames must be at least 1, got %d", opts.Frames)
	}
	if !units.IsValid(opts.Units) {
		return fmt.Errorf("invalid units %q: must be one of %s", opts.Units, units.GetValidUnitsString())
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	flow, err := synthetic.ParseFlow(opts.Flow, cfg.GetImageWidth(), cfg.GetImageHeight())
	if err != nil {
		return err
	}

	var sinks tiling.MultiSink
	if logTraces {
		sinks = append(sinks, tiling.LogSink{})
	}
	var store *diagstore.Store
	if opts.DiagDB != "" {
		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode configuration: %w", err)
		}
		store, err = diagstore.Open(opts.DiagDB, cfgJSON, nil)
		if err != nil {
			return err
		}
		defer store.Close()
		sinks = append(sinks, store)
	}
	var sink tiling.DiagnosticsSink
	if len(sinks) > 0 {
		sink = sinks
	}

	correlator := &synthetic.Correlator{Flow: flow, Gain: opts.Gain}
	engine, err := pipeline.EngineFromRun(cfg, correlator, sink)
	if err != nil {
		return err
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if opts.PlotDir != "" {
		if err := fsys.MkdirAll(opts.PlotDir, 0o755); err != nil {
			return fmt.Errorf("failed to create plot directory: %w", err)
		}
	}

	n := opts.Workers
	if n < 1 {
		n = cfg.GetWorkers()
	}
	fmt.Fprintf(out, "%s flow, %d frames on %d workers, %s inheritance, %d levels max\n",
		opts.Flow, opts.Frames, n, cfg.GetVelocityInheritance(), engine.Divider().MaxAdaptiveSteps())

	var stats monitoring.RunStats
	runner := &pipeline.Runner{Engine: engine, Workers: n}
	err = runner.Run(ctx, synthetic.Frames(opts.Frames, flow), func(res *pipeline.Result) error {
		stats.ObserveFrame(len(res.Levels), res.Passes(), res.Rejected(), res.Elapsed)
		if res.First == nil {
			fmt.Fprintf(out, "frame %d: no level fits the image\n", res.Frame.ID)
			return nil
		}

		mean, peak := meanPeak(res.First)
		meanV, err := units.ConvertDisplacement(mean, cfg.GetPixelPitchM(), cfg.GetFrameInterval(), opts.Units)
		if err != nil {
			return err
		}
		peakV, _ := units.ConvertDisplacement(peak, cfg.GetPixelPitchM(), cfg.GetFrameInterval(), opts.Units)
		fmt.Fprintf(out, "frame %d: %d levels, %d tiles of %dx%d, %d passes, %d rejected, mean %.4g %s, peak %.4g %s\n",
			res.Frame.ID, len(res.Levels), res.First.Len(), res.First.TileWidth, res.First.TileHeight,
			res.Passes(), res.Rejected(), meanV, opts.Units, peakV, opts.Units)

		if opts.PlotDir != "" {
			return writePlots(fsys, opts.PlotDir, res)
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s\n", stats.Snapshot())
	hits, misses := engine.Divider().Pool().Stats()
	fmt.Fprintf(out, "grid pool: %d reused, %d allocated\n", hits, misses)
	if store != nil {
		fmt.Fprintf(out, "diagnostics run %s in %s\n", store.RunID(), opts.DiagDB)
		if f := store.Failures(); f > 0 {
			monitoring.Logf("[piv-tiling] %d diagnostics records could not be written", f)
		}
	}
	return nil
}

// meanPeak returns the mean and largest displacement magnitude of a grid.
func meanPeak(g *tiling.IterationStepTiles) (mean, peak float64) {
	if g.Len() == 0 {
		return 0, 0
	}
	var sum float64
	for _, tile := range g.Tiles() {
		m := math.Hypot(tile.Displacement())
		sum += m
		peak = math.Max(peak, m)
	}
	return sum / float64(g.Len()), peak
}

func writePlots(fsys fsutil.FileSystem, dir string, res *pipeline.Result) error {
	base := filepath.Join(dir, fmt.Sprintf("frame_%03d", res.Frame.ID))
	if err := writeFile(fsys, base+".png", func(w io.Writer) error {
		return render.WriteVectorPlot(w, res.First, 0)
	}); err != nil {
		return err
	}
	return writeFile(fsys, base+".html", func(w io.Writer) error {
		return render.WriteFrameReport(w, res)
	})
}

func writeFile(fsys fsutil.FileSystem, name string, write func(io.Writer) error) error {
	f, err := fsys.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// inheritanceNames is used by the usage text.
var inheritanceNames = []inherit.Method{inherit.Direct, inherit.AreaWeighted, inherit.DistanceWeighted, inherit.BicubicSpline}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\nInheritance methods selectable in the configuration:", os.Args[0])
		for _, m := range inheritanceNames {
			fmt.Fprintf(flag.CommandLine.Output(), " %s", m)
		}
		fmt.Fprintf(flag.CommandLine.Output(), "\n\nFlags:\n")
		flag.PrintDefaults()
	}
}
