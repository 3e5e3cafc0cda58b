// Command docscan flattens photographed documents into clean scans.
//
//	docscan [options] image_files_or_dirs...
package main

import (
	"flag"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"docscan/internal/config"
	"docscan/internal/imgcodec"
	"docscan/internal/pipeline"
)

type options struct {
	dryRun      bool
	showWindows bool
	noAnalysis  bool
	corners     bool
	outputDir   string
	overwrite   bool
}

func main() {
	var (
		opts       options
		verbose    bool
		configPath string
		format     string
	)

	flag.StringVar(&configPath, "config", "", "YAML file overriding the default parameters")
	flag.BoolVar(&verbose, "verbose", false, "Print debug information")
	flag.BoolVar(&opts.showWindows, "show", false, "Display the detected boundary in a window")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Detect only, do not write any file")
	flag.StringVar(&opts.outputDir, "output-dir", "", "Output directory for scanned images")
	flag.BoolVar(&opts.overwrite, "overwrite", false, "Overwrite original images")
	flag.BoolVar(&opts.noAnalysis, "no-analysis", false, "Do not write the <file>-analysis.jpg boundary preview")
	flag.BoolVar(&opts.corners, "corners", false, "Write detected corners to <file>.txt")
	flag.StringVar(&format, "format", "", "Output format, jpeg or png (default from config)")

	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] image_files...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if format != "" {
		cfg.Output.Format = format
	}
	p, err := pipeline.New(cfg, pipeline.WithLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("create pipeline")
	}

	// Expand directories
	var inputFiles []string
	for _, file := range files {
		if !isDir(file) {
			inputFiles = append(inputFiles, file)
			continue
		}
		if !opts.overwrite && opts.outputDir == "" {
			fmt.Fprintf(os.Stderr, "ERROR: When passing a folder, provide --output-dir or --overwrite\n")
			os.Exit(2)
		}
		dirFiles, err := expandDirectory(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Failed to list directory '%s': %v\n", file, err)
			continue
		}
		inputFiles = append(inputFiles, dirFiles...)
	}

	total := len(inputFiles)
	failed := 0
	for idx, filename := range inputFiles {
		status := fmt.Sprintf("[%d/%d] ", idx+1, total)
		line, err := scanFile(p, filename, opts, log)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%sWARNING: Skipping '%s': %v\n", status, filename, err)
			continue
		}
		fmt.Println(status + line)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// scanFile runs one image through the pipeline and writes its outputs. A
// panic from OpenCV is turned into an error so the batch carries on.
func scanFile(p *pipeline.Pipeline, filename string, opts options, log zerolog.Logger) (line string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if !fileExists(filename) {
		return "", fmt.Errorf("could not find file '%s'", filename)
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	img, err := imgcodec.Decode(data)
	if err != nil {
		return "", err
	}
	defer img.Close()
	log.Debug().Str("file", filename).Int("width", img.Cols()).Int("height", img.Rows()).Msg("loaded")

	res, err := p.ProcessMat(img)
	if err != nil {
		return "", err
	}
	defer res.Close()

	coverage := res.Corners.Quad().Area() / float64(img.Cols()*img.Rows())
	pct := int(math.Round(math.Min(1, coverage) * 100))
	how := res.Method
	if res.UsedFallback {
		how += " fallback"
	}

	if opts.showWindows {
		if err := show(res.Visualized); err != nil {
			log.Warn().Err(err).Msg("show preview")
		}
	}
	if opts.dryRun {
		return fmt.Sprintf("would scan %d%% of %s via %s to %dx%d",
			pct, filepath.Base(filename), how, res.Cropped.Cols(), res.Cropped.Rows()), nil
	}

	outPath, format, err := outputPath(filename, opts.outputDir, opts.overwrite, p.Format())
	if err != nil {
		return "", err
	}
	if err := writeImage(outPath, res.Cropped, format, p.Config().Output.Quality); err != nil {
		return "", err
	}
	log.Debug().Str("path", outPath).Msg("wrote scan")

	if !opts.noAnalysis {
		path := analysisPath(filename)
		if err := writeImage(path, res.Visualized, imgcodec.JPEG, imgcodec.DefaultQuality); err != nil {
			return "", err
		}
		log.Debug().Str("path", path).Msg("wrote analysis")
	}
	if opts.corners {
		if err := writeCornerData(filename+".txt", res.Corners); err != nil {
			return "", fmt.Errorf("write corners: %w", err)
		}
	}

	return fmt.Sprintf("scanned %d%% of image via %s -> %s", pct, how, outPath), nil
}

func writeImage(path string, img gocv.Mat, f imgcodec.Format, quality int) error {
	data, err := imgcodec.Encode(img, f, quality)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func show(img gocv.Mat) error {
	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(img, &resized, image.Point{}, 0.75, 0.75, gocv.InterpolationLinear); err != nil {
		return err
	}

	window := gocv.NewWindow("docscan")
	defer window.Close()
	if err := window.IMShow(resized); err != nil {
		return err
	}
	window.WaitKey(0)
	return nil
}
