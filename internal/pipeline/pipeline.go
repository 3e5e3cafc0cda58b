// Package pipeline turns a photo of a document into a flattened, cleaned
// scan and a preview of the boundary that was used.
//
// A run is an explicit state machine:
//
//	pending -> decoded -> edge-mapped -> corners-found -> rectified
//	        -> enhanced -> encoded -> succeeded
//
// Any stage error moves the run to failed. Corners are always found: when
// no four sided contour qualifies the fallback locator supplies them.
//
// A Pipeline holds only configuration, so one value may serve concurrent
// runs. Every buffer belongs to a single run.
package pipeline

import (
	"fmt"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"docscan/internal/config"
	"docscan/internal/detect"
	"docscan/internal/edgemap"
	"docscan/internal/enhance"
	"docscan/internal/fallback"
	"docscan/internal/geom"
	"docscan/internal/imgcodec"
	"docscan/internal/rectify"
)

// MethodContour names corners taken from a traced four sided contour. The
// fallback methods are fallback.MethodLines, MethodContourBox and MethodMargin.
const MethodContour = "contour"

// Result is the in-memory outcome of a run. The caller owns both Mats and
// must call Close.
type Result struct {
	Cropped      gocv.Mat // rectified and enhanced page
	Visualized   gocv.Mat // original with the boundary drawn on it
	Corners      geom.OrderedCorners
	UsedFallback bool
	Method       string
	Trace        []State
}

// Close releases the result images.
func (r *Result) Close() {
	r.Cropped.Close()
	r.Visualized.Close()
}

// Output is the encoded outcome of a run.
type Output struct {
	Cropped      []byte
	Visualized   []byte
	Format       imgcodec.Format
	Corners      geom.OrderedCorners
	UsedFallback bool
	Method       string
	Trace        []State
}

// Pipeline runs the scan stages with a fixed configuration.
type Pipeline struct {
	cfg      config.Config
	format   imgcodec.Format
	log      zerolog.Logger
	detector *detect.Detector
	locator  *fallback.Locator
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger receiving per stage debug events.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New validates cfg and returns a Pipeline.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, err := imgcodec.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, format: format, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	p.detector = detect.New(cfg.Detect, p.log)
	p.locator = fallback.New(cfg.Fallback, p.log)
	return p, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() config.Config {
	return p.cfg
}

// Format returns the output encoding.
func (p *Pipeline) Format() imgcodec.Format {
	return p.format
}

// Process decodes data, scans it and encodes both result images.
func (p *Pipeline) Process(data []byte) (*Output, error) {
	r := &run{data: data, encode: true}
	defer r.close()

	if err := p.execute(r, StatePending); err != nil {
		return nil, err
	}
	return &Output{
		Cropped:      r.encodedCropped,
		Visualized:   r.encodedVisualized,
		Format:       p.format,
		Corners:      r.corners,
		UsedFallback: r.usedFallback,
		Method:       r.method,
		Trace:        r.trace,
	}, nil
}

// ProcessMat scans an already decoded BGR or gray image. img stays owned by
// the caller.
func (p *Pipeline) ProcessMat(img gocv.Mat) (*Result, error) {
	r := &run{original: &img, borrowed: true}
	defer r.close()

	if err := p.execute(r, StateDecoded); err != nil {
		return nil, err
	}
	res := &Result{
		Cropped:      *r.enhanced,
		Visualized:   *r.visualized,
		Corners:      r.corners,
		UsedFallback: r.usedFallback,
		Method:       r.method,
		Trace:        r.trace,
	}
	r.enhanced, r.visualized = nil, nil
	return res, nil
}

// run carries the buffers of one invocation. Each stage closes the buffer
// it consumed as soon as it has produced its own.
type run struct {
	data     []byte
	encode   bool
	borrowed bool // original belongs to the caller

	original   *gocv.Mat
	edges      *gocv.Mat
	rectified  *gocv.Mat
	enhanced   *gocv.Mat
	visualized *gocv.Mat

	corners      geom.OrderedCorners
	usedFallback bool
	method       string

	encodedCropped    []byte
	encodedVisualized []byte

	trace []State
}

func (r *run) close() {
	if r.borrowed {
		r.original = nil
	}
	for _, m := range []**gocv.Mat{&r.original, &r.edges, &r.rectified, &r.enhanced, &r.visualized} {
		release(m)
	}
}

func release(m **gocv.Mat) {
	if *m != nil {
		(*m).Close()
		*m = nil
	}
}

func own(m gocv.Mat) *gocv.Mat {
	return &m
}

// execute drives r from start until it reaches a terminal state.
func (p *Pipeline) execute(r *run, start State) error {
	state := start
	for {
		r.trace = append(r.trace, state)
		if state.Terminal() {
			return nil
		}

		next, err := p.step(state, r)
		if err != nil {
			r.trace = append(r.trace, StateFailed)
			p.log.Debug().Err(err).Stringer("state", state).Msg("run failed")
			return &StageError{State: state, Err: err, Trace: r.trace}
		}
		p.log.Debug().Stringer("from", state).Stringer("to", next).Msg("transition")
		state = next
	}
}

// step performs the work leaving state and returns the next state.
func (p *Pipeline) step(state State, r *run) (State, error) {
	switch state {
	case StatePending:
		img, err := imgcodec.Decode(r.data)
		if err != nil {
			return StateFailed, err
		}
		r.original = own(img)
		p.log.Debug().Int("width", img.Cols()).Int("height", img.Rows()).Int("channels", img.Channels()).Msg("decoded")
		return StateDecoded, nil

	case StateDecoded:
		edges, err := edgemap.Build(*r.original, p.cfg.Edge)
		if err != nil {
			return StateFailed, err
		}
		r.edges = own(edges)
		return StateEdgeMapped, nil

	case StateEdgeMapped:
		area := float64(r.original.Cols() * r.original.Rows())
		if corners, ok := p.detector.Detect(*r.edges, area); ok {
			r.corners, r.method = corners, MethodContour
		} else {
			est := p.locator.Locate(*r.edges)
			r.corners, r.method, r.usedFallback = est.Corners, string(est.Method), true
		}
		release(&r.edges)
		p.log.Debug().Str("method", r.method).Stringer("corners", r.corners).Msg("corners found")
		return StateCornersFound, nil

	case StateCornersFound:
		out, err := rectify.Rectify(*r.original, r.corners, p.cfg.Rectify)
		if err != nil {
			return StateFailed, err
		}
		r.rectified = own(out)
		p.log.Debug().Int("width", out.Cols()).Int("height", out.Rows()).Msg("rectified")
		return StateRectified, nil

	case StateRectified:
		out, err := enhance.Enhance(*r.rectified, p.cfg.Enhance)
		if err != nil {
			return StateFailed, err
		}
		release(&r.rectified)
		r.enhanced = own(out)
		vis, err := Visualize(*r.original, r.corners, p.cfg.Visualize)
		if err != nil {
			return StateFailed, err
		}
		r.visualized = own(vis)
		return StateEnhanced, nil

	case StateEnhanced:
		if !r.encode {
			return StateSucceeded, nil
		}
		var err error
		if r.encodedCropped, err = imgcodec.Encode(*r.enhanced, p.format, p.cfg.Output.Quality); err != nil {
			return StateFailed, err
		}
		if r.encodedVisualized, err = imgcodec.Encode(*r.visualized, p.format, p.cfg.Output.Quality); err != nil {
			return StateFailed, err
		}
		return StateEncoded, nil

	case StateEncoded:
		return StateSucceeded, nil
	}
	return StateFailed, fmt.Errorf("no step leaves state %s", state)
}
