package pika

import (
	"context"
	"errors"
	"image"
	"math"

	"go.uber.org/zap"
)

// Fixed constants of the target-size fallback. They are not configurable
// per request.
const (
	// ShrinkFactor scales the working dimension on every fallback retry.
	ShrinkFactor = 0.75

	// MinDimension is the floor for the working dimension, in pixels.
	MinDimension = 50

	// maxShrinkAttempts caps dimension-reduction retries per request.
	maxShrinkAttempts = 10

	// DefaultQuality is used when a request carries no usable quality.
	DefaultQuality = 80
)

// Prober reports the natural (display) size of a source.
type Prober interface {
	Probe(ctx context.Context, src *Source) (image.Point, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, src *Source) (image.Point, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, src *Source) (image.Point, error) {
	return f(ctx, src)
}

// HeaderProber reads dimensions from the image header, cached on the Source.
var HeaderProber Prober = ProberFunc(func(_ context.Context, src *Source) (image.Point, error) {
	return src.NaturalSize()
})

// CompressorOptions configures a Compressor.
type CompressorOptions struct {
	// DefaultQuality is used for quality goals without a valid level and as
	// the highest quality searched for target-size goals without one.
	DefaultQuality int

	// Prober looks up natural dimensions for the fallback loop.
	// Default: HeaderProber.
	Prober Prober

	// Logger is optional.
	Logger *zap.Logger

	// Metrics is optional.
	Metrics *Metrics
}

// DefaultCompressorOptions returns sensible defaults for general use.
func DefaultCompressorOptions() CompressorOptions {
	return CompressorOptions{
		DefaultQuality: DefaultQuality,
		Prober:         HeaderProber,
	}
}

// Compressor is the adaptive compression controller. It decides which
// quality and dimension to try next, judges each encode against the goal
// and decides when to stop. It holds no per-request state and may serve
// requests one after another.
type Compressor struct {
	enc     Encoder
	prober  Prober
	quality int
	log     *zap.Logger
	metrics *Metrics
}

// NewCompressor returns a Compressor driving enc.
func NewCompressor(enc Encoder, opts CompressorOptions) *Compressor {
	c := &Compressor{
		enc:     enc,
		prober:  opts.Prober,
		quality: opts.DefaultQuality,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	if c.prober == nil {
		c.prober = HeaderProber
	}
	if c.quality < 1 || c.quality > 100 {
		c.quality = DefaultQuality
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Compress serves one request. Encodes are issued one at a time and each is
// awaited before the next decision. Progress is reported through onProgress
// as a strictly increasing percentage ending at 100.
//
// The returned error is an *EncodeError, a *ProbeError or a context error.
// A target-size goal that could not be met is not an error: the last encode
// is returned with MetTarget false.
func (c *Compressor) Compress(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error) {
	p := newProgress(onProgress)
	defer p.complete()

	req = c.normalize(req)
	if req.Source == nil {
		return nil, &EncodeError{Name: "<nil>", Err: ErrEmptySource}
	}
	// Pixels are only needed while this request runs.
	defer req.Source.release()

	res, err := c.compress(ctx, req, p)
	if err != nil {
		c.metrics.finished(req.Goal.Kind, "failed", nil)
		c.log.Warn("compression failed",
			zap.String("file", req.Source.Name),
			zap.String("mode", req.Goal.Kind.String()),
			zap.Error(err),
		)
		return nil, err
	}

	outcome := "met"
	if !res.MetTarget {
		outcome = "best_effort"
	}
	c.metrics.finished(req.Goal.Kind, outcome, res)
	c.log.Info("compressed",
		zap.String("file", res.Name),
		zap.String("mode", res.Goal.Kind.String()),
		zap.Int64("original", res.OriginalSize),
		zap.Int64("size", res.Size()),
		zap.Int64("target", res.Goal.SizeBytes),
		zap.Int("quality", res.Quality),
		zap.Int("max_dimension", res.MaxDimension),
		zap.Int("shrinks", res.Shrinks),
		zap.Bool("met_target", res.MetTarget),
	)
	return res, nil
}

func (c *Compressor) compress(ctx context.Context, req Request, p *progress) (*Result, error) {
	src := req.Source
	res := &Result{
		Name:         src.Name,
		Goal:         req.Goal,
		OriginalSize: src.Size(),
	}
	params := EncodeParams{
		Quality:      req.Goal.Level,
		MaxDimension: req.Dimensions.Bound(),
		Format:       req.Format,
	}

	if req.Goal.Kind == GoalQuality {
		a, err := c.encode(ctx, src, params, p.forward, res)
		if err != nil {
			return nil, err
		}
		res.Attempt = *a
		res.MetTarget = true
		return res, nil
	}

	target := req.Goal.SizeBytes
	params.MaxBytes = target

	// The fallback may still follow, so 100 is withheld until it is settled.
	p.hold()
	a, err := c.encode(ctx, src, params, p.forward, res)
	if err != nil {
		return nil, err
	}
	res.Attempt = *a
	res.MetTarget = a.Blob.Size() <= target

	// An explicit constraint is the caller's decision; it is never overridden.
	if res.MetTarget || !req.Dimensions.IsZero() {
		return res, nil
	}

	natural, err := c.prober.Probe(ctx, src)
	if err != nil {
		var pe *ProbeError
		if !errors.As(err, &pe) {
			err = &ProbeError{Name: src.Name, Err: err}
		}
		return nil, err
	}

	dim := max(natural.X, natural.Y)
	for res.Shrinks < maxShrinkAttempts && dim > MinDimension {
		dim = max(MinDimension, int(math.Round(float64(dim)*ShrinkFactor)))
		params.MaxDimension = dim

		// Per-iteration progress would restart from zero; it is not forwarded.
		a, err := c.encode(ctx, src, params, nil, res)
		if err != nil {
			return nil, err
		}
		res.Shrinks++
		res.Attempt = *a
		res.MetTarget = a.Blob.Size() <= target

		c.log.Debug("shrink attempt",
			zap.String("file", src.Name),
			zap.Int("attempt", res.Shrinks),
			zap.Int("max_dimension", dim),
			zap.Int64("size", a.Blob.Size()),
			zap.Int64("target", target),
		)
		if res.MetTarget {
			break
		}
	}
	return res, nil
}

func (c *Compressor) encode(ctx context.Context, src *Source, params EncodeParams, fn ProgressFunc, res *Result) (*Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Encodes++
	a, err := c.enc.Encode(ctx, src, params, fn)
	if err != nil {
		return nil, err
	}
	if a == nil || a.Blob == nil {
		return nil, &EncodeError{Name: src.Name, Err: errors.New("encoder returned no output")}
	}
	return a, nil
}

// normalize turns malformed requests into safe ones instead of rejecting them.
func (c *Compressor) normalize(req Request) Request {
	name := "<nil>"
	if req.Source != nil {
		name = req.Source.Name
	}
	warn := func(reason string) {
		c.log.Warn("normalised request", zap.String("file", name), zap.String("reason", reason))
	}

	if !req.Format.valid() {
		warn("unknown format, using JPEG")
		req.Format = JPEG
	}

	g := req.Goal
	switch g.Kind {
	case GoalQuality:
	case GoalTargetSize:
		if g.SizeBytes <= 0 {
			warn("target size missing, using quality mode")
			g.Kind = GoalQuality
		}
	default:
		warn("unknown goal kind, using quality mode")
		g.Kind = GoalQuality
	}

	switch {
	case g.Level == 0:
		g.Level = c.quality
	case g.Level < 0 || g.Level > 100:
		warn("quality out of range, clamping")
		g.Level = clampQuality(g.Level)
	}
	if g.Kind == GoalQuality {
		g.SizeBytes = 0
	}
	req.Goal = g

	if req.Dimensions.MaxWidth < 0 {
		req.Dimensions.MaxWidth = 0
	}
	if req.Dimensions.MaxHeight < 0 {
		req.Dimensions.MaxHeight = 0
	}
	return req
}
