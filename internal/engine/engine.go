// Package engine runs the frame pipeline: advance the playback clock, pick
// the effective mood, compute the beat impulse, map everything to rendering
// parameters, and fan the result out to the attached sinks. One goroutine
// owns all mutable pipeline state; sinks receive immutable frames.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/veliks/moodpulse/internal/beat"
	"github.com/veliks/moodpulse/internal/dsp"
	"github.com/veliks/moodpulse/internal/mood"
	"github.com/veliks/moodpulse/internal/source"
	"github.com/veliks/moodpulse/internal/stream"
	"github.com/veliks/moodpulse/internal/utils"
	"github.com/veliks/moodpulse/internal/visual"
)

// Frame is one fully computed render frame.
type Frame struct {
	Params   visual.Params
	Mood     mood.State
	Impulse  float64
	BeatMode string
	Bands    dsp.BandFrame
	Playback source.PlaybackSnapshot
}

// Sink receives frames at render rate. Publish must not block; slow sinks
// drop frames on their own side.
type Sink interface {
	Publish(Frame)
}

// Poller yields authoritative playback snapshots for the video platform.
type Poller interface {
	Snapshot() (source.Snapshot, bool, bool)
}

// Options wires an Engine.
type Options struct {
	Controller *source.Controller
	Estimator  *beat.Estimator

	// Stream polls the streaming service while it is the active platform.
	Stream *stream.Client
	// Player polls the embedded video player while it is the active platform.
	Player Poller

	// Frames delivers raw capture frames; nil disables live mode.
	Frames     <-chan []float32
	SampleRate float64
	FrameSize  int
	Channels   int

	// DemoSeed switches the mood source to the drifting demo generator.
	Demo     bool
	DemoSeed int64

	TickRate     time.Duration
	PollInterval time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// Engine is the pipeline coordinator.
type Engine struct {
	opts Options

	ctrl *source.Controller
	est  *beat.Estimator
	demo *mood.DemoGenerator

	manualCh chan mood.State
	sinkCh   chan Sink
	bandsCh  chan dsp.BandFrame

	manual  mood.State
	sinks   []Sink
	elapsed float64

	// eased is the published mood; it trails the target so source switches,
	// manual edits, and pauses never pop on screen.
	eased     mood.State
	easedInit bool
	bands     dsp.BandFrame
	hasBands  bool

	logger *slog.Logger
	now    func() time.Time
}

const idleEnergyFloor = 0.2

// Easing rates in 1/seconds. Energy moves slowly so play/pause transitions
// glide; the other axes settle a little faster.
const (
	energyEaseRate = 1.2
	moodEaseRate   = 2.5
)

// New constructs an Engine. Controller and Estimator are required.
func New(opts Options) *Engine {
	if opts.TickRate <= 0 {
		opts.TickRate = time.Second / 60
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		opts:        opts,
		ctrl:        opts.Controller,
		est:         opts.Estimator,
		manualCh: make(chan mood.State, 8),
		sinkCh:   make(chan Sink, 4),
		bandsCh:  make(chan dsp.BandFrame, 8),
		manual:   mood.New(0.5, 0.5, 0.5, 0.5),
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if opts.Demo {
		e.demo = mood.NewDemoGenerator(opts.DemoSeed)
	}
	return e
}

// SetManualMood replaces the manual mood. Safe from any goroutine; the
// change takes effect on the next frame.
func (e *Engine) SetManualMood(s mood.State) {
	select {
	case e.manualCh <- s.Clamped():
	default:
	}
}

// SetPreset selects a named manual mood.
func (e *Engine) SetPreset(name string) error {
	p, ok := mood.PresetByName(name)
	if !ok {
		return eris.Errorf("unknown mood preset %q", name)
	}
	e.SetManualMood(p.State)
	return nil
}

// AttachSink registers a frame consumer. Takes effect on the next frame.
func (e *Engine) AttachSink(s Sink) {
	select {
	case e.sinkCh <- s:
	default:
	}
}

// Run drives the render loop, the authoritative poll loop, and (when
// capture is wired) the live analysis loop until the context ends.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.renderLoop(gctx) })
	g.Go(func() error { return e.pollLoop(gctx) })
	if e.opts.Frames != nil {
		g.Go(func() error { return e.analyzeLoop(gctx) })
	}

	if err := g.Wait(); err != nil && !eris.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (e *Engine) renderLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.TickRate)
	defer ticker.Stop()

	last := e.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-e.sinkCh:
			e.sinks = append(e.sinks, s)
		case m := <-e.manualCh:
			e.manual = m
		case bands, ok := <-e.bandsCh:
			if !ok {
				e.bandsCh = nil
				e.est.DropLive()
				continue
			}
			e.est.ObserveLive(bands)
			e.bands = bands
			e.hasBands = true
		case <-ticker.C:
			now := e.now()
			dt := now.Sub(last).Seconds()
			last = now
			if dt <= 0 {
				continue
			}
			e.step(now, dt)
		}
	}
}

// step computes and publishes one frame.
func (e *Engine) step(now time.Time, dt float64) {
	e.elapsed += dt

	e.ctrl.TickClock(dt * 1000)
	pb := e.ctrl.Playback()

	target := e.baseMood(pb, dt)
	impulse := e.est.Tick(now, pb.Playing, pb.Track.Features.Tempo, pb.SmoothedMs, e.elapsed, dt)

	// The idle scene keeps breathing instead of freezing: energy glides to a
	// quiet floor on pause and back up on resume.
	if !pb.Playing {
		target.Energy = min(target.Energy, idleEnergyFloor)
	}

	if !e.easedInit {
		e.eased = target
		e.easedInit = true
	} else {
		e.eased.Energy = utils.Approach(e.eased.Energy, target.Energy, energyEaseRate, dt)
		e.eased.Valence = utils.Approach(e.eased.Valence, target.Valence, moodEaseRate, dt)
		e.eased.Euphoria = utils.Approach(e.eased.Euphoria, target.Euphoria, moodEaseRate, dt)
		e.eased.Cognition = utils.Approach(e.eased.Cognition, target.Cognition, moodEaseRate, dt)
	}

	frame := Frame{
		Params:   visual.Map(e.eased, impulse, e.elapsed, pb.ProgressRatio),
		Mood:     e.eased,
		Impulse:  impulse,
		BeatMode: e.est.Mode().String(),
		Playback: pb,
	}
	if e.hasBands {
		frame.Bands = e.bands
	}

	for _, s := range e.sinks {
		s.Publish(frame)
	}
}

// baseMood picks the mood source for this frame: demo drift, active track
// features, or the manual mood.
func (e *Engine) baseMood(pb source.PlaybackSnapshot, dt float64) mood.State {
	if e.demo != nil {
		return e.demo.Next(dt)
	}
	if pb.HasTrack {
		return mood.FromAudioFeatures(pb.Track.Features)
	}
	return e.manual
}

func (e *Engine) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.pollOnce(ctx)
		}
	}
}

func (e *Engine) pollOnce(ctx context.Context) {
	switch e.ctrl.State() {
	case source.StateStreamActive:
		if e.opts.Stream == nil {
			return
		}
		snap, err := e.opts.Stream.NowPlaying(ctx)
		if err != nil {
			if eris.Is(err, stream.ErrNothingPlaying) {
				e.logger.Debug("stream reports nothing playing")
				return
			}
			// Poll failures are transient; the smoothed clock keeps running
			// until the next successful poll reconciles it.
			e.logger.Warn("stream poll failed", slog.Any("error", err))
			return
		}
		e.ctrl.ApplySnapshot(snap)

	case source.StateEmbeddedActive:
		if e.opts.Player == nil {
			return
		}
		snap, ok, ended := e.opts.Player.Snapshot()
		if !ok {
			return
		}
		e.ctrl.ApplySnapshot(snap)
		if ended {
			e.ctrl.OnTrackEnded()
		}
	}
}

func (e *Engine) analyzeLoop(ctx context.Context) error {
	frameSize := e.opts.FrameSize
	if frameSize <= 0 {
		frameSize = 1024
	}
	channels := e.opts.Channels
	if channels <= 0 {
		channels = 1
	}

	analyzer := dsp.NewAnalyzer(frameSize)
	var mono []float64

	defer close(e.bandsCh)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-e.opts.Frames:
			if !ok {
				return nil
			}
			mono = dsp.ToMono(raw, channels, mono)
			bands := analyzer.Process(mono, e.now())
			select {
			case e.bandsCh <- bands:
			default:
				select {
				case <-e.bandsCh:
				default:
				}
				select {
				case e.bandsCh <- bands:
				default:
				}
			}
		}
	}
}
