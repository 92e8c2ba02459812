// Package source owns the playback-source state machine: which platform is
// active, the pending queue, the playback clock, and the reconciliation of
// optimistic local commands against authoritative poll data.
package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veliks/moodpulse/internal/clock"
	"github.com/veliks/moodpulse/internal/mood"
)

// Platform tags which upstream a queue item or command belongs to.
type Platform string

const (
	PlatformStream Platform = "stream"
	PlatformVideo  Platform = "video"
)

// State names the controller's position in its machine.
type State int

const (
	StateNone State = iota
	StateStreamActive
	StateEmbeddedActive
)

// String returns a human-friendly name for the state.
func (s State) String() string {
	switch s {
	case StateStreamActive:
		return "stream"
	case StateEmbeddedActive:
		return "embedded"
	default:
		return "none"
	}
}

func (s State) platform() (Platform, bool) {
	switch s {
	case StateStreamActive:
		return PlatformStream, true
	case StateEmbeddedActive:
		return PlatformVideo, true
	default:
		return "", false
	}
}

// Track describes the currently active item.
type Track struct {
	ID         string
	Title      string
	Artist     string
	DurationMs float64
	Features   mood.AudioFeatures
}

// QueueItem is a pending track tagged by platform. Consumed FIFO.
type QueueItem struct {
	ID         uuid.UUID
	Platform   Platform
	TrackID    string
	Title      string
	DurationMs float64
}

// Transport issues playback commands to one upstream platform.
type Transport interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, progressMs float64) error
}

// Snapshot is one authoritative poll result, applied atomically.
type Snapshot struct {
	Track      Track
	ProgressMs float64
	Playing    bool
}

// Options tunes the Controller.
type Options struct {
	// GraceWindow is how long optimistic local state outranks poll data, so a
	// just-pressed pause does not flicker back to playing on a stale poll.
	GraceWindow time.Duration
	Clock       *clock.Clock
	Logger      *slog.Logger
	// Now is overridable for tests.
	Now func() time.Time
}

// Controller is the single owner of source state, the queue, and the
// playback clock. All mutation goes through its methods; the render loop
// only reads snapshots.
type Controller struct {
	mu sync.Mutex

	state      State
	transports map[Platform]Transport
	queue      []QueueItem
	current    Track
	hasTrack   bool

	clk         *clock.Clock
	graceWindow time.Duration
	lastCommand time.Time
	logger      *slog.Logger
	now         func() time.Time
}

// NewController constructs a Controller in StateNone.
func NewController(opts Options) *Controller {
	if opts.GraceWindow <= 0 {
		opts.GraceWindow = 1500 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = clock.New(clock.Options{})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		state:       StateNone,
		transports:  make(map[Platform]Transport),
		clk:         opts.Clock,
		graceWindow: opts.GraceWindow,
		logger:      opts.Logger,
		now:         opts.Now,
	}
}

// RegisterTransport wires a platform's command channel.
func (c *Controller) RegisterTransport(p Platform, t Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transports[p] = t
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentTrack returns the active track, if any.
func (c *Controller) CurrentTrack() (Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.hasTrack
}

// Activate switches the active platform. The outgoing transport is paused
// and the clock resets for the incoming source. Activating the already
// active platform is a no-op.
func (c *Controller) Activate(ctx context.Context, p Platform) {
	c.mu.Lock()

	target := stateFor(p)
	if target == c.state {
		c.mu.Unlock()
		return
	}

	outgoing, outgoingPlatform := c.outgoingTransportLocked()

	c.state = target
	c.current = Track{}
	c.hasTrack = false
	c.clk.Reset()
	c.logger.Info("source activated", slog.String("state", c.state.String()))
	c.mu.Unlock()

	c.pauseTransport(ctx, outgoingPlatform, outgoing)
}

// Deactivate pauses the active source and returns to StateNone.
func (c *Controller) Deactivate(ctx context.Context) {
	c.mu.Lock()

	outgoing, outgoingPlatform := c.outgoingTransportLocked()

	c.state = StateNone
	c.current = Track{}
	c.hasTrack = false
	c.clk.Reset()
	c.mu.Unlock()

	c.pauseTransport(ctx, outgoingPlatform, outgoing)
}

// ActivePlatform reports which platform commands currently route to.
func (c *Controller) ActivePlatform() (Platform, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.platform()
}

// Enqueue appends a pending item.
func (c *Controller) Enqueue(item QueueItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	c.queue = append(c.queue, item)
}

// QueueLen returns the number of pending items.
func (c *Controller) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// OnTrackEnded advances to the next queued item on the active platform. If
// none is pending the source goes idle but the state is retained.
func (c *Controller) OnTrackEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()

	active, ok := c.state.platform()
	if !ok {
		return
	}

	for i, item := range c.queue {
		if item.Platform != active {
			continue
		}
		c.queue = append(c.queue[:i], c.queue[i+1:]...)
		c.current = Track{
			ID:         item.TrackID,
			Title:      item.Title,
			DurationMs: item.DurationMs,
		}
		c.hasTrack = true
		c.clk.Reset()
		c.clk.OnAuthoritativeUpdate(0, item.DurationMs, true)
		c.logger.Info("dequeued next track",
			slog.String("platform", string(item.Platform)),
			slog.String("title", item.Title))
		return
	}

	c.clk.SetPlaying(false)
	c.logger.Info("queue drained, going idle", slog.String("state", c.state.String()))
}

// Play dispatches a play command. No-op unless p is the active platform.
// The local clock starts optimistically; a failed upstream command is left
// for the next poll to reconcile.
func (c *Controller) Play(ctx context.Context, p Platform) {
	c.command(ctx, p, "play", func(t Transport) error { return t.Play(ctx) }, func() {
		c.clk.SetPlaying(true)
	})
}

// Pause dispatches a pause command. No-op unless p is the active platform.
func (c *Controller) Pause(ctx context.Context, p Platform) {
	c.command(ctx, p, "pause", func(t Transport) error { return t.Pause(ctx) }, func() {
		c.clk.SetPlaying(false)
	})
}

// Next skips forward on the active platform.
func (c *Controller) Next(ctx context.Context, p Platform) {
	c.command(ctx, p, "next", func(t Transport) error { return t.Next(ctx) }, func() {
		c.clk.Reset()
		c.clk.SetPlaying(true)
	})
}

// Previous skips backward on the active platform.
func (c *Controller) Previous(ctx context.Context, p Platform) {
	c.command(ctx, p, "previous", func(t Transport) error { return t.Previous(ctx) }, func() {
		c.clk.Reset()
		c.clk.SetPlaying(true)
	})
}

// Seek jumps to a position on the active platform.
func (c *Controller) Seek(ctx context.Context, p Platform, progressMs float64) {
	c.command(ctx, p, "seek", func(t Transport) error { return t.Seek(ctx, progressMs) }, func() {
		c.clk.Seek(progressMs)
	})
}

// command applies the optimistic local effect under the lock, then releases
// it before the upstream call so a slow transport never stalls the render
// loop's clock reads.
func (c *Controller) command(ctx context.Context, p Platform, name string, send func(Transport) error, applyLocal func()) {
	c.mu.Lock()

	active, ok := c.state.platform()
	if !ok || active != p {
		c.mu.Unlock()
		return
	}

	applyLocal()
	c.lastCommand = c.now()
	t, hasTransport := c.transports[p]
	c.mu.Unlock()

	if !hasTransport {
		return
	}
	if err := send(t); err != nil {
		// Optimistic state stands; the next authoritative poll reconciles.
		c.logger.Warn("upstream command failed",
			slog.String("command", name),
			slog.String("platform", string(p)),
			slog.Any("error", err))
	}
}

// ApplySnapshot applies one authoritative poll result atomically. Within the
// grace window after a local command the polled playing/progress state is
// ignored to avoid flicker from poll latency; track identity still applies.
func (c *Controller) ApplySnapshot(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.state.platform(); !ok {
		return
	}

	trackChanged := !c.hasTrack || snap.Track.ID != c.current.ID
	if trackChanged {
		c.current = snap.Track
		c.hasTrack = snap.Track.ID != ""
		c.clk.Reset()
		c.clk.OnAuthoritativeUpdate(snap.ProgressMs, snap.Track.DurationMs, snap.Playing)
		return
	}
	c.current = snap.Track

	if c.withinGraceWindow() {
		return
	}
	c.clk.OnAuthoritativeUpdate(snap.ProgressMs, snap.Track.DurationMs, snap.Playing)
}

// TickClock advances the clock by one render frame.
func (c *Controller) TickClock(deltaMs float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clk.Tick(deltaMs)
}

// PlaybackSnapshot is the read-only view the render loop consumes.
type PlaybackSnapshot struct {
	State         State
	Track         Track
	HasTrack      bool
	SmoothedMs    float64
	DurationMs    float64
	ProgressRatio float64
	Playing       bool
}

// Playback returns the latest playback view.
func (c *Controller) Playback() PlaybackSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return PlaybackSnapshot{
		State:         c.state,
		Track:         c.current,
		HasTrack:      c.hasTrack,
		SmoothedMs:    c.clk.SmoothedMs(),
		DurationMs:    c.clk.DurationMs(),
		ProgressRatio: c.clk.ProgressRatio(),
		Playing:       c.clk.Playing(),
	}
}

func (c *Controller) withinGraceWindow() bool {
	return !c.lastCommand.IsZero() && c.now().Sub(c.lastCommand) < c.graceWindow
}

func (c *Controller) outgoingTransportLocked() (Transport, Platform) {
	p, ok := c.state.platform()
	if !ok {
		return nil, ""
	}
	return c.transports[p], p
}

// pauseTransport runs without the lock; a sluggish outgoing platform must
// not hold up the switch.
func (c *Controller) pauseTransport(ctx context.Context, p Platform, t Transport) {
	if t == nil {
		return
	}
	if err := t.Pause(ctx); err != nil {
		c.logger.Warn("failed to pause outgoing source",
			slog.String("platform", string(p)),
			slog.Any("error", err))
	}
}

func stateFor(p Platform) State {
	switch p {
	case PlatformStream:
		return StateStreamActive
	case PlatformVideo:
		return StateEmbeddedActive
	default:
		return StateNone
	}
}
