package source

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

type fakeTransport struct {
	plays, pauses, nexts, prevs int
	seeks                       []float64
	err                         error
}

func (f *fakeTransport) Play(context.Context) error  { f.plays++; return f.err }
func (f *fakeTransport) Pause(context.Context) error { f.pauses++; return f.err }
func (f *fakeTransport) Next(context.Context) error  { f.nexts++; return f.err }
func (f *fakeTransport) Previous(context.Context) error {
	f.prevs++
	return f.err
}
func (f *fakeTransport) Seek(_ context.Context, ms float64) error {
	f.seeks = append(f.seeks, ms)
	return f.err
}

type manualNow struct{ t time.Time }

func (m *manualNow) now() time.Time          { return m.t }
func (m *manualNow) advance(d time.Duration) { m.t = m.t.Add(d) }

func newTestController(nowFn func() time.Time) (*Controller, *fakeTransport, *fakeTransport) {
	stream := &fakeTransport{}
	video := &fakeTransport{}
	c := NewController(Options{Now: nowFn})
	c.RegisterTransport(PlatformStream, stream)
	c.RegisterTransport(PlatformVideo, video)
	return c, stream, video
}

func TestActivateSwitchPausesOutgoingAndResetsClock(t *testing.T) {
	c, stream, _ := newTestController(nil)
	ctx := context.Background()

	c.Activate(ctx, PlatformStream)
	assert.Equal(t, StateStreamActive, c.State())

	c.ApplySnapshot(Snapshot{
		Track:      Track{ID: "t1", Title: "One", DurationMs: 200000},
		ProgressMs: 60000,
		Playing:    true,
	})
	assert.Equal(t, 60000.0, c.Playback().SmoothedMs)

	c.Activate(ctx, PlatformVideo)
	assert.Equal(t, StateEmbeddedActive, c.State())
	assert.Equal(t, 1, stream.pauses, "outgoing source is paused")
	assert.Equal(t, 0.0, c.Playback().SmoothedMs, "clock resets for the incoming source")
}

func TestActivateSamePlatformIsNoop(t *testing.T) {
	c, stream, _ := newTestController(nil)
	ctx := context.Background()

	c.Activate(ctx, PlatformStream)
	c.Activate(ctx, PlatformStream)
	assert.Equal(t, 0, stream.pauses)
}

func TestCommandsToInactivePlatformAreNoops(t *testing.T) {
	c, stream, video := newTestController(nil)
	ctx := context.Background()

	c.Activate(ctx, PlatformStream)
	c.Play(ctx, PlatformVideo)
	c.Pause(ctx, PlatformVideo)
	c.Next(ctx, PlatformVideo)
	assert.Zero(t, video.plays)
	assert.Zero(t, video.pauses)
	assert.Zero(t, video.nexts)

	c.Play(ctx, PlatformStream)
	assert.Equal(t, 1, stream.plays)
}

func TestCommandsWithNoActiveSourceAreNoops(t *testing.T) {
	c, stream, _ := newTestController(nil)
	c.Play(context.Background(), PlatformStream)
	assert.Zero(t, stream.plays)
}

func TestFailedCommandKeepsOptimisticState(t *testing.T) {
	c, stream, _ := newTestController(nil)
	ctx := context.Background()
	stream.err = eris.New("network down")

	c.Activate(ctx, PlatformStream)
	c.ApplySnapshot(Snapshot{
		Track:      Track{ID: "t1", DurationMs: 200000},
		ProgressMs: 1000,
		Playing:    false,
	})

	c.Play(ctx, PlatformStream)
	assert.True(t, c.Playback().Playing, "optimistic state is not rolled back on command failure")
}

func TestTrackEndedDequeuesSamePlatformItem(t *testing.T) {
	c, _, _ := newTestController(nil)
	ctx := context.Background()

	c.Activate(ctx, PlatformVideo)
	c.Enqueue(QueueItem{Platform: PlatformStream, TrackID: "s1", Title: "Other platform"})
	c.Enqueue(QueueItem{Platform: PlatformVideo, TrackID: "v1", Title: "Next up", DurationMs: 240000})

	c.OnTrackEnded()

	track, ok := c.CurrentTrack()
	assert.True(t, ok)
	assert.Equal(t, "v1", track.ID)
	assert.Equal(t, 1, c.QueueLen(), "only the same-platform item is consumed")

	pb := c.Playback()
	assert.Equal(t, 0.0, pb.SmoothedMs, "progress resets for the dequeued item")
	assert.True(t, pb.Playing)
	assert.Equal(t, StateEmbeddedActive, pb.State)
}

func TestTrackEndedWithEmptyQueueGoesIdle(t *testing.T) {
	c, _, _ := newTestController(nil)
	ctx := context.Background()

	c.Activate(ctx, PlatformVideo)
	c.ApplySnapshot(Snapshot{
		Track:      Track{ID: "v0", DurationMs: 100000},
		ProgressMs: 100000,
		Playing:    true,
	})

	c.OnTrackEnded()
	pb := c.Playback()
	assert.False(t, pb.Playing)
	assert.Equal(t, StateEmbeddedActive, pb.State, "state is retained while idle")
}

func TestGraceWindowPreservesOptimisticState(t *testing.T) {
	mn := &manualNow{t: time.Unix(1000, 0)}
	c, _, _ := newTestController(mn.now)
	ctx := context.Background()

	c.Activate(ctx, PlatformStream)
	c.ApplySnapshot(Snapshot{
		Track:      Track{ID: "t1", DurationMs: 200000},
		ProgressMs: 5000,
		Playing:    true,
	})

	c.Pause(ctx, PlatformStream)
	assert.False(t, c.Playback().Playing)

	// A stale poll lands 500ms later still claiming playback.
	mn.advance(500 * time.Millisecond)
	c.ApplySnapshot(Snapshot{
		Track:      Track{ID: "t1", DurationMs: 200000},
		ProgressMs: 6000,
		Playing:    true,
	})
	assert.False(t, c.Playback().Playing, "poll inside grace window does not override")

	// After the window the authoritative data wins.
	mn.advance(2 * time.Second)
	c.ApplySnapshot(Snapshot{
		Track:      Track{ID: "t1", DurationMs: 200000},
		ProgressMs: 6000,
		Playing:    true,
	})
	assert.True(t, c.Playback().Playing)
}

func TestApplySnapshotTrackChangeResetsClock(t *testing.T) {
	c, _, _ := newTestController(nil)
	ctx := context.Background()

	c.Activate(ctx, PlatformStream)
	c.ApplySnapshot(Snapshot{
		Track:      Track{ID: "t1", DurationMs: 200000},
		ProgressMs: 150000,
		Playing:    true,
	})
	assert.Equal(t, 150000.0, c.Playback().SmoothedMs)

	c.ApplySnapshot(Snapshot{
		Track:      Track{ID: "t2", DurationMs: 180000},
		ProgressMs: 0,
		Playing:    true,
	})
	assert.Equal(t, 0.0, c.Playback().SmoothedMs)
	assert.Equal(t, 180000.0, c.Playback().DurationMs)
}

func TestApplySnapshotIgnoredWhenNoActiveSource(t *testing.T) {
	c, _, _ := newTestController(nil)
	c.ApplySnapshot(Snapshot{
		Track:      Track{ID: "t1", DurationMs: 200000},
		ProgressMs: 1000,
		Playing:    true,
	})
	_, ok := c.CurrentTrack()
	assert.False(t, ok)
}

type stallingTransport struct {
	fakeTransport
	entered chan struct{}
	release chan struct{}
}

func (s *stallingTransport) Play(ctx context.Context) error {
	close(s.entered)
	<-s.release
	return nil
}

func TestSlowCommandDoesNotBlockClockReads(t *testing.T) {
	stalling := &stallingTransport{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := NewController(Options{})
	c.RegisterTransport(PlatformStream, stalling)
	ctx := context.Background()

	c.Activate(ctx, PlatformStream)
	go c.Play(ctx, PlatformStream)
	<-stalling.entered

	// The transport call is still in flight; ticking and reading the clock
	// must go through without waiting on it.
	done := make(chan PlaybackSnapshot, 1)
	go func() {
		c.TickClock(16.6)
		done <- c.Playback()
	}()
	select {
	case pb := <-done:
		assert.True(t, pb.Playing, "optimistic play is visible before the upstream call returns")
	case <-time.After(2 * time.Second):
		t.Fatal("clock reads stalled behind an in-flight command")
	}
	close(stalling.release)
}

func TestSeekDispatchesAndSnapsLocally(t *testing.T) {
	c, stream, _ := newTestController(nil)
	ctx := context.Background()

	c.Activate(ctx, PlatformStream)
	c.ApplySnapshot(Snapshot{
		Track:      Track{ID: "t1", DurationMs: 200000},
		ProgressMs: 1000,
		Playing:    true,
	})

	c.Seek(ctx, PlatformStream, 90000)
	assert.Equal(t, []float64{90000}, stream.seeks)
	assert.Equal(t, 90000.0, c.Playback().SmoothedMs)
}
