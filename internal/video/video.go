// Package video is the boundary to the embedded-video platform. The embed
// mechanism itself is opaque; once a video is resolved and playing, the
// player is just another authoritative clock source for the poll loop.
package video

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/veliks/moodpulse/internal/source"
	"github.com/veliks/moodpulse/internal/stream"
)

// Video is a resolved embeddable item.
type Video struct {
	ID         string
	Title      string
	DurationMs float64
}

// Resolver looks up video metadata from an oEmbed-style endpoint.
type Resolver struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(baseURL string, httpClient *http.Client, logger *slog.Logger) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

type videoWire struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	DurationMs float64 `json:"duration_ms"`
}

// Resolve fetches metadata for a video id. A zero or missing duration is
// clamped rather than propagated; the render loop must never crash on a
// malformed upstream duration.
func (r *Resolver) Resolve(ctx context.Context, id string) (Video, error) {
	endpoint := fmt.Sprintf("%s/oembed?id=%s", r.baseURL, url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Video{}, eris.Wrap(err, "build resolve request")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Video{}, eris.Wrap(err, "resolve video")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Video{}, eris.Errorf("resolve returned status %d", resp.StatusCode)
	}

	var wire videoWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return Video{}, eris.Wrap(err, "decode resolve response")
	}
	if wire.ID == "" {
		wire.ID = id
	}
	if wire.DurationMs < 0 {
		r.logger.Warn("negative video duration clamped", slog.String("id", wire.ID))
		wire.DurationMs = 0
	}

	return Video{ID: wire.ID, Title: wire.Title, DurationMs: wire.DurationMs}, nil
}

// Player tracks local playback of the embedded video and serves as both the
// command transport and the authoritative snapshot source for the poll loop.
type Player struct {
	mu sync.Mutex

	video      Video
	loaded     bool
	playing    bool
	positionMs float64
	updatedAt  time.Time

	now func() time.Time
}

var _ source.Transport = (*Player)(nil)

// NewPlayer constructs an idle Player. nowFn is overridable for tests; nil
// uses the wall clock.
func NewPlayer(nowFn func() time.Time) *Player {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Player{now: nowFn}
}

// Load makes a resolved video current and starts it from the beginning.
func (p *Player) Load(v Video) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.video = v
	p.loaded = true
	p.playing = true
	p.positionMs = 0
	p.updatedAt = p.now()
}

// Play resumes the embedded player.
func (p *Player) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncPositionLocked()
	p.playing = true
	return nil
}

// Pause halts the embedded player.
func (p *Player) Pause(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncPositionLocked()
	p.playing = false
	return nil
}

// Next and Previous are queue concerns for the embedded platform; the
// transport accepts them as no-ops.
func (p *Player) Next(context.Context) error     { return nil }
func (p *Player) Previous(context.Context) error { return nil }

// Seek jumps to a position.
func (p *Player) Seek(_ context.Context, progressMs float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if progressMs < 0 {
		progressMs = 0
	}
	if p.video.DurationMs > 0 && progressMs > p.video.DurationMs {
		progressMs = p.video.DurationMs
	}
	p.positionMs = progressMs
	p.updatedAt = p.now()
	return nil
}

// Snapshot reports the current authoritative state. The second return value
// is false when no video is loaded. Ended reports whether playback ran past
// the end since the last snapshot.
func (p *Player) Snapshot() (source.Snapshot, bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return source.Snapshot{}, false, false
	}

	p.syncPositionLocked()

	ended := false
	if p.video.DurationMs > 0 && p.positionMs >= p.video.DurationMs && p.playing {
		p.positionMs = p.video.DurationMs
		p.playing = false
		ended = true
	}

	return source.Snapshot{
		Track: source.Track{
			ID:         p.video.ID,
			Title:      p.video.Title,
			DurationMs: p.video.DurationMs,
			// Embedded items carry no service metadata; synthesize stable
			// pseudo features so visuals stay consistent per video.
			Features: stream.SyntheticFeatures(p.video.Title, p.video.ID),
		},
		ProgressMs: p.positionMs,
		Playing:    p.playing,
	}, true, ended
}

func (p *Player) syncPositionLocked() {
	now := p.now()
	if p.playing && !p.updatedAt.IsZero() {
		p.positionMs += float64(now.Sub(p.updatedAt).Milliseconds())
		if p.video.DurationMs > 0 && p.positionMs > p.video.DurationMs {
			p.positionMs = p.video.DurationMs
		}
	}
	p.updatedAt = now
}
