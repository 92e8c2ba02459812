// Package stream is the boundary to the remote streaming service: it polls
// the authoritative playback state, resolves per-track audio features, and
// carries the manual playback commands. Protocol failures never propagate
// past this package as anything other than an error return.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"

	"github.com/veliks/moodpulse/internal/mood"
	"github.com/veliks/moodpulse/internal/source"
)

// ErrNothingPlaying is returned by NowPlaying when the service reports no
// active playback.
var ErrNothingPlaying = eris.New("nothing playing")

// Config configures a Client.
type Config struct {
	BaseURL string
	// AccessToken is attached as a bearer token. Obtaining it (the OAuth
	// dance) is outside this core.
	AccessToken string
	HTTPClient  *http.Client
	MaxRetries  int
	BaseBackoff time.Duration
	Logger      *slog.Logger
}

// Client is an HTTP client for the streaming service boundary.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
	logger      *slog.Logger

	mu            sync.Mutex
	featuresCache map[string]mood.AudioFeatures
}

// Client doubles as the command transport for the stream platform.
var _ source.Transport = (*Client)(nil)

// NewClient constructs a Client. An access token, when present, is wired
// through an oauth2 static token source.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.AccessToken != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.AccessToken,
		}))
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    httpClient,
		maxRetries:    cfg.MaxRetries,
		baseBackoff:   cfg.BaseBackoff,
		logger:        cfg.Logger,
		featuresCache: make(map[string]mood.AudioFeatures),
	}
}

type artistWire struct {
	Name string `json:"name"`
}

type trackWire struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	DurationMs float64      `json:"duration_ms"`
	Artists    []artistWire `json:"artists"`
}

type nowPlayingWire struct {
	IsPlaying  bool       `json:"is_playing"`
	ProgressMs float64    `json:"progress_ms"`
	Item       *trackWire `json:"item"`
}

type featuresWire struct {
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Danceability     float64 `json:"danceability"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Tempo            float64 `json:"tempo"`
}

// NowPlaying polls the authoritative playback state and resolves the active
// track's audio features. Returns ErrNothingPlaying when the service reports
// an empty player.
func (c *Client) NowPlaying(ctx context.Context) (source.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/me/player", nil)
	if err != nil {
		return source.Snapshot{}, eris.Wrap(err, "build now-playing request")
	}

	resp, err := c.doWithRetry(req)
	if err != nil {
		return source.Snapshot{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return source.Snapshot{}, ErrNothingPlaying
	default:
		return source.Snapshot{}, eris.Errorf("now-playing returned status %d", resp.StatusCode)
	}

	var wire nowPlayingWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return source.Snapshot{}, eris.Wrap(err, "decode now-playing response")
	}
	if wire.Item == nil {
		return source.Snapshot{}, ErrNothingPlaying
	}

	artist := ""
	if len(wire.Item.Artists) > 0 {
		artist = wire.Item.Artists[0].Name
	}

	return source.Snapshot{
		Track: source.Track{
			ID:         wire.Item.ID,
			Title:      wire.Item.Name,
			Artist:     artist,
			DurationMs: wire.Item.DurationMs,
			Features:   c.features(ctx, wire.Item.ID, wire.Item.Name, artist),
		},
		ProgressMs: wire.ProgressMs,
		Playing:    wire.IsPlaying,
	}, nil
}

// features resolves track metadata, falling back to deterministic synthetic
// features when the lookup is missing or denied. Results are cached per
// track so a 2s poll cadence does not hammer the endpoint.
func (c *Client) features(ctx context.Context, trackID, title, artist string) mood.AudioFeatures {
	c.mu.Lock()
	if cached, ok := c.featuresCache[trackID]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	feats, err := c.fetchFeatures(ctx, trackID)
	if err != nil {
		c.logger.Debug("audio features unavailable, synthesizing",
			slog.String("track", trackID),
			slog.Any("error", err))
		feats = SyntheticFeatures(title, artist)
	}

	c.mu.Lock()
	c.featuresCache[trackID] = feats
	c.mu.Unlock()
	return feats
}

func (c *Client) fetchFeatures(ctx context.Context, trackID string) (mood.AudioFeatures, error) {
	url := fmt.Sprintf("%s/v1/audio-features/%s", c.baseURL, trackID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return mood.AudioFeatures{}, eris.Wrap(err, "build features request")
	}

	resp, err := c.doWithRetry(req)
	if err != nil {
		return mood.AudioFeatures{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mood.AudioFeatures{}, eris.Errorf("features returned status %d", resp.StatusCode)
	}

	var wire featuresWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return mood.AudioFeatures{}, eris.Wrap(err, "decode features response")
	}

	return mood.AudioFeatures{
		Energy:           wire.Energy,
		Valence:          wire.Valence,
		Danceability:     wire.Danceability,
		Acousticness:     wire.Acousticness,
		Instrumentalness: wire.Instrumentalness,
		Tempo:            wire.Tempo,
	}, nil
}

// Play resumes playback.
func (c *Client) Play(ctx context.Context) error {
	return c.sendCommand(ctx, http.MethodPut, "/v1/me/player/play")
}

// Pause halts playback.
func (c *Client) Pause(ctx context.Context) error {
	return c.sendCommand(ctx, http.MethodPut, "/v1/me/player/pause")
}

// Next skips to the next track.
func (c *Client) Next(ctx context.Context) error {
	return c.sendCommand(ctx, http.MethodPost, "/v1/me/player/next")
}

// Previous skips to the previous track.
func (c *Client) Previous(ctx context.Context) error {
	return c.sendCommand(ctx, http.MethodPost, "/v1/me/player/previous")
}

// Seek jumps to a playback position.
func (c *Client) Seek(ctx context.Context, progressMs float64) error {
	path := fmt.Sprintf("/v1/me/player/seek?position_ms=%d", int64(progressMs))
	return c.sendCommand(ctx, http.MethodPut, path)
}

func (c *Client) sendCommand(ctx context.Context, method, path string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrapf(err, "build %s request", path)
	}

	resp, err := c.doWithRetry(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return eris.Errorf("command %s returned status %d", path, resp.StatusCode)
	}
	return nil
}

// doWithRetry retries transient failures (network errors, 429, 5xx) with
// exponential backoff, honoring Retry-After when present.
func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var lastStatus int
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "request canceled")
		}

		resp, err := c.httpClient.Do(req)
		retryAfter, retry := shouldRetry(resp, err)
		if !retry {
			if err != nil {
				return nil, eris.Wrap(err, "request failed")
			}
			return resp, nil
		}

		if resp != nil {
			lastStatus = resp.StatusCode
			_ = resp.Body.Close()
		}
		c.logger.Warn("retrying stream request",
			slog.String("url", req.URL.Path),
			slog.Int("attempt", attempt+1),
			slog.Int("status", lastStatus),
			slog.Any("error", err))

		if attempt == c.maxRetries-1 {
			break
		}

		backoff := c.baseBackoff * time.Duration(1<<attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, eris.Errorf("request failed after %d attempts (last status %d)", c.maxRetries, lastStatus)
}

func shouldRetry(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, true
	}
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}
	return 0, false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	var seconds int
	if _, err := fmt.Sscanf(retryAfter, "%d", &seconds); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "request canceled")
	case <-timer.C:
		return nil
	}
}
