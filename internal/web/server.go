// Package web exposes the scene over HTTP: a JSON control surface for the
// manual mood and playlist suggestions, and a websocket feed that pushes
// render parameters to browser clients.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"

	"github.com/veliks/moodpulse/internal/engine"
	"github.com/veliks/moodpulse/internal/mood"
	"github.com/veliks/moodpulse/internal/playlist"
	"github.com/veliks/moodpulse/internal/source"
	"github.com/veliks/moodpulse/internal/visual"
)

// Suggester is the playlist collaborator; nil disables the endpoint.
type Suggester interface {
	Suggest(ctx context.Context, s mood.State, contextText string, limit int) ([]playlist.Suggestion, error)
}

// Options wires a Server.
type Options struct {
	Engine     *engine.Engine
	Controller *source.Controller
	Playlist   Suggester
	Logger     *slog.Logger
	// BroadcastInterval throttles websocket pushes. Zero means 33ms (~30fps).
	BroadcastInterval time.Duration
}

// Server implements engine.Sink and serves the HTTP/websocket surface.
type Server struct {
	engine   *engine.Engine
	ctrl     *source.Controller
	playlist Suggester
	logger   *slog.Logger

	upgrader websocket.Upgrader
	throttle time.Duration
	notify   chan struct{}

	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	latest   frameWire
	hasFrame bool
}

var _ engine.Sink = (*Server)(nil)

// NewServer constructs a Server around a running engine.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BroadcastInterval <= 0 {
		opts.BroadcastInterval = 33 * time.Millisecond
	}
	s := &Server{
		engine:   opts.Engine,
		ctrl:     opts.Controller,
		playlist: opts.Playlist,
		logger:   opts.Logger,
		throttle: opts.BroadcastInterval,
		notify:   make(chan struct{}, 1),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
	go s.broadcastLoop()
	return s
}

type trackWire struct {
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	DurationMs float64 `json:"durationMs"`
}

type playbackWire struct {
	Source     string    `json:"source"`
	Track      trackWire `json:"track"`
	HasTrack   bool      `json:"hasTrack"`
	Playing    bool      `json:"playing"`
	ProgressMs float64   `json:"progressMs"`
	Ratio      float64   `json:"ratio"`
}

type frameWire struct {
	Params   visual.Params `json:"params"`
	Mood     mood.State    `json:"mood"`
	Impulse  float64       `json:"impulse"`
	BeatMode string        `json:"beatMode"`
	Playback playbackWire  `json:"playback"`
}

// Publish records the latest frame and nudges the broadcaster. It never
// performs network writes itself, so a stalled client cannot hold up the
// render loop.
func (s *Server) Publish(f engine.Frame) {
	wire := frameWire{
		Params:   f.Params,
		Mood:     f.Mood,
		Impulse:  f.Impulse,
		BeatMode: f.BeatMode,
		Playback: playbackWire{
			Source: f.Playback.State.String(),
			Track: trackWire{
				Title:      f.Playback.Track.Title,
				Artist:     f.Playback.Track.Artist,
				DurationMs: f.Playback.DurationMs,
			},
			HasTrack:   f.Playback.HasTrack,
			Playing:    f.Playback.Playing,
			ProgressMs: f.Playback.SmoothedMs,
			Ratio:      f.Playback.ProgressRatio,
		},
	}

	s.mu.Lock()
	s.latest = wire
	s.hasFrame = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// broadcastLoop pushes the newest frame to all websocket clients, throttled
// to the broadcast interval. Burst publishes collapse into one send carrying
// the latest frame. Clients that miss the write deadline are evicted here
// rather than in the render path.
func (s *Server) broadcastLoop() {
	var lastSend time.Time
	for range s.notify {
		if wait := s.throttle - time.Since(lastSend); wait > 0 {
			time.Sleep(wait)
		}

		s.mu.Lock()
		if !s.hasFrame || len(s.clients) == 0 {
			s.mu.Unlock()
			continue
		}
		payload, err := json.Marshal(s.latest)
		conns := make([]*websocket.Conn, 0, len(s.clients))
		for conn := range s.clients {
			conns = append(conns, conn)
		}
		s.mu.Unlock()
		if err != nil {
			continue
		}
		lastSend = time.Now()

		var stale []*websocket.Conn
		for _, conn := range conns {
			conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				stale = append(stale, conn)
			}
		}
		if len(stale) == 0 {
			continue
		}
		s.mu.Lock()
		for _, conn := range stale {
			delete(s.clients, conn)
			conn.Close()
		}
		s.mu.Unlock()
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebsocket)
	r.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/api/presets", s.handlePresets).Methods(http.MethodGet)
	r.HandleFunc("/api/mood", s.handleMood).Methods(http.MethodPost)
	r.HandleFunc("/api/playback", s.handlePlayback).Methods(http.MethodPost)
	r.HandleFunc("/api/queue", s.handleQueue).Methods(http.MethodPost)
	r.HandleFunc("/api/playlist", s.handlePlaylist).Methods(http.MethodPost)
	return r
}

// Run serves until the context ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web bridge listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "shut down web bridge")
		}
		s.closeClients()
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !eris.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "web bridge failed")
		}
		return nil
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("websocket client connected", slog.String("remote", conn.RemoteAddr().String()))

	// Reader loop only detects disconnects; all control goes through the
	// JSON endpoints.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	wire, ok := s.latest, s.hasFrame
	s.mu.Unlock()

	if !ok {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, wire)
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	type presetWire struct {
		Name  string     `json:"name"`
		State mood.State `json:"state"`
	}
	presets := mood.Presets()
	out := make([]presetWire, len(presets))
	for i, p := range presets {
		out[i] = presetWire{Name: p.Name, State: p.State}
	}
	writeJSON(w, http.StatusOK, out)
}

type moodRequest struct {
	Preset    *string  `json:"preset"`
	Energy    *float64 `json:"energy"`
	Valence   *float64 `json:"valence"`
	Euphoria  *float64 `json:"euphoria"`
	Cognition *float64 `json:"cognition"`
}

func (s *Server) handleMood(w http.ResponseWriter, r *http.Request) {
	var req moodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if req.Preset != nil {
		if err := s.engine.SetPreset(*req.Preset); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if req.Energy == nil || req.Valence == nil || req.Euphoria == nil || req.Cognition == nil {
		http.Error(w, "all four mood axes are required", http.StatusBadRequest)
		return
	}
	s.engine.SetManualMood(mood.New(*req.Energy, *req.Valence, *req.Euphoria, *req.Cognition))
	w.WriteHeader(http.StatusNoContent)
}

type playbackRequest struct {
	Command    string   `json:"command"`
	ProgressMs *float64 `json:"progressMs"`
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	if s.ctrl == nil {
		http.Error(w, "playback control is not configured", http.StatusServiceUnavailable)
		return
	}

	var req playbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	p, ok := s.ctrl.ActivePlatform()
	if !ok {
		http.Error(w, "no active source", http.StatusConflict)
		return
	}

	ctx := r.Context()
	switch req.Command {
	case "play":
		s.ctrl.Play(ctx, p)
	case "pause":
		s.ctrl.Pause(ctx, p)
	case "next":
		s.ctrl.Next(ctx, p)
	case "previous":
		s.ctrl.Previous(ctx, p)
	case "seek":
		if req.ProgressMs == nil {
			http.Error(w, "seek requires progressMs", http.StatusBadRequest)
			return
		}
		s.ctrl.Seek(ctx, p, *req.ProgressMs)
	default:
		http.Error(w, "unknown command", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type queueRequest struct {
	Platform   string  `json:"platform"`
	TrackID    string  `json:"trackId"`
	Title      string  `json:"title"`
	DurationMs float64 `json:"durationMs"`
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if s.ctrl == nil {
		http.Error(w, "playback control is not configured", http.StatusServiceUnavailable)
		return
	}

	var req queueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	platform := source.Platform(req.Platform)
	if platform != source.PlatformStream && platform != source.PlatformVideo {
		http.Error(w, "unknown platform", http.StatusBadRequest)
		return
	}
	if req.TrackID == "" {
		http.Error(w, "trackId is required", http.StatusBadRequest)
		return
	}

	s.ctrl.Enqueue(source.QueueItem{
		Platform:   platform,
		TrackID:    req.TrackID,
		Title:      req.Title,
		DurationMs: req.DurationMs,
	})
	writeJSON(w, http.StatusAccepted, map[string]int{"pending": s.ctrl.QueueLen()})
}

type playlistRequest struct {
	Context string     `json:"context"`
	Limit   int        `json:"limit"`
	Mood    mood.State `json:"mood"`
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	if s.playlist == nil {
		http.Error(w, "playlist suggestions are not configured", http.StatusServiceUnavailable)
		return
	}

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	suggestions, err := s.playlist.Suggest(r.Context(), req.Mood.Clamped(), req.Context, req.Limit)
	if err != nil {
		if eris.Is(err, playlist.ErrNoSuggestions) {
			writeJSON(w, http.StatusOK, []playlist.Suggestion{})
			return
		}
		s.logger.Warn("playlist suggestion failed", slog.Any("error", err))
		http.Error(w, "suggestion failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
