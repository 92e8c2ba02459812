package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/veliks/moodpulse/internal/beat"
	"github.com/veliks/moodpulse/internal/capture"
	"github.com/veliks/moodpulse/internal/engine"
	"github.com/veliks/moodpulse/internal/playlist"
	"github.com/veliks/moodpulse/internal/source"
	"github.com/veliks/moodpulse/internal/stream"
	"github.com/veliks/moodpulse/internal/ui"
	"github.com/veliks/moodpulse/internal/video"
	"github.com/veliks/moodpulse/internal/web"
)

func main() {
	cfg := parseCLIFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runMoodPulse(ctx, cancel, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runMoodPulse(ctx context.Context, cancel context.CancelFunc, cfg runtimeOptions) error {
	env := loadEnvConfig()
	logger := setupLogger(cfg.debug, cfg.visualize)

	ctrl := source.NewController(source.Options{Logger: logger})
	est := beat.NewEstimator(beat.Options{})

	var streamClient *stream.Client
	if env.StreamToken != "" || env.StreamBaseURL != "" {
		streamClient = stream.NewClient(stream.Config{
			BaseURL:     env.StreamBaseURL,
			AccessToken: env.StreamToken,
			Logger:      logger,
		})
		ctrl.RegisterTransport(source.PlatformStream, streamClient)
	}

	player := video.NewPlayer(nil)
	ctrl.RegisterTransport(source.PlatformVideo, player)

	var (
		devices       []*portaudio.DeviceInfo
		defaultDevice = -1
	)
	if cfg.live {
		if err := capture.Acquire(); err != nil {
			return err
		}
		defer capture.Release()

		var err error
		devices, defaultDevice, err = capture.InputDevices()
		if err != nil {
			return err
		}
	}

	preset, device, err := selectPresetAndDevice(devices, defaultDevice, cfg)
	if err != nil {
		return eris.Wrap(err, "select preset/device")
	}

	seed := cfg.demoSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var frames chan []float32
	if cfg.live && device != nil {
		frames = make(chan []float32, 32)
	}

	eng := engine.New(engine.Options{
		Controller: ctrl,
		Estimator:  est,
		Stream:     streamClient,
		Player:     player,
		Frames:     frames,
		SampleRate: cfg.sampleRate,
		FrameSize:  cfg.frameSize,
		Channels:   cfg.channels,
		Demo:       cfg.demo,
		DemoSeed:   seed,
		Logger:     logger,
	})
	if !cfg.demo {
		eng.SetManualMood(preset.State)
		logger.Info("mood preset selected", slog.String("preset", preset.Name))
	}

	if err := activateSource(ctx, cfg, env, logger, ctrl, streamClient, player); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if frames != nil {
		g.Go(func() error {
			defer close(frames)
			return capture.Run(gctx, logger, frames, capture.Options{
				Device:     device,
				SampleRate: cfg.sampleRate,
				FrameSize:  cfg.frameSize,
				Channels:   cfg.channels,
				Latency:    cfg.latency,
			})
		})
	}

	if cfg.visualize {
		viz := ui.NewVisualizer(cancel)
		defer viz.Close()
		eng.AttachSink(viz)
	}

	if cfg.webAddr != "" {
		var suggester web.Suggester
		if env.OllamaBaseURL != "" {
			suggester = playlist.NewClient(env.OllamaBaseURL, env.OllamaModel, logger)
		}
		srv := web.NewServer(web.Options{
			Engine:     eng,
			Controller: ctrl,
			Playlist:   suggester,
			Logger:     logger,
		})
		eng.AttachSink(srv)
		g.Go(func() error { return srv.Run(gctx, cfg.webAddr) })
	}

	g.Go(func() error { return eng.Run(gctx) })

	if err := g.Wait(); err != nil && !eris.Is(err, context.Canceled) {
		logger.Error("pipeline failed", slog.Any("error", err))
		return err
	}

	return nil
}

func activateSource(
	ctx context.Context,
	cfg runtimeOptions,
	env envConfig,
	logger *slog.Logger,
	ctrl *source.Controller,
	streamClient *stream.Client,
	player *video.Player,
) error {
	switch cfg.sourceName {
	case "":
		return nil
	case "stream":
		if streamClient == nil {
			return eris.New("stream source requires MOODPULSE_STREAM_TOKEN or MOODPULSE_STREAM_URL")
		}
		ctrl.Activate(ctx, source.PlatformStream)
		return nil
	case "video":
		if cfg.videoID == "" {
			return eris.New("video source requires -video=<id>")
		}
		if env.VideoBaseURL == "" {
			return eris.New("video source requires MOODPULSE_VIDEO_URL")
		}
		resolver := video.NewResolver(env.VideoBaseURL, nil, logger)
		v, err := resolver.Resolve(ctx, cfg.videoID)
		if err != nil {
			return eris.Wrap(err, "resolve video")
		}
		player.Load(v)
		ctrl.Activate(ctx, source.PlatformVideo)
		logger.Info("embedded video loaded",
			slog.String("id", v.ID),
			slog.String("title", v.Title))
		return nil
	default:
		return eris.Errorf("unknown source %q (want stream or video)", cfg.sourceName)
	}
}

func setupLogger(debug, visualize bool) *slog.Logger {
	logOutput := os.Stdout
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	if visualize && !debug {
		logLevel = slog.LevelWarn
	}
	if visualize {
		logOutput = os.Stderr
	}

	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	return logger
}
