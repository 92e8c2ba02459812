package main

import (
	"flag"
	"time"
)

type runtimeOptions struct {
	sourceName  string
	videoID     string
	preset      string
	demo        bool
	demoSeed    int64
	live        bool
	deviceIndex int
	sampleRate  float64
	frameSize   int
	channels    int
	latency     time.Duration
	webAddr     string
	visualize   bool
	debug       bool
}

func parseCLIFlags() runtimeOptions {
	var (
		cfg       runtimeOptions
		latencyMs int
	)

	flag.StringVar(&cfg.sourceName, "source", "", "playback source to activate on start (stream|video)")
	flag.StringVar(&cfg.videoID, "video", "", "embedded video id to load when -source=video")
	flag.StringVar(&cfg.preset, "preset", "", "mood preset name (leave blank to choose interactively)")
	flag.BoolVar(&cfg.demo, "demo", false, "drive the scene from a drifting synthetic mood")
	flag.Int64Var(&cfg.demoSeed, "demo-seed", 0, "seed for the demo mood drift (0 = time-based)")
	flag.BoolVar(&cfg.live, "live", false, "react to a microphone/loopback input")
	flag.IntVar(&cfg.deviceIndex, "device", -1, "audio input device index (leave blank to choose interactively)")
	flag.Float64Var(&cfg.sampleRate, "sample-rate", 0, "capture sample rate (0 = device default)")
	flag.IntVar(&cfg.frameSize, "frame-size", 1024, "analysis frame size in samples")
	flag.IntVar(&cfg.channels, "channels", 2, "number of input channels to capture (<= device max)")
	flag.IntVar(&latencyMs, "latency-ms", 0, "override input latency in milliseconds (0 = device default)")
	flag.StringVar(&cfg.webAddr, "web", "", "serve the web bridge on this address, e.g. :8080")
	flag.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	flag.BoolVar(&cfg.visualize, "visualize", false, "render the realtime terminal visualization (logs go to stderr)")
	flag.Parse()

	cfg.latency = time.Duration(latencyMs) * time.Millisecond

	return cfg
}
