package main

import (
	"fmt"
	"os"

	"github.com/gordonklaus/portaudio"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"

	"github.com/veliks/moodpulse/internal/mood"
	"github.com/veliks/moodpulse/internal/ui"
)

// envConfig holds the settings that never belong on the command line.
type envConfig struct {
	StreamToken   string
	StreamBaseURL string
	VideoBaseURL  string
	OllamaBaseURL string
	OllamaModel   string
}

func loadEnvConfig() envConfig {
	// Missing .env is fine; the environment may carry everything already.
	_ = godotenv.Load()

	return envConfig{
		StreamToken:   os.Getenv("MOODPULSE_STREAM_TOKEN"),
		StreamBaseURL: os.Getenv("MOODPULSE_STREAM_URL"),
		VideoBaseURL:  os.Getenv("MOODPULSE_VIDEO_URL"),
		OllamaBaseURL: os.Getenv("MOODPULSE_OLLAMA_URL"),
		OllamaModel:   os.Getenv("MOODPULSE_OLLAMA_MODEL"),
	}
}

// selectPresetAndDevice resolves the mood preset and capture device, asking
// interactively for whichever the flags left open. Without a TTY the
// defaults win.
func selectPresetAndDevice(
	devices []*portaudio.DeviceInfo,
	defaultDeviceIndex int,
	opts runtimeOptions,
) (mood.Preset, *portaudio.DeviceInfo, error) {
	presets := mood.Presets()

	var (
		selectedPreset mood.Preset
		havePreset     bool
		selectedDevice *portaudio.DeviceInfo
	)

	if opts.preset != "" {
		p, ok := mood.PresetByName(opts.preset)
		if !ok {
			return mood.Preset{}, nil, eris.Errorf("unknown mood preset %q", opts.preset)
		}
		selectedPreset = p
		havePreset = true
	}
	if opts.live && opts.deviceIndex >= 0 {
		if opts.deviceIndex >= len(devices) {
			return mood.Preset{}, nil, eris.Errorf("invalid device index %d", opts.deviceIndex)
		}
		selectedDevice = devices[opts.deviceIndex]
	}

	needPreset := !havePreset && !opts.demo
	needDevice := opts.live && selectedDevice == nil

	if !needPreset && !needDevice {
		if !havePreset {
			selectedPreset = presets[0]
		}
		return selectedPreset, selectedDevice, nil
	}

	initialDevice := effectiveInitialDeviceIndex(opts.deviceIndex, defaultDeviceIndex, len(devices))

	result, err := ui.RunSetup(
		buildPresetOptions(presets),
		buildDeviceOptions(devices),
		ui.SetupConfig{
			RequirePreset: needPreset,
			RequireDevice: needDevice,
			InitialPreset: 0,
			InitialDevice: initialDevice,
		},
	)
	if err != nil {
		if eris.Is(err, ui.ErrNoInteractiveTTY) {
			selectedPreset = presets[0]
			if needDevice && len(devices) > 0 {
				selectedDevice = devices[initialDevice]
			}
			return selectedPreset, selectedDevice, nil
		}
		return mood.Preset{}, nil, err
	}

	selectedPreset = presets[result.PresetIndex]
	if needDevice {
		selectedDevice = devices[result.DeviceIndex]
	}

	return selectedPreset, selectedDevice, nil
}

func buildPresetOptions(presets []mood.Preset) []ui.Option {
	options := make([]ui.Option, len(presets))
	for i, p := range presets {
		options[i] = ui.Option{
			Label: fmt.Sprintf("%-11s · E:%.2f V:%.2f Eu:%.2f C:%.2f",
				p.Name, p.State.Energy, p.State.Valence, p.State.Euphoria, p.State.Cognition),
		}
	}
	return options
}

func buildDeviceOptions(devices []*portaudio.DeviceInfo) []ui.Option {
	options := make([]ui.Option, len(devices))
	for i, dev := range devices {
		options[i] = ui.Option{
			Label: fmt.Sprintf(
				"[%d] %s · %.0fHz · in:%d · latency:%.1fms",
				i,
				dev.Name,
				dev.DefaultSampleRate,
				dev.MaxInputChannels,
				dev.DefaultLowInputLatency.Seconds()*1000,
			),
		}
	}
	return options
}

func effectiveInitialDeviceIndex(requested, fallback, length int) int {
	if length == 0 {
		return 0
	}
	if requested >= 0 && requested < length {
		return requested
	}
	if fallback >= 0 && fallback < length {
		return fallback
	}
	return 0
}
