// Package capture owns the microphone/loopback input. PortAudio is a
// process-global resource, so Acquire/Release bracket every use and the
// render engine only ever sees a channel of raw frames.
package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"
)

// Options configures an input stream.
type Options struct {
	Device     *portaudio.DeviceInfo
	SampleRate float64
	FrameSize  int
	Channels   int
	Latency    time.Duration
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		if o.Device != nil && o.Device.DefaultSampleRate > 0 {
			o.SampleRate = o.Device.DefaultSampleRate
		} else {
			o.SampleRate = 44100
		}
	}
	if o.FrameSize <= 0 {
		o.FrameSize = 1024
	}
	if o.Channels <= 0 {
		o.Channels = 1
	}
	if o.Device != nil && o.Device.MaxInputChannels > 0 && o.Channels > int(o.Device.MaxInputChannels) {
		o.Channels = int(o.Device.MaxInputChannels)
	}
	return o
}

// Acquire initializes the PortAudio runtime. Call Release when done, once
// per successful Acquire.
func Acquire() error {
	if err := portaudio.Initialize(); err != nil {
		return eris.Wrap(err, "initialize PortAudio")
	}
	return nil
}

// Release tears the PortAudio runtime down.
func Release() {
	_ = portaudio.Terminate()
}

// InputDevices lists devices with at least one input channel, along with
// the index of the system default (or -1 when it has no inputs).
func InputDevices() ([]*portaudio.DeviceInfo, int, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, -1, eris.Wrap(err, "enumerate audio devices")
	}

	inputs := make([]*portaudio.DeviceInfo, 0, len(devices))
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			inputs = append(inputs, dev)
		}
	}
	if len(inputs) == 0 {
		return nil, -1, eris.New("no input devices available; select a loopback/monitor device")
	}

	defaultIdx := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil {
		for i, dev := range inputs {
			if dev.Index == def.Index {
				defaultIdx = i
				break
			}
		}
	}

	return inputs, defaultIdx, nil
}

// Run opens the input stream and forwards frames to out until the context
// ends. When the consumer falls behind, the oldest queued frame is dropped
// so the visuals track the present rather than a backlog.
func Run(ctx context.Context, logger *slog.Logger, out chan []float32, opts Options) error {
	if opts.Device == nil {
		return eris.New("audio device is not specified")
	}
	opts = opts.withDefaults()

	logger.Info("using audio input device",
		slog.String("name", opts.Device.Name),
		slog.Float64("sample_rate", opts.SampleRate),
		slog.Int("channels", opts.Channels),
		slog.Int("frame_size", opts.FrameSize))

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   opts.Device,
			Channels: opts.Channels,
			Latency:  opts.Device.DefaultLowInputLatency,
		},
		SampleRate:      opts.SampleRate,
		FramesPerBuffer: opts.FrameSize,
	}
	if opts.Latency > 0 {
		params.Input.Latency = opts.Latency
	}

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		frame := make([]float32, len(in))
		copy(frame, in)

		select {
		case out <- frame:
		default:
			select {
			case <-out:
			default:
			}
			select {
			case out <- frame:
			default:
			}
		}
	})
	if err != nil {
		return eris.Wrap(err, "open audio stream")
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return eris.Wrap(err, "start audio stream")
	}
	defer stream.Stop()

	<-ctx.Done()
	return ctx.Err()
}
