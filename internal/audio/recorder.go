package audio

import (
	"context"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"
)

const frameSize = 320 // 20ms

// Recorder captures from a portaudio input device. Init must be called before
// Record and Close when done.
type Recorder struct {
	device int
	info   *portaudio.DeviceInfo
}

// NewRecorder selects an input device by its index in Devices(); a negative
// index selects the system default.
func NewRecorder(device int) *Recorder {
	return &Recorder{device: device}
}

func (r *Recorder) Init() error {
	if err := portaudio.Initialize(); err != nil {
		return &DeviceError{Op: "initialize", Err: err}
	}

	info, err := resolveDevice(r.device)
	if err != nil {
		portaudio.Terminate()
		return err
	}
	r.info = info
	return nil
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

func (r *Recorder) DeviceName() string {
	if r.info == nil {
		return ""
	}
	return r.info.Name
}

func (r *Recorder) Record(ctx context.Context, d time.Duration) ([]float32, error) {
	if r.info == nil {
		return nil, &DeviceError{Op: "record", Err: fmt.Errorf("recorder not initialized")}
	}

	n := Samples(d)
	buf := make([]float32, frameSize)
	out := make([]float32, 0, n+frameSize)

	p := portaudio.LowLatencyParameters(r.info, nil)
	p.Input.Channels = 1
	p.Output.Channels = 0
	p.SampleRate = SampleRate
	p.FramesPerBuffer = len(buf)

	stream, err := portaudio.OpenStream(p, buf)
	if err != nil {
		return nil, &DeviceError{Op: "open stream", Err: err}
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, &DeviceError{Op: "start stream", Err: err}
	}
	defer stream.Stop()

	for len(out) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, &DeviceError{Op: "read", Err: err}
		}
		out = append(out, buf...)
	}
	return out[:n], nil
}
