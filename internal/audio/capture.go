// Package audio records fixed-length mono 16 kHz clips, from a microphone or
// from scripted files.
package audio

import (
	"context"
	"fmt"
	"math"
	"time"

	"sophie/pkg/audioconv"
)

const SampleRate = audioconv.SampleRate

// Capturer blocks for d and returns exactly Samples(d) samples.
type Capturer interface {
	Record(ctx context.Context, d time.Duration) ([]float32, error)
}

// DeviceError reports that the input device (or scripted source) could not
// deliver a clip.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio: %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Samples is the number of samples in a clip of length d.
func Samples(d time.Duration) int {
	return int(math.Round(d.Seconds() * SampleRate))
}
