// Package notify plays sounds through the default output device.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

const outputRate = beep.SampleRate(44100)

var ErrUnsupportedFormat = errors.New("notify: unsupported audio format")

// Player owns the speaker. The speaker is opened once at a fixed rate and
// every file is resampled to it.
type Player struct {
	chimePath string

	initOnce sync.Once
	initErr  error
	mu       sync.Mutex
}

func NewPlayer(chimePath string) *Player {
	return &Player{chimePath: chimePath}
}

func (p *Player) init() error {
	p.initOnce.Do(func() {
		p.initErr = speaker.Init(outputRate, outputRate.N(time.Second/10))
	})
	return p.initErr
}

// Chime plays the notification sound that acknowledges a wake phrase.
func (p *Player) Chime(ctx context.Context) error {
	if p.chimePath == "" {
		return nil
	}
	return p.PlayFile(ctx, p.chimePath)
}

// PlayFile decodes an mp3 or wav file and blocks until it has been played
// or ctx is done.
func (p *Player) PlayFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("notify: open %s: %w", path, err)
	}

	streamer, format, err := decode(f, path)
	if err != nil {
		f.Close()
		return err
	}
	defer streamer.Close()

	if err := p.init(); err != nil {
		return fmt.Errorf("notify: init speaker: %w", err)
	}

	// One sound at a time.
	p.mu.Lock()
	defer p.mu.Unlock()

	var s beep.Streamer = streamer
	if format.SampleRate != outputRate {
		s = beep.Resample(4, format.SampleRate, outputRate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

func decode(f *os.File, path string) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		s, format, err = mp3.Decode(f)
	case ".wav":
		s, format, err = wav.Decode(f)
	default:
		return nil, beep.Format{}, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, beep.Format{}, errors.Join(ErrUnsupportedFormat, err)
	}
	return s, format, nil
}
