package tts

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player plays an audio file and returns once playback has finished.
type Player interface {
	PlayFile(ctx context.Context, path string) error
}

// Voice speaks text: synthesize, park the WAV in a temp file, play it to
// completion, remove the file.
type Voice struct {
	synth  Synthesizer
	player Player
	tmpDir string
}

// NewVoice returns a Voice. An empty tmpDir uses the system default.
func NewVoice(synth Synthesizer, player Player, tmpDir string) *Voice {
	return &Voice{synth: synth, player: player, tmpDir: tmpDir}
}

func (v *Voice) Speak(ctx context.Context, text string) error {
	if text == "" {
		log.Debug("Nothing to speak")
		return nil
	}

	wav, err := v.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	log.Debug("Synthesized", "bytes", len(wav))

	f, err := os.CreateTemp(v.tmpDir, "sophie-*.wav")
	if err != nil {
		return fmt.Errorf("tts: temp file: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil {
			log.Warn("Failed to remove speech file", "path", path, "err", err)
		}
	}()

	if _, err := f.Write(wav); err != nil {
		f.Close()
		return fmt.Errorf("tts: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("tts: close %s: %w", path, err)
	}

	if err := v.player.PlayFile(ctx, path); err != nil {
		return fmt.Errorf("tts: play: %w", err)
	}
	return nil
}
